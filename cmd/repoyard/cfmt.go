package main

import (
	"os"

	isatty "github.com/mattn/go-isatty"
	log "github.com/msolo/go-bis/glug"
)

// configPath and verbose are bound to the process-level -config and -v
// flags in main.
var (
	configPath string
	verbose    bool
)

// initLogLevel sets the pre-flag-parse default log level. Setting
// REPOYARD_TRACE shows detailed per-subprocess logging; -v raises it
// after flag parsing.
func initLogLevel() {
	if val := os.Getenv("REPOYARD_TRACE"); val != "" && val != "0" {
		verbose = true
		log.SetLevel("INFO")
	} else {
		log.SetLevel("WARNING")
	}
}

// showProgress reports whether rclone invocations should pass
// --progress; only useful on a real terminal.
func showProgress() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}
