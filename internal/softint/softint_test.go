package softint

import "testing"

func TestCheckAndResetWithoutEnable(t *testing.T) {
	Reset()
	if Check() {
		t.Fatal("expected Check() false before any signal is observed")
	}
	if Count() != 0 {
		t.Fatalf("expected Count() 0, got %d", Count())
	}
}

func TestEnableDisableDoesNotPanic(t *testing.T) {
	disable := Enable(DefaultCount)
	disable()
	Reset()
}
