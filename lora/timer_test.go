// timer_test.go - Tests fuer die Phasen-Zeitmessung
package lora

import (
	"testing"
	"time"
)

func TestTimerAccumulates(t *testing.T) {
	tm := NewTimer()
	tm.Add("calc", 200*time.Millisecond)
	tm.Add("calc", 300*time.Millisecond)
	tm.Add("apply", 50*time.Millisecond)

	if got := tm.Total(); got != 550*time.Millisecond {
		t.Errorf("total = %v, want 550ms", got)
	}

	timers := tm.Timers()
	if timers["calc"] != 0.5 {
		t.Errorf("calc = %v, want 0.5", timers["calc"])
	}
	// Phasen unter 0.1s tauchen nicht auf
	if _, ok := timers["apply"]; ok {
		t.Error("apply should be omitted below threshold")
	}
	if timers["total"] != 0.55 {
		t.Errorf("total = %v, want 0.55", timers["total"])
	}
}

func TestTimerReset(t *testing.T) {
	tm := NewTimer()
	tm.Add("backup", time.Second)
	tm.Add("restore", 2*time.Second)

	tm.Reset("backup")

	if got := tm.Total(); got != 2*time.Second {
		t.Errorf("total after reset = %v, want 2s", got)
	}
}
