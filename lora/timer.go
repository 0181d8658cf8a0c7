// timer.go - Zeitmessung der Patch-Pipeline
//
// Dieses Modul enthaelt:
//   - Timer: Kumulative Dauer pro Phase (list, load, backup, calc, apply,
//     move, restore, deactivate)
//   - Timers: Export als gerundete Sekunden-Map
package lora

import (
	"math"
	"time"
)

// Timer sammelt kumulative Laufzeiten pro Phase
type Timer struct {
	phases map[string]time.Duration
}

func NewTimer() *Timer {
	return &Timer{phases: make(map[string]time.Duration)}
}

// Add addiert eine Dauer auf eine Phase
func (t *Timer) Add(phase string, d time.Duration) {
	t.phases[phase] += d
}

// Set setzt eine Phase auf eine feste Dauer
func (t *Timer) Set(phase string, d time.Duration) {
	t.phases[phase] = d
}

// Reset setzt die angegebenen Phasen auf null
func (t *Timer) Reset(phases ...string) {
	for _, phase := range phases {
		t.phases[phase] = 0
	}
}

// Total gibt die Summe aller Phasen zurueck
func (t *Timer) Total() time.Duration {
	var total time.Duration
	for _, d := range t.phases {
		total += d
	}
	return total
}

// Timers gibt die Messwerte als gerundete Sekunden zurueck.
// Phasen unter 0.1s werden weggelassen, "total" ist immer enthalten.
func (t *Timer) Timers() map[string]float64 {
	out := map[string]float64{"total": round2(t.Total().Seconds())}
	for phase, d := range t.phases {
		if d.Seconds() > 0.1 {
			out[phase] = round2(d.Seconds())
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
