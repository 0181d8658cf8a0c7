// recompile.go - Koordination mit kompilierten Pipelines
//
// Dieses Modul enthaelt:
// - maybeRecompile: Signatur-Vergleich vor dem Patch-Pass
// - finishRecompile: Rekompilierung nach erfolgreicher Aktivierung
//
// Kompilierte Pipelines backen Gewichte in Ausfuehrungsgraphen ein.
// Aendert sich das Adapter-Set, muessen die Basisgewichte neu geladen
// und der Graph nach dem Patchen neu kompiliert werden.
package lora

import (
	"log/slog"
	"slices"
	"strconv"
)

// compileSignature baut die "name:multiplier"-Liste der Requests
func compileSignature(requests []Request) []string {
	sig := make([]string, 0, len(requests))
	for _, req := range requests {
		sig = append(sig, req.Name+":"+strconv.FormatFloat(req.UNetMultiplier, 'g', -1, 64))
	}
	return sig
}

// maybeRecompile vergleicht das angeforderte Set mit der beim letzten
// Kompilieren eingebackenen Signatur. Bei Abweichung werden die
// Basisgewichte mit deaktivierter Kompilierung neu geladen und alle
// Layer-Zustaende verworfen, denn die Snapshots beziehen sich auf die
// ersetzten Gewichte. Der Rueckgabewert meldet, ob nach dem Patch-Pass
// rekompiliert werden muss.
func (e *Engine) maybeRecompile(requests []Request) bool {
	cs := e.pipe.Compiled()
	if !cs.IsCompiled() {
		return false
	}

	wanted := compileSignature(requests)
	if slices.Equal(cs.AdapterSignature, wanted) {
		return false
	}

	slog.Info("adapter set changed, reloading base weights", "was", cs.AdapterSignature, "now", wanted)
	cs.SetCompiled(false)
	if err := cs.ReloadWeights(); err != nil {
		slog.Error("base weight reload failed", "error", err)
		return false
	}

	// Frische Basisgewichte: Snapshots und Signaturen sind ungueltig
	e.states = make(map[string]*LayerState)

	cs.AdapterSignature = wanted
	return true
}

// finishRecompile kompiliert die Pipeline nach dem Patch-Pass neu
func (e *Engine) finishRecompile() {
	cs := e.pipe.Compiled()
	if err := cs.Recompile(); err != nil {
		slog.Error("pipeline recompile failed", "error", err)
	}
}
