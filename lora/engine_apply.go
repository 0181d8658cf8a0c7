// engine_apply.go - Patch-Pass: Aktivieren und Deaktivieren von Adaptern
//
// Dieses Modul enthaelt:
// - Activate: Konvergenz der Pipeline auf das angeforderte Adapter-Set
// - Deactivate: Zuruecksetzen auf die Originalgewichte
// - patchLayer: Backup, Delta-Summe und atomares Schreiben pro Layer
//
// Pro Parameter wird hoechstens einmal pro Pass geschrieben. Ein Layer
// mit identischer Signatur wird uebersprungen, damit ist ein zweiter
// Activate-Aufruf mit gleichem Set ein No-op.
package lora

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/7blacky7/lorapatch/logutil"
	"github.com/7blacky7/lorapatch/ml"
	"github.com/7blacky7/lorapatch/pipeline"
)

// Activate laedt das angeforderte Adapter-Set und faltet es in die
// Pipeline-Gewichte ein. Bereits konvergierte Layer werden
// uebersprungen, ein abgebrochener Kontext beendet den Pass zwischen
// zwei Layern und laesst die restlichen Layer unveraendert.
func (e *Engine) Activate(ctx context.Context, requests []Request) error {
	e.timer.Reset("list", "backup", "calc", "apply", "move", "restore")

	recompile := e.maybeRecompile(requests)

	e.active = e.loadNetworks(ctx, requests)
	wanted := wantedSignature(e.active)

	if err := e.patchAll(ctx, wanted, false); err != nil {
		return err
	}

	if recompile {
		e.finishRecompile()
	}
	return ctx.Err()
}

// Deactivate entfernt das aktive Adapter-Set wieder. Layer mit
// Snapshot-Backup werden aus dem Snapshot restauriert, Layer ohne
// Snapshot ueber Neuberechnung und Subtraktion der Delta-Summe.
// Im Fuse-Modus ohne LowMemory ist die Einfaltung endgueltig.
func (e *Engine) Deactivate(ctx context.Context) error {
	if len(e.active) == 0 {
		return nil
	}
	if e.opts.Fuse && !e.opts.LowMemory {
		slog.Warn("fused adapters cannot be deactivated", "active", e.ActiveNames())
		e.active = nil
		return nil
	}

	e.timer.Reset("deactivate")
	start := time.Now()
	err := e.patchAll(ctx, nil, true)
	e.timer.Add("deactivate", time.Since(start))
	if err == nil && ctx.Err() == nil {
		e.active = nil
	}
	if err != nil {
		return err
	}
	return ctx.Err()
}

// patchAll laeuft ueber alle Komponenten und Layer der Pipeline und
// bringt jeden Layer auf die Ziel-Signatur
func (e *Engine) patchAll(ctx context.Context, wanted []netSig, deactivate bool) error {
	for _, component := range pipeline.Components() {
		for _, layer := range e.pipe.Layers(component) {
			if err := ctx.Err(); err != nil {
				slog.Warn("patch pass interrupted", "component", component, "layer", layer.Name(), "error", err)
				return nil
			}
			if err := e.patchLayer(layer, wanted, deactivate); err != nil {
				return err
			}
		}
	}
	return nil
}

// patchLayer bringt einen einzelnen Layer auf die Ziel-Signatur.
// Reihenfolge: Signatur-Vergleich, Backup, Delta-Summe, ein einziges
// Schreiben von Gewicht und Bias, Signatur fortschreiben.
func (e *Engine) patchLayer(layer *pipeline.Layer, wanted []netSig, deactivate bool) error {
	id := layerID(layer)
	state := e.state(id)

	if sameSignature(state.signature, wanted) {
		return nil
	}

	owners := e.owners(id)
	if len(owners) == 0 && state.weight == nil {
		// Der Layer wurde nie gepatcht und kein Adapter beruehrt ihn
		if deactivate {
			state.signature = nil
		} else {
			state.signature = wanted
		}
		return nil
	}

	origDType := layer.Weight().DType()
	device := layer.Device()

	if deactivate && state.weight != nil && state.weight.kind == backupSnapshot {
		return e.restoreSnapshot(layer, state, origDType, device)
	}

	if !deactivate && len(owners) > 0 {
		e.ensureBackup(layer, state)
	}

	baseWeight, baseBias := e.patchBase(layer, state)

	updown, exBias := e.sumDeltas(layer, baseWeight, owners, deactivate)

	t0 := time.Now()
	newWeight := baseWeight
	if updown != nil {
		updown = padToBase(updown, baseWeight)
		var err error
		newWeight, err = ml.Add(baseWeight, updown)
		if err != nil {
			return fmt.Errorf("layer %s: %w", id, err)
		}
	}
	if origDType.IsQuantized() {
		var err error
		newWeight, err = ml.Quantize(newWeight, origDType)
		if err != nil {
			return fmt.Errorf("layer %s: requantize: %w", id, err)
		}
	}
	layer.SetWeight(newWeight.To(device))

	if state.bias == nil {
		// Der Layer hatte nie einen Bias: Bias-Deltas werden verworfen
		// und ein frueher geschriebener Bias geleert
		layer.SetBias(nil)
	} else if exBias != nil {
		newBias := exBias
		if baseBias != nil {
			var err error
			newBias, err = ml.Add(baseBias, exBias)
			if err != nil {
				return fmt.Errorf("layer %s: bias: %w", id, err)
			}
		}
		layer.SetBias(newBias.To(device))
	} else if baseBias != nil && state.bias.kind == backupSnapshot {
		// Kein Adapter liefert mehr einen Bias-Beitrag, Original zurueck
		layer.SetBias(baseBias.To(device))
	}
	e.timer.Add("apply", time.Since(t0))

	if deactivate {
		state.signature = nil
	} else {
		state.signature = wanted
	}
	logutil.Trace("layer patched", "layer", id, "owners", len(owners), "deactivate", deactivate)
	return nil
}

// restoreSnapshot schreibt das gesicherte Original zurueck und leert
// die Signatur des Layers
func (e *Engine) restoreSnapshot(layer *pipeline.Layer, state *LayerState, origDType ml.DType, device ml.Device) error {
	t0 := time.Now()
	defer func() { e.timer.Add("restore", time.Since(t0)) }()

	weight := state.weight.tensor
	if origDType.IsQuantized() {
		var err error
		weight, err = ml.Quantize(weight, origDType)
		if err != nil {
			return fmt.Errorf("layer %s: requantize: %w", layerID(layer), err)
		}
	}
	layer.SetWeight(weight.To(device))

	if state.bias != nil && state.bias.kind == backupSnapshot {
		layer.SetBias(state.bias.tensor.To(device))
	} else if state.bias == nil {
		layer.SetBias(nil)
	}

	state.signature = nil
	return nil
}

// patchBase liefert die Basis, auf die Deltas addiert werden. Mit
// Snapshot ist das das dequantisierte Original, ohne Snapshot das
// aktuelle Live-Gewicht (in-place Modus).
func (e *Engine) patchBase(layer *pipeline.Layer, state *LayerState) (weight, bias *ml.Tensor) {
	t0 := time.Now()
	defer func() { e.timer.Add("restore", time.Since(t0)) }()

	if state.weight != nil && state.weight.kind == backupSnapshot {
		weight = state.weight.tensor.To(layer.Device())
	} else {
		weight = ml.Dequantize(layer.Weight())
	}

	if state.bias != nil && state.bias.kind == backupSnapshot {
		bias = state.bias.tensor.To(layer.Device())
	} else if layer.Bias() != nil {
		bias = ml.Dequantize(layer.Bias())
	}
	return weight, bias
}

// ensureBackup legt beim ersten Patch eines Layers das Backup an.
// Spaetere Patch-Zyklen verwenden das bestehende Backup weiter, damit
// der Snapshot immer das echte Original enthaelt.
func (e *Engine) ensureBackup(layer *pipeline.Layer, state *LayerState) {
	if state.weight != nil {
		return
	}

	t0 := time.Now()
	defer func() { e.timer.Add("backup", time.Since(t0)) }()

	if e.opts.Fuse || e.opts.LowMemory {
		state.weight = &Backup{kind: backupNone}
		if layer.Bias() != nil {
			state.bias = &Backup{kind: backupNone}
		}
		return
	}

	snapshot := ml.Dequantize(layer.Weight()).Clone()
	if e.opts.OffloadBackup {
		snapshot = snapshot.To(ml.DeviceCPU)
	}
	state.weight = &Backup{kind: backupSnapshot, tensor: snapshot}

	if layer.Bias() != nil {
		biasSnap := ml.Dequantize(layer.Bias()).Clone()
		if e.opts.OffloadBackup {
			biasSnap = biasSnap.To(ml.DeviceCPU)
		}
		state.bias = &Backup{kind: backupSnapshot, tensor: biasSnap}
	}
}

// sumDeltas berechnet die gewichtete Delta-Summe aller Besitzer des
// Layers. Ein fehlschlagendes Modul erhoeht den Fehlerzaehler seines
// Adapters und traegt nichts bei, die uebrigen Module laufen weiter.
func (e *Engine) sumDeltas(layer *pipeline.Layer, base *ml.Tensor, owners []ownedModule, deactivate bool) (updown, exBias *ml.Tensor) {
	t0 := time.Now()
	defer func() { e.timer.Add("calc", time.Since(t0)) }()

	for _, own := range owners {
		multiplier := own.net.Multiplier(layer.Component())
		if multiplier == 0 {
			continue
		}

		delta, bias, err := own.module.CalcUpdown(base, own.net.DynDim)
		if err != nil {
			e.errCounts[own.net.Name]++
			slog.Error("adapter delta failed", "adapter", own.net.Name, "layer", layer.Name(), "type", own.module.Type(), "error", err)
			continue
		}

		if delta != nil {
			delta = ml.Scale(delta, multiplier)
			if deactivate {
				delta = ml.Scale(delta, -1)
			}
			updown = e.accumulate(updown, delta, own.net.Name, layer)
		}
		if bias != nil {
			bias = ml.Scale(bias, multiplier)
			if deactivate {
				bias = ml.Scale(bias, -1)
			}
			exBias = e.accumulate(exBias, bias, own.net.Name, layer)
		}
	}

	if e.opts.OffloadMode != "none" {
		t1 := time.Now()
		if updown != nil {
			updown = updown.To(ml.DeviceCPU)
		}
		if exBias != nil {
			exBias = exBias.To(ml.DeviceCPU)
		}
		e.timer.Add("move", time.Since(t1))
	}
	return updown, exBias
}

// accumulate addiert einen Delta-Beitrag auf die laufende Summe
func (e *Engine) accumulate(sum, delta *ml.Tensor, adapter string, layer *pipeline.Layer) *ml.Tensor {
	if sum == nil {
		return delta
	}
	delta = padToBase(delta, sum)
	out, err := ml.Add(sum, delta)
	if err != nil {
		e.errCounts[adapter]++
		slog.Error("adapter delta shape mismatch", "adapter", adapter, "layer", layer.Name(), "error", err)
		return sum
	}
	return out
}

// ownedModule verbindet ein Adapter-Modul mit seinem aktiven Netzwerk
type ownedModule struct {
	net    *ActiveNetwork
	module Module
}

// owners sammelt alle aktiven Module, die den Layer patchen, in der
// Reihenfolge des aktiven Sets
func (e *Engine) owners(id string) []ownedModule {
	var out []ownedModule
	for _, net := range e.active {
		if m, ok := net.Modules[id]; ok {
			out = append(out, ownedModule{net: net, module: m})
		}
	}
	return out
}

// padToBase erweitert ein Delta auf die Kanalzahl der Basis. Das deckt
// Basis-Modelle mit erweitertem Eingangskanal ab, etwa Inpainting-UNets
// mit 9 statt 4 Eingangskanaelen.
func padToBase(delta, base *ml.Tensor) *ml.Tensor {
	if delta.Dims() != base.Dims() || delta.Dims() < 2 {
		return delta
	}
	if delta.Dim(1) >= base.Dim(1) {
		return delta
	}
	padded, err := ml.PadDim(delta, 1, base.Dim(1))
	if err != nil {
		return delta
	}
	return padded
}
