// Package checkpoint - Torch Checkpoint Reader (.pt/.ckpt)
//
// Dieses Modul enthaelt:
// - ReadStateDict: Liest ein Torch-Checkpoint-State-Dict als ml.Tensor-Mapping
// - unwrapStateDict: Entpackt verschachtelte "state_dict"-Eintraege
// - convertTensor: pytorch.Tensor -> ml.Tensor
//
// Die Deserialisierung uebernimmt gopickle; hier passiert nur die
// Umwandlung in die Tensor-Laufzeit. Non-Tensor-Eintraege werden
// uebersprungen.
package checkpoint

import (
	"fmt"
	"log/slog"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/7blacky7/lorapatch/ml"
)

// ReadStateDict liest ein Torch-Checkpoint und liefert alle Tensoren
func ReadStateDict(path string) (map[string]*ml.Tensor, error) {
	result, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint: %w", err)
	}

	entries, err := unwrapStateDict(result)
	if err != nil {
		return nil, err
	}

	sd := make(map[string]*ml.Tensor, len(entries))
	for name, value := range entries {
		t, ok := value.(*pytorch.Tensor)
		if !ok {
			slog.Debug("skipping non-tensor checkpoint entry", "key", name)
			continue
		}

		converted, err := convertTensor(t)
		if err != nil {
			return nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		sd[name] = converted
	}

	return sd, nil
}

// unwrapStateDict entpackt Dict/OrderedDict und folgt einem
// eingebetteten "state_dict"-Eintrag eine Ebene tief
func unwrapStateDict(result any) (map[string]any, error) {
	entries := make(map[string]any)

	switch d := result.(type) {
	case *types.OrderedDict:
		for _, entry := range d.Map {
			if key, ok := entry.Key.(string); ok {
				entries[key] = entry.Value
			}
		}
	case *types.Dict:
		for _, entry := range *d {
			if key, ok := entry.Key.(string); ok {
				entries[key] = entry.Value
			}
		}
	default:
		return nil, fmt.Errorf("unexpected checkpoint root type %T", result)
	}

	if inner, ok := entries["state_dict"]; ok {
		return unwrapStateDict(inner)
	}

	return entries, nil
}

func convertTensor(t *pytorch.Tensor) (*ml.Tensor, error) {
	n := 1
	for _, d := range t.Size {
		n *= d
	}

	var values []float32
	switch source := t.Source.(type) {
	case *pytorch.FloatStorage:
		values = source.Data
	case *pytorch.HalfStorage:
		values = source.Data
	case *pytorch.BFloat16Storage:
		values = source.Data
	case *pytorch.DoubleStorage:
		values = make([]float32, len(source.Data))
		for i, v := range source.Data {
			values[i] = float32(v)
		}
	default:
		return nil, fmt.Errorf("unsupported storage type %T", t.Source)
	}

	offset := t.StorageOffset
	if offset+n > len(values) {
		return nil, fmt.Errorf("storage too small: need %d values at offset %d, have %d", n, offset, len(values))
	}

	shape := t.Size
	if len(shape) == 0 {
		shape = []int{1}
	}

	return ml.FromFloats(ml.DTypeF32, ml.DeviceCPU, shape, values[offset:offset+n])
}
