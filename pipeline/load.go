// load.go - Pipeline-Aufbau aus einem Safetensors State-Dict
//
// Dieses Modul enthaelt:
// - Load: Baut eine Pipeline aus einer Safetensors-Datei
// - FromStateDict: Gruppiert Schluessel nach Komponente und Layer
//
// Schluessel-Konvention: "<komponente>.<layer.pfad>.weight" bzw. ".bias".
// Unbekannte Komponenten-Prefixe werden geloggt und uebersprungen.
package pipeline

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/7blacky7/lorapatch/fs/safetensors"
	"github.com/7blacky7/lorapatch/ml"
)

// Load liest eine Safetensors-Datei und baut daraus eine Pipeline
func Load(path string, device ml.Device) (*Pipeline, error) {
	sd, _, err := safetensors.ReadStateDict(path)
	if err != nil {
		return nil, err
	}
	return FromStateDict(sd, device)
}

// FromStateDict baut eine Pipeline aus einem State-Dict
func FromStateDict(sd map[string]*ml.Tensor, device ml.Device) (*Pipeline, error) {
	type entry struct {
		component Component
		weight    *ml.Tensor
		bias      *ml.Tensor
	}

	layers := make(map[string]*entry)
	var order []string

	for key, tensor := range sd {
		component, rest, ok := strings.Cut(key, ".")
		if !ok {
			slog.Debug("skipping key without component prefix", "key", key)
			continue
		}
		if !slices.Contains(Components(), Component(component)) {
			slog.Debug("skipping unknown component", "key", key, "component", component)
			continue
		}

		name, param, ok := splitParam(rest)
		if !ok {
			slog.Debug("skipping non-parameter key", "key", key)
			continue
		}

		id := component + "." + name
		e := layers[id]
		if e == nil {
			e = &entry{component: Component(component)}
			layers[id] = e
			order = append(order, id)
		}

		switch param {
		case "weight":
			e.weight = tensor.To(device)
		case "bias":
			e.bias = tensor.To(device)
		}
	}

	p := New(device)
	for _, id := range order {
		e := layers[id]
		if e.weight == nil {
			return nil, fmt.Errorf("layer %q has a bias but no weight", id)
		}
		_, name, _ := strings.Cut(id, ".")
		if _, err := p.AddLayer(e.component, name, e.weight, e.bias); err != nil {
			return nil, err
		}
	}

	slog.Info("pipeline loaded", "layers", p.LayerCount(), "device", device)
	return p, nil
}

func splitParam(rest string) (name, param string, ok bool) {
	i := strings.LastIndex(rest, ".")
	if i < 0 {
		return "", "", false
	}
	name, param = rest[:i], rest[i+1:]
	if param != "weight" && param != "bias" {
		return "", "", false
	}
	return name, param, true
}
