// load.go - Adapter-Lader
//
// Dieses Modul enthaelt:
//   - readStateDict: Container-Dispatch (.safetensors via Header-Format,
//     .pt/.ckpt via Torch-Checkpoint)
//   - loadNetwork: Rohes State-Dict -> normalisiertes Network
//
// Ein Adapter mit teilweise unpassenden Schluesseln laedt trotzdem
// (PartialMatch-Warnung); ein Adapter ohne einen einzigen passenden
// Layer ist ein Ladefehler.
package lora

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/7blacky7/lorapatch/fs/checkpoint"
	"github.com/7blacky7/lorapatch/fs/safetensors"
	"github.com/7blacky7/lorapatch/ml"
)

// readStateDict liest ein Adapter-State-Dict gemaess Dateiendung
func readStateDict(filename string) (map[string]*ml.Tensor, error) {
	switch {
	case strings.HasSuffix(filename, ".safetensors"):
		sd, _, err := safetensors.ReadStateDict(filename)
		return sd, err
	case strings.HasSuffix(filename, ".pt"), strings.HasSuffix(filename, ".ckpt"):
		return checkpoint.ReadStateDict(filename)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContainer, filename)
	}
}

// loadNetwork parst einen Adapter von der Platte in ein Network
func loadNetwork(onDisk *NetworkOnDisk, mapper *KeyMapper) (*Network, error) {
	sd, err := readStateDict(onDisk.Filename)
	if err != nil {
		return nil, err
	}

	net := &Network{
		Name:             onDisk.Name,
		OnDisk:           onDisk,
		MTime:            onDisk.ModTime,
		Modules:          make(map[string]Module),
		BundleEmbeddings: make(map[string]map[string]*ml.Tensor),
	}

	matched := make(map[string]*NetworkWeights)
	var unmatched []string

	for rawKey, weight := range sd {
		if embName, vecName, ok := mapper.BundleEmbedding(rawKey); ok {
			if net.BundleEmbeddings[embName] == nil {
				net.BundleEmbeddings[embName] = make(map[string]*ml.Tensor)
			}
			net.BundleEmbeddings[embName][vecName] = weight
			continue
		}

		layer, subKey, ok := mapper.Normalize(rawKey)
		if !ok {
			unmatched = append(unmatched, rawKey)
			continue
		}

		id := layerID(layer)
		bundle := matched[id]
		if bundle == nil {
			bundle = &NetworkWeights{NetworkKey: rawKey, Layer: layer, W: make(map[string]*ml.Tensor)}
			matched[id] = bundle
		}
		bundle.W[subKey] = weight
	}

	typeNames := make(map[string]struct{})
	for id, bundle := range matched {
		module, typeName := createModule(bundle)
		if module == nil {
			slog.Error("unhandled adapter weights", "name", net.Name, "layer", id, "keys", keysOf(bundle.W))
			continue
		}
		net.Modules[id] = module
		typeNames[typeName] = struct{}{}
	}

	for name := range typeNames {
		net.TypeNames = append(net.TypeNames, name)
	}
	net.UnmatchedKeys = len(unmatched)

	if len(unmatched) > 0 {
		slog.Warn("adapter loaded with unmatched keys", "name", net.Name, "types", net.TypeNames, "unmatched", len(unmatched), "matched", len(matched))
		slog.Debug("unmatched adapter keys", "name", net.Name, "keys", unmatched)
	} else {
		slog.Debug("adapter loaded", "name", net.Name, "types", net.TypeNames, "keys", len(matched))
	}

	if len(net.Modules) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoKeysMatched, onDisk.Filename)
	}

	return net, nil
}

// createModule probiert die Varianten in fester Prioritaets-Reihenfolge;
// die erste Uebereinstimmung gewinnt
func createModule(bundle *NetworkWeights) (Module, string) {
	for _, mt := range moduleTypes {
		module, err := mt.create(bundle)
		if err != nil {
			slog.Error("module construction", "type", mt.name, "key", bundle.NetworkKey, "error", err)
			continue
		}
		if module != nil {
			return module, mt.name
		}
	}
	return nil, ""
}

func keysOf(w map[string]*ml.Tensor) []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	return keys
}
