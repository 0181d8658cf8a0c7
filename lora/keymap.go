// keymap.go - Schluessel-Normalisierung
//
// Dieses Modul enthaelt:
// - KeyMapper: Uebersetzt rohe Adapter-Schluessel in (Ziel-Layer, Sub-Key)
// - BundleEmbedding: Erkennung gebuendelter Embedding-Eintraege
//
// Unterstuetzte Dialekte:
//   - bundle_emb.<name>.<vektor>: gebuendelte Embeddings
//   - tiefe PEFT-Schluessel (mehr als 5 Punkt-Segmente): die letzten zwei
//     Segmente bilden den Sub-Key, lora_A/lora_B wird auf lora_down/lora_up
//     umbenannt, der Rest wird mit Unterstrichen zum Prefix verbunden
//   - Legacy-Schluessel: <prefix>.<subkey> mit underscore-verbundenem Prefix
//
// Ein Prefix ohne passenden Layer ist "unmatched", kein Fehler.
package lora

import (
	"strings"

	"github.com/7blacky7/lorapatch/pipeline"
)

// KeyMapper loest rohe Schluessel gegen die Layer der Pipeline auf
type KeyMapper struct {
	pipe *pipeline.Pipeline
}

func NewKeyMapper(pipe *pipeline.Pipeline) *KeyMapper {
	return &KeyMapper{pipe: pipe}
}

// BundleEmbedding prueft auf einen gebuendelten Embedding-Eintrag.
// Der Vektor-Name behaelt alles nach dem Embedding-Namen.
func (m *KeyMapper) BundleEmbedding(raw string) (embName, vecName string, ok bool) {
	parts := strings.SplitN(raw, ".", 3)
	if len(parts) < 3 || parts[0] != "bundle_emb" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// Normalize uebersetzt einen rohen Schluessel in Ziel-Layer und Sub-Key.
// ok=false bedeutet unmatched: der Schluessel gehoert zu keinem Layer
// des geladenen Basis-Modells.
func (m *KeyMapper) Normalize(raw string) (layer *pipeline.Layer, subKey string, ok bool) {
	parts := strings.Split(raw, ".")

	var prefix string
	if len(parts) > 5 {
		// Tiefer PEFT-Dialekt: variable Tiefe, Sub-Key aus den letzten
		// zwei Segmenten
		prefix = strings.Join(parts[:len(parts)-2], "_")
		if !strings.HasPrefix(prefix, "lora_") {
			prefix = "lora_" + prefix
		}
		subKey = strings.Join(parts[len(parts)-2:], ".")
		subKey = strings.ReplaceAll(subKey, "lora_A", "lora_down")
		subKey = strings.ReplaceAll(subKey, "lora_B", "lora_up")
	} else {
		prefix, subKey, ok = strings.Cut(raw, ".")
		if !ok {
			return nil, "", false
		}
	}

	layer = m.lookup(prefix)
	if layer == nil {
		return nil, "", false
	}
	return layer, subKey, true
}

// lookup loest einen underscore-verbundenen Prefix gegen die Pipeline auf
func (m *KeyMapper) lookup(prefix string) *pipeline.Layer {
	prefix = strings.TrimPrefix(prefix, "lora_")

	alias, rest, ok := strings.Cut(prefix, "_")
	if !ok {
		return nil
	}

	// te2 vor te pruefen, der Alias ist das erste Unterstrich-Segment
	var component pipeline.Component
	switch alias {
	case "te", "te1":
		component = pipeline.TextEncoder
	case "te2":
		component = pipeline.TextEncoder2
	case "unet":
		component = pipeline.UNet
	case "transformer":
		component = pipeline.Transformer
	default:
		return nil
	}

	return m.pipe.Lookup(component, rest)
}
