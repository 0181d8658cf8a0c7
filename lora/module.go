// module.go - Gemeinsame Helfer der Modul-Varianten
//
// Dieses Modul enthaelt:
// - hasKeys: Schluessel-Signatur-Pruefung fuer create-Funktionen
// - alphaScale: Alpha-ueber-Rank Skalierung
// - flatten2D/reshapeAs: Form-Behandlung fuer Conv-Gewichte
package lora

import (
	"github.com/7blacky7/lorapatch/ml"
)

func hasKeys(w map[string]*ml.Tensor, keys ...string) bool {
	for _, key := range keys {
		if _, ok := w[key]; !ok {
			return false
		}
	}
	return true
}

// alphaScale berechnet die konfigurierte alpha/rank-Skalierung.
// Ohne gespeichertes Alpha ist die Skalierung 1.
func alphaScale(w map[string]*ml.Tensor, rank int) float64 {
	if rank <= 0 {
		return 1
	}
	if a, ok := w["alpha"]; ok {
		return float64(a.Floats()[0]) / float64(rank)
	}
	return 1
}

// flatten2D flacht hoeher-dimensionale Gewichte auf (dim0, rest) ab
func flatten2D(t *ml.Tensor) *ml.Tensor {
	if t.Dims() <= 2 {
		return t
	}
	flat, err := t.Reshape(t.Dim(0), t.Elems()/t.Dim(0))
	if err != nil {
		return t
	}
	return flat
}

// reshapeAs bringt ein Delta zurueck in die Form des Basis-Gewichts
func reshapeAs(delta, base *ml.Tensor) (*ml.Tensor, error) {
	if delta.Elems() == base.Elems() {
		return delta.Reshape(base.Shape()...)
	}
	return delta, nil
}
