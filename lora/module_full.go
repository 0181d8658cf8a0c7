// module_full.go - Dichte Voll-Differenz-Variante
//
// Schluessel-Signatur: diff, optional diff_b.
// Delta ist die gespeicherte Differenz selbst; diff_b liefert den
// Bias-Delta.
package lora

import (
	"github.com/7blacky7/lorapatch/ml"
)

type moduleFull struct {
	diff  *ml.Tensor
	diffB *ml.Tensor
}

func createModuleFull(weights *NetworkWeights) (Module, error) {
	if !hasKeys(weights.W, "diff") {
		return nil, nil
	}

	return &moduleFull{
		diff:  weights.W["diff"],
		diffB: weights.W["diff_b"],
	}, nil
}

func (m *moduleFull) Type() string { return "full" }

func (m *moduleFull) CalcUpdown(base *ml.Tensor, _ int) (*ml.Tensor, *ml.Tensor, error) {
	updown, err := reshapeAs(m.diff.Clone(), base)
	if err != nil {
		return nil, nil, err
	}

	var exBias *ml.Tensor
	if m.diffB != nil {
		exBias = m.diffB.Clone()
	}
	return updown, exBias, nil
}
