// module_lora.go - Low-Rank-Variante (klassisches LoRA)
//
// Schluessel-Signatur: lora_up.weight + lora_down.weight, optional alpha.
// Delta = scale * (up x down) mit scale = alpha/rank; Dynamic-Dim
// schneidet die Faktor-Matrizen auf die gewuenschte effektive Rank zu.
package lora

import (
	"fmt"

	"github.com/7blacky7/lorapatch/ml"
)

type moduleLora struct {
	up    *ml.Tensor
	down  *ml.Tensor
	scale float64
}

func createModuleLora(weights *NetworkWeights) (Module, error) {
	if !hasKeys(weights.W, "lora_up.weight", "lora_down.weight") {
		return nil, nil
	}

	up := flatten2D(weights.W["lora_up.weight"])
	down := flatten2D(weights.W["lora_down.weight"])
	rank := down.Dim(0)

	return &moduleLora{
		up:    up,
		down:  down,
		scale: alphaScale(weights.W, rank),
	}, nil
}

func (m *moduleLora) Type() string { return "lora" }

func (m *moduleLora) CalcUpdown(base *ml.Tensor, dynDim int) (*ml.Tensor, *ml.Tensor, error) {
	up, down := m.up, m.down

	// Dynamic-Dim: effektive Rank unterhalb der gespeicherten Rank
	if dynDim > 0 && dynDim < down.Dim(0) {
		var err error
		if up, err = ml.Slice2D(up, up.Dim(0), dynDim); err != nil {
			return nil, nil, err
		}
		if down, err = ml.Slice2D(down, dynDim, down.Dim(1)); err != nil {
			return nil, nil, err
		}
	}

	updown, err := ml.Matmul(up, down)
	if err != nil {
		return nil, nil, err
	}
	if updown.Elems() != base.Elems() {
		return nil, nil, fmt.Errorf("delta shape %v does not cover base shape %v", updown.Shape(), base.Shape())
	}

	updown, err = reshapeAs(ml.Scale(updown, m.scale), base)
	if err != nil {
		return nil, nil, err
	}
	return updown, nil, nil
}
