// module_glora.go - Generalisierte Low-Rank+Bias-Variante (GLora)
//
// Schluessel-Signatur: a1.weight, a2.weight, b1.weight, b2.weight,
// optional alpha.
// Delta = scale * ((b1 x b2) + base x (a1 x a2)): ein additiver
// Low-Rank-Term plus ein vom Basis-Gewicht abhaengiger Term.
package lora

import (
	"github.com/7blacky7/lorapatch/ml"
)

type moduleGLora struct {
	a1, a2 *ml.Tensor
	b1, b2 *ml.Tensor
	scale  float64
}

func createModuleGLora(weights *NetworkWeights) (Module, error) {
	if !hasKeys(weights.W, "a1.weight", "a2.weight", "b1.weight", "b2.weight") {
		return nil, nil
	}

	a2 := flatten2D(weights.W["a2.weight"])

	return &moduleGLora{
		a1:    flatten2D(weights.W["a1.weight"]),
		a2:    a2,
		b1:    flatten2D(weights.W["b1.weight"]),
		b2:    flatten2D(weights.W["b2.weight"]),
		scale: alphaScale(weights.W, a2.Dim(0)),
	}, nil
}

func (m *moduleGLora) Type() string { return "glora" }

func (m *moduleGLora) CalcUpdown(base *ml.Tensor, _ int) (*ml.Tensor, *ml.Tensor, error) {
	additive, err := ml.Matmul(m.b1, m.b2)
	if err != nil {
		return nil, nil, err
	}

	mix, err := ml.Matmul(m.a1, m.a2)
	if err != nil {
		return nil, nil, err
	}
	dependent, err := ml.Matmul(flatten2D(base), mix)
	if err != nil {
		return nil, nil, err
	}

	updown, err := ml.Add(additive, dependent)
	if err != nil {
		return nil, nil, err
	}

	updown, err = reshapeAs(ml.Scale(updown, m.scale), base)
	if err != nil {
		return nil, nil, err
	}
	return updown, nil, nil
}
