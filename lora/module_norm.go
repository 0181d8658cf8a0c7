// module_norm.go - Normalisierungs-Parameter-Variante
//
// Schluessel-Signatur: w_norm, optional b_norm.
// Delta fuer Norm-Layer: w_norm auf das Gewicht, b_norm auf den Bias.
package lora

import (
	"github.com/7blacky7/lorapatch/ml"
)

type moduleNorm struct {
	wNorm *ml.Tensor
	bNorm *ml.Tensor
}

func createModuleNorm(weights *NetworkWeights) (Module, error) {
	if !hasKeys(weights.W, "w_norm") {
		return nil, nil
	}

	return &moduleNorm{
		wNorm: weights.W["w_norm"],
		bNorm: weights.W["b_norm"],
	}, nil
}

func (m *moduleNorm) Type() string { return "norm" }

func (m *moduleNorm) CalcUpdown(base *ml.Tensor, _ int) (*ml.Tensor, *ml.Tensor, error) {
	updown, err := reshapeAs(m.wNorm.Clone(), base)
	if err != nil {
		return nil, nil, err
	}

	var exBias *ml.Tensor
	if m.bNorm != nil {
		exBias = m.bNorm.Clone()
	}
	return updown, exBias, nil
}
