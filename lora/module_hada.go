// module_hada.go - Hadamard-Variante (LoHa)
//
// Schluessel-Signatur: hada_w1_a/b + hada_w2_a/b, optional alpha.
// Delta = scale * (w1a x w1b) (.) (w2a x w2b).
// Tucker-Zerlegungen (hada_t1/t2) werden nicht unterstuetzt und
// abgelehnt, damit die Variante keinen falschen Anspruch erhebt.
package lora

import (
	"github.com/7blacky7/lorapatch/ml"
)

type moduleHada struct {
	w1a, w1b *ml.Tensor
	w2a, w2b *ml.Tensor
	scale    float64
}

func createModuleHada(weights *NetworkWeights) (Module, error) {
	if !hasKeys(weights.W, "hada_w1_a", "hada_w1_b", "hada_w2_a", "hada_w2_b") {
		return nil, nil
	}
	if hasKeys(weights.W, "hada_t1") || hasKeys(weights.W, "hada_t2") {
		return nil, nil
	}

	w1b := flatten2D(weights.W["hada_w1_b"])

	return &moduleHada{
		w1a:   flatten2D(weights.W["hada_w1_a"]),
		w1b:   w1b,
		w2a:   flatten2D(weights.W["hada_w2_a"]),
		w2b:   flatten2D(weights.W["hada_w2_b"]),
		scale: alphaScale(weights.W, w1b.Dim(0)),
	}, nil
}

func (m *moduleHada) Type() string { return "hada" }

func (m *moduleHada) CalcUpdown(base *ml.Tensor, _ int) (*ml.Tensor, *ml.Tensor, error) {
	left, err := ml.Matmul(m.w1a, m.w1b)
	if err != nil {
		return nil, nil, err
	}
	right, err := ml.Matmul(m.w2a, m.w2b)
	if err != nil {
		return nil, nil, err
	}

	updown, err := ml.Mul(left, right)
	if err != nil {
		return nil, nil, err
	}

	updown, err = reshapeAs(ml.Scale(updown, m.scale), base)
	if err != nil {
		return nil, nil, err
	}
	return updown, nil, nil
}
