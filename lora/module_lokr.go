// module_lokr.go - Kronecker-Variante (LoKr)
//
// Schluessel-Signatur: lokr_w1 oder lokr_w1_a+lokr_w1_b, dazu lokr_w2
// oder lokr_w2_a+lokr_w2_b, optional alpha.
// Delta = scale * kron(w1, w2), wobei faktorisierte Seiten zuerst als
// Produkt materialisiert werden.
package lora

import (
	"github.com/7blacky7/lorapatch/ml"
)

type moduleLokr struct {
	w1, w1a, w1b *ml.Tensor
	w2, w2a, w2b *ml.Tensor
	scale        float64
}

func createModuleLokr(weights *NetworkWeights) (Module, error) {
	hasW1 := hasKeys(weights.W, "lokr_w1") || hasKeys(weights.W, "lokr_w1_a", "lokr_w1_b")
	hasW2 := hasKeys(weights.W, "lokr_w2") || hasKeys(weights.W, "lokr_w2_a", "lokr_w2_b")
	if !hasW1 || !hasW2 {
		return nil, nil
	}

	m := &moduleLokr{
		w1:  weights.W["lokr_w1"],
		w1a: weights.W["lokr_w1_a"],
		w1b: weights.W["lokr_w1_b"],
		w2:  weights.W["lokr_w2"],
		w2a: weights.W["lokr_w2_a"],
		w2b: weights.W["lokr_w2_b"],
	}

	// Rank fuer die Alpha-Skalierung kommt aus dem ersten faktorisierten Teil
	rank := 0
	if m.w1b != nil {
		rank = m.w1b.Dim(0)
	} else if m.w2b != nil {
		rank = m.w2b.Dim(0)
	}
	m.scale = alphaScale(weights.W, rank)

	return m, nil
}

func (m *moduleLokr) Type() string { return "lokr" }

func (m *moduleLokr) side(full, a, b *ml.Tensor) (*ml.Tensor, error) {
	if full != nil {
		return flatten2D(full), nil
	}
	return ml.Matmul(flatten2D(a), flatten2D(b))
}

func (m *moduleLokr) CalcUpdown(base *ml.Tensor, _ int) (*ml.Tensor, *ml.Tensor, error) {
	w1, err := m.side(m.w1, m.w1a, m.w1b)
	if err != nil {
		return nil, nil, err
	}
	w2, err := m.side(m.w2, m.w2a, m.w2b)
	if err != nil {
		return nil, nil, err
	}

	updown, err := ml.Kronecker(w1, w2)
	if err != nil {
		return nil, nil, err
	}

	updown, err = reshapeAs(ml.Scale(updown, m.scale), base)
	if err != nil {
		return nil, nil, err
	}
	return updown, nil, nil
}
