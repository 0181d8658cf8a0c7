// module_ia3.go - Kanal-Skalierungs-Variante (IA3)
//
// Schluessel-Signatur: weight (Vektor) + on_input (Flag).
// Delta = base (.) broadcast(weight): das Basis-Gewicht wird kanalweise
// skaliert, on_input entscheidet ueber Eingangs- oder Ausgangskanaele.
package lora

import (
	"github.com/7blacky7/lorapatch/ml"
)

type moduleIa3 struct {
	w       *ml.Tensor
	onInput bool
}

func createModuleIa3(weights *NetworkWeights) (Module, error) {
	if !hasKeys(weights.W, "weight", "on_input") {
		return nil, nil
	}

	return &moduleIa3{
		w:       weights.W["weight"],
		onInput: weights.W["on_input"].Floats()[0] != 0,
	}, nil
}

func (m *moduleIa3) Type() string { return "ia3" }

func (m *moduleIa3) CalcUpdown(base *ml.Tensor, _ int) (*ml.Tensor, *ml.Tensor, error) {
	flat := flatten2D(base)

	var updown *ml.Tensor
	var err error
	if m.onInput {
		updown, err = ml.ColScale(flat, m.w)
	} else {
		updown, err = ml.RowScale(flat, m.w)
	}
	if err != nil {
		return nil, nil, err
	}

	updown, err = reshapeAs(updown, base)
	if err != nil {
		return nil, nil, err
	}
	return updown, nil, nil
}
