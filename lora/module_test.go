// module_test.go - Tests fuer die Modul-Varianten und den Dispatch
package lora

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/7blacky7/lorapatch/ml"
)

func bundle(w map[string]*ml.Tensor) *NetworkWeights {
	return &NetworkWeights{NetworkKey: "test", W: w}
}

func TestDispatchPriority(t *testing.T) {
	cases := []struct {
		name string
		w    map[string]*ml.Tensor
		want string
	}{
		{
			name: "lora",
			w: map[string]*ml.Tensor{
				"lora_up.weight":   ml.NewTensor([]int{2, 1}, []float32{1, 1}),
				"lora_down.weight": ml.NewTensor([]int{1, 2}, []float32{1, 1}),
			},
			want: "lora",
		},
		{
			name: "hada",
			w: map[string]*ml.Tensor{
				"hada_w1_a": ml.NewTensor([]int{2, 1}, []float32{1, 1}),
				"hada_w1_b": ml.NewTensor([]int{1, 2}, []float32{1, 1}),
				"hada_w2_a": ml.NewTensor([]int{2, 1}, []float32{1, 1}),
				"hada_w2_b": ml.NewTensor([]int{1, 2}, []float32{1, 1}),
			},
			want: "hada",
		},
		{
			name: "ia3",
			w: map[string]*ml.Tensor{
				"weight":   ml.NewTensor([]int{2}, []float32{1, 2}),
				"on_input": ml.NewTensor([]int{1}, []float32{0}),
			},
			want: "ia3",
		},
		{
			name: "full",
			w: map[string]*ml.Tensor{
				"diff": ml.NewTensor([]int{2, 2}, []float32{1, 2, 3, 4}),
			},
			want: "full",
		},
		{
			name: "norm",
			w: map[string]*ml.Tensor{
				"w_norm": ml.NewTensor([]int{2}, []float32{1, 2}),
			},
			want: "norm",
		},
		{
			name: "tucker hada unsupported",
			w: map[string]*ml.Tensor{
				"hada_w1_a": ml.NewTensor([]int{2, 1}, []float32{1, 1}),
				"hada_w1_b": ml.NewTensor([]int{1, 2}, []float32{1, 1}),
				"hada_w2_a": ml.NewTensor([]int{2, 1}, []float32{1, 1}),
				"hada_w2_b": ml.NewTensor([]int{1, 2}, []float32{1, 1}),
				"hada_t1":   ml.NewTensor([]int{1}, []float32{0}),
			},
			want: "",
		},
		{
			name: "unknown keys",
			w: map[string]*ml.Tensor{
				"something.weight": ml.NewTensor([]int{2}, []float32{1, 2}),
			},
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			module, typeName := createModule(bundle(tc.w))
			if typeName != tc.want {
				t.Fatalf("typ = %q, erwartet %q", typeName, tc.want)
			}
			if tc.want != "" && module == nil {
				t.Fatal("modul fehlt")
			}
		})
	}
}

func TestLoraCalcUpdown(t *testing.T) {
	w := map[string]*ml.Tensor{
		"lora_up.weight":   ml.NewTensor([]int{2, 1}, []float32{1, 2}),
		"lora_down.weight": ml.NewTensor([]int{1, 2}, []float32{3, 4}),
		"alpha":            ml.NewTensor([]int{1}, []float32{1}),
	}
	module, err := createModuleLora(bundle(w))
	if err != nil {
		t.Fatal(err)
	}

	base := ml.NewTensor([]int{2, 2}, make([]float32, 4))
	updown, exBias, err := module.CalcUpdown(base, 0)
	if err != nil {
		t.Fatal(err)
	}
	if exBias != nil {
		t.Error("lora liefert keinen Bias-Delta")
	}
	// up x down mit alpha/rank = 1
	if diff := cmp.Diff([]float32{3, 4, 6, 8}, updown.Floats()); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
}

func TestLoraAlphaScale(t *testing.T) {
	// rank 2, alpha 1: Skalierung 0.5
	w := map[string]*ml.Tensor{
		"lora_up.weight":   ml.NewTensor([]int{2, 2}, []float32{1, 0, 0, 1}),
		"lora_down.weight": ml.NewTensor([]int{2, 2}, []float32{2, 0, 0, 2}),
		"alpha":            ml.NewTensor([]int{1}, []float32{1}),
	}
	module, err := createModuleLora(bundle(w))
	if err != nil {
		t.Fatal(err)
	}

	base := ml.NewTensor([]int{2, 2}, make([]float32, 4))
	updown, _, err := module.CalcUpdown(base, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float32{1, 0, 0, 1}, updown.Floats()); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
}

func TestLoraDynDim(t *testing.T) {
	// rank 2; dyn_dim 1 behaelt nur den ersten Faktor
	w := map[string]*ml.Tensor{
		"lora_up.weight":   ml.NewTensor([]int{2, 2}, []float32{1, 10, 2, 10}),
		"lora_down.weight": ml.NewTensor([]int{2, 2}, []float32{3, 4, 10, 10}),
	}
	module, err := createModuleLora(bundle(w))
	if err != nil {
		t.Fatal(err)
	}

	base := ml.NewTensor([]int{2, 2}, make([]float32, 4))
	updown, _, err := module.CalcUpdown(base, 1)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float32{3, 4, 6, 8}, updown.Floats()); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
}

func TestIa3CalcUpdown(t *testing.T) {
	base := ml.NewTensor([]int{2, 2}, []float32{1, 2, 3, 4})

	out, err := createModuleIa3(bundle(map[string]*ml.Tensor{
		"weight":   ml.NewTensor([]int{2}, []float32{2, 3}),
		"on_input": ml.NewTensor([]int{1}, []float32{0}),
	}))
	if err != nil {
		t.Fatal(err)
	}
	updown, _, err := out.CalcUpdown(base, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float32{2, 4, 9, 12}, updown.Floats()); diff != "" {
		t.Errorf("ausgangs-skalierung mismatch (-want +got):\n%s", diff)
	}

	in, err := createModuleIa3(bundle(map[string]*ml.Tensor{
		"weight":   ml.NewTensor([]int{2}, []float32{2, 3}),
		"on_input": ml.NewTensor([]int{1}, []float32{1}),
	}))
	if err != nil {
		t.Fatal(err)
	}
	updown, _, err = in.CalcUpdown(base, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float32{2, 6, 6, 12}, updown.Floats()); diff != "" {
		t.Errorf("eingangs-skalierung mismatch (-want +got):\n%s", diff)
	}
}

func TestHadaCalcUpdown(t *testing.T) {
	w := map[string]*ml.Tensor{
		"hada_w1_a": ml.NewTensor([]int{2, 1}, []float32{1, 1}),
		"hada_w1_b": ml.NewTensor([]int{1, 2}, []float32{1, 2}),
		"hada_w2_a": ml.NewTensor([]int{2, 1}, []float32{2, 1}),
		"hada_w2_b": ml.NewTensor([]int{1, 2}, []float32{1, 1}),
	}
	module, err := createModuleHada(bundle(w))
	if err != nil {
		t.Fatal(err)
	}

	base := ml.NewTensor([]int{2, 2}, make([]float32, 4))
	updown, _, err := module.CalcUpdown(base, 0)
	if err != nil {
		t.Fatal(err)
	}
	// (w1a x w1b) (.) (w2a x w2b)
	if diff := cmp.Diff([]float32{2, 4, 1, 2}, updown.Floats()); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
}

func TestLokrCalcUpdown(t *testing.T) {
	w := map[string]*ml.Tensor{
		"lokr_w1": ml.NewTensor([]int{1, 2}, []float32{1, 2}),
		"lokr_w2": ml.NewTensor([]int{2, 1}, []float32{3, 4}),
	}
	module, err := createModuleLokr(bundle(w))
	if err != nil {
		t.Fatal(err)
	}

	base := ml.NewTensor([]int{2, 2}, make([]float32, 4))
	updown, _, err := module.CalcUpdown(base, 0)
	if err != nil {
		t.Fatal(err)
	}
	// kron([1 2], [3;4]) = [[3 6],[4 8]]
	if diff := cmp.Diff([]float32{3, 6, 4, 8}, updown.Floats()); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
}

func TestFullCalcUpdownWithBias(t *testing.T) {
	w := map[string]*ml.Tensor{
		"diff":   ml.NewTensor([]int{2, 2}, []float32{1, 2, 3, 4}),
		"diff_b": ml.NewTensor([]int{2}, []float32{5, 6}),
	}
	module, err := createModuleFull(bundle(w))
	if err != nil {
		t.Fatal(err)
	}

	base := ml.NewTensor([]int{2, 2}, make([]float32, 4))
	updown, exBias, err := module.CalcUpdown(base, 0)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float32{1, 2, 3, 4}, updown.Floats()); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
	if exBias == nil {
		t.Fatal("bias-delta fehlt")
	}
	if diff := cmp.Diff([]float32{5, 6}, exBias.Floats()); diff != "" {
		t.Errorf("bias mismatch (-want +got):\n%s", diff)
	}
}

func TestOFTIdentityBlocks(t *testing.T) {
	// Null-Bloecke ergeben die Identitaets-Rotation, das Delta ist 0
	w := map[string]*ml.Tensor{
		"oft_blocks": ml.NewTensor([]int{2, 2, 2}, make([]float32, 8)),
	}
	module, err := createModuleOFT(bundle(w))
	if err != nil {
		t.Fatal(err)
	}

	base := ml.NewTensor([]int{4, 3}, []float32{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
		10, 11, 12,
	})
	updown, _, err := module.CalcUpdown(base, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range updown.Floats() {
		if math.Abs(float64(v)) > 1e-6 {
			t.Errorf("delta[%d] = %f, erwartet 0", i, v)
		}
	}
}

func TestOFTRotationIsOrthogonal(t *testing.T) {
	// Ein nicht-trivialer Block: base + delta muss die Norm jeder
	// Spalte innerhalb des Blocks erhalten
	w := map[string]*ml.Tensor{
		"oft_blocks": ml.NewTensor([]int{1, 2, 2}, []float32{0, 0.5, -0.5, 0}),
	}
	module, err := createModuleOFT(bundle(w))
	if err != nil {
		t.Fatal(err)
	}

	base := ml.NewTensor([]int{2, 2}, []float32{1, 0, 0, 1})
	updown, _, err := module.CalcUpdown(base, 0)
	if err != nil {
		t.Fatal(err)
	}

	rotated, err := ml.Add(base, updown)
	if err != nil {
		t.Fatal(err)
	}
	v := rotated.Floats()
	for c := 0; c < 2; c++ {
		norm := math.Sqrt(float64(v[c]*v[c] + v[2+c]*v[2+c]))
		if math.Abs(norm-1) > 1e-5 {
			t.Errorf("spalte %d: norm = %f, erwartet 1", c, norm)
		}
	}
}

func TestOFTBlockMismatch(t *testing.T) {
	w := map[string]*ml.Tensor{
		"oft_blocks": ml.NewTensor([]int{3, 2, 2}, make([]float32, 12)),
	}
	module, err := createModuleOFT(bundle(w))
	if err != nil {
		t.Fatal(err)
	}

	// 3 Bloecke x 2 decken 6 Zeilen, die Basis hat 4
	base := ml.NewTensor([]int{4, 2}, make([]float32, 8))
	if _, _, err := module.CalcUpdown(base, 0); err == nil {
		t.Fatal("erwartet Fehler bei nicht passender Blockabdeckung")
	}
}

func TestGLoraCalcUpdown(t *testing.T) {
	w := map[string]*ml.Tensor{
		"a1.weight": ml.NewTensor([]int{2, 1}, []float32{1, 0}),
		"a2.weight": ml.NewTensor([]int{1, 2}, []float32{0, 1}),
		"b1.weight": ml.NewTensor([]int{2, 1}, []float32{1, 1}),
		"b2.weight": ml.NewTensor([]int{1, 2}, []float32{2, 3}),
	}
	module, err := createModuleGLora(bundle(w))
	if err != nil {
		t.Fatal(err)
	}

	base := ml.NewTensor([]int{2, 2}, []float32{1, 2, 3, 4})
	updown, _, err := module.CalcUpdown(base, 0)
	if err != nil {
		t.Fatal(err)
	}

	// (b1 x b2) + base x (a1 x a2)
	// b1 x b2 = [[2 3],[2 3]]; a1 x a2 = [[0 1],[0 0]]
	// base x mix = [[0 1],[0 3]]
	want := []float32{2, 4, 2, 6}
	if diff := cmp.Diff(want, updown.Floats()); diff != "" {
		t.Errorf("delta mismatch (-want +got):\n%s", diff)
	}
}

func TestLoraShapeMismatch(t *testing.T) {
	w := map[string]*ml.Tensor{
		"lora_up.weight":   ml.NewTensor([]int{3, 1}, []float32{1, 1, 1}),
		"lora_down.weight": ml.NewTensor([]int{1, 3}, []float32{1, 1, 1}),
	}
	module, err := createModuleLora(bundle(w))
	if err != nil {
		t.Fatal(err)
	}

	base := ml.NewTensor([]int{2, 2}, make([]float32, 4))
	if _, _, err := module.CalcUpdown(base, 0); err == nil {
		t.Fatal("erwartet Fehler bei nicht passendem Delta")
	}
}
