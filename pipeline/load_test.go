// load_test.go - Tests fuer den Pipeline-Aufbau aus State-Dicts
package pipeline

import (
	"testing"

	"github.com/7blacky7/lorapatch/ml"
)

func testStateDict() map[string]*ml.Tensor {
	return map[string]*ml.Tensor{
		"unet.down_blocks.0.attn.to_q.weight":    ml.NewTensor([]int{4, 4}, make([]float32, 16)),
		"unet.down_blocks.0.attn.to_q.bias":      ml.NewTensor([]int{4}, make([]float32, 4)),
		"text_encoder.layers.0.mlp.fc1.weight":   ml.NewTensor([]int{4, 2}, make([]float32, 8)),
		"text_encoder_2.layers.0.mlp.fc1.weight": ml.NewTensor([]int{4, 2}, make([]float32, 8)),
	}
}

func TestFromStateDict(t *testing.T) {
	pipe, err := FromStateDict(testStateDict(), ml.DeviceCPU)
	if err != nil {
		t.Fatal(err)
	}

	if got := len(pipe.Layers(UNet)); got != 1 {
		t.Errorf("unet layer = %d, erwartet 1", got)
	}
	if got := len(pipe.Layers(TextEncoder)); got != 1 {
		t.Errorf("text_encoder layer = %d, erwartet 1", got)
	}

	layer := pipe.Layers(UNet)[0]
	if layer.Name() != "down_blocks.0.attn.to_q" {
		t.Errorf("layer name = %q", layer.Name())
	}
	if layer.Bias() == nil {
		t.Error("bias fehlt")
	}
}

func TestLookupFlattenedName(t *testing.T) {
	pipe, err := FromStateDict(testStateDict(), ml.DeviceCPU)
	if err != nil {
		t.Fatal(err)
	}

	// Adapter-Keys verwenden Unterstriche statt Punkte
	if layer := pipe.Lookup(UNet, "down_blocks_0_attn_to_q"); layer == nil {
		t.Error("flacher Name nicht aufloesbar")
	}
	if layer := pipe.Lookup(UNet, "does_not_exist"); layer != nil {
		t.Error("unbekannter Name sollte nil liefern")
	}
}

func TestFromStateDictBiasWithoutWeight(t *testing.T) {
	sd := map[string]*ml.Tensor{
		"unet.block.bias": ml.NewTensor([]int{2}, []float32{1, 2}),
	}
	if _, err := FromStateDict(sd, ml.DeviceCPU); err == nil {
		t.Fatal("erwartet Fehler bei Bias ohne Gewicht")
	}
}

func TestCompiledState(t *testing.T) {
	reloads, compiles := 0, 0
	cs := NewCompiledState(
		func() error { reloads++; return nil },
		func() error { compiles++; return nil },
	)

	if cs.IsCompiled() {
		t.Error("frischer Zustand sollte nicht kompiliert sein")
	}

	if err := cs.Recompile(); err != nil {
		t.Fatal(err)
	}
	if !cs.IsCompiled() || compiles != 1 {
		t.Errorf("compiled=%v compiles=%d", cs.IsCompiled(), compiles)
	}

	cs.SetCompiled(false)
	if err := cs.ReloadWeights(); err != nil {
		t.Fatal(err)
	}
	if reloads != 1 {
		t.Errorf("reloads = %d, erwartet 1", reloads)
	}
}
