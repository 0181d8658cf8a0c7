// helpers_test.go - Gemeinsame Test-Fixtures fuer das lora-Paket
package lora

import (
	"path/filepath"
	"testing"

	"github.com/7blacky7/lorapatch/fs/safetensors"
	"github.com/7blacky7/lorapatch/ml"
	"github.com/7blacky7/lorapatch/pipeline"
)

// newTestPipeline baut eine kleine Pipeline mit einem UNet- und einem
// Text-Encoder-Layer
func newTestPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()

	sd := map[string]*ml.Tensor{
		"unet.down_blocks.0.attn.to_q.weight": ml.NewTensor([]int{4, 4}, []float32{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		}),
		"unet.down_blocks.0.attn.to_q.bias":    ml.NewTensor([]int{4}, []float32{0, 0, 0, 0}),
		"text_encoder.layers.0.mlp.fc1.weight": ml.NewTensor([]int{4, 4}, make([]float32, 16)),
	}

	pipe, err := pipeline.FromStateDict(sd, ml.DeviceCPU)
	if err != nil {
		t.Fatal(err)
	}
	return pipe
}

// writeAdapter schreibt ein Adapter-State-Dict als Safetensors-Datei
func writeAdapter(t *testing.T, dir, filename string, sd map[string]*ml.Tensor, metadata map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	if err := safetensors.WriteStateDict(path, sd, metadata); err != nil {
		t.Fatal(err)
	}
	return path
}

// loraStateDict baut ein klassisches low-rank State-Dict fuer den
// UNet-Test-Layer. up x down ergibt eine 4x4 Matrix mit dem Wert
// scale an jeder Position.
func loraStateDict(scale float32) map[string]*ml.Tensor {
	ones := func(n int, v float32) []float32 {
		out := make([]float32, n)
		for i := range out {
			out[i] = v
		}
		return out
	}

	return map[string]*ml.Tensor{
		// rank 1, alpha 1: scale-Faktor alpha/rank = 1
		"lora_unet_down_blocks_0_attn_to_q.lora_up.weight":   ml.NewTensor([]int{4, 1}, ones(4, scale)),
		"lora_unet_down_blocks_0_attn_to_q.lora_down.weight": ml.NewTensor([]int{1, 4}, ones(4, 1)),
		"lora_unet_down_blocks_0_attn_to_q.alpha":            ml.NewTensor([]int{1}, []float32{1}),
	}
}

// newTestEngine baut eine Engine ueber einer frischen Test-Pipeline
// und einem Adapter-Verzeichnis
func newTestEngine(t *testing.T, dir string, opts Options) (*Engine, *pipeline.Pipeline) {
	t.Helper()

	pipe := newTestPipeline(t)

	opts.AdaptersDir = dir
	if opts.CacheLimit == 0 {
		opts.CacheLimit = 4
	}
	if opts.MaxWorkers == 0 {
		opts.MaxWorkers = 2
	}
	if opts.OffloadMode == "" {
		opts.OffloadMode = "none"
	}
	if opts.PreferredName == "" {
		opts.PreferredName = "alias"
	}

	engine, err := NewEngine(pipe, opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := engine.Registry().Scan(); err != nil {
		t.Fatal(err)
	}
	return engine, pipe
}

// unetWeight gibt die Werte des UNet-Test-Layers zurueck
func unetWeight(pipe *pipeline.Pipeline) []float32 {
	return pipe.Layers(pipeline.UNet)[0].Weight().Floats()
}
