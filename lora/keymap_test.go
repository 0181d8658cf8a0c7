// keymap_test.go - Tests fuer die Schluessel-Normalisierung
package lora

import (
	"testing"
)

func TestNormalizeDialects(t *testing.T) {
	mapper := NewKeyMapper(newTestPipeline(t))

	cases := []struct {
		name      string
		raw       string
		wantLayer string
		wantSub   string
		wantOK    bool
	}{
		{
			name:      "legacy unet",
			raw:       "lora_unet_down_blocks_0_attn_to_q.lora_up.weight",
			wantLayer: "down_blocks.0.attn.to_q",
			wantSub:   "lora_up.weight",
			wantOK:    true,
		},
		{
			name:      "legacy text encoder",
			raw:       "lora_te_layers_0_mlp_fc1.alpha",
			wantLayer: "layers.0.mlp.fc1",
			wantSub:   "alpha",
			wantOK:    true,
		},
		{
			name:      "deep peft lora_A",
			raw:       "unet.down_blocks.0.attn.to_q.lora_A.weight",
			wantLayer: "down_blocks.0.attn.to_q",
			wantSub:   "lora_down.weight",
			wantOK:    true,
		},
		{
			name:      "deep peft lora_B",
			raw:       "unet.down_blocks.0.attn.to_q.lora_B.weight",
			wantLayer: "down_blocks.0.attn.to_q",
			wantSub:   "lora_up.weight",
			wantOK:    true,
		},
		{
			name:   "unknown layer",
			raw:    "lora_unet_mid_block_attn_to_k.lora_up.weight",
			wantOK: false,
		},
		{
			name:   "unknown component alias",
			raw:    "lora_vae_decoder_conv.lora_up.weight",
			wantOK: false,
		},
		{
			name:   "no subkey",
			raw:    "lora_unet_down_blocks_0_attn_to_q",
			wantOK: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			layer, sub, ok := mapper.Normalize(tc.raw)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, erwartet %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if layer.Name() != tc.wantLayer {
				t.Errorf("layer = %q, erwartet %q", layer.Name(), tc.wantLayer)
			}
			if sub != tc.wantSub {
				t.Errorf("subkey = %q, erwartet %q", sub, tc.wantSub)
			}
		})
	}
}

func TestBundleEmbedding(t *testing.T) {
	mapper := NewKeyMapper(newTestPipeline(t))

	emb, vec, ok := mapper.BundleEmbedding("bundle_emb.mychar.string_to_param.*")
	if !ok {
		t.Fatal("bundle embedding nicht erkannt")
	}
	if emb != "mychar" || vec != "string_to_param.*" {
		t.Errorf("emb=%q vec=%q", emb, vec)
	}

	if _, _, ok := mapper.BundleEmbedding("lora_unet_x.lora_up.weight"); ok {
		t.Error("normaler Schluessel faelschlich als Embedding erkannt")
	}
}
