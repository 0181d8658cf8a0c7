// load_test.go - Tests fuer den Adapter-Lader
package lora

import (
	"errors"
	"testing"
	"time"

	"github.com/7blacky7/lorapatch/ml"
)

func TestLoadNetworkPartialMatch(t *testing.T) {
	dir := t.TempDir()

	sd := loraStateDict(1)
	// Schluessel fuer einen Layer, den die Test-Pipeline nicht hat
	sd["lora_unet_mid_block_attn_to_k.lora_up.weight"] = ml.NewTensor([]int{4, 1}, make([]float32, 4))
	sd["lora_unet_mid_block_attn_to_k.lora_down.weight"] = ml.NewTensor([]int{1, 4}, make([]float32, 4))

	path := writeAdapter(t, dir, "partial.safetensors", sd, nil)

	pipe := newTestPipeline(t)
	mapper := NewKeyMapper(pipe)
	onDisk := &NetworkOnDisk{Name: "partial", Filename: path, ModTime: time.Now()}

	net, err := loadNetwork(onDisk, mapper)
	if err != nil {
		t.Fatal(err)
	}
	if len(net.Modules) != 1 {
		t.Errorf("modules = %d, want 1", len(net.Modules))
	}
	if net.UnmatchedKeys != 2 {
		t.Errorf("unmatched = %d, want 2", net.UnmatchedKeys)
	}
	if len(net.TypeNames) != 1 || net.TypeNames[0] != "lora" {
		t.Errorf("type names = %v, want [lora]", net.TypeNames)
	}
}

func TestLoadNetworkNoKeysMatched(t *testing.T) {
	dir := t.TempDir()

	sd := map[string]*ml.Tensor{
		"lora_unet_mid_block_attn_to_k.lora_up.weight":   ml.NewTensor([]int{4, 1}, make([]float32, 4)),
		"lora_unet_mid_block_attn_to_k.lora_down.weight": ml.NewTensor([]int{1, 4}, make([]float32, 4)),
	}
	path := writeAdapter(t, dir, "alien.safetensors", sd, nil)

	pipe := newTestPipeline(t)
	onDisk := &NetworkOnDisk{Name: "alien", Filename: path, ModTime: time.Now()}

	_, err := loadNetwork(onDisk, NewKeyMapper(pipe))
	if !errors.Is(err, ErrNoKeysMatched) {
		t.Fatalf("err = %v, want ErrNoKeysMatched", err)
	}
}

func TestLoadNetworkBundleEmbeddings(t *testing.T) {
	dir := t.TempDir()

	sd := loraStateDict(1)
	sd["bundle_emb.myconcept.string_to_param.*"] = ml.NewTensor([]int{2, 4}, make([]float32, 8))

	path := writeAdapter(t, dir, "bundled.safetensors", sd, nil)

	pipe := newTestPipeline(t)
	onDisk := &NetworkOnDisk{Name: "bundled", Filename: path, ModTime: time.Now()}

	net, err := loadNetwork(onDisk, NewKeyMapper(pipe))
	if err != nil {
		t.Fatal(err)
	}

	vectors, ok := net.BundleEmbeddings["myconcept"]
	if !ok {
		t.Fatal("expected bundled embedding myconcept")
	}
	if vectors["string_to_param.*"] == nil {
		t.Error("expected vector under string_to_param.*")
	}
	if net.UnmatchedKeys != 0 {
		t.Errorf("unmatched = %d, want 0", net.UnmatchedKeys)
	}
}

func TestReadStateDictUnsupportedContainer(t *testing.T) {
	_, err := readStateDict("adapter.bin")
	if !errors.Is(err, ErrUnsupportedContainer) {
		t.Fatalf("err = %v, want ErrUnsupportedContainer", err)
	}
}
