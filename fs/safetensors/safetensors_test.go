// safetensors_test.go - Tests fuer Lesen und Schreiben von Safetensors
package safetensors

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/7blacky7/lorapatch/ml"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")

	sd := map[string]*ml.Tensor{
		"unet.down.0.weight": ml.NewTensor([]int{2, 3}, []float32{1, 2, 3, 4, 5, 6}),
		"unet.down.0.bias":   ml.NewTensor([]int{2}, []float32{-1, 1}),
	}
	meta := map[string]string{"ss_output_name": "testnet"}

	if err := WriteStateDict(path, sd, meta); err != nil {
		t.Fatal(err)
	}

	got, header, err := ReadStateDict(path)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != len(sd) {
		t.Fatalf("tensoren = %d, erwartet %d", len(got), len(sd))
	}
	for name, want := range sd {
		tensor, ok := got[name]
		if !ok {
			t.Fatalf("tensor %q fehlt", name)
		}
		if diff := cmp.Diff(want.Shape(), tensor.Shape()); diff != "" {
			t.Errorf("%s shape mismatch: %s", name, diff)
		}
		if diff := cmp.Diff(want.Floats(), tensor.Floats()); diff != "" {
			t.Errorf("%s werte mismatch (-want +got):\n%s", name, diff)
		}
	}

	if header.Metadata["ss_output_name"] != "testnet" {
		t.Errorf("metadata = %v, erwartet ss_output_name=testnet", header.Metadata)
	}
}

func TestReadHeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.safetensors")

	sd := map[string]*ml.Tensor{
		"te.block.weight": ml.NewTensor([]int{4}, []float32{1, 2, 3, 4}),
	}
	if err := WriteStateDict(path, sd, map[string]string{"k": "v"}); err != nil {
		t.Fatal(err)
	}

	header, err := ReadHeader(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := header.Tensors["te.block.weight"]; !ok {
		t.Errorf("header tensors = %v, erwartet te.block.weight", header.Tensors)
	}
	if header.Metadata["k"] != "v" {
		t.Errorf("metadata = %v", header.Metadata)
	}
}

func TestReadCorruptHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.safetensors")

	// Header-Laenge verweist weit hinter das Dateiende
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf, 1<<40)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadHeader(path); err == nil {
		t.Fatal("erwartet Fehler bei kaputtem Header")
	}

	// Kein JSON im Header
	binary.LittleEndian.PutUint64(buf, 8)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := ReadStateDict(path); err == nil {
		t.Fatal("erwartet Fehler bei ungueltigem JSON")
	}
}
