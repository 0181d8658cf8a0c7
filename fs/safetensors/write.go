// write.go - Safetensors Writer
//
// Schreibt ein State-Dict als Safetensors-Datei. Alle Tensoren werden
// als F32 abgelegt. Wird vom Adapter-Tooling und den Tests genutzt.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"

	"github.com/7blacky7/lorapatch/ml"
)

// WriteStateDict schreibt Tensoren und Metadaten als Safetensors-Datei
func WriteStateDict(path string, sd map[string]*ml.Tensor, metadata map[string]string) error {
	names := make([]string, 0, len(sd))
	for name := range sd {
		names = append(names, name)
	}
	slices.Sort(names)

	entries := make(map[string]any, len(sd)+1)
	if len(metadata) > 0 {
		entries["__metadata__"] = metadata
	}

	var offset int64
	var data []byte
	for _, name := range names {
		t := sd[name]
		values := t.Floats()
		size := int64(4 * len(values))

		entries[name] = TensorInfo{
			DType:       "F32",
			Shape:       t.Shape(),
			DataOffsets: [2]int64{offset, offset + size},
		}

		for _, v := range values {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
		}
		offset += size
	}

	header, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint64(len(header))); err != nil {
		return err
	}
	if _, err := f.Write(header); err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing tensor data: %w", err)
	}

	return nil
}
