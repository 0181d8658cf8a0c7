// Package safetensors - Safetensors State-Dict Reader
//
// Dieses Modul enthaelt:
// - Header: Geparster Safetensors-Header (Tensor-Infos + Metadaten)
// - ReadHeader: Liest nur den Header (billig, fuer Registry-Probing)
// - ReadStateDict: Liest alle Tensoren als ml.Tensor-Mapping
//
// Dateiformat: 8 Byte Little-Endian Header-Laenge, gefolgt vom
// JSON-Header, gefolgt von den rohen Tensor-Daten. Der Header mappt
// Tensor-Namen auf {dtype, shape, data_offsets}; der Schluessel
// "__metadata__" enthaelt freie String-Metadaten.
package safetensors

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"

	"github.com/7blacky7/lorapatch/ml"
)

// maxHeaderSize begrenzt den Header gegen kaputte Dateien
const maxHeaderSize = 100 << 20

// TensorInfo beschreibt einen Tensor im Header
type TensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Header ist der geparste Safetensors-Header
type Header struct {
	Tensors  map[string]TensorInfo
	Metadata map[string]string
}

// ReadHeader liest nur den Header einer Safetensors-Datei
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, _, err := readHeader(f)
	return h, err
}

func readHeader(r io.Reader) (*Header, int64, error) {
	var size uint64
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, 0, fmt.Errorf("reading header size: %w", err)
	}
	if size == 0 || size > maxHeaderSize {
		return nil, 0, fmt.Errorf("invalid header size %d", size)
	}

	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, 0, fmt.Errorf("reading header: %w", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, 0, fmt.Errorf("parsing header: %w", err)
	}

	h := &Header{
		Tensors:  make(map[string]TensorInfo, len(entries)),
		Metadata: make(map[string]string),
	}
	for name, msg := range entries {
		if name == "__metadata__" {
			if err := json.Unmarshal(msg, &h.Metadata); err != nil {
				return nil, 0, fmt.Errorf("parsing metadata: %w", err)
			}
			continue
		}

		var info TensorInfo
		if err := json.Unmarshal(msg, &info); err != nil {
			return nil, 0, fmt.Errorf("parsing tensor %q: %w", name, err)
		}
		h.Tensors[name] = info
	}

	return h, int64(8 + size), nil
}

// ReadStateDict liest alle Tensoren einer Safetensors-Datei.
// Skalare (leere Shape) werden als 1-elementige Tensoren geliefert.
func ReadStateDict(path string) (map[string]*ml.Tensor, *Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	h, dataStart, err := readHeader(f)
	if err != nil {
		return nil, nil, err
	}

	sd := make(map[string]*ml.Tensor, len(h.Tensors))
	for name, info := range h.Tensors {
		t, err := readTensor(f, dataStart, info)
		if err != nil {
			return nil, nil, fmt.Errorf("tensor %q: %w", name, err)
		}
		sd[name] = t
	}

	return sd, h, nil
}

func readTensor(f *os.File, dataStart int64, info TensorInfo) (*ml.Tensor, error) {
	n := 1
	for _, d := range info.Shape {
		n *= d
	}

	size := info.DataOffsets[1] - info.DataOffsets[0]
	raw := make([]byte, size)
	if _, err := f.ReadAt(raw, dataStart+info.DataOffsets[0]); err != nil {
		return nil, err
	}

	values, err := decodeValues(info.DType, raw, n)
	if err != nil {
		return nil, err
	}

	shape := slices.Clone(info.Shape)
	if len(shape) == 0 {
		shape = []int{1}
	}

	dtype := ml.DTypeF32
	switch info.DType {
	case "F16":
		dtype = ml.DTypeF16
	case "BF16":
		dtype = ml.DTypeBF16
	}

	return ml.FromFloats(dtype, ml.DeviceCPU, shape, values)
}

func decodeValues(dtype string, raw []byte, n int) ([]float32, error) {
	switch dtype {
	case "F32":
		values := make([]float32, n)
		if err := binary.Read(bytesReader(raw), binary.LittleEndian, &values); err != nil {
			return nil, err
		}
		return values, nil
	case "F64":
		f64s := make([]float64, n)
		if err := binary.Read(bytesReader(raw), binary.LittleEndian, &f64s); err != nil {
			return nil, err
		}
		values := make([]float32, n)
		for i, v := range f64s {
			values[i] = float32(v)
		}
		return values, nil
	case "F16":
		return decodeF16(raw, n), nil
	case "BF16":
		return decodeBF16(raw, n), nil
	case "I64":
		i64s := make([]int64, n)
		if err := binary.Read(bytesReader(raw), binary.LittleEndian, &i64s); err != nil {
			return nil, err
		}
		values := make([]float32, n)
		for i, v := range i64s {
			values[i] = float32(v)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}
}

func bytesReader(raw []byte) io.Reader {
	return bytes.NewReader(raw)
}

func decodeF16(raw []byte, n int) []float32 {
	values := make([]float32, n)
	for i := range values {
		values[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[2*i:])).Float32()
	}
	return values
}

func decodeBF16(raw []byte, n int) []float32 {
	return bfloat16.DecodeFloat32(raw[:2*n])
}
