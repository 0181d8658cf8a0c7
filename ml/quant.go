// quant.go - Kodierung, Dekodierung und Quantisierung
//
// Dieses Modul enthaelt:
// - encode/decode: float32 <-> DType-kodierte Rohdaten
// - Quantize/Dequantize: Umwandlung zwischen F32 und quantisierten Typen
//
// Q8-Layout: Bloecke von 32 Gewichten, pro Block eine f16-Skala (2 Bytes)
// gefolgt von 32 int8-Werten. Der letzte Block darf kuerzer sein.
package ml

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

const q8BlockSize = 32

func encode(dtype DType, values []float32) ([]byte, error) {
	switch dtype {
	case DTypeF32:
		data := make([]byte, 4*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
		}
		return data, nil
	case DTypeF16:
		data := make([]byte, 2*len(values))
		for i, v := range values {
			binary.LittleEndian.PutUint16(data[2*i:], float16.Fromfloat32(v).Bits())
		}
		return data, nil
	case DTypeBF16:
		return bfloat16.EncodeFloat32(values), nil
	case DTypeQ8:
		return encodeQ8(values), nil
	default:
		return nil, fmt.Errorf("unsupported dtype %s", dtype)
	}
}

func decode(dtype DType, data []byte, n int) []float32 {
	switch dtype {
	case DTypeF32:
		values := make([]float32, n)
		for i := range values {
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
		}
		return values
	case DTypeF16:
		values := make([]float32, n)
		for i := range values {
			values[i] = float16.Frombits(binary.LittleEndian.Uint16(data[2*i:])).Float32()
		}
		return values
	case DTypeBF16:
		return bfloat16.DecodeFloat32(data)
	case DTypeQ8:
		return decodeQ8(data, n)
	default:
		return nil
	}
}

func encodeQ8(values []float32) []byte {
	blocks := (len(values) + q8BlockSize - 1) / q8BlockSize
	data := make([]byte, 0, blocks*(2+q8BlockSize))

	for b := 0; b < len(values); b += q8BlockSize {
		end := min(b+q8BlockSize, len(values))
		block := values[b:end]

		var amax float32
		for _, v := range block {
			if a := float32(math.Abs(float64(v))); a > amax {
				amax = a
			}
		}
		scale := amax / 127

		data = binary.LittleEndian.AppendUint16(data, float16.Fromfloat32(scale).Bits())
		for _, v := range block {
			q := int8(0)
			if scale != 0 {
				q = int8(math.RoundToEven(float64(v / scale)))
			}
			data = append(data, byte(q))
		}
	}

	return data
}

func decodeQ8(data []byte, n int) []float32 {
	values := make([]float32, 0, n)
	for off := 0; len(values) < n && off < len(data); {
		scale := float16.Frombits(binary.LittleEndian.Uint16(data[off:])).Float32()
		off += 2
		count := min(q8BlockSize, n-len(values))
		for i := 0; i < count; i++ {
			values = append(values, float32(int8(data[off+i]))*scale)
		}
		off += count
	}
	return values
}

// Quantize kodiert einen Tensor in den angegebenen DType um
func Quantize(t *Tensor, dtype DType) (*Tensor, error) {
	return FromFloats(dtype, t.device, t.shape, t.Floats())
}

// Dequantize gibt einen F32-Tensor mit identischen Werten zurueck
func Dequantize(t *Tensor) *Tensor {
	if t.dtype == DTypeF32 {
		return t.Clone()
	}
	c, err := FromFloats(DTypeF32, t.device, t.shape, t.Floats())
	if err != nil {
		panic(err)
	}
	return c
}
