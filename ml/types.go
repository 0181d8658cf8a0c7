// Package ml - Typen fuer die Tensor-Laufzeit
//
// Dieses Modul definiert die Kerntypen:
// - DType: Speicher-Datentyp eines Tensors (F32, F16, BF16, Q8)
// - Device: Geraete-Platzierung (CPU oder Compute-Device)
package ml

// DType bezeichnet den Speicher-Datentyp eines Tensors.
type DType int

const (
	DTypeF32 DType = iota
	DTypeF16
	DTypeBF16
	// DTypeQ8 ist blockweise quantisiert: 32 int8-Gewichte pro Block
	// mit einer f16-Skala pro Block.
	DTypeQ8
)

func (t DType) String() string {
	switch t {
	case DTypeF32:
		return "F32"
	case DTypeF16:
		return "F16"
	case DTypeBF16:
		return "BF16"
	case DTypeQ8:
		return "Q8"
	default:
		return "unknown"
	}
}

// IsQuantized meldet, ob der Datentyp vor dem Rechnen dequantisiert werden muss.
func (t DType) IsQuantized() bool {
	return t == DTypeQ8
}

// Device bezeichnet die Platzierung eines Tensors.
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)
