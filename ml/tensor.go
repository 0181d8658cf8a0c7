// tensor.go - Dichter Tensor mit kodiertem Speicher
//
// Dieses Modul enthaelt:
// - Tensor: Row-major Tensor mit DType-kodierten Rohdaten
// - NewTensor/FromFloats/Zeros: Konstruktoren
// - Floats: Dekodierung in float32
// - Clone/To/Reshape: Kopier- und Layout-Operationen
package ml

import (
	"fmt"
	"slices"
)

// Tensor ist ein dichter row-major Tensor. Die Rohdaten sind gemaess
// DType kodiert; alle Rechenoperationen dekodieren nach float32.
type Tensor struct {
	shape  []int
	dtype  DType
	device Device
	data   []byte
}

// NewTensor erstellt einen F32-Tensor auf der CPU
func NewTensor(shape []int, values []float32) *Tensor {
	t, err := FromFloats(DTypeF32, DeviceCPU, shape, values)
	if err != nil {
		panic(err)
	}
	return t
}

// FromFloats kodiert float32-Werte in einen Tensor des gewuenschten DTypes
func FromFloats(dtype DType, device Device, shape []int, values []float32) (*Tensor, error) {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("invalid dimension %d in shape %v", d, shape)
		}
		n *= d
	}
	if n != len(values) {
		return nil, fmt.Errorf("shape %v expects %d values, got %d", shape, n, len(values))
	}

	data, err := encode(dtype, values)
	if err != nil {
		return nil, err
	}

	return &Tensor{
		shape:  slices.Clone(shape),
		dtype:  dtype,
		device: device,
		data:   data,
	}, nil
}

// Zeros erstellt einen mit Nullen gefuellten F32-Tensor auf der CPU
func Zeros(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return NewTensor(shape, make([]float32, n))
}

func (t *Tensor) Shape() []int { return slices.Clone(t.shape) }

// Dim gibt die Groesse der n-ten Dimension zurueck
func (t *Tensor) Dim(n int) int { return t.shape[n] }

// Dims gibt die Anzahl der Dimensionen zurueck
func (t *Tensor) Dims() int { return len(t.shape) }

// Elems gibt die Anzahl der Elemente zurueck
func (t *Tensor) Elems() int {
	n := 1
	for _, d := range t.shape {
		n *= d
	}
	return n
}

func (t *Tensor) DType() DType   { return t.dtype }
func (t *Tensor) Device() Device { return t.device }

// Bytes gibt die Groesse des kodierten Speichers zurueck
func (t *Tensor) Bytes() int { return len(t.data) }

// Floats dekodiert die Rohdaten nach float32
func (t *Tensor) Floats() []float32 {
	return decode(t.dtype, t.data, t.Elems())
}

// Clone erstellt eine tiefe Kopie mit gleichem DType und Device
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		shape:  slices.Clone(t.shape),
		dtype:  t.dtype,
		device: t.device,
		data:   slices.Clone(t.data),
	}
}

// To erstellt eine Kopie auf dem angegebenen Device
func (t *Tensor) To(device Device) *Tensor {
	c := t.Clone()
	c.device = device
	return c
}

// Reshape aendert die Form ohne die Daten zu veraendern
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != t.Elems() {
		return nil, fmt.Errorf("cannot reshape %v to %v", t.shape, shape)
	}
	c := t.Clone()
	c.shape = slices.Clone(shape)
	return c, nil
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v dtype=%s device=%s)", t.shape, t.dtype, t.device)
}
