// ops.go - Rechenoperationen auf Tensoren
//
// Dieses Modul enthaelt:
// - Add/Sub/Scale/Mul: elementweise Operationen
// - RowScale/ColScale: Broadcast eines Vektors ueber Zeilen/Spalten
// - Matmul/Kronecker: Matrixprodukte via gonum
// - PadDim: Zero-Padding entlang einer Dimension
// - Dense/FromDense: Konvertierung von und zu gonum-Matrizen
//
// Alle Operationen dekodieren nach float32, rechnen in voller Praezision
// und liefern F32-Tensoren auf dem Device des ersten Operanden.
package ml

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

func sameShape(a, b *Tensor) error {
	as, bs := a.shape, b.shape
	if len(as) != len(bs) {
		return fmt.Errorf("shape mismatch: %v vs %v", as, bs)
	}
	for i := range as {
		if as[i] != bs[i] {
			return fmt.Errorf("shape mismatch: %v vs %v", as, bs)
		}
	}
	return nil
}

// Add addiert zwei Tensoren elementweise
func Add(a, b *Tensor) (*Tensor, error) {
	if err := sameShape(a, b); err != nil {
		return nil, err
	}
	av, bv := a.Floats(), b.Floats()
	out := make([]float32, len(av))
	for i := range av {
		out[i] = av[i] + bv[i]
	}
	return FromFloats(DTypeF32, a.device, a.shape, out)
}

// Sub subtrahiert b von a elementweise
func Sub(a, b *Tensor) (*Tensor, error) {
	if err := sameShape(a, b); err != nil {
		return nil, err
	}
	av, bv := a.Floats(), b.Floats()
	out := make([]float32, len(av))
	for i := range av {
		out[i] = av[i] - bv[i]
	}
	return FromFloats(DTypeF32, a.device, a.shape, out)
}

// Scale multipliziert alle Elemente mit s
func Scale(a *Tensor, s float64) *Tensor {
	av := a.Floats()
	out := make([]float32, len(av))
	for i := range av {
		out[i] = av[i] * float32(s)
	}
	t, _ := FromFloats(DTypeF32, a.device, a.shape, out)
	return t
}

// Mul multipliziert zwei Tensoren elementweise (Hadamard-Produkt)
func Mul(a, b *Tensor) (*Tensor, error) {
	if err := sameShape(a, b); err != nil {
		return nil, err
	}
	av, bv := a.Floats(), b.Floats()
	out := make([]float32, len(av))
	for i := range av {
		out[i] = av[i] * bv[i]
	}
	return FromFloats(DTypeF32, a.device, a.shape, out)
}

// RowScale multipliziert Zeile i einer Matrix mit v[i]
func RowScale(a, v *Tensor) (*Tensor, error) {
	if a.Dims() != 2 {
		return nil, fmt.Errorf("RowScale expects a matrix, got shape %v", a.shape)
	}
	if v.Elems() != a.Dim(0) {
		return nil, fmt.Errorf("RowScale vector has %d elements, matrix has %d rows", v.Elems(), a.Dim(0))
	}
	av, vv := a.Floats(), v.Floats()
	rows, cols := a.Dim(0), a.Dim(1)
	out := make([]float32, len(av))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = av[r*cols+c] * vv[r]
		}
	}
	return FromFloats(DTypeF32, a.device, a.shape, out)
}

// ColScale multipliziert Spalte j einer Matrix mit v[j]
func ColScale(a, v *Tensor) (*Tensor, error) {
	if a.Dims() != 2 {
		return nil, fmt.Errorf("ColScale expects a matrix, got shape %v", a.shape)
	}
	if v.Elems() != a.Dim(1) {
		return nil, fmt.Errorf("ColScale vector has %d elements, matrix has %d columns", v.Elems(), a.Dim(1))
	}
	av, vv := a.Floats(), v.Floats()
	rows, cols := a.Dim(0), a.Dim(1)
	out := make([]float32, len(av))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = av[r*cols+c] * vv[c]
		}
	}
	return FromFloats(DTypeF32, a.device, a.shape, out)
}

// Matmul berechnet das Matrixprodukt a x b
func Matmul(a, b *Tensor) (*Tensor, error) {
	da, err := Dense(a)
	if err != nil {
		return nil, err
	}
	db, err := Dense(b)
	if err != nil {
		return nil, err
	}
	_, ac := da.Dims()
	br, _ := db.Dims()
	if ac != br {
		return nil, fmt.Errorf("matmul dimension mismatch: %v x %v", a.shape, b.shape)
	}

	var out mat.Dense
	out.Mul(da, db)
	t := FromDense(&out)
	t.device = a.device
	return t, nil
}

// Kronecker berechnet das Kronecker-Produkt a (x) b
func Kronecker(a, b *Tensor) (*Tensor, error) {
	da, err := Dense(a)
	if err != nil {
		return nil, err
	}
	db, err := Dense(b)
	if err != nil {
		return nil, err
	}

	var out mat.Dense
	out.Kronecker(da, db)
	t := FromDense(&out)
	t.device = a.device
	return t, nil
}

// PadDim erweitert eine Dimension mit Nullen auf die Groesse upTo
func PadDim(a *Tensor, dim, upTo int) (*Tensor, error) {
	if dim < 0 || dim >= a.Dims() {
		return nil, fmt.Errorf("pad dimension %d out of range for shape %v", dim, a.shape)
	}
	if upTo < a.Dim(dim) {
		return nil, fmt.Errorf("cannot pad dimension %d from %d down to %d", dim, a.Dim(dim), upTo)
	}
	if upTo == a.Dim(dim) {
		return a.Clone(), nil
	}

	outShape := a.Shape()
	outShape[dim] = upTo

	// Stride-Berechnung fuer row-major Kopie
	inner := 1
	for i := dim + 1; i < a.Dims(); i++ {
		inner *= a.Dim(i)
	}
	outer := 1
	for i := 0; i < dim; i++ {
		outer *= a.Dim(i)
	}

	av := a.Floats()
	out := make([]float32, outer*upTo*inner)
	for o := 0; o < outer; o++ {
		copy(out[o*upTo*inner:], av[o*a.Dim(dim)*inner:(o+1)*a.Dim(dim)*inner])
	}
	return FromFloats(DTypeF32, a.device, outShape, out)
}

// Slice2D gibt den links-oberen rows x cols Block einer Matrix zurueck
func Slice2D(a *Tensor, rows, cols int) (*Tensor, error) {
	if a.Dims() != 2 {
		return nil, fmt.Errorf("Slice2D expects a matrix, got shape %v", a.shape)
	}
	if rows > a.Dim(0) || cols > a.Dim(1) {
		return nil, fmt.Errorf("slice %dx%d exceeds shape %v", rows, cols, a.shape)
	}

	av := a.Floats()
	out := make([]float32, rows*cols)
	for r := 0; r < rows; r++ {
		copy(out[r*cols:(r+1)*cols], av[r*a.Dim(1):r*a.Dim(1)+cols])
	}
	return FromFloats(DTypeF32, a.device, []int{rows, cols}, out)
}

// Dense gibt eine 2-d Kopie als gonum-Matrix zurueck.
// Vektoren werden als einspaltige Matrizen behandelt.
func Dense(t *Tensor) (*mat.Dense, error) {
	var rows, cols int
	switch t.Dims() {
	case 1:
		rows, cols = t.Dim(0), 1
	case 2:
		rows, cols = t.Dim(0), t.Dim(1)
	default:
		// Hoeher-dimensionale Gewichte (z.B. Conv) werden auf 2-d abgeflacht
		rows = t.Dim(0)
		cols = t.Elems() / rows
	}

	tv := t.Floats()
	data := make([]float64, len(tv))
	for i, v := range tv {
		data[i] = float64(v)
	}
	return mat.NewDense(rows, cols, data), nil
}

// FromDense erstellt einen F32-Tensor aus einer gonum-Matrix
func FromDense(m *mat.Dense) *Tensor {
	rows, cols := m.Dims()
	out := make([]float32, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			out[r*cols+c] = float32(m.At(r, c))
		}
	}
	return NewTensor([]int{rows, cols}, out)
}
