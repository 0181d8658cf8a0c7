// module_oft.go - Orthogonale Transformations-Variante (OFT)
//
// Schluessel-Signatur: oft_blocks, optional alpha.
// Aus jedem Block Q wird ueber die Cayley-Transformation
// R = (I + S)(I - S)^-1 mit S = (Q - Q^T)/2 eine orthogonale Rotation
// gebaut; Delta = blockdiag(R - I) x base. Die Ausgangsdimension muss
// ein Vielfaches der Blockgroesse sein, sonst schlaegt die Berechnung
// fehl (und wird vom Patcher als Delta-Fehler gezaehlt).
package lora

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/7blacky7/lorapatch/ml"
)

type moduleOFT struct {
	blocks    *ml.Tensor
	numBlocks int
	blockSize int
}

func createModuleOFT(weights *NetworkWeights) (Module, error) {
	if !hasKeys(weights.W, "oft_blocks") {
		return nil, nil
	}

	blocks := weights.W["oft_blocks"]
	if blocks.Dims() != 3 || blocks.Dim(1) != blocks.Dim(2) {
		return nil, nil
	}

	return &moduleOFT{
		blocks:    blocks,
		numBlocks: blocks.Dim(0),
		blockSize: blocks.Dim(1),
	}, nil
}

func (m *moduleOFT) Type() string { return "oft" }

func (m *moduleOFT) CalcUpdown(base *ml.Tensor, _ int) (*ml.Tensor, *ml.Tensor, error) {
	flat := flatten2D(base)
	rows, cols := flat.Dim(0), flat.Dim(1)

	if m.numBlocks*m.blockSize != rows {
		return nil, nil, fmt.Errorf("oft blocks cover %d rows, base has %d", m.numBlocks*m.blockSize, rows)
	}

	bs := m.blockSize
	blockData := m.blocks.Floats()
	baseData := flat.Floats()
	out := make([]float32, rows*cols)

	for b := 0; b < m.numBlocks; b++ {
		rotation, err := cayley(blockData[b*bs*bs:(b+1)*bs*bs], bs)
		if err != nil {
			return nil, nil, err
		}

		// (R - I) x base_block fuer die Zeilen dieses Blocks
		for r := 0; r < bs; r++ {
			row := b*bs + r
			for c := 0; c < cols; c++ {
				var sum float64
				for k := 0; k < bs; k++ {
					factor := rotation.At(r, k)
					if k == r {
						factor -= 1
					}
					sum += factor * float64(baseData[(b*bs+k)*cols+c])
				}
				out[row*cols+c] = float32(sum)
			}
		}
	}

	updown, err := ml.FromFloats(ml.DTypeF32, base.Device(), []int{rows, cols}, out)
	if err != nil {
		return nil, nil, err
	}
	updown, err = reshapeAs(updown, base)
	if err != nil {
		return nil, nil, err
	}
	return updown, nil, nil
}

// cayley baut aus einem Block die orthogonale Rotation
// R = (I + S)(I - S)^-1 mit dem schiefsymmetrischen Anteil S
func cayley(block []float32, n int) (*mat.Dense, error) {
	skew := mat.NewDense(n, n, nil)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			skew.Set(r, c, (float64(block[r*n+c])-float64(block[c*n+r]))/2)
		}
	}

	plus := mat.NewDense(n, n, nil)
	minus := mat.NewDense(n, n, nil)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			eye := 0.0
			if r == c {
				eye = 1
			}
			plus.Set(r, c, eye+skew.At(r, c))
			minus.Set(r, c, eye-skew.At(r, c))
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(minus); err != nil {
		return nil, fmt.Errorf("oft block not invertible: %w", err)
	}

	var rotation mat.Dense
	rotation.Mul(plus, &inv)
	return &rotation, nil
}
