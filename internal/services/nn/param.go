package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// param is a trainable tensor with its gradient and Adam moments.
type param struct {
	name       string
	rows, cols int
	data       []float64
	grad       []float64
	m, v       []float64
}

func newParam(name string, rows, cols int) *param {
	n := rows * cols
	return &param{
		name: name, rows: rows, cols: cols,
		data: make([]float64, n),
		grad: make([]float64, n),
		m:    make([]float64, n),
		v:    make([]float64, n),
	}
}

func (p *param) row(k int) []float64     { return p.data[k*p.cols : (k+1)*p.cols] }
func (p *param) gradRow(k int) []float64 { return p.grad[k*p.cols : (k+1)*p.cols] }

func (p *param) zeroGrad() {
	for i := range p.grad {
		p.grad[i] = 0
	}
}

func (p *param) finite() bool {
	for _, v := range p.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// glorotUniform fills p from U(-l, l) with l = sqrt(6/(fanIn+fanOut)).
func glorotUniform(p *param, fanIn, fanOut int, rng *rand.Rand) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.data {
		p.data[i] = (rng.Float64()*2 - 1) * limit
	}
}

// orthogonal fills a rows x cols tensor (rows >= cols) with orthonormal columns
// taken from the QR factorisation of a Gaussian matrix.
func orthogonal(p *param, rng *rand.Rand) {
	a := mat.NewDense(p.rows, p.cols, nil)
	for i := 0; i < p.rows; i++ {
		for j := 0; j < p.cols; j++ {
			a.Set(i, j, rng.NormFloat64())
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)
	for j := 0; j < p.cols; j++ {
		sign := 1.0
		if r.At(j, j) < 0 {
			sign = -1
		}
		for i := 0; i < p.rows; i++ {
			p.data[i*p.cols+j] = sign * q.At(i, j)
		}
	}
}
