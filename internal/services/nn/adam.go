package nn

import "math"

// adam keeps the optimiser step count; moments live on each param so they
// survive across Fit calls together with the weights.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
}

func newAdam(lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
}

func (a *adam) step(params []*param) {
	a.t++
	t := float64(a.t)
	lrT := a.lr * math.Sqrt(1-math.Pow(a.beta2, t)) / (1 - math.Pow(a.beta1, t))
	for _, p := range params {
		for i, g := range p.grad {
			p.m[i] = a.beta1*p.m[i] + (1-a.beta1)*g
			p.v[i] = a.beta2*p.v[i] + (1-a.beta2)*g*g
			p.data[i] -= lrT * p.m[i] / (math.Sqrt(p.v[i]) + a.eps)
		}
	}
}
