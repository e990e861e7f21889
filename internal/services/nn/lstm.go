package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

// lstmLayer is a single LSTM layer. Gate blocks are ordered input, forget,
// cell, output in every 4*units dimension.
type lstmLayer struct {
	in, units int
	wx        *param // 4H x in
	wh        *param // 4H x H
	b         *param // 1 x 4H

	steps []lstmStep
}

// lstmStep caches the forward pass of one timestep for backprop.
type lstmStep struct {
	x, hPrev, cPrev []float64
	i, f, g, o      []float64
	tc              []float64 // tanh(c_t)
}

func newLSTMLayer(name string, in, units int, rng *rand.Rand) *lstmLayer {
	l := &lstmLayer{
		in:    in,
		units: units,
		wx:    newParam(name+".kernel", 4*units, in),
		wh:    newParam(name+".recurrent_kernel", 4*units, units),
		b:     newParam(name+".bias", 1, 4*units),
	}
	glorotUniform(l.wx, in, 4*units, rng)
	orthogonal(l.wh, rng)
	for j := 0; j < units; j++ {
		l.b.data[units+j] = 1
	}
	return l
}

func (l *lstmLayer) params() []*param { return []*param{l.wx, l.wh, l.b} }

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// forward runs the sequence from a zero state and returns h_t for every step.
func (l *lstmLayer) forward(xs [][]float64) [][]float64 {
	H := l.units
	l.steps = l.steps[:0]
	h := make([]float64, H)
	c := make([]float64, H)
	z := make([]float64, 4*H)
	out := make([][]float64, len(xs))
	for t, x := range xs {
		for k := 0; k < 4*H; k++ {
			z[k] = floats.Dot(l.wx.row(k), x) + floats.Dot(l.wh.row(k), h) + l.b.data[k]
		}
		st := lstmStep{
			x: x, hPrev: h, cPrev: c,
			i: make([]float64, H), f: make([]float64, H),
			g: make([]float64, H), o: make([]float64, H),
			tc: make([]float64, H),
		}
		hn := make([]float64, H)
		cn := make([]float64, H)
		for j := 0; j < H; j++ {
			st.i[j] = sigmoid(z[j])
			st.f[j] = sigmoid(z[H+j])
			st.g[j] = math.Tanh(z[2*H+j])
			st.o[j] = sigmoid(z[3*H+j])
			cn[j] = st.f[j]*c[j] + st.i[j]*st.g[j]
			st.tc[j] = math.Tanh(cn[j])
			hn[j] = st.o[j] * st.tc[j]
		}
		l.steps = append(l.steps, st)
		h, c = hn, cn
		out[t] = hn
	}
	return out
}

// backward accumulates parameter gradients for the last forward pass.
// dhs[t] is the upstream gradient w.r.t. h_t and may be nil. It returns the
// gradient w.r.t. every input x_t.
func (l *lstmLayer) backward(dhs [][]float64) [][]float64 {
	H := l.units
	dxs := make([][]float64, len(l.steps))
	dhNext := make([]float64, H)
	dcNext := make([]float64, H)
	dz := make([]float64, 4*H)
	for t := len(l.steps) - 1; t >= 0; t-- {
		st := &l.steps[t]
		for j := 0; j < H; j++ {
			dh := dhNext[j]
			if dhs[t] != nil {
				dh += dhs[t][j]
			}
			dc := dh*st.o[j]*(1-st.tc[j]*st.tc[j]) + dcNext[j]
			dz[j] = dc * st.g[j] * st.i[j] * (1 - st.i[j])
			dz[H+j] = dc * st.cPrev[j] * st.f[j] * (1 - st.f[j])
			dz[2*H+j] = dc * st.i[j] * (1 - st.g[j]*st.g[j])
			dz[3*H+j] = dh * st.tc[j] * st.o[j] * (1 - st.o[j])
			dcNext[j] = dc * st.f[j]
		}
		dx := make([]float64, l.in)
		dhPrev := make([]float64, H)
		for k := 0; k < 4*H; k++ {
			d := dz[k]
			if d == 0 {
				continue
			}
			floats.AddScaled(l.wx.gradRow(k), d, st.x)
			floats.AddScaled(l.wh.gradRow(k), d, st.hPrev)
			l.b.grad[k] += d
			floats.AddScaled(dx, d, l.wx.row(k))
			floats.AddScaled(dhPrev, d, l.wh.row(k))
		}
		dxs[t] = dx
		dhNext = dhPrev
	}
	return dxs
}
