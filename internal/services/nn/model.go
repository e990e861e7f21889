package nn

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"

	"FinCast/internal/domain/models"
)

// SequenceModel is a stacked LSTM regressor mapping a window of scalars to the
// next scalar. Weights and optimiser state are mutated by every Fit call.
// A SequenceModel is not safe for concurrent use.
type SequenceModel struct {
	cfg    Config
	rng    *rand.Rand
	layers []*lstmLayer
	dense  *param // 1 x H
	denseB *param // 1 x 1
	params []*param
	opt    *adam

	masks  [][][]float64
	hidden []float64
}

// NewSequenceModel builds and initialises a model.
func NewSequenceModel(cfg Config) (*SequenceModel, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	m := &SequenceModel{
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		opt:   newAdam(cfg.LearningRate),
		masks: make([][][]float64, cfg.Layers),
	}
	in := 1
	for i := 0; i < cfg.Layers; i++ {
		l := newLSTMLayer(fmt.Sprintf("lstm_%d", i), in, cfg.Units, m.rng)
		m.layers = append(m.layers, l)
		m.params = append(m.params, l.params()...)
		in = cfg.Units
	}
	m.dense = newParam("dense.kernel", 1, cfg.Units)
	m.denseB = newParam("dense.bias", 1, 1)
	glorotUniform(m.dense, cfg.Units, 1, m.rng)
	m.params = append(m.params, m.dense, m.denseB)
	return m, nil
}

// InputLen returns the window length the model was built for.
func (m *SequenceModel) InputLen() int { return m.cfg.InputLen }

// Config returns the resolved configuration.
func (m *SequenceModel) Config() Config { return m.cfg }

// Steps returns the number of optimiser updates applied so far.
func (m *SequenceModel) Steps() int { return m.opt.t }

func (m *SequenceModel) forward(x []float64, train bool) float64 {
	seq := make([][]float64, len(x))
	for t, v := range x {
		seq[t] = []float64{v}
	}
	last := len(m.layers) - 1
	for li, l := range m.layers {
		out := l.forward(seq)
		if li == last {
			out = out[len(out)-1:]
		}
		m.masks[li] = nil
		if train && m.cfg.Dropout > 0 {
			m.masks[li] = m.dropoutMasks(len(out))
			for t := range out {
				o := make([]float64, len(out[t]))
				floats.MulTo(o, out[t], m.masks[li][t])
				out[t] = o
			}
		}
		seq = out
	}
	m.hidden = seq[0]
	return floats.Dot(m.dense.data, m.hidden) + m.denseB.data[0]
}

// dropoutMasks draws inverted dropout masks for n timesteps.
func (m *SequenceModel) dropoutMasks(n int) [][]float64 {
	keep := 1 - m.cfg.Dropout
	masks := make([][]float64, n)
	for t := range masks {
		mk := make([]float64, m.cfg.Units)
		for j := range mk {
			if m.rng.Float64() >= m.cfg.Dropout {
				mk[j] = 1 / keep
			}
		}
		masks[t] = mk
	}
	return masks
}

// backward propagates dL/dy through the last forward pass.
func (m *SequenceModel) backward(dy float64) {
	floats.AddScaled(m.dense.grad, dy, m.hidden)
	m.denseB.grad[0] += dy
	dh := make([]float64, m.cfg.Units)
	floats.AddScaled(dh, dy, m.dense.data)

	last := len(m.layers) - 1
	steps := len(m.layers[last].steps)
	dseq := make([][]float64, steps)
	dseq[steps-1] = dh
	for li := last; li >= 0; li-- {
		if mk := m.masks[li]; mk != nil {
			// the last layer only emitted its final step
			off := len(dseq) - len(mk)
			for t := range mk {
				if dseq[off+t] != nil {
					floats.Mul(dseq[off+t], mk[t])
				}
			}
		}
		dseq = m.layers[li].backward(dseq)
	}
}

func (m *SequenceModel) zeroGrad() {
	for _, p := range m.params {
		p.zeroGrad()
	}
}

func (m *SequenceModel) finite() bool {
	for _, p := range m.params {
		if !p.finite() {
			return false
		}
	}
	return true
}

func (m *SequenceModel) checkShapes(X [][]float64, y []float64) error {
	if len(X) != len(y) {
		return fmt.Errorf("nn: %d samples but %d targets", len(X), len(y))
	}
	for i, x := range X {
		if len(x) != m.cfg.InputLen {
			return fmt.Errorf("nn: sample %d has length %d, want %d", i, len(x), m.cfg.InputLen)
		}
	}
	return nil
}

// Fit trains on X/y in order, without shuffling, minimising mean squared error.
// Non-finite losses or weights abort with models.ErrModelFit.
func (m *SequenceModel) Fit(X [][]float64, y []float64, opts FitOptions) (History, error) {
	var hist History
	if err := m.checkShapes(X, y); err != nil {
		return hist, err
	}
	if len(X) == 0 {
		return hist, fmt.Errorf("nn: no samples to fit")
	}
	if opts.Epochs < 1 {
		return hist, nil
	}
	bs := opts.BatchSize
	if bs < 1 {
		bs = 32
	}
	n := len(X)
	for ep := 1; ep <= opts.Epochs; ep++ {
		var sum float64
		for start := 0; start < n; start += bs {
			end := min(start+bs, n)
			scale := 2 / float64(end-start)
			m.zeroGrad()
			for i := start; i < end; i++ {
				diff := m.forward(X[i], true) - y[i]
				sum += diff * diff
				m.backward(scale * diff)
			}
			m.opt.step(m.params)
		}
		st := EpochStats{Epoch: ep, Loss: sum / float64(n)}
		if math.IsNaN(st.Loss) || math.IsInf(st.Loss, 0) || !m.finite() {
			return hist, fmt.Errorf("%w: epoch %d loss %v", models.ErrModelFit, ep, st.Loss)
		}
		if len(opts.ValX) > 0 {
			vl, err := m.Evaluate(opts.ValX, opts.ValY)
			if err != nil {
				return hist, err
			}
			if math.IsNaN(vl) || math.IsInf(vl, 0) {
				return hist, fmt.Errorf("%w: epoch %d val_loss %v", models.ErrModelFit, ep, vl)
			}
			st.ValLoss, st.HasVal = vl, true
		}
		hist.Epochs = append(hist.Epochs, st)
	}
	return hist, nil
}

// Evaluate returns the mean squared error on X/y without dropout.
func (m *SequenceModel) Evaluate(X [][]float64, y []float64) (float64, error) {
	if err := m.checkShapes(X, y); err != nil {
		return 0, err
	}
	if len(X) == 0 {
		return 0, nil
	}
	var sum float64
	for i := range X {
		d := m.forward(X[i], false) - y[i]
		sum += d * d
	}
	return sum / float64(len(X)), nil
}

// Predict returns the model output for one window.
func (m *SequenceModel) Predict(x []float64) (float64, error) {
	if len(x) != m.cfg.InputLen {
		return 0, fmt.Errorf("nn: window length %d, want %d", len(x), m.cfg.InputLen)
	}
	out := m.forward(x, false)
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("%w: non-finite prediction", models.ErrModelFit)
	}
	return out, nil
}
