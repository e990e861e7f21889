package nn

import "fmt"

// Config describes a stacked LSTM regressor.
type Config struct {
	// InputLen is the number of timesteps per sample.
	InputLen int
	// Units per LSTM layer; 0 means InputLen.
	Units int
	// Layers is the number of stacked LSTM layers; 0 means 3.
	Layers int
	// Dropout rate applied after every LSTM layer while training.
	Dropout float64
	// LearningRate for Adam; 0 means 0.001.
	LearningRate float64
	// Seed for weight init and dropout masks; 0 derives one from the clock.
	Seed uint64
}

// DefaultConfig returns the architecture used for price forecasting: three
// layers of inputLen units with 0.2 dropout.
func DefaultConfig(inputLen int) Config {
	return Config{InputLen: inputLen, Units: inputLen, Layers: 3, Dropout: 0.2, LearningRate: 0.001}
}

func (c Config) withDefaults() Config {
	if c.Units == 0 {
		c.Units = c.InputLen
	}
	if c.Layers == 0 {
		c.Layers = 3
	}
	if c.LearningRate == 0 {
		c.LearningRate = 0.001
	}
	return c
}

func (c Config) validate() error {
	if c.InputLen < 1 {
		return fmt.Errorf("nn: input length must be positive, got %d", c.InputLen)
	}
	if c.Units < 1 || c.Layers < 1 {
		return fmt.Errorf("nn: units and layers must be positive, got %d/%d", c.Units, c.Layers)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("nn: dropout must be in [0,1), got %v", c.Dropout)
	}
	if c.LearningRate < 0 {
		return fmt.Errorf("nn: learning rate must be positive, got %v", c.LearningRate)
	}
	return nil
}

// FitOptions controls one Fit call.
type FitOptions struct {
	Epochs    int
	BatchSize int
	// Optional held-out set evaluated after every epoch.
	ValX [][]float64
	ValY []float64
}

// EpochStats is the outcome of one training epoch.
type EpochStats struct {
	Epoch   int
	Loss    float64
	ValLoss float64
	HasVal  bool
}

// History records the epochs of a Fit call.
type History struct {
	Epochs []EpochStats
}

// FinalLoss returns the training loss of the last epoch.
func (h History) FinalLoss() float64 {
	if len(h.Epochs) == 0 {
		return 0
	}
	return h.Epochs[len(h.Epochs)-1].Loss
}
