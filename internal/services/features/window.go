package features

import (
	"fmt"

	"FinCast/internal/domain/models"
)

// Windows slices values into overlapping inputs of length w and the value that
// follows each one. A series of length n yields n-w samples in temporal order.
func Windows(values []float64, w int) ([][]float64, []float64, error) {
	if w < 1 {
		return nil, nil, fmt.Errorf("window length must be positive, got %d", w)
	}
	n := len(values)
	if n <= w {
		return nil, nil, fmt.Errorf("%w: %d values for window %d", models.ErrInsufficientHistory, n, w)
	}
	X := make([][]float64, 0, n-w)
	y := make([]float64, 0, n-w)
	for i := 0; i < n-w; i++ {
		x := make([]float64, w)
		copy(x, values[i:i+w])
		X = append(X, x)
		y = append(y, values[i+w])
	}
	return X, y, nil
}

// SplitChronological splits n samples into a leading train part and a trailing
// validation part. At least one sample is kept for training.
func SplitChronological(n int, trainFrac float64) (train, val int) {
	if n <= 0 {
		return 0, 0
	}
	train = int(float64(n) * trainFrac)
	if train < 1 {
		train = 1
	}
	if train > n {
		train = n
	}
	return train, n - train
}
