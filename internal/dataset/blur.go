package dataset

import (
	"math"

	"dpfair/internal/model"
)

// GaussianBlur returns a blurred copy of a square single channel grid. The
// kernel is truncated at four standard deviations and borders are handled
// by half-sample reflection. Inputs that are not square grids, and sigma
// <= 0, are returned as an unmodified copy.
func GaussianBlur(grid []float64, sigma float64) []float64 {
	out := append([]float64(nil), grid...)
	side := int(math.Sqrt(float64(len(grid))))
	if sigma <= 0 || side == 0 || side*side != len(grid) {
		return out
	}
	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2
	tmp := make([]float64, len(grid))
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			sum := 0.0
			for k, w := range kernel {
				sum += w * grid[y*side+reflect(x+k-radius, side)]
			}
			tmp[y*side+x] = sum
		}
	}
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			sum := 0.0
			for k, w := range kernel {
				sum += w * tmp[reflect(y+k-radius, side)*side+x]
			}
			out[y*side+x] = sum
		}
	}
	return out
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(4*sigma + 0.5)
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		x := float64(i - radius)
		kernel[i] = math.Exp(-0.5 * x * x / (sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// reflect maps i into [0,n) as (d c b a | a b c d | d c b a).
func reflect(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i - 1
	}
	return i
}

// BlurLabel returns batch with every example labelled key replaced by a
// blurred copy. Other examples, and the caller's feature slices, are left
// untouched.
func BlurLabel(batch model.Batch, key int, sigma float64) model.Batch {
	if sigma <= 0 {
		return batch
	}
	inputs := make([][]float64, len(batch.Inputs))
	copy(inputs, batch.Inputs)
	for i, label := range batch.Labels {
		if label == key {
			inputs[i] = GaussianBlur(batch.Inputs[i], sigma)
		}
	}
	batch.Inputs = inputs
	return batch
}
