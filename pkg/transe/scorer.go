package transe

import (
	"github.com/soundprediction/kgembed/pkg/utils"
)

// Epsilon keeps gradient directions finite when a distance is exactly zero.
const Epsilon = 1e-8

// Score is the TransE dissimilarity ||h + r - t||. Lower is more plausible.
func Score(h, r, t []float32) float64 {
	return utils.Magnitude64(utils.Translate(h, r, t))
}

// HingeLoss is max(0, margin + pos - neg).
func HingeLoss(margin, pos, neg float64) float64 {
	loss := margin + pos - neg
	if loss > 0 {
		return loss
	}
	return 0
}

// gradient normalizes a translation residual by its length.
func gradient(residual []float64, distance float64) []float64 {
	return utils.Scale(residual, distance+Epsilon)
}
