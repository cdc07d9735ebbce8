package byol

import (
	"fmt"

	"github.com/hupe1980/knnmon/bank"
	"github.com/hupe1980/knnmon/distance"
	"github.com/hupe1980/knnmon/matrix"
)

// RegressionLoss is the normalized regression loss between predictions p and
// targets z (both B×D): the mean over rows of |p̂ - ẑ|², which equals
// 2 - 2·cos(p, z). A zero row counts as orthogonal.
func RegressionLoss(p, z *matrix.Dense) (float64, error) {
	if p.Rows() != z.Rows() {
		return 0, &bank.ErrDimensionMismatch{What: "loss rows", Expected: p.Rows(), Actual: z.Rows()}
	}
	if p.Cols() != z.Cols() {
		return 0, &bank.ErrDimensionMismatch{What: "loss dimension", Expected: p.Cols(), Actual: z.Cols()}
	}
	if p.Rows() == 0 {
		return 0, fmt.Errorf("byol: empty batch")
	}

	var sum float64
	for i := 0; i < p.Rows(); i++ {
		cos, err := distance.Cosine(p.Row(i), z.Row(i))
		if err != nil {
			return 0, err
		}
		sum += 2 - 2*float64(cos)
	}
	return sum / float64(p.Rows()), nil
}
