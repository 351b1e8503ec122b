package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/adain/internal/tensor"
)

// GlorotUniform fills a tensor of the given shape from
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out))).
func GlorotUniform(rng *rand.Rand, fanIn, fanOut int, shape tensor.Shape) *tensor.RawTensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	t := tensor.Zeros(shape)
	data := t.Data()
	for i := range data {
		//nolint:gosec // math/rand is fine for weight initialization
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
	return t
}
