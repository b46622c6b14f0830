package motion

// Background is an adaptive per-pixel background model. Each pixel keeps a
// running mean and variance of its smoothed luminance, updated with an
// exponential learning rate of 1/history. A pixel whose squared distance
// from the mean exceeds varThreshold times its variance is foreground.
//
// The model is an explicit, resettable value owned by the Estimator; Reset
// returns it to the empty-history state.
type Background struct {
	history      int
	varThreshold float64

	width, height int
	mean          []float64
	variance      []float64
	seeded        bool
}

// initialVariance seeds new pixels so the model is not trigger-happy on
// the first few frames before real statistics accumulate.
const initialVariance = 225.0

// NewBackground creates an empty background model. Dimensions are adopted
// from the first frame applied.
func NewBackground(history int, varThreshold float64) *Background {
	if history < 1 {
		history = 1
	}
	return &Background{
		history:      history,
		varThreshold: varThreshold,
	}
}

// Apply folds one smoothed luminance plane into the model and returns the
// fraction of pixels classified as foreground, in [0,1].
func (b *Background) Apply(pix []uint8, width, height int) float64 {
	n := width * height
	if n == 0 {
		return 0
	}

	if !b.seeded || b.width != width || b.height != height {
		b.seed(pix, width, height)
		return 0
	}

	alpha := 1.0 / float64(b.history)
	foreground := 0

	for i := 0; i < n; i++ {
		v := float64(pix[i])
		d := v - b.mean[i]
		dist2 := d * d

		if dist2 > b.varThreshold*b.variance[i] {
			foreground++
		}

		b.mean[i] += alpha * d
		b.variance[i] += alpha * (dist2 - b.variance[i])
		if b.variance[i] < 1 {
			b.variance[i] = 1
		}
	}

	return float64(foreground) / float64(n)
}

// Reset discards all accumulated statistics. The next Apply reseeds the
// model and reports zero foreground.
func (b *Background) Reset() {
	b.seeded = false
	b.mean = nil
	b.variance = nil
	b.width, b.height = 0, 0
}

func (b *Background) seed(pix []uint8, width, height int) {
	n := width * height
	b.width, b.height = width, height
	b.mean = make([]float64, n)
	b.variance = make([]float64, n)
	for i := 0; i < n; i++ {
		b.mean[i] = float64(pix[i])
		b.variance[i] = initialVariance
	}
	b.seeded = true
}
