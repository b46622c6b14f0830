package motion

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameWithBlock builds a dark gray frame with a bright block whose top-left
// corner sits at (x, y).
func frameWithBlock(w, h, x, y, size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 30
	}
	for yy := y; yy < y+size && yy < h; yy++ {
		for xx := x; xx < x+size && xx < w; xx++ {
			img.SetGray(xx, yy, color.Gray{Y: 230})
		}
	}
	return img
}

func flatFrame(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestAnalyzeFirstFrameIsZero(t *testing.T) {
	e := NewEstimator(Params{})
	level, err := e.Analyze(frameWithBlock(64, 48, 10, 10, 12))
	require.NoError(t, err)
	assert.Zero(t, level)
}

func TestAnalyzeNilAndEmptyFramesAreZero(t *testing.T) {
	e := NewEstimator(Params{})

	level, err := e.Analyze(nil)
	require.NoError(t, err)
	assert.Zero(t, level)

	level, err = e.Analyze(image.NewGray(image.Rect(0, 0, 0, 0)))
	require.NoError(t, err)
	assert.Zero(t, level)

	// Neither call established a baseline, so the next real frame is
	// still the first.
	level, err = e.Analyze(flatFrame(64, 48, 30))
	require.NoError(t, err)
	assert.Zero(t, level)
}

func TestAnalyzeStaticSceneStaysNearZero(t *testing.T) {
	e := NewEstimator(Params{})
	for i := 0; i < 5; i++ {
		level, err := e.Analyze(flatFrame(64, 48, 30))
		require.NoError(t, err)
		assert.Zero(t, level, "frame %d", i)
	}
}

func TestAnalyzeMovingBlockRaisesLevel(t *testing.T) {
	e := NewEstimator(Params{})

	_, err := e.Analyze(frameWithBlock(64, 48, 4, 4, 16))
	require.NoError(t, err)

	level, err := e.Analyze(frameWithBlock(64, 48, 36, 24, 16))
	require.NoError(t, err)
	assert.Greater(t, level, 0.05, "a large jump should register as motion")
	assert.LessOrEqual(t, level, 1.0)
}

func TestAnalyzeDeterminism(t *testing.T) {
	run := func() []float64 {
		e := NewEstimator(Params{})
		frames := []*image.Gray{
			frameWithBlock(64, 48, 4, 4, 16),
			frameWithBlock(64, 48, 20, 12, 16),
			frameWithBlock(64, 48, 36, 24, 16),
			flatFrame(64, 48, 30),
		}
		var levels []float64
		for _, f := range frames {
			level, err := e.Analyze(f)
			require.NoError(t, err)
			levels = append(levels, level)
		}
		return levels
	}

	assert.Equal(t, run(), run())
}

func TestAnalyzeDimensionMismatch(t *testing.T) {
	e := NewEstimator(Params{})
	_, err := e.Analyze(flatFrame(64, 48, 30))
	require.NoError(t, err)

	_, err = e.Analyze(flatFrame(32, 48, 30))
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestResetClearsBaseline(t *testing.T) {
	e := NewEstimator(Params{})

	_, err := e.Analyze(frameWithBlock(64, 48, 4, 4, 16))
	require.NoError(t, err)

	e.Reset()

	// A wildly different frame right after a reset is a new baseline,
	// not a motion spike.
	level, err := e.Analyze(frameWithBlock(64, 48, 40, 28, 16))
	require.NoError(t, err)
	assert.Zero(t, level)

	// A reset also permits a dimension change.
	e.Reset()
	level, err = e.Analyze(flatFrame(32, 24, 30))
	require.NoError(t, err)
	assert.Zero(t, level)
}
