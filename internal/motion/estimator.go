// Package motion turns a stream of frames into a scalar motion level and
// tracks when that level has settled below the stop threshold. It combines
// two signals: a frame-differencing ratio against the previous smoothed
// frame, and a foreground ratio from an adaptive background model.
package motion

import (
	"errors"
	"fmt"
	"image"
)

// ErrDimensionMismatch is returned when a frame's dimensions differ from
// the baseline established by earlier frames. It signals a misconfigured
// or corrupted stream and is fatal to the sampling loop.
var ErrDimensionMismatch = errors.New("frame dimensions do not match baseline")

// Params tunes the estimator. Zero values are replaced by the defaults the
// detector was tuned with.
type Params struct {
	DiffCutoff       int     // binary mask cutoff on absolute luminance difference
	BlurRadius       int     // box blur radius; kernel is 2r+1
	DiffWeight       float64 // weight of the frame-differencing signal
	BackgroundWeight float64 // weight of the background-model signal
	History          int     // background model history window
	VarThreshold     float64 // background model variance threshold
}

func (p Params) withDefaults() Params {
	if p.DiffCutoff == 0 {
		p.DiffCutoff = 25
	}
	if p.BlurRadius == 0 {
		p.BlurRadius = 10
	}
	if p.DiffWeight == 0 && p.BackgroundWeight == 0 {
		p.DiffWeight, p.BackgroundWeight = 0.6, 0.4
	}
	if p.History == 0 {
		p.History = 500
	}
	if p.VarThreshold == 0 {
		p.VarThreshold = 50.0
	}
	return p
}

// Estimator converts consecutive frames into motion levels. It is stateful
// and not safe for concurrent use; the sampling loop is its only caller.
type Estimator struct {
	params Params

	prev          []uint8 // previous smoothed luminance plane
	width, height int
	bg            *Background

	// Reused scratch buffers, sized on first frame.
	gray    []uint8
	blurred []uint8
	tmp     []uint8
	mask    []uint8
	scratch []uint8
}

// NewEstimator creates an estimator with the given tuning parameters.
func NewEstimator(p Params) *Estimator {
	p = p.withDefaults()
	return &Estimator{
		params: p,
		bg:     NewBackground(p.History, p.VarThreshold),
	}
}

// Analyze returns the motion level in [0,1] for the given frame relative
// to the previous one. A nil or empty frame yields 0 without mutating any
// state. The first real frame establishes the baseline and yields 0.
func (e *Estimator) Analyze(frame image.Image) (float64, error) {
	if frame == nil {
		return 0, nil
	}
	b := frame.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0, nil
	}

	if e.prev != nil && (w != e.width || h != e.height) {
		return 0, fmt.Errorf("%w: got %dx%d, baseline %dx%d", ErrDimensionMismatch, w, h, e.width, e.height)
	}

	e.ensureBuffers(w, h)
	grayscale(frame, e.gray)
	boxBlur(e.gray, e.blurred, e.tmp, w, h, e.params.BlurRadius)

	if e.prev == nil {
		e.prev = make([]uint8, w*h)
		copy(e.prev, e.blurred)
		e.width, e.height = w, h
		return 0, nil
	}

	diffRatio := e.diffRatio(w, h)
	bgRatio := e.bg.Apply(e.blurred, w, h)

	level := e.params.DiffWeight*diffRatio + e.params.BackgroundWeight*bgRatio
	if level > 1 {
		level = 1
	}
	if level < 0 {
		level = 0
	}

	copy(e.prev, e.blurred)
	return level, nil
}

// Reset clears the baseline frame and reinitializes the background model.
// Call it when the stream is discontinuous (scene cut, reconnect) to avoid
// a false full-frame motion spike.
func (e *Estimator) Reset() {
	e.prev = nil
	e.width, e.height = 0, 0
	e.bg.Reset()
}

// diffRatio thresholds the absolute difference between the previous and
// current smoothed planes into a binary mask, dilates it to merge nearby
// blobs, and returns the fraction of set pixels.
func (e *Estimator) diffRatio(w, h int) float64 {
	cutoff := uint8(e.params.DiffCutoff)
	n := w * h

	set := 0
	for i := 0; i < n; i++ {
		d := e.blurred[i]
		p := e.prev[i]
		var ad uint8
		if d > p {
			ad = d - p
		} else {
			ad = p - d
		}
		if ad >= cutoff {
			e.mask[i] = 1
		} else {
			e.mask[i] = 0
		}
	}

	// Two dilation passes with a 3x3 structuring element.
	dilate(e.mask, e.scratch, w, h)
	dilate(e.scratch, e.mask, w, h)

	for i := 0; i < n; i++ {
		if e.mask[i] != 0 {
			set++
		}
	}
	return float64(set) / float64(n)
}

func (e *Estimator) ensureBuffers(w, h int) {
	n := w * h
	if len(e.gray) != n {
		e.gray = make([]uint8, n)
		e.blurred = make([]uint8, n)
		e.tmp = make([]uint8, n)
		e.mask = make([]uint8, n)
		e.scratch = make([]uint8, n)
	}
}

// grayscale extracts the luminance plane using the BT.601 weights.
func grayscale(img image.Image, dst []uint8) {
	if g, ok := img.(*image.Gray); ok && g.Stride == g.Bounds().Dx() {
		copy(dst, g.Pix)
		return
	}

	b := img.Bounds()
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// 16-bit channels; weights sum to 1.
			lum := (299*r + 587*g + 114*bl) / 1000
			dst[i] = uint8(lum >> 8)
			i++
		}
	}
}

// boxBlur applies a separable box filter of radius r in two passes,
// approximating the large Gaussian kernel used to suppress sensor and
// compression noise. r == 0 copies src to dst.
func boxBlur(src, dst, tmp []uint8, w, h, r int) {
	if r <= 0 {
		copy(dst, src)
		return
	}
	blurRows(src, tmp, w, h, r)
	blurCols(tmp, dst, w, h, r)
}

func blurRows(src, dst []uint8, w, h, r int) {
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		out := dst[y*w : (y+1)*w]
		sum := 0
		count := 0
		for x := 0; x <= r && x < w; x++ {
			sum += int(row[x])
			count++
		}
		for x := 0; x < w; x++ {
			out[x] = uint8(sum / count)
			if add := x + r + 1; add < w {
				sum += int(row[add])
				count++
			}
			if drop := x - r; drop >= 0 {
				sum -= int(row[drop])
				count--
			}
		}
	}
}

func blurCols(src, dst []uint8, w, h, r int) {
	for x := 0; x < w; x++ {
		sum := 0
		count := 0
		for y := 0; y <= r && y < h; y++ {
			sum += int(src[y*w+x])
			count++
		}
		for y := 0; y < h; y++ {
			dst[y*w+x] = uint8(sum / count)
			if add := y + r + 1; add < h {
				sum += int(src[add*w+x])
				count++
			}
			if drop := y - r; drop >= 0 {
				sum -= int(src[drop*w+x])
				count--
			}
		}
	}
}

// dilate writes the 3x3 morphological dilation of src into dst.
func dilate(src, dst []uint8, w, h int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
		neighbors:
			for dy := -1; dy <= 1; dy++ {
				yy := y + dy
				if yy < 0 || yy >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					xx := x + dx
					if xx < 0 || xx >= w {
						continue
					}
					if src[yy*w+xx] != 0 {
						v = 1
						break neighbors
					}
				}
			}
			dst[y*w+x] = v
		}
	}
}
