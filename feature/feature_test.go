package feature

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(c color.NRGBA, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x * 255) / (w - 1))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

func TestExtract_VectorLength(t *testing.T) {
	v := Extract(solidImage(color.NRGBA{R: 255, A: 255}, 48, 48))
	assert.Len(t, v, VectorDim)
	assert.Equal(t, 114, VectorDim)
}

func TestExtract_Deterministic(t *testing.T) {
	img := gradientImage(64, 64)

	v1 := Extract(img)
	v2 := Extract(img)
	require.Equal(t, v1, v2)
}

func TestExtract_HistogramsSumToOne(t *testing.T) {
	v := Extract(gradientImage(100, 80))

	sections := []struct {
		name     string
		from, to int
	}{
		{"red", OffsetRGB, OffsetRGB + 10},
		{"green", OffsetRGB + 10, OffsetRGB + 20},
		{"blue", OffsetRGB + 20, OffsetRGB + 30},
		{"hue", OffsetHue, OffsetSat},
		{"saturation", OffsetSat, OffsetVal},
		{"value", OffsetVal, OffsetBlocks},
	}

	for _, s := range sections {
		var sum float64
		for i := s.from; i < s.to; i++ {
			sum += v[i]
		}
		assert.InDelta(t, 1.0, sum, 1e-9, "histogram %s should sum to one", s.name)
	}
}

func TestExtract_SolidRed(t *testing.T) {
	v := Extract(solidImage(color.NRGBA{R: 255, A: 255}, 48, 48))

	// All red pixels land in the top red bin and the bottom green/blue bins.
	assert.InDelta(t, 1.0, v[OffsetRGB+9], 1e-9)
	assert.InDelta(t, 1.0, v[OffsetRGB+10], 1e-9)
	assert.InDelta(t, 1.0, v[OffsetRGB+20], 1e-9)

	// Pure red has hue 0 and full saturation.
	assert.InDelta(t, 1.0, v[OffsetHue], 1e-9)
	assert.InDelta(t, 1.0, v[OffsetSat+9], 1e-9)

	// A solid image has no texture and no edges.
	for blk := 0; blk < 9; blk++ {
		assert.InDelta(t, 0.0, v[OffsetBlocks+blk*4+3], 1e-9)
	}
	for i := 0; i < 5; i++ {
		assert.InDelta(t, 0.0, v[OffsetEdges+i], 1e-9)
	}

	// Mean brightness of pure red is 255/3.
	assert.InDelta(t, 1.0/3, v[OffsetGlobals], 1e-9)
}

func TestExtract_SolidColorBlockMeans(t *testing.T) {
	v := Extract(solidImage(color.NRGBA{R: 51, G: 102, B: 204, A: 255}, 48, 48))

	for blk := 0; blk < 9; blk++ {
		off := OffsetBlocks + blk*4
		assert.InDelta(t, 51.0/255, v[off], 1e-9)
		assert.InDelta(t, 102.0/255, v[off+1], 1e-9)
		assert.InDelta(t, 204.0/255, v[off+2], 1e-9)
	}
}

func TestExtract_VerticalEdgeDirection(t *testing.T) {
	// Left half black, right half white: a strong vertical boundary whose
	// gradient is horizontal (angle 0).
	img := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			c := color.NRGBA{A: 255}
			if x >= 24 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}

	v := Extract(img)
	require.Greater(t, v[OffsetEdges], 0.0)

	// Directional sums must add up to the total strength.
	var dirSum float64
	for i := 1; i < 5; i++ {
		dirSum += v[OffsetEdges+i]
	}
	assert.InDelta(t, v[OffsetEdges], dirSum, 1e-9)

	// The horizontal-gradient bin dominates.
	assert.Greater(t, v[OffsetEdges+1], v[OffsetEdges+2])
	assert.Greater(t, v[OffsetEdges+1], v[OffsetEdges+3])
	assert.Greater(t, v[OffsetEdges+1], v[OffsetEdges+4])
}

func TestRGBToHSV(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b float64
		h, s, v float64
	}{
		{"black", 0, 0, 0, 0, 0, 0},
		{"white", 255, 255, 255, 0, 0, 255},
		{"red", 255, 0, 0, 0, 1, 255},
		{"green", 0, 255, 0, 120, 1, 255},
		{"blue", 0, 0, 255, 240, 1, 255},
		{"yellow", 255, 255, 0, 60, 1, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, s, v := rgbToHSV(tt.r, tt.g, tt.b)
			assert.InDelta(t, tt.h, h, 1e-9)
			assert.InDelta(t, tt.s, s, 1e-9)
			assert.InDelta(t, tt.v, v, 1e-9)
		})
	}
}

func TestExtract_ResamplesLargeImages(t *testing.T) {
	small := Extract(solidImage(color.NRGBA{G: 200, A: 255}, 48, 48))
	large := Extract(solidImage(color.NRGBA{G: 200, A: 255}, 480, 360))

	require.Len(t, large, VectorDim)
	for i := range small {
		assert.InDelta(t, small[i], large[i], 1e-6, "dimension %d", i)
	}
}

func TestBinOf_Bounds(t *testing.T) {
	assert.Equal(t, 0, binOf(0))
	assert.Equal(t, 0, binOf(25.5))
	assert.Equal(t, 1, binOf(25.6))
	assert.Equal(t, 9, binOf(255))
	assert.Equal(t, 9, binOf(math.MaxFloat64))
	assert.Equal(t, 0, binOf(-math.MaxFloat64))
}
