// Package feature converts raster images into fixed-length numeric feature
// vectors combining color histograms, spatial block statistics, global color
// moments and edge-direction features. Extraction is deterministic: identical
// pixel data always yields an identical vector.
package feature

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/NanamiAkari/attire-ai-explorer/types"
)

// SampleSize is the square resolution every image is resampled to before
// feature accumulation.
const SampleSize = 48

// Feature layout offsets. The scorer's weight table is aligned to this order,
// so the concatenation order must never change.
const (
	rgbBins  = 10 // per channel
	hueBins  = 18 // 20 degrees each
	satBins  = 10
	valBins  = 10
	gridSize = 3 // 3x3 spatial blocks

	OffsetRGB     = 0
	OffsetHue     = OffsetRGB + 3*rgbBins
	OffsetSat     = OffsetHue + hueBins
	OffsetVal     = OffsetSat + satBins
	OffsetBlocks  = OffsetVal + valBins
	OffsetGlobals = OffsetBlocks + gridSize*gridSize*4
	OffsetEdges   = OffsetGlobals + 5

	// VectorDim is the fixed length of every extracted vector.
	VectorDim = OffsetEdges + 5
)

// Extract computes the feature vector for an image. The image is resampled to
// SampleSize x SampleSize first, so inputs of any resolution produce
// comparable vectors.
func Extract(img image.Image) types.FeatureVector {
	px := resample(img)
	v := make(types.FeatureVector, VectorDim)

	accumulateHistograms(px, v)
	accumulateBlocks(px, v)
	accumulateGlobals(px, v)
	accumulateEdges(px, v)

	return v
}

// resample scales the input down to the fixed sample resolution.
func resample(img image.Image) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, SampleSize, SampleSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// accumulateHistograms fills the RGB and HSV histogram sections. Every
// histogram is normalized by total pixel count so its bins sum to one.
func accumulateHistograms(px *image.NRGBA, v types.FeatureVector) {
	total := float64(SampleSize * SampleSize)

	for y := 0; y < SampleSize; y++ {
		for x := 0; x < SampleSize; x++ {
			c := px.NRGBAAt(x, y)
			v[OffsetRGB+binOf(float64(c.R))]++
			v[OffsetRGB+rgbBins+binOf(float64(c.G))]++
			v[OffsetRGB+2*rgbBins+binOf(float64(c.B))]++

			h, s, val := rgbToHSV(float64(c.R), float64(c.G), float64(c.B))
			hueBin := int(h / 20)
			if hueBin > hueBins-1 {
				hueBin = hueBins - 1
			}
			satBin := int(s * float64(satBins))
			if satBin > satBins-1 {
				satBin = satBins - 1
			}
			v[OffsetHue+hueBin]++
			v[OffsetSat+satBin]++
			v[OffsetVal+binOf(val)]++
		}
	}

	for i := OffsetRGB; i < OffsetBlocks; i++ {
		v[i] /= total
	}
}

// binOf quantizes a 0..255 channel value into one of ten bins. The clamp
// happens in float space: converting an out-of-range float to int is
// implementation-dependent, so the conversion only ever sees in-range values.
func binOf(c float64) int {
	if c <= 0 {
		return 0
	}
	if c >= 255 {
		return 9
	}
	return int(c / 25.6)
}

// rgbToHSV converts 0..255 channel values to hue in degrees [0,360),
// saturation in [0,1] and value as the raw 0..255 channel maximum.
func rgbToHSV(r, g, b float64) (h, s, val float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	switch {
	case delta == 0:
		h = 0
	case max == r:
		h = 60 * math.Mod((g-b)/delta, 6)
	case max == g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}

	if max > 0 {
		s = delta / max
	}
	return h, s, max
}

// accumulateBlocks computes, for each cell of the 3x3 grid, the normalized
// mean R, G, B and the intra-block luminance deviation as a texture proxy.
func accumulateBlocks(px *image.NRGBA, v types.FeatureVector) {
	blockSize := SampleSize / gridSize

	for by := 0; by < gridSize; by++ {
		for bx := 0; bx < gridSize; bx++ {
			var sumR, sumG, sumB, sumLum, sumLum2 float64
			for y := by * blockSize; y < (by+1)*blockSize; y++ {
				for x := bx * blockSize; x < (bx+1)*blockSize; x++ {
					c := px.NRGBAAt(x, y)
					r, g, b := float64(c.R), float64(c.G), float64(c.B)
					lum := (r + g + b) / 3
					sumR += r
					sumG += g
					sumB += b
					sumLum += lum
					sumLum2 += lum * lum
				}
			}

			n := float64(blockSize * blockSize)
			meanLum := sumLum / n
			variance := sumLum2/n - meanLum*meanLum
			if variance < 0 {
				variance = 0
			}

			off := OffsetBlocks + (by*gridSize+bx)*4
			v[off] = sumR / n / 255
			v[off+1] = sumG / n / 255
			v[off+2] = sumB / n / 255
			v[off+3] = math.Sqrt(variance) / 255
		}
	}
}

// accumulateGlobals computes five whole-image scalars: mean brightness, the
// square root of the overall luminance variance, and the square root of the
// second-order color moment per RGB channel, each normalized by 255.
func accumulateGlobals(px *image.NRGBA, v types.FeatureVector) {
	n := float64(SampleSize * SampleSize)
	var sum [3]float64
	var sumLum float64

	for y := 0; y < SampleSize; y++ {
		for x := 0; x < SampleSize; x++ {
			c := px.NRGBAAt(x, y)
			sum[0] += float64(c.R)
			sum[1] += float64(c.G)
			sum[2] += float64(c.B)
			sumLum += (float64(c.R) + float64(c.G) + float64(c.B)) / 3
		}
	}

	meanLum := sumLum / n
	mean := [3]float64{sum[0] / n, sum[1] / n, sum[2] / n}

	var lumVar float64
	var moment [3]float64
	for y := 0; y < SampleSize; y++ {
		for x := 0; x < SampleSize; x++ {
			c := px.NRGBAAt(x, y)
			ch := [3]float64{float64(c.R), float64(c.G), float64(c.B)}
			lum := (ch[0] + ch[1] + ch[2]) / 3
			lumVar += (lum - meanLum) * (lum - meanLum)
			for i := 0; i < 3; i++ {
				moment[i] += (ch[i] - mean[i]) * (ch[i] - mean[i])
			}
		}
	}

	v[OffsetGlobals] = meanLum / 255
	v[OffsetGlobals+1] = math.Sqrt(lumVar/n) / 255
	v[OffsetGlobals+2] = math.Sqrt(moment[0]/n) / 255
	v[OffsetGlobals+3] = math.Sqrt(moment[1]/n) / 255
	v[OffsetGlobals+4] = math.Sqrt(moment[2]/n) / 255
}

// Sobel kernels over a grayscale derivation of the image.
var (
	sobelX = [3][3]float64{{-1, 0, 1}, {-2, 0, 2}, {-1, 0, 1}}
	sobelY = [3][3]float64{{-1, -2, -1}, {0, 0, 0}, {1, 2, 1}}
)

// accumulateEdges computes total edge strength plus four directional sums.
// Gradient angles are folded into [0,180) and classified into 45-degree bins:
// horizontal, diagonal, vertical, anti-diagonal. All five values are
// normalized by (pixel count * 255).
func accumulateEdges(px *image.NRGBA, v types.FeatureVector) {
	var gray [SampleSize][SampleSize]float64
	for y := 0; y < SampleSize; y++ {
		for x := 0; x < SampleSize; x++ {
			c := px.NRGBAAt(x, y)
			gray[y][x] = (float64(c.R) + float64(c.G) + float64(c.B)) / 3
		}
	}

	var totalStrength float64
	var dir [4]float64

	for y := 1; y < SampleSize-1; y++ {
		for x := 1; x < SampleSize-1; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					p := gray[y+ky][x+kx]
					gx += p * sobelX[ky+1][kx+1]
					gy += p * sobelY[ky+1][kx+1]
				}
			}

			mag := math.Sqrt(gx*gx + gy*gy)
			if mag == 0 {
				continue
			}

			angle := math.Atan2(gy, gx) * 180 / math.Pi
			if angle < 0 {
				angle += 180
			}
			if angle >= 180 {
				angle -= 180
			}
			bin := int(angle / 45)
			if bin > 3 {
				bin = 3
			}

			totalStrength += mag
			dir[bin] += mag
		}
	}

	norm := float64(SampleSize*SampleSize) * 255
	v[OffsetEdges] = totalStrength / norm
	for i := 0; i < 4; i++ {
		v[OffsetEdges+1+i] = dir[i] / norm
	}
}
