// Package similarity scores pairs of feature vectors and pairs of garment
// attribute tag sets. The vector pipeline is a weighted cosine similarity
// adjusted by spatial and hue consistency terms and a set of staged,
// empirically tuned penalties. The constants are load-bearing: threshold
// filtering downstream depends on this exact output distribution, so they
// must not be re-derived or smoothed.
package similarity

import (
	"math"

	"github.com/NanamiAkari/attire-ai-explorer/feature"
	"github.com/NanamiAkari/attire-ai-explorer/logging"
	"github.com/NanamiAkari/attire-ai-explorer/types"
)

// dimensionWeights holds the per-dimension weight aligned to the feature
// layout in package feature. Indexes beyond the table weigh 1.0.
var dimensionWeights = buildWeights()

func buildWeights() []float64 {
	w := make([]float64, feature.VectorDim)

	for i := feature.OffsetRGB; i < feature.OffsetHue; i++ {
		w[i] = 1.2
	}
	for i := feature.OffsetHue; i < feature.OffsetSat; i++ {
		w[i] = 2.0
	}
	for i := feature.OffsetSat; i < feature.OffsetVal; i++ {
		w[i] = 1.8
	}
	for i := feature.OffsetVal; i < feature.OffsetBlocks; i++ {
		w[i] = 1.5
	}
	for i := feature.OffsetBlocks; i < feature.OffsetGlobals; i++ {
		w[i] = 2.2
	}

	globals := []float64{1.8, 2.0, 1.5, 1.5, 1.5}
	for i, g := range globals {
		w[feature.OffsetGlobals+i] = g
	}

	edges := []float64{2.2, 1.8, 1.8, 1.8, 1.8}
	for i, e := range edges {
		w[feature.OffsetEdges+i] = e
	}

	return w
}

func weightAt(i int) float64 {
	if i < len(dimensionWeights) {
		return dimensionWeights[i]
	}
	return 1.0
}

// at reads a vector dimension, treating anything past the end as zero so the
// consistency terms tolerate legacy short vectors.
func at(v types.FeatureVector, i int) float64 {
	if i < len(v) {
		return v[i]
	}
	return 0
}

// Score computes a bounded similarity in [0,1] between two feature vectors.
// Mismatched lengths score 0 rather than failing: callers run this inside
// batch loops that must not abort on one bad pair.
func Score(a, b types.FeatureVector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		logging.LogWarning("feature vector dimension mismatch: %d vs %d", len(a), len(b))
		return 0
	}

	var dot, normA, normB float64
	var weightedDiff, totalWeight, maxDiff float64

	for i := range a {
		w := weightAt(i)
		dot += w * a[i] * b[i]
		normA += w * a[i] * a[i]
		normB += w * b[i] * b[i]

		d := math.Abs(a[i] - b[i])
		weightedDiff += w * d
		totalWeight += w
		if d > maxDiff {
			maxDiff = d
		}
	}

	// Byte-identical vectors are maximally similar by definition; the staged
	// pipeline below would otherwise damp them to 0.9.
	if maxDiff == 0 {
		return 1
	}

	var cosine float64
	if normA > 0 && normB > 0 {
		cosine = dot / (math.Sqrt(normA) * math.Sqrt(normB))
	}

	avgDiff := weightedDiff / totalWeight
	block := blockConsistency(a, b)
	hue := hueConsistency(a, b)

	raw := 0.4*cosine + 0.25*block + 0.25*hue + 0.1*(1-avgDiff)
	if raw < 0 {
		raw = 0
	}

	s := math.Pow(raw, 0.7)

	// Stepped penalty on the single worst dimension.
	switch {
	case maxDiff > 0.8:
		s *= 0.3
	case maxDiff > 0.6:
		s *= 0.5
	case maxDiff > 0.4:
		s *= 0.7
	case maxDiff > 0.3:
		s *= 0.85
	}

	// Suppress the low end so weak matches fall below typical thresholds.
	if s < 0.2 {
		s *= 0.5
	} else if s < 0.4 {
		s *= 0.8
	}

	s *= 0.9

	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// blockConsistency measures agreement of the 3x3 spatial block features.
// Color distance and texture distance are blended 0.7/0.3 per block, mapped
// through exp(-5d) and averaged.
func blockConsistency(a, b types.FeatureVector) float64 {
	var sum float64
	for blk := 0; blk < 9; blk++ {
		off := feature.OffsetBlocks + blk*4

		var colorDist float64
		for c := 0; c < 3; c++ {
			d := at(a, off+c) - at(b, off+c)
			colorDist += d * d
		}
		colorDist = math.Sqrt(colorDist)
		texDist := math.Abs(at(a, off+3) - at(b, off+3))

		dist := 0.7*colorDist + 0.3*texDist
		sum += math.Exp(-dist * 5)
	}
	return sum / 9
}

// hueConsistency measures agreement of the 18 hue histogram bins.
func hueConsistency(a, b types.FeatureVector) float64 {
	var sum float64
	for i := 0; i < 18; i++ {
		d := math.Abs(at(a, feature.OffsetHue+i) - at(b, feature.OffsetHue+i))
		sum += math.Exp(-d * 8)
	}
	return sum / 18
}

// CombinedScore blends vector similarity with tag-overlap similarity into the
// single ranking score used when tag re-ranking is active.
func CombinedScore(vectorSim, tagSim float64) float64 {
	return 0.6*vectorSim + 0.4*(tagSim/100)
}
