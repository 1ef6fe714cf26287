package types

import "time"

// FeatureVector is the fixed-length numeric summary of an image's color,
// texture and edge content. All vectors produced by the extractor have the
// same length so they stay comparable, and a vector is never mutated after
// extraction.
type FeatureVector []float64

// Clone returns an independent copy of the vector.
func (v FeatureVector) Clone() FeatureVector {
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}

// GarmentRecord holds an indexed garment image with its extracted features.
type GarmentRecord struct {
	ID           string        `json:"id"`
	Path         string        `json:"path"`
	ImageURL     string        `json:"image_url"`
	SourcePrefix string        `json:"source_prefix"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	Features     FeatureVector `json:"features"`
	TagsJSON     string        `json:"tags,omitempty"`
	IndexedAt    time.Time     `json:"indexed_at"`
}

// SimilarityResult is one scored candidate from a batch match. Transient,
// produced per search and never persisted.
type SimilarityResult struct {
	ID         string  `json:"id"`
	ImageURL   string  `json:"image_url"`
	Similarity float64 `json:"similarity"`
}

// CombinedResult extends SimilarityResult with tag-overlap scoring. The
// combined score is always derivable from its two components:
// 0.6*Similarity + 0.4*(TagSimilarity/100).
type CombinedResult struct {
	SimilarityResult
	TagSimilarity float64 `json:"tag_similarity"`
	CombinedScore float64 `json:"combined_score"`
}

// IndexStats summarizes the contents of a garment index.
type IndexStats struct {
	TotalRecords int
	TaggedCount  int
	NewestAt     time.Time
}
