// Package matcher orchestrates scoring a query image against a candidate
// set. Candidates are processed sequentially so progress callbacks reflect
// true completion counts; one bad candidate never aborts a batch.
package matcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/NanamiAkari/attire-ai-explorer/cache"
	"github.com/NanamiAkari/attire-ai-explorer/feature"
	"github.com/NanamiAkari/attire-ai-explorer/logging"
	"github.com/NanamiAkari/attire-ai-explorer/similarity"
	"github.com/NanamiAkari/attire-ai-explorer/tags"
	"github.com/NanamiAkari/attire-ai-explorer/types"
)

// Candidate is one image to score against the query. Features may be
// pre-populated (for example from the garment index); when nil the matcher
// extracts them, consulting the feature cache first.
type Candidate struct {
	ID       string
	ImageURL string
	Features types.FeatureVector
	Tags     *tags.GarmentTags
}

// ProgressFunc receives the count of completed candidates after each one.
// It must be side-effect free from the matcher's perspective; user-facing
// notifications belong to the caller.
type ProgressFunc func(current, total int)

// Options controls filtering of a batch match.
type Options struct {
	// Threshold filters results below this score (vector similarity, or
	// combined score when tag re-ranking is active).
	Threshold float64
}

// Matcher scores a query image against candidate sets.
type Matcher struct {
	loader *feature.Loader
	cache  *cache.FeatureCache
}

// New creates a matcher. A nil cache disables feature caching.
func New(loader *feature.Loader, featureCache *cache.FeatureCache) *Matcher {
	if loader == nil {
		loader = feature.NewLoader()
	}
	return &Matcher{loader: loader, cache: featureCache}
}

// Match scores every candidate against the query image, reports progress,
// filters by threshold and returns results sorted by descending similarity.
// A failure on the query image aborts the whole match; per-candidate
// failures score 0 and the batch continues. Cancellation is honored between
// candidates and returns the results scored so far alongside the error.
func (m *Matcher) Match(ctx context.Context, querySource string, candidates []Candidate, opts Options, onProgress ProgressFunc) ([]types.SimilarityResult, error) {
	query, err := m.ExtractQuery(ctx, querySource)
	if err != nil {
		return nil, err
	}
	return m.MatchVector(ctx, query, candidates, opts, onProgress)
}

// ExtractQuery loads and extracts features for the query image.
func (m *Matcher) ExtractQuery(ctx context.Context, querySource string) (types.FeatureVector, error) {
	img, err := m.loader.Load(ctx, querySource)
	if err != nil {
		return nil, fmt.Errorf("query image: %w", err)
	}
	return feature.Extract(img), nil
}

// MatchVector is Match for callers that already hold the query's features.
func (m *Matcher) MatchVector(ctx context.Context, query types.FeatureVector, candidates []Candidate, opts Options, onProgress ProgressFunc) ([]types.SimilarityResult, error) {
	results := make([]types.SimilarityResult, 0, len(candidates))
	total := len(candidates)

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return finalize(results, opts.Threshold), err
		}

		sim := 0.0
		vec, err := m.candidateVector(ctx, c)
		if err != nil {
			logging.LogWarning("candidate %s failed, scoring 0: %v", c.ID, err)
		} else {
			sim = similarity.Score(query, vec)
		}

		results = append(results, types.SimilarityResult{
			ID:         c.ID,
			ImageURL:   c.ImageURL,
			Similarity: sim,
		})

		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	return finalize(results, opts.Threshold), nil
}

// MatchWithTags runs a vector match and re-ranks by blending each
// candidate's tag-overlap score with its vector similarity. Threshold
// filtering and the final sort use the combined score.
func (m *Matcher) MatchWithTags(ctx context.Context, querySource string, queryTags tags.GarmentTags, candidates []Candidate, opts Options, onProgress ProgressFunc) ([]types.CombinedResult, error) {
	query, err := m.ExtractQuery(ctx, querySource)
	if err != nil {
		return nil, err
	}

	// Vector scoring without filtering; the combined score decides survival.
	scored, err := m.MatchVector(ctx, query, candidates, Options{}, onProgress)

	byID := make(map[string]*tags.GarmentTags, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c.Tags
	}

	combined := make([]types.CombinedResult, 0, len(scored))
	for _, r := range scored {
		var tagSim float64
		if ct := byID[r.ID]; ct != nil {
			tagSim = similarity.TagSimilarity(queryTags, *ct)
		}
		cr := types.CombinedResult{
			SimilarityResult: r,
			TagSimilarity:    tagSim,
			CombinedScore:    similarity.CombinedScore(r.Similarity, tagSim),
		}
		if cr.CombinedScore >= opts.Threshold {
			combined = append(combined, cr)
		}
	}

	sort.SliceStable(combined, func(i, j int) bool {
		if combined[i].CombinedScore != combined[j].CombinedScore {
			return combined[i].CombinedScore > combined[j].CombinedScore
		}
		return combined[i].ID < combined[j].ID
	})

	return combined, err
}

// candidateVector resolves a candidate's features: pre-populated, cached, or
// freshly extracted (and cached for next time).
func (m *Matcher) candidateVector(ctx context.Context, c Candidate) (types.FeatureVector, error) {
	if len(c.Features) > 0 {
		return c.Features, nil
	}

	if m.cache != nil {
		if vec, ok := m.cache.Get(c.ID); ok {
			return vec, nil
		}
	}

	img, err := m.loader.Load(ctx, c.ImageURL)
	if err != nil {
		return nil, err
	}
	vec := feature.Extract(img)

	if m.cache != nil {
		m.cache.Put(c.ID, c.ImageURL, vec)
	}
	return vec, nil
}

// finalize filters by threshold and sorts descending; ties break by ID so
// the order is reproducible.
func finalize(results []types.SimilarityResult, threshold float64) []types.SimilarityResult {
	kept := make([]types.SimilarityResult, 0, len(results))
	for _, r := range results {
		if r.Similarity >= threshold {
			kept = append(kept, r)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Similarity != kept[j].Similarity {
			return kept[i].Similarity > kept[j].Similarity
		}
		return kept[i].ID < kept[j].ID
	})

	return kept
}
