package matcher

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NanamiAkari/attire-ai-explorer/cache"
	"github.com/NanamiAkari/attire-ai-explorer/tags"
)

func writePNG(t *testing.T, dir, name string, c color.NRGBA) string {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

var (
	red  = color.NRGBA{R: 255, A: 255}
	blue = color.NRGBA{B: 255, A: 255}
)

func TestMatch_EmptyCandidates(t *testing.T) {
	dir := t.TempDir()
	query := writePNG(t, dir, "query.png", red)

	m := New(nil, nil)
	results, err := m.Match(context.Background(), query, nil, Options{Threshold: 0.5}, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMatch_SelfCandidateScoresOne(t *testing.T) {
	dir := t.TempDir()
	query := writePNG(t, dir, "query.png", red)

	m := New(nil, nil)
	results, err := m.Match(context.Background(), query,
		[]Candidate{{ID: "self", ImageURL: query}},
		Options{Threshold: 1.0}, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "self", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestMatch_ThresholdFiltersDissimilar(t *testing.T) {
	dir := t.TempDir()
	query := writePNG(t, dir, "query.png", red)
	redPath := writePNG(t, dir, "red.png", red)
	bluePath := writePNG(t, dir, "blue.png", blue)

	m := New(nil, nil)
	results, err := m.Match(context.Background(), query,
		[]Candidate{
			{ID: "red", ImageURL: redPath},
			{ID: "blue", ImageURL: bluePath},
		},
		Options{Threshold: 0.5}, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "red", results[0].ID)
	assert.Greater(t, results[0].Similarity, 0.9)
}

func TestMatch_BadCandidateScoresZeroWithoutAborting(t *testing.T) {
	dir := t.TempDir()
	query := writePNG(t, dir, "query.png", red)
	redPath := writePNG(t, dir, "red.png", red)

	m := New(nil, nil)
	results, err := m.Match(context.Background(), query,
		[]Candidate{
			{ID: "missing", ImageURL: filepath.Join(dir, "nope.png")},
			{ID: "red", ImageURL: redPath},
		},
		Options{Threshold: 0}, nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "red", results[0].ID)
	assert.Equal(t, "missing", results[1].ID)
	assert.Equal(t, 0.0, results[1].Similarity)
}

func TestMatch_QueryFailureAborts(t *testing.T) {
	dir := t.TempDir()
	redPath := writePNG(t, dir, "red.png", red)

	m := New(nil, nil)
	_, err := m.Match(context.Background(), filepath.Join(dir, "nope.png"),
		[]Candidate{{ID: "red", ImageURL: redPath}},
		Options{}, nil)
	require.Error(t, err)
}

func TestMatch_ProgressIsMonotonicAndComplete(t *testing.T) {
	dir := t.TempDir()
	query := writePNG(t, dir, "query.png", red)
	candidates := []Candidate{
		{ID: "a", ImageURL: writePNG(t, dir, "a.png", red)},
		{ID: "b", ImageURL: writePNG(t, dir, "b.png", blue)},
		{ID: "c", ImageURL: filepath.Join(dir, "missing.png")},
	}

	var calls []int
	m := New(nil, nil)
	_, err := m.Match(context.Background(), query, candidates, Options{}, func(current, total int) {
		assert.Equal(t, 3, total)
		calls = append(calls, current)
	})
	require.NoError(t, err)

	// One callback per candidate, including the failed one, strictly
	// increasing.
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestMatch_CancelledContextReturnsPartial(t *testing.T) {
	dir := t.TempDir()
	query := writePNG(t, dir, "query.png", red)
	candidates := []Candidate{
		{ID: "a", ImageURL: writePNG(t, dir, "a.png", red)},
	}

	m := New(nil, nil)
	queryVec, err := m.ExtractQuery(context.Background(), query)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := m.MatchVector(ctx, queryVec, candidates, Options{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestMatch_UsesCachedFeatures(t *testing.T) {
	dir := t.TempDir()
	query := writePNG(t, dir, "query.png", red)
	redPath := writePNG(t, dir, "red.png", red)

	c := cache.New(cache.NewMemoryStorage())
	m := New(nil, c)

	candidates := []Candidate{{ID: "red", ImageURL: redPath}}
	_, err := m.Match(context.Background(), query, candidates, Options{}, nil)
	require.NoError(t, err)

	// Remove the candidate file; the second match must be served from cache.
	require.NoError(t, os.Remove(redPath))

	results, err := m.Match(context.Background(), query, candidates, Options{Threshold: 0.5}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestMatch_PrepopulatedFeaturesSkipLoading(t *testing.T) {
	dir := t.TempDir()
	query := writePNG(t, dir, "query.png", red)

	m := New(nil, nil)
	queryVec, err := m.ExtractQuery(context.Background(), query)
	require.NoError(t, err)

	// Candidate with stored features and a dead URL: must still score.
	results, err := m.Match(context.Background(), query,
		[]Candidate{{ID: "stored", ImageURL: "file-long-gone.png", Features: queryVec}},
		Options{Threshold: 0.9}, nil)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestMatchWithTags_CombinedRanking(t *testing.T) {
	dir := t.TempDir()
	query := writePNG(t, dir, "query.png", red)
	redPath := writePNG(t, dir, "red.png", red)
	bluePath := writePNG(t, dir, "blue.png", blue)

	queryTags := tags.GarmentTags{Style: "casual", Category: "dress", Color: "red"}
	matchingTags := tags.GarmentTags{Style: "casual", Category: "dress", Color: "red"}
	otherTags := tags.GarmentTags{Style: "formal", Category: "suit", Color: "blue"}

	m := New(nil, nil)
	results, err := m.MatchWithTags(context.Background(), query, queryTags,
		[]Candidate{
			{ID: "red", ImageURL: redPath, Tags: &matchingTags},
			{ID: "blue", ImageURL: bluePath, Tags: &otherTags},
			{ID: "untagged", ImageURL: redPath},
		},
		Options{Threshold: 0}, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Identical pixels and identical tags: maximal combined score.
	assert.Equal(t, "red", results[0].ID)
	assert.InDelta(t, 1.0, results[0].CombinedScore, 1e-9)
	assert.InDelta(t, 100.0, results[0].TagSimilarity, 1e-9)

	// Same pixels but no tags ranks below the fully tagged twin.
	assert.Equal(t, "untagged", results[1].ID)
	assert.InDelta(t, 0.6, results[1].CombinedScore, 1e-9)

	// Dissimilar pixels and tags come last.
	assert.Equal(t, "blue", results[2].ID)
	assert.Less(t, results[2].CombinedScore, 0.5)

	// Threshold filtering runs on the combined score.
	filtered, err := m.MatchWithTags(context.Background(), query, queryTags,
		[]Candidate{
			{ID: "red", ImageURL: redPath, Tags: &matchingTags},
			{ID: "blue", ImageURL: bluePath, Tags: &otherTags},
		},
		Options{Threshold: 0.5}, nil)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "red", filtered[0].ID)
}
