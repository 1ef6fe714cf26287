package scanner

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

	"github.com/NanamiAkari/attire-ai-explorer/database"
	"github.com/NanamiAkari/attire-ai-explorer/feature"
	"github.com/NanamiAkari/attire-ai-explorer/tags"
	"github.com/NanamiAkari/attire-ai-explorer/types"
)

func writePNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			img.SetNRGBA(x, y, c)
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

// staticTagger returns the same label set for every image.
type staticTagger struct {
	labels tags.GarmentTags
	calls  int
}

func (s *staticTagger) Tag(ctx context.Context, imageData []byte) (tags.GarmentTags, error) {
	s.calls++
	return s.labels.Normalize(), nil
}

func TestScanAndStoreFolder(t *testing.T) {
	folder := t.TempDir()
	writePNG(t, filepath.Join(folder, "red.png"), color.NRGBA{R: 255, A: 255})
	writePNG(t, filepath.Join(folder, "blue.png"), color.NRGBA{B: 255, A: 255})
	require.NoError(t, os.WriteFile(filepath.Join(folder, "notes.txt"), []byte("skip me"), 0644))

	db, err := database.InitDatabase(filepath.Join(t.TempDir(), "garments.db"))
	require.NoError(t, err)
	defer db.Close()

	err = ScanAndStoreFolder(context.Background(), db, ScanOptions{
		FolderPath: folder,
		MaxWorkers: 2,
	})
	require.NoError(t, err)

	records, err := database.LoadGarments(db, "")
	require.NoError(t, err)
	require.Len(t, records, 2, "only decodable images should be indexed")

	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		assert.Len(t, rec.Features, feature.VectorDim)
		assert.Equal(t, 48, rec.Width)
		assert.Equal(t, 48, rec.Height)
		assert.Empty(t, rec.TagsJSON)
	}
}

func TestScanAndStoreFolder_WithTagger(t *testing.T) {
	folder := t.TempDir()
	writePNG(t, filepath.Join(folder, "dress.png"), color.NRGBA{R: 200, G: 30, B: 60, A: 255})

	db, err := database.InitDatabase(filepath.Join(t.TempDir(), "garments.db"))
	require.NoError(t, err)
	defer db.Close()

	tagger := &staticTagger{labels: tags.GarmentTags{Style: "casual", Color: "red"}}
	err = ScanAndStoreFolder(context.Background(), db, ScanOptions{
		FolderPath: folder,
		MaxWorkers: 1,
		Tagger:     tagger,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tagger.calls)

	records, err := database.LoadGarments(db, "")
	require.NoError(t, err)
	require.Len(t, records, 1)

	decoded, err := DecodeRecordTags(records[0])
	require.NoError(t, err)
	require.NotNil(t, decoded)
	assert.Equal(t, "casual", decoded.Style)
	assert.Equal(t, "red", decoded.Color)
	assert.Equal(t, tags.Unrecognized, decoded.Fabric)
}

func TestScanAndStoreFolder_SkipsExistingWithoutForce(t *testing.T) {
	folder := t.TempDir()
	writePNG(t, filepath.Join(folder, "red.png"), color.NRGBA{R: 255, A: 255})

	db, err := database.InitDatabase(filepath.Join(t.TempDir(), "garments.db"))
	require.NoError(t, err)
	defer db.Close()

	opts := ScanOptions{FolderPath: folder, MaxWorkers: 1}
	require.NoError(t, ScanAndStoreFolder(context.Background(), db, opts))

	records, err := database.LoadGarments(db, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	firstID := records[0].ID

	// A second run without force keeps the existing record.
	require.NoError(t, ScanAndStoreFolder(context.Background(), db, opts))
	records, err = database.LoadGarments(db, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, firstID, records[0].ID)

	// With force the record is rewritten under a fresh id.
	opts.ForceRewrite = true
	require.NoError(t, ScanAndStoreFolder(context.Background(), db, opts))
	records, err = database.LoadGarments(db, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEqual(t, firstID, records[0].ID)
}

func TestDecodeRecordTags_Empty(t *testing.T) {
	decoded, err := DecodeRecordTags(types.GarmentRecord{})
	require.NoError(t, err)
	assert.Nil(t, decoded)

	_, err = DecodeRecordTags(types.GarmentRecord{ID: "x", TagsJSON: "{broken"})
	assert.Error(t, err)
}
