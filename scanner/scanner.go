// Package scanner walks a folder of garment images and indexes them:
// features are extracted for every decodable image and stored in the garment
// database, optionally together with attribute tags from the tagging
// collaborator. Indexing runs on a bounded worker pool; the sequential
// constraint applies only to batch matching, not to building the index.
package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/NanamiAkari/attire-ai-explorer/database"
	"github.com/NanamiAkari/attire-ai-explorer/feature"
	"github.com/NanamiAkari/attire-ai-explorer/logging"
	"github.com/NanamiAkari/attire-ai-explorer/tags"
	"github.com/NanamiAkari/attire-ai-explorer/types"
)

// ScanOptions defines the options for an indexing run
type ScanOptions struct {
	FolderPath   string
	SourcePrefix string
	ForceRewrite bool
	DebugMode    bool
	MaxWorkers   int
	Tagger       tags.Tagger // nil disables tagging during indexing
}

// ProcessImageResult holds the result of indexing one image
type ProcessImageResult struct {
	Path    string
	Success bool
	Tagged  bool
	Error   error
}

// ScanAndStoreFolder walks a folder and stores garment records in the database
func ScanAndStoreFolder(ctx context.Context, db *sql.DB, options ScanOptions) error {
	if options.MaxWorkers < 1 {
		options.MaxWorkers = 1
	}

	var wg sync.WaitGroup
	resultsChan := make(chan ProcessImageResult, 100)
	semaphore := make(chan struct{}, options.MaxWorkers)

	totalFiles := countImageFiles(options.FolderPath)
	fmt.Printf("Starting garment indexing...\nTotal image files to process: %d\n", totalFiles)
	fmt.Printf("Force rewrite mode: %v\n", options.ForceRewrite)
	if options.SourcePrefix != "" {
		fmt.Printf("Source prefix: %s\n", options.SourcePrefix)
	}

	tracker := newProgressTracker(totalFiles)
	trackerDone := make(chan struct{})
	go func() {
		tracker.processResults(resultsChan)
		close(trackerDone)
	}()

	startTime := time.Now()
	loader := feature.NewLoader()

	err := filepath.Walk(options.FolderPath, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || info.IsDir() {
			if walkErr != nil && options.DebugMode {
				logging.LogError("Error accessing path %s: %v", path, walkErr)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !loader.Registry().CanLoad(path) {
			return nil
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(p string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			resultsChan <- indexImage(ctx, db, loader, p, options)
		}(path)

		return nil
	})

	wg.Wait()
	close(resultsChan)
	<-trackerDone

	tracker.printCompletion(startTime)
	return err
}

// countImageFiles counts the loadable images under the folder for progress
// reporting.
func countImageFiles(folderPath string) int {
	registry := feature.NewDecoderRegistry()
	total := 0
	filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if registry.CanLoad(path) {
			total++
		}
		return nil
	})
	return total
}

// indexImage extracts features (and optionally tags) for one image and
// stores the record.
func indexImage(ctx context.Context, db *sql.DB, loader *feature.Loader, path string, options ScanOptions) ProcessImageResult {
	result := ProcessImageResult{Path: path}

	if !options.ForceRewrite {
		exists, err := database.CheckGarmentExists(db, path, options.SourcePrefix)
		if err != nil {
			result.Error = err
			return result
		}
		if exists {
			result.Success = true
			return result
		}
	}

	img, err := loader.Load(ctx, path)
	if err != nil {
		result.Error = err
		return result
	}

	rec := types.GarmentRecord{
		ID:           uuid.NewString(),
		Path:         path,
		ImageURL:     path,
		SourcePrefix: options.SourcePrefix,
		Width:        img.Bounds().Dx(),
		Height:       img.Bounds().Dy(),
		Features:     feature.Extract(img),
		IndexedAt:    time.Now(),
	}

	if options.Tagger != nil {
		if tagsJSON, err := tagImage(ctx, options.Tagger, path); err != nil {
			// Tagging failure is not fatal for indexing; the record is still
			// searchable by vector similarity.
			logging.LogWarning("tagging failed for %s: %v", path, err)
		} else {
			rec.TagsJSON = tagsJSON
			result.Tagged = true
		}
	}

	if err := database.StoreGarment(db, rec, options.ForceRewrite); err != nil {
		result.Error = err
		return result
	}

	result.Success = true
	return result
}

// tagImage calls the tagging collaborator and serializes its label set.
func tagImage(ctx context.Context, tagger tags.Tagger, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image for tagging: %v", err)
	}

	labels, err := tagger.Tag(ctx, data)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("encode tags: %v", err)
	}
	return string(raw), nil
}

// DecodeRecordTags parses the stored tag payload of an index record.
func DecodeRecordTags(rec types.GarmentRecord) (*tags.GarmentTags, error) {
	if rec.TagsJSON == "" {
		return nil, nil
	}
	var t tags.GarmentTags
	if err := json.Unmarshal([]byte(rec.TagsJSON), &t); err != nil {
		return nil, fmt.Errorf("decode tags for %s: %v", rec.ID, err)
	}
	return &t, nil
}
