package scanner

import (
	"fmt"
	"sync"
	"time"

	"github.com/NanamiAkari/attire-ai-explorer/logging"
)

// progressTracker tracks progress of an indexing run
type progressTracker struct {
	processed  int
	tagged     int
	errors     int
	totalFiles int
	mu         sync.Mutex
}

func newProgressTracker(totalFiles int) *progressTracker {
	return &progressTracker{totalFiles: totalFiles}
}

// processResults updates the tracker state as workers report results and
// repaints the progress line.
func (p *progressTracker) processResults(resultsChan chan ProcessImageResult) {
	for result := range resultsChan {
		p.mu.Lock()
		p.processed++

		if result.Success {
			if result.Tagged {
				p.tagged++
			}
			logging.LogImageIndexed(result.Path, true, "")
		} else {
			p.errors++
			if result.Error != nil {
				logging.LogImageIndexed(result.Path, false, result.Error.Error())
			}
		}

		fmt.Printf("\rProgress: %d/%d (tagged: %d, errors: %d)",
			p.processed, p.totalFiles, p.tagged, p.errors)
		p.mu.Unlock()
	}
}

// printCompletion displays statistics after the run
func (p *progressTracker) printCompletion(startTime time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(startTime)
	logging.LogInfo("Indexing completed in %v. Processed: %d, Tagged: %d, Errors: %d",
		elapsed, p.processed, p.tagged, p.errors)

	fmt.Println("\nIndexing complete.")
	fmt.Printf("Processed %d images in %v.\n", p.processed, elapsed.Round(time.Second))
	if p.tagged > 0 {
		fmt.Printf("Tagged %d images via the tagging service.\n", p.tagged)
	}
	if p.errors > 0 {
		fmt.Printf("Encountered %d errors during indexing.\n", p.errors)
		fmt.Println("Check the log file for details.")
	}
}
