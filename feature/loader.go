package feature

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"github.com/NanamiAkari/attire-ai-explorer/logging"
)

// DefaultDecodeTimeout bounds how long a single image fetch+decode may take.
const DefaultDecodeTimeout = 5 * time.Second

// DecodeError indicates an image could not be rasterized. It is fatal for
// that single image but never for a whole batch.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decoder turns raw bytes into an image.
type Decoder func(r io.Reader) (image.Image, error)

// DecoderRegistry maps lowercased file extensions to decoders, with a
// sniffing fallback for sources whose extension is unknown.
type DecoderRegistry struct {
	decoders map[string]Decoder
	fallback Decoder
	mutex    sync.RWMutex
}

// NewDecoderRegistry creates a registry with all supported formats registered.
func NewDecoderRegistry() *DecoderRegistry {
	r := &DecoderRegistry{
		decoders: make(map[string]Decoder),
		fallback: func(rd io.Reader) (image.Image, error) {
			img, _, err := image.Decode(rd)
			return img, err
		},
	}

	r.Register(".jpg", jpeg.Decode)
	r.Register(".jpeg", jpeg.Decode)
	r.Register(".png", png.Decode)
	r.Register(".gif", gif.Decode)
	r.Register(".bmp", bmp.Decode)
	r.Register(".webp", webp.Decode)

	tiffDecode := func(rd io.Reader) (image.Image, error) { return tiff.Decode(rd) }
	r.Register(".tif", tiffDecode)
	r.Register(".tiff", tiffDecode)

	return r
}

// Register adds a decoder for a file extension.
func (r *DecoderRegistry) Register(ext string, d Decoder) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.decoders[strings.ToLower(ext)] = d
}

// Get returns the decoder for the given source path or URL.
func (r *DecoderRegistry) Get(source string) Decoder {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	ext := strings.ToLower(filepath.Ext(source))
	if i := strings.IndexAny(ext, "?#"); i >= 0 {
		ext = ext[:i]
	}
	if d, ok := r.decoders[ext]; ok {
		return d
	}
	return r.fallback
}

// CanLoad reports whether the extension of the given source is registered.
func (r *DecoderRegistry) CanLoad(source string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, ok := r.decoders[strings.ToLower(filepath.Ext(source))]
	return ok
}

// Loader reads images from local paths or HTTP URLs and decodes them within a
// bounded timeout.
type Loader struct {
	registry *DecoderRegistry
	client   *http.Client
	timeout  time.Duration
}

// NewLoader creates a loader with the default registry and timeout.
func NewLoader() *Loader {
	return &Loader{
		registry: NewDecoderRegistry(),
		client:   &http.Client{},
		timeout:  DefaultDecodeTimeout,
	}
}

// Registry exposes the loader's decoder registry.
func (l *Loader) Registry() *DecoderRegistry {
	return l.registry
}

// Load fetches and decodes an image from a local path or an http(s) URL.
func (l *Loader) Load(ctx context.Context, source string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	data, err := l.fetch(ctx, source)
	if err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}

	img, err := l.decode(ctx, source, data)
	if err != nil {
		logging.LogError("failed to decode image %s: %v", source, err)
		return nil, &DecodeError{Source: source, Err: err}
	}
	return img, nil
}

func (l *Loader) fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	return os.ReadFile(source)
}

// decode runs the decoder in a goroutine so a pathological input cannot hold
// the caller past the deadline.
func (l *Loader) decode(ctx context.Context, source string, data []byte) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		img image.Image
		err error
	}
	ch := make(chan result, 1)

	go func() {
		img, err := l.registry.Get(source)(bytes.NewReader(data))
		ch <- result{img, err}
	}()

	select {
	case res := <-ch:
		return res.img, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
