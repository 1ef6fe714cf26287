package tags

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/NanamiAkari/attire-ai-explorer/logging"
)

// Tagger is the external AI tagging collaborator: given an image it returns
// the garment's attribute labels. Its internals are opaque to the engine.
type Tagger interface {
	Tag(ctx context.Context, imageData []byte) (GarmentTags, error)
}

// TaggerError is a failed call to the tagging service.
type TaggerError struct {
	StatusCode int
	Message    string
}

func (e *TaggerError) Error() string {
	return fmt.Sprintf("tagger error (status=%d): %s", e.StatusCode, e.Message)
}

// ClientConfig configures the HTTP tagging client.
type ClientConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout: 30 * time.Second,
	}
}

// Client calls an HTTP tagging endpoint with a base64-encoded image and
// decodes the thirteen-attribute payload from the response.
type Client struct {
	cfg    ClientConfig
	client *http.Client
}

// NewClient creates a tagging client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClientConfig().Timeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type tagRequest struct {
	ImageBase64 string `json:"image_base64"`
}

type tagResponse struct {
	Tags GarmentTags `json:"tags"`
}

// Tag sends the image to the tagging endpoint and returns its normalized
// label set.
func (c *Client) Tag(ctx context.Context, imageData []byte) (GarmentTags, error) {
	payload, err := json.Marshal(tagRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(imageData),
	})
	if err != nil {
		return GarmentTags{}, fmt.Errorf("encode tag request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return GarmentTags{}, fmt.Errorf("build tag request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return GarmentTags{}, fmt.Errorf("call tagger: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return GarmentTags{}, fmt.Errorf("read tagger response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		logging.LogError("tagger returned status %d: %s", resp.StatusCode, string(body))
		return GarmentTags{}, &TaggerError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	var decoded tagResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return GarmentTags{}, fmt.Errorf("decode tagger response: %v", err)
	}

	return decoded.Tags.Normalize(), nil
}
