package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/termhelper-rag/pkg/types"
)

const (
	// DefaultDimension is the contract dimension of the default embedder.
	DefaultDimension = 768

	// DefaultBaseURL is where the local embedding process listens.
	DefaultBaseURL = "http://127.0.0.1:8765"

	// RequestTimeout bounds each embedding HTTP call.
	RequestTimeout = 30 * time.Second

	// padValue fills short responses and replaces non-finite components.
	padValue = 0.1

	// defaultCacheSize bounds the LRU of embeddings by content hash.
	defaultCacheSize = 10000
)

// Starter launches the external embedding process. It is supplied by the
// collaborator owning process management; the client invokes it at most once,
// between the first failed attempt and the retry.
type Starter func(ctx context.Context) error

// Client calls the out-of-process embedder over HTTP JSON and normalizes its
// responses to a fixed dimension.
type Client struct {
	baseURL    string
	dimension  int
	httpClient *http.Client
	starter    Starter
	startOnce  sync.Once
	cache      *lru.Cache[string, []float32]
}

// Config configures a Client. Zero values select the defaults.
type Config struct {
	BaseURL   string
	Dimension int
	Timeout   time.Duration
	CacheSize int
	Starter   Starter
}

// NewClient creates an embedding client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.Dimension < 0 {
		return nil, fmt.Errorf("%w: dimension %d", types.ErrInvalidDimension, cfg.Dimension)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = RequestTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}

	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		starter:    cfg.Starter,
		cache:      cache,
	}, nil
}

// Dimension returns the fixed output dimension.
func (c *Client) Dimension() int {
	return c.dimension
}

// Embed returns the embedding of text, padded or truncated to the client
// dimension with non-finite components replaced. The first failed call may
// start the external process via the configured Starter and is retried once;
// failure of the retried call propagates as types.ErrEmbedderUnavailable.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := contentHash(text)
	if vec, ok := c.cache.Get(hash); ok {
		return copyVector(vec), nil
	}

	vec, err := c.callEmbed(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if c.starter != nil {
			c.startOnce.Do(func() {
				if startErr := c.starter(ctx); startErr == nil {
					c.awaitHealthy(ctx)
				}
			})
		}
		vec, err = c.callEmbed(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", types.ErrEmbedderUnavailable, err)
		}
	}

	vec = Normalize(vec, c.dimension)
	c.cache.Add(hash, copyVector(vec))
	return vec, nil
}

// Health probes GET /health and returns nil when the embedder is ready.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedder health status %d", resp.StatusCode)
	}
	return nil
}

// CacheLen returns the number of cached embeddings.
func (c *Client) CacheLen() int {
	return c.cache.Len()
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// callEmbed performs one POST /embed round trip.
func (c *Client) callEmbed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Embedding == nil {
		return nil, fmt.Errorf("response carries no embedding")
	}

	// Converting through float64 keeps oversized components as +-Inf, which
	// Normalize replaces, instead of failing the whole response.
	vec := make([]float32, len(apiResp.Embedding))
	for i, v := range apiResp.Embedding {
		vec[i] = float32(v)
	}

	return vec, nil
}

// awaitHealthy polls /health briefly after starting the external process.
func (c *Client) awaitHealthy(ctx context.Context) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := c.Health(ctx); err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// Normalize forces vec to dimension dim: shorter vectors are right-padded,
// longer ones truncated, and non-finite components replaced with a small
// positive constant. The result is always a fresh slice of length dim.
func Normalize(vec []float32, dim int) []float32 {
	out := make([]float32, dim)
	for i := range out {
		if i < len(vec) {
			out[i] = vec[i]
		} else {
			out[i] = padValue
		}
	}
	for i, v := range out {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			out[i] = padValue
		}
	}
	return out
}

// contentHash computes the SHA-256 cache key for text.
func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func copyVector(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
