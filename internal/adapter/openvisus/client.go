// Package openvisus talks to an OpenVisus origin over its HTTP query
// interface: readdataset for metadata and boxquery for raw float32 blocks.
package openvisus

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oceanvis/llc4320-gateway/internal/domain"
	"github.com/oceanvis/llc4320-gateway/internal/observability"
)

// DatasetMeta describes one IDX dataset as reported by the origin.
type DatasetMeta struct {
	Name      string   `json:"name"`
	LogicBox  LogicBox `json:"logic_box"`
	Timesteps int      `json:"timesteps"`
	DType     string   `json:"dtype"`
}

// LogicBox is the dataset's index-space extent, P1 inclusive, P2 exclusive.
type LogicBox struct {
	P1 [3]int `json:"p1"`
	P2 [3]int `json:"p2"`
}

// Dims returns the x/y/z extents of the box.
func (b LogicBox) Dims() [3]int {
	return [3]int{b.P2[0] - b.P1[0], b.P2[1] - b.P1[1], b.P2[2] - b.P1[2]}
}

// BoxQueryRequest selects a block of one timestep. Axis ranges are half-open
// index intervals in full-resolution coordinates.
type BoxQueryRequest struct {
	Dataset string
	Time    int
	X       [2]int
	Y       [2]int
	Z       [2]int
	Quality int
}

// Client queries an OpenVisus origin.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an origin client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// ReadDataset fetches dataset metadata for an IDX path.
func (c *Client) ReadDataset(ctx context.Context, datasetPath string) (DatasetMeta, error) {
	params := url.Values{
		"action":  {"readdataset"},
		"dataset": {datasetPath},
		"format":  {"json"},
	}

	body, err := c.doRequest(ctx, params, "readdataset")
	if err != nil {
		return DatasetMeta{}, err
	}

	var meta DatasetMeta
	if err := json.Unmarshal(body.bytes, &meta); err != nil {
		return DatasetMeta{}, fmt.Errorf("decode dataset metadata: %w", err)
	}
	if meta.Timesteps <= 0 {
		return DatasetMeta{}, fmt.Errorf("origin reported %d timesteps for %s", meta.Timesteps, datasetPath)
	}
	return meta, nil
}

// BoxQuery reads one block of raw little-endian float32 data. The origin
// reports the delivered shape in the X-Shape header as "z,y,x"; with negative
// quality it is coarser than the requested box.
func (c *Client) BoxQuery(ctx context.Context, req BoxQueryRequest) (domain.Grid, error) {
	params := url.Values{
		"action":      {"boxquery"},
		"dataset":     {req.Dataset},
		"time":        {strconv.Itoa(req.Time)},
		"box":         {formatBox(req)},
		"quality":     {strconv.Itoa(req.Quality)},
		"compression": {"raw"},
	}

	body, err := c.doRequest(ctx, params, "boxquery")
	if err != nil {
		return domain.Grid{}, err
	}

	return decodeGrid(body.bytes, body.shape)
}

func formatBox(req BoxQueryRequest) string {
	return fmt.Sprintf("%d %d %d %d %d %d",
		req.X[0], req.X[1], req.Y[0], req.Y[1], req.Z[0], req.Z[1])
}

type originResponse struct {
	bytes []byte
	shape []int
}

func (c *Client) doRequest(ctx context.Context, params url.Values, action string) (originResponse, error) {
	fullURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return originResponse{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.UpstreamErrors.WithLabelValues(action).Inc()
		c.logger.Warn("origin request failed", "action", action, "error", err)
		return originResponse{}, fmt.Errorf("%s request: %w", action, err)
	}
	defer resp.Body.Close()
	c.metrics.UpstreamDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		c.metrics.UpstreamErrors.WithLabelValues(action).Inc()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		c.logger.Warn("origin returned error status", "action", action, "status", resp.StatusCode)
		return originResponse{}, fmt.Errorf("openvisus origin: status %d: %s", resp.StatusCode, msg)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.UpstreamErrors.WithLabelValues(action).Inc()
		return originResponse{}, fmt.Errorf("read %s response: %w", action, err)
	}

	shape, err := parseShapeHeader(resp.Header.Get("X-Shape"))
	if err != nil {
		return originResponse{}, err
	}
	return originResponse{bytes: body, shape: shape}, nil
}

// parseShapeHeader parses "z,y,x" (or "y,x"). Metadata responses carry no
// shape header, which is fine; the JSON body is self-describing.
func parseShapeHeader(h string) ([]int, error) {
	if h == "" {
		return nil, nil
	}
	parts := strings.Split(h, ",")
	shape := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid X-Shape header %q", h)
		}
		shape[i] = n
	}
	return shape, nil
}

func decodeGrid(raw []byte, shape []int) (domain.Grid, error) {
	if shape == nil {
		return domain.Grid{}, fmt.Errorf("origin response missing X-Shape header")
	}
	if len(raw)%4 != 0 {
		return domain.Grid{}, fmt.Errorf("origin returned %d bytes, not a float32 array", len(raw))
	}

	values := make([]float32, len(raw)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	g := domain.Grid{Values: values, Shape: shape}
	if g.Size() != len(values) {
		return domain.Grid{}, fmt.Errorf("origin shape %v disagrees with %d values", shape, len(values))
	}
	return g, nil
}
