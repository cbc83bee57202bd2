package openvisus

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/oceanvis/llc4320-gateway/internal/domain"
	"github.com/oceanvis/llc4320-gateway/internal/observability"
)

// Handle is an open dataset: the field plus the origin metadata needed to
// validate and shape box queries.
type Handle struct {
	Field    domain.Field
	Meta     DatasetMeta
	OpenedAt time.Time
}

// metadataReader is the slice of Client the cache needs.
type metadataReader interface {
	ReadDataset(ctx context.Context, datasetPath string) (DatasetMeta, error)
}

// DatasetCache keeps one handle per field for the process lifetime. Handles
// are never evicted or refreshed: LLC4320 datasets are immutable once
// published, so the metadata cannot go stale.
type DatasetCache struct {
	client  metadataReader
	clock   clockwork.Clock
	metrics *observability.Metrics

	mu       sync.Mutex
	handles  map[string]*Handle
	lastUsed map[string]time.Time
}

// NewDatasetCache creates an empty cache in front of the origin client.
func NewDatasetCache(client metadataReader, clock clockwork.Clock, metrics *observability.Metrics) *DatasetCache {
	return &DatasetCache{
		client:   client,
		clock:    clock,
		metrics:  metrics,
		handles:  make(map[string]*Handle),
		lastUsed: make(map[string]time.Time),
	}
}

// Get returns the cached handle for a field, opening it on first use.
// Concurrent callers for an uncached field serialize on the cache lock, so
// the origin sees at most one readdataset per field.
func (c *DatasetCache) Get(ctx context.Context, field domain.Field) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, ok := c.handles[field.Name]; ok {
		c.metrics.DatasetCache.WithLabelValues("hit").Inc()
		c.lastUsed[field.Name] = c.clock.Now()
		return h, nil
	}
	c.metrics.DatasetCache.WithLabelValues("miss").Inc()

	meta, err := c.client.ReadDataset(ctx, field.DatasetPath)
	if err != nil {
		return nil, err
	}

	h := &Handle{Field: field, Meta: meta, OpenedAt: c.clock.Now()}
	c.handles[field.Name] = h
	c.lastUsed[field.Name] = h.OpenedAt
	c.metrics.DatasetsOpen.Set(float64(len(c.handles)))
	return h, nil
}

// LastUsed reports when a field's handle was last requested.
func (c *DatasetCache) LastUsed(fieldName string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.lastUsed[fieldName]
	return t, ok
}
