// Package service orchestrates coordinate resolution, dataset handles, and
// origin box queries behind the API handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oceanvis/llc4320-gateway/internal/adapter/openvisus"
	"github.com/oceanvis/llc4320-gateway/internal/coords"
	"github.com/oceanvis/llc4320-gateway/internal/domain"
	"github.com/oceanvis/llc4320-gateway/internal/observability"
)

// BoxReader reads raw data blocks from the origin.
type BoxReader interface {
	BoxQuery(ctx context.Context, req openvisus.BoxQueryRequest) (domain.Grid, error)
}

// DatasetOpener returns cached dataset handles.
type DatasetOpener interface {
	Get(ctx context.Context, field domain.Field) (*openvisus.Handle, error)
}

// UsageRecorder publishes usage events. Recording is best effort and must
// never fail a request.
type UsageRecorder interface {
	Record(ctx context.Context, evt domain.UsageEvent)
}

// DataService serves LLC4320 metadata, slices, and derived products.
type DataService struct {
	coords   *coords.Store
	datasets DatasetOpener
	reader   BoxReader
	usage    UsageRecorder // nil when usage publishing is disabled
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New wires a DataService. Pass a nil usage recorder to disable publishing.
func New(store *coords.Store, datasets DatasetOpener, reader BoxReader, usage UsageRecorder,
	logger *slog.Logger, metrics *observability.Metrics) *DataService {
	return &DataService{
		coords:   store,
		datasets: datasets,
		reader:   reader,
		usage:    usage,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness reports ready once the coordinate grids are resident. They
// load lazily on the first data request, or eagerly via the startup warm-up.
func (s *DataService) CheckReadiness(_ context.Context) error {
	if !s.coords.Loaded() {
		return errors.New("coordinate grids not loaded yet")
	}
	return nil
}

// WarmUp loads the coordinate grids ahead of the first request.
func (s *DataService) WarmUp() error {
	return s.coords.Ensure()
}

// Dimensions is the dataset extent in grid cells.
type Dimensions struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// Metadata describes one field. Unlike the data endpoints, Field carries the
// canonical name even when the request used an alias.
type Metadata struct {
	Field           string            `json:"field"`
	Dimensions      Dimensions        `json:"dimensions"`
	TotalTimesteps  int               `json:"total_timesteps"`
	DataType        string            `json:"data_type"`
	AvailableFields []string          `json:"available_fields"`
	FieldUnits      map[string]string `json:"field_units"`
}

// Metadata returns dataset dimensions and timestep count for a field.
func (s *DataService) Metadata(ctx context.Context, fieldName string) (*Metadata, error) {
	field, err := domain.LookupField(fieldName)
	if err != nil {
		return nil, err
	}

	handle, err := s.datasets.Get(ctx, field)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", field.Name, err)
	}

	dims := handle.Meta.LogicBox.Dims()
	return &Metadata{
		Field:           field.Name,
		Dimensions:      Dimensions{X: dims[0], Y: dims[1], Z: dims[2]},
		TotalTimesteps:  handle.Meta.Timesteps,
		DataType:        handle.Meta.DType,
		AvailableFields: domain.FieldNames(),
		FieldUnits:      domain.FieldUnits(),
	}, nil
}

// Coordinates bundles the lat/lon window accompanying a data payload.
type Coordinates struct {
	Latitude  [][]float64 `json:"latitude"`
	Longitude [][]float64 `json:"longitude"`
}

// SliceResult is the JSON body for /api/data/slice.
type SliceResult struct {
	Field       string         `json:"field"`
	Timestep    int            `json:"timestep"`
	DepthLevel  int            `json:"depth_level"`
	Data        domain.Payload `json:"data"`
	Coordinates Coordinates    `json:"coordinates"`
	Shape       []int          `json:"shape"`
	LatRange    [2]float64     `json:"lat_range"`
	LonRange    [2]float64     `json:"lon_range"`
	Quality     int            `json:"quality"`
}

// Slice reads a 2-D slice at one timestep and depth level.
func (s *DataService) Slice(ctx context.Context, q domain.SliceQuery) (*SliceResult, error) {
	start := time.Now()

	field, plane, window, err := s.fetchPlane(ctx, q)
	if err != nil {
		return nil, err
	}

	payload, err := domain.EncodePayload(plane, q.Format)
	if err != nil {
		return nil, err
	}

	s.recordUsage(ctx, "slice", field.Name, q.Timestep, q.Region, q.Quality, 4*len(plane.Values), start)

	// Echo the field name as the caller spelled it; usage events and dataset
	// paths use the canonical name.
	return &SliceResult{
		Field:       q.Field,
		Timestep:    q.Timestep,
		DepthLevel:  q.DepthLevel,
		Data:        payload,
		Coordinates: window,
		Shape:       plane.Shape,
		LatRange:    [2]float64{q.Region.LatMin, q.Region.LatMax},
		LonRange:    [2]float64{q.Region.LonMin, q.Region.LonMax},
		Quality:     q.Quality,
	}, nil
}

// TimestepResult is the JSON body for /api/data/timestep.
type TimestepResult struct {
	Field       string         `json:"field"`
	Timestep    int            `json:"timestep"`
	Data        domain.Payload `json:"data"`
	Coordinates Coordinates    `json:"coordinates"`
	Shape       []int          `json:"shape"`
	LatRange    [2]float64     `json:"lat_range"`
	LonRange    [2]float64     `json:"lon_range"`
	ZRange      [2]int         `json:"z_range"`
	Quality     int            `json:"quality"`
}

// Timestep reads a 3-D (z, y, x) block across a depth range.
func (s *DataService) Timestep(ctx context.Context, q domain.TimestepQuery) (*TimestepResult, error) {
	start := time.Now()

	if err := q.Validate(); err != nil {
		return nil, err
	}
	field, err := domain.LookupField(q.Field)
	if err != nil {
		return nil, err
	}

	handle, err := s.datasets.Get(ctx, field)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", field.Name, err)
	}
	if err := checkExtents(handle.Meta, q.Timestep, q.ZMax-1); err != nil {
		return nil, err
	}

	box, err := s.coords.ResolveRegion(q.Region)
	if err != nil {
		return nil, err
	}

	grid, err := s.reader.BoxQuery(ctx, openvisus.BoxQueryRequest{
		Dataset: field.DatasetPath,
		Time:    q.Timestep,
		X:       [2]int{box.XMin, box.XMax},
		Y:       [2]int{box.YMin, box.YMax},
		Z:       [2]int{q.ZMin, q.ZMax},
		Quality: q.Quality,
	})
	if err != nil {
		return nil, fmt.Errorf("read timestep %d: %w", q.Timestep, err)
	}
	s.metrics.PayloadBytes.Observe(float64(4 * len(grid.Values)))

	payload, err := domain.EncodePayload(grid, q.Format)
	if err != nil {
		return nil, err
	}

	window, err := s.window(box)
	if err != nil {
		return nil, err
	}

	s.recordUsage(ctx, "timestep", field.Name, q.Timestep, q.Region, q.Quality, 4*len(grid.Values), start)

	return &TimestepResult{
		Field:       q.Field,
		Timestep:    q.Timestep,
		Data:        payload,
		Coordinates: window,
		Shape:       grid.Shape,
		LatRange:    [2]float64{q.Region.LatMin, q.Region.LatMax},
		LonRange:    [2]float64{q.Region.LonMin, q.Region.LonMax},
		ZRange:      [2]int{q.ZMin, q.ZMax},
		Quality:     q.Quality,
	}, nil
}

// FlowResult is the JSON body for /api/data/flow.
type FlowResult struct {
	Field       string           `json:"field"`
	Timestep    int              `json:"timestep"`
	DepthLevel  int              `json:"depth_level"`
	Flow        domain.FlowField `json:"flow"`
	Coordinates Coordinates      `json:"coordinates"`
	Shape       []int            `json:"shape"`
	LatRange    [2]float64       `json:"lat_range"`
	LonRange    [2]float64       `json:"lon_range"`
	Quality     int              `json:"quality"`
}

// Flow computes the gradient-based pseudo-velocity field of a 2-D slice.
func (s *DataService) Flow(ctx context.Context, q domain.SliceQuery) (*FlowResult, error) {
	start := time.Now()

	field, plane, window, err := s.fetchPlane(ctx, q)
	if err != nil {
		return nil, err
	}

	flow, err := domain.ComputeFlow(plane)
	if err != nil {
		return nil, err
	}

	s.recordUsage(ctx, "flow", field.Name, q.Timestep, q.Region, q.Quality, 4*len(plane.Values), start)

	return &FlowResult{
		Field:       q.Field,
		Timestep:    q.Timestep,
		DepthLevel:  q.DepthLevel,
		Flow:        flow,
		Coordinates: window,
		Shape:       plane.Shape,
		LatRange:    [2]float64{q.Region.LatMin, q.Region.LatMax},
		LonRange:    [2]float64{q.Region.LonMin, q.Region.LonMax},
		Quality:     q.Quality,
	}, nil
}

// CoordinateQuery selects an optional lat/lon window; nil ranges mean the
// whole grid along that axis.
type CoordinateQuery struct {
	LatRange *[2]float64
	LonRange *[2]float64
}

// CoordinateResult is the JSON body for /api/coordinates.
type CoordinateResult struct {
	Latitude  [][]float64 `json:"latitude"`
	Longitude [][]float64 `json:"longitude"`
	Shape     []int       `json:"shape"`
}

// Coordinates returns the lat/lon grids, optionally windowed to a region.
func (s *DataService) Coordinates(_ context.Context, q CoordinateQuery) (*CoordinateResult, error) {
	var box coords.IndexBox
	var err error

	if q.LatRange == nil && q.LonRange == nil {
		box, err = s.coords.FullBox()
	} else {
		region := domain.Region{LatMin: -90, LatMax: 90, LonMin: -360, LonMax: 360}
		if q.LatRange != nil {
			region.LatMin, region.LatMax = q.LatRange[0], q.LatRange[1]
		}
		if q.LonRange != nil {
			region.LonMin, region.LonMax = q.LonRange[0], q.LonRange[1]
		}
		if err := region.Validate(); err != nil {
			return nil, err
		}
		box, err = s.coords.ResolveRegion(region)
	}
	if err != nil {
		return nil, err
	}

	lat, lon, err := s.coords.Window(box)
	if err != nil {
		return nil, err
	}
	return &CoordinateResult{
		Latitude:  lat,
		Longitude: lon,
		Shape:     []int{box.Height(), box.Width()},
	}, nil
}

// fetchPlane validates a slice query and reads its 2-D plane plus the
// coordinate window. The window stays at full grid resolution even when a
// negative quality returns coarser data, matching the upstream contract.
func (s *DataService) fetchPlane(ctx context.Context, q domain.SliceQuery) (domain.Field, domain.Grid, Coordinates, error) {
	if err := q.Validate(); err != nil {
		return domain.Field{}, domain.Grid{}, Coordinates{}, err
	}
	field, err := domain.LookupField(q.Field)
	if err != nil {
		return domain.Field{}, domain.Grid{}, Coordinates{}, err
	}

	handle, err := s.datasets.Get(ctx, field)
	if err != nil {
		return domain.Field{}, domain.Grid{}, Coordinates{}, fmt.Errorf("open dataset %s: %w", field.Name, err)
	}
	if err := checkExtents(handle.Meta, q.Timestep, q.DepthLevel); err != nil {
		return domain.Field{}, domain.Grid{}, Coordinates{}, err
	}

	box, err := s.coords.ResolveRegion(q.Region)
	if err != nil {
		return domain.Field{}, domain.Grid{}, Coordinates{}, err
	}

	grid, err := s.reader.BoxQuery(ctx, openvisus.BoxQueryRequest{
		Dataset: field.DatasetPath,
		Time:    q.Timestep,
		X:       [2]int{box.XMin, box.XMax},
		Y:       [2]int{box.YMin, box.YMax},
		Z:       [2]int{q.DepthLevel, q.DepthLevel + 1},
		Quality: q.Quality,
	})
	if err != nil {
		return domain.Field{}, domain.Grid{}, Coordinates{}, fmt.Errorf("read timestep %d: %w", q.Timestep, err)
	}
	s.metrics.PayloadBytes.Observe(float64(4 * len(grid.Values)))

	plane, err := grid.Plane(0)
	if err != nil {
		return domain.Field{}, domain.Grid{}, Coordinates{}, err
	}

	window, err := s.window(box)
	if err != nil {
		return domain.Field{}, domain.Grid{}, Coordinates{}, err
	}
	return field, plane, window, nil
}

func (s *DataService) window(box coords.IndexBox) (Coordinates, error) {
	lat, lon, err := s.coords.Window(box)
	if err != nil {
		return Coordinates{}, err
	}
	return Coordinates{Latitude: lat, Longitude: lon}, nil
}

func (s *DataService) recordUsage(ctx context.Context, endpoint, field string, timestep int,
	region domain.Region, quality, payloadBytes int, start time.Time) {
	if s.usage == nil {
		return
	}
	evt := domain.NewUsageEvent(endpoint, field, timestep, region, quality, payloadBytes, time.Since(start))
	evt.RequestID = observability.RequestID(ctx)
	s.usage.Record(ctx, evt)
}

// checkExtents rejects timestep and depth indices outside the dataset.
func checkExtents(meta openvisus.DatasetMeta, timestep, depth int) error {
	if timestep >= meta.Timesteps {
		return fmt.Errorf("%w: timestep %d out of range, dataset has %d",
			domain.ErrBadParameter, timestep, meta.Timesteps)
	}
	if nz := meta.LogicBox.Dims()[2]; depth >= nz {
		return fmt.Errorf("%w: depth level %d out of range, dataset has %d",
			domain.ErrBadParameter, depth, nz)
	}
	return nil
}
