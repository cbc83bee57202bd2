package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanvis/llc4320-gateway/internal/adapter/openvisus"
	"github.com/oceanvis/llc4320-gateway/internal/coords"
	"github.com/oceanvis/llc4320-gateway/internal/domain"
	"github.com/oceanvis/llc4320-gateway/internal/observability"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeOpener struct {
	meta openvisus.DatasetMeta
	err  error
}

func (f *fakeOpener) Get(_ context.Context, field domain.Field) (*openvisus.Handle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &openvisus.Handle{Field: field, Meta: f.meta}, nil
}

type fakeReader struct {
	lastReq openvisus.BoxQueryRequest
	grid    domain.Grid
	err     error
}

func (f *fakeReader) BoxQuery(_ context.Context, req openvisus.BoxQueryRequest) (domain.Grid, error) {
	f.lastReq = req
	if f.err != nil {
		return domain.Grid{}, f.err
	}
	return f.grid, nil
}

type capturingRecorder struct {
	events []domain.UsageEvent
}

func (c *capturingRecorder) Record(_ context.Context, evt domain.UsageEvent) {
	c.events = append(c.events, evt)
}

// testStore builds a 4x5 regular grid: lat rows 10..40, lon columns -100..-60.
func testStore(t *testing.T) *coords.Store {
	t.Helper()
	lats := []float64{10, 20, 30, 40}
	lons := []float64{-100, -90, -80, -70, -60}
	lat := make([][]float64, len(lats))
	lon := make([][]float64, len(lats))
	for y := range lats {
		lat[y] = make([]float64, len(lons))
		lon[y] = make([]float64, len(lons))
		for x := range lons {
			lat[y][x] = lats[y]
			lon[y][x] = lons[x]
		}
	}
	s, err := coords.NewFromGrids(lat, lon, discardLogger(), observability.NewMetricsForTesting())
	require.NoError(t, err)
	return s
}

func testMeta() openvisus.DatasetMeta {
	return openvisus.DatasetMeta{
		Name:      "salt",
		LogicBox:  openvisus.LogicBox{P2: [3]int{17280, 12960, 90}},
		Timesteps: 100,
		DType:     "float32",
	}
}

func newService(t *testing.T, reader *fakeReader, usage UsageRecorder) *DataService {
	t.Helper()
	return New(testStore(t), &fakeOpener{meta: testMeta()}, reader, usage,
		discardLogger(), observability.NewMetricsForTesting())
}

func sliceQuery() domain.SliceQuery {
	return domain.SliceQuery{
		Field:      "salinity",
		Timestep:   3,
		DepthLevel: 0,
		Region:     domain.Region{LatMin: 15, LatMax: 35, LonMin: -95, LonMax: -75},
		Quality:    -12,
		Format:     domain.FormatArray,
	}
}

func TestSlice_HappyPath(t *testing.T) {
	reader := &fakeReader{grid: domain.Grid{
		Values: []float32{34.1, 34.2, 34.3, 34.4},
		Shape:  []int{1, 2, 2},
	}}
	recorder := &capturingRecorder{}
	svc := newService(t, reader, recorder)

	res, err := svc.Slice(context.Background(), sliceQuery())
	require.NoError(t, err)

	// The response echoes the field as the caller spelled it, while the
	// alias resolves to the canonical dataset path.
	assert.Equal(t, "salinity", res.Field)
	assert.Contains(t, reader.lastReq.Dataset, "salt_llc4320")

	// The 15..35 x -95..-75 region covers rows 1..2 and columns 1..2.
	assert.Equal(t, [2]int{1, 3}, reader.lastReq.X)
	assert.Equal(t, [2]int{1, 3}, reader.lastReq.Y)
	assert.Equal(t, [2]int{0, 1}, reader.lastReq.Z)
	assert.Equal(t, 3, reader.lastReq.Time)
	assert.Equal(t, -12, reader.lastReq.Quality)

	// The z axis is squeezed away.
	assert.Equal(t, []int{2, 2}, res.Shape)
	assert.Equal(t, domain.FormatArray, res.Data.Format)

	assert.Equal(t, [][]float64{{20, 20}, {30, 30}}, res.Coordinates.Latitude)
	assert.Equal(t, [][]float64{{-90, -80}, {-90, -80}}, res.Coordinates.Longitude)
	assert.Equal(t, [2]float64{15, 35}, res.LatRange)

	require.Len(t, recorder.events, 1)
	evt := recorder.events[0]
	assert.Equal(t, "slice", evt.Endpoint)
	assert.Equal(t, "salt", evt.Field)
	assert.Equal(t, 16, evt.PayloadBytes)
}

func TestSlice_UsageEventRequestID(t *testing.T) {
	reader := &fakeReader{grid: domain.Grid{Values: []float32{1}, Shape: []int{1, 1, 1}}}
	recorder := &capturingRecorder{}
	svc := newService(t, reader, recorder)

	ctx := observability.WithRequestID(context.Background(), "req-abc123")
	_, err := svc.Slice(ctx, sliceQuery())
	require.NoError(t, err)

	require.Len(t, recorder.events, 1)
	assert.Equal(t, "req-abc123", recorder.events[0].RequestID)
}

func TestSlice_Base64Format(t *testing.T) {
	reader := &fakeReader{grid: domain.Grid{Values: []float32{1}, Shape: []int{1, 1, 1}}}
	svc := newService(t, reader, nil)

	q := sliceQuery()
	q.Format = domain.FormatBase64

	res, err := svc.Slice(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatBase64, res.Data.Format)
	assert.Equal(t, "float32", res.Data.Dtype)
	assert.Equal(t, "AACAPw==", res.Data.Data)
}

func TestSlice_EmptyRegion(t *testing.T) {
	svc := newService(t, &fakeReader{}, nil)

	q := sliceQuery()
	q.Region = domain.Region{LatMin: 80, LatMax: 85, LonMin: 0, LonMax: 5}

	_, err := svc.Slice(context.Background(), q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyRegion))
}

func TestSlice_TimestepOutOfRange(t *testing.T) {
	svc := newService(t, &fakeReader{}, nil)

	q := sliceQuery()
	q.Timestep = 100 // dataset has exactly 100, so index 100 is out of range

	_, err := svc.Slice(context.Background(), q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadParameter))
	assert.Contains(t, err.Error(), "timestep")
}

func TestSlice_DepthOutOfRange(t *testing.T) {
	svc := newService(t, &fakeReader{}, nil)

	q := sliceQuery()
	q.DepthLevel = 90

	_, err := svc.Slice(context.Background(), q)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadParameter))
	assert.Contains(t, err.Error(), "depth")
}

func TestSlice_UpstreamError(t *testing.T) {
	reader := &fakeReader{err: errors.New("origin unreachable")}
	recorder := &capturingRecorder{}
	svc := newService(t, reader, recorder)

	_, err := svc.Slice(context.Background(), sliceQuery())
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrBadParameter), "upstream failures are not client errors")
	assert.Empty(t, recorder.events, "failed requests publish no usage events")
}

func TestTimestep_HappyPath(t *testing.T) {
	reader := &fakeReader{grid: domain.Grid{
		Values: []float32{1, 2, 3, 4, 5, 6, 7, 8},
		Shape:  []int{2, 2, 2},
	}}
	svc := newService(t, reader, nil)

	res, err := svc.Timestep(context.Background(), domain.TimestepQuery{
		Field:    "w",
		Timestep: 0,
		ZMin:     0,
		ZMax:     2,
		Region:   domain.Region{LatMin: 15, LatMax: 35, LonMin: -95, LonMax: -75},
		Quality:  -8,
		Format:   domain.FormatArray,
	})
	require.NoError(t, err)

	assert.Equal(t, "w", res.Field)
	assert.Equal(t, [2]int{0, 2}, reader.lastReq.Z)
	assert.Equal(t, []int{2, 2, 2}, res.Shape)
	assert.Equal(t, [2]int{0, 2}, res.ZRange)
	assert.Equal(t, -8, res.Quality)
}

func TestTimestep_ZBeyondDataset(t *testing.T) {
	svc := newService(t, &fakeReader{}, nil)

	_, err := svc.Timestep(context.Background(), domain.TimestepQuery{
		Field:    "w",
		Timestep: 0,
		ZMin:     0,
		ZMax:     91, // dataset has 90 depth levels
		Region:   domain.Region{LatMin: 15, LatMax: 35, LonMin: -95, LonMax: -75},
		Quality:  -12,
		Format:   domain.FormatArray,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadParameter))
}

func TestFlow_HappyPath(t *testing.T) {
	// A ramp along x: gradient u=1, v=0 everywhere.
	reader := &fakeReader{grid: domain.Grid{
		Values: []float32{0, 1, 0, 1},
		Shape:  []int{1, 2, 2},
	}}
	recorder := &capturingRecorder{}
	svc := newService(t, reader, recorder)

	res, err := svc.Flow(context.Background(), sliceQuery())
	require.NoError(t, err)

	assert.InDelta(t, 1.0, res.Flow.U[0][0], 1e-6)
	assert.InDelta(t, 0.0, res.Flow.V[0][0], 1e-6)
	assert.InDelta(t, 1.0, res.Flow.SpeedMax, 1e-6)

	require.Len(t, recorder.events, 1)
	assert.Equal(t, "flow", recorder.events[0].Endpoint)
}

func TestMetadata(t *testing.T) {
	svc := newService(t, &fakeReader{}, nil)

	meta, err := svc.Metadata(context.Background(), "temperature")
	require.NoError(t, err)

	assert.Equal(t, "theta", meta.Field)
	assert.Equal(t, Dimensions{X: 17280, Y: 12960, Z: 90}, meta.Dimensions)
	assert.Equal(t, 100, meta.TotalTimesteps)
	assert.Equal(t, "float32", meta.DataType)
	assert.Contains(t, meta.AvailableFields, "salinity")
	assert.Equal(t, "°C", meta.FieldUnits["temperature"])
}

func TestMetadata_UnknownField(t *testing.T) {
	svc := newService(t, &fakeReader{}, nil)
	_, err := svc.Metadata(context.Background(), "chlorophyll")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadParameter))
}

func TestCoordinates_FullGrid(t *testing.T) {
	svc := newService(t, &fakeReader{}, nil)

	res, err := svc.Coordinates(context.Background(), CoordinateQuery{})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, res.Shape)
	assert.Len(t, res.Latitude, 4)
	assert.Len(t, res.Latitude[0], 5)
}

func TestCoordinates_LatRangeOnly(t *testing.T) {
	svc := newService(t, &fakeReader{}, nil)

	res, err := svc.Coordinates(context.Background(), CoordinateQuery{
		LatRange: &[2]float64{15, 35},
	})
	require.NoError(t, err)
	// Rows 20 and 30 across every column.
	assert.Equal(t, []int{2, 5}, res.Shape)
	assert.Equal(t, 20.0, res.Latitude[0][0])
}

func TestCoordinates_EmptyWindow(t *testing.T) {
	svc := newService(t, &fakeReader{}, nil)

	_, err := svc.Coordinates(context.Background(), CoordinateQuery{
		LatRange: &[2]float64{80, 85},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyRegion))
}

func TestCheckReadiness(t *testing.T) {
	svc := newService(t, &fakeReader{}, nil)
	// The in-memory store is pre-loaded.
	assert.NoError(t, svc.CheckReadiness(context.Background()))
}
