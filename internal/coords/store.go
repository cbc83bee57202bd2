// Package coords loads the LLC4320 curvilinear coordinate grids and resolves
// lat/lon regions to grid index boxes.
package coords

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/oceanvis/llc4320-gateway/internal/domain"
	"github.com/oceanvis/llc4320-gateway/internal/observability"
)

// IndexBox is a half-open window into the simulation grid.
type IndexBox struct {
	XMin, XMax int
	YMin, YMax int
}

// Width returns the x extent of the box.
func (b IndexBox) Width() int { return b.XMax - b.XMin }

// Height returns the y extent of the box.
func (b IndexBox) Height() int { return b.YMax - b.YMin }

// Store holds the 2-D latitude/longitude grids, loaded lazily from a NetCDF
// file on first use and kept for the process lifetime.
type Store struct {
	path    string
	logger  *slog.Logger
	metrics *observability.Metrics

	mu     sync.Mutex
	loaded bool
	lat    [][]float64
	lon    [][]float64
}

// NewStore creates a store backed by the given NetCDF file. Nothing is read
// until the first call that needs coordinates.
func NewStore(path string, logger *slog.Logger, metrics *observability.Metrics) *Store {
	return &Store{path: path, logger: logger, metrics: metrics}
}

// NewFromGrids creates a pre-loaded store from in-memory grids. Used by tests
// and by tools that already hold the coordinate arrays.
func NewFromGrids(lat, lon [][]float64, logger *slog.Logger, metrics *observability.Metrics) (*Store, error) {
	if err := checkGrids(lat, lon); err != nil {
		return nil, err
	}
	return &Store{loaded: true, lat: lat, lon: lon, logger: logger, metrics: metrics}, nil
}

// Ensure loads the coordinate grids if they are not resident yet.
func (s *Store) Ensure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}

	s.logger.Info("loading coordinate grids", "path", s.path)

	nc, err := netcdf.Open(s.path)
	if err != nil {
		return fmt.Errorf("open coordinate file %s: %w", s.path, err)
	}
	defer nc.Close()

	lat, err := readGrid(nc, "latitude")
	if err != nil {
		return err
	}
	lon, err := readGrid(nc, "longitude")
	if err != nil {
		return err
	}
	if err := checkGrids(lat, lon); err != nil {
		return err
	}

	s.lat = lat
	s.lon = lon
	s.loaded = true
	if s.metrics != nil {
		s.metrics.CoordinatesLoaded.Set(1)
	}
	s.logger.Info("coordinate grids loaded", "rows", len(lat), "cols", len(lat[0]))
	return nil
}

// Loaded reports whether the grids are resident.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// FullBox returns the index box covering the whole grid.
func (s *Store) FullBox() (IndexBox, error) {
	if err := s.Ensure(); err != nil {
		return IndexBox{}, err
	}
	return IndexBox{XMin: 0, XMax: len(s.lat[0]), YMin: 0, YMax: len(s.lat)}, nil
}

// ResolveRegion returns the smallest index box covering every grid cell whose
// center falls inside the region. Returns domain.ErrEmptyRegion when the
// region selects nothing.
func (s *Store) ResolveRegion(r domain.Region) (IndexBox, error) {
	if err := s.Ensure(); err != nil {
		return IndexBox{}, err
	}

	xMin, yMin := -1, -1
	xMax, yMax := 0, 0
	found := false

	for y, row := range s.lat {
		for x, lat := range row {
			lon := s.lon[y][x]
			if lat < r.LatMin || lat > r.LatMax || lon < r.LonMin || lon > r.LonMax {
				continue
			}
			if !found {
				xMin, xMax, yMin, yMax = x, x, y, y
				found = true
				continue
			}
			if x < xMin {
				xMin = x
			}
			if x > xMax {
				xMax = x
			}
			if y < yMin {
				yMin = y
			}
			if y > yMax {
				yMax = y
			}
		}
	}

	if !found {
		return IndexBox{}, domain.ErrEmptyRegion
	}
	return IndexBox{XMin: xMin, XMax: xMax + 1, YMin: yMin, YMax: yMax + 1}, nil
}

// Window copies the lat/lon grids for an index box.
func (s *Store) Window(b IndexBox) (lat, lon [][]float64, err error) {
	if err := s.Ensure(); err != nil {
		return nil, nil, err
	}
	if b.YMin < 0 || b.YMax > len(s.lat) || b.XMin < 0 || b.XMax > len(s.lat[0]) || b.Width() <= 0 || b.Height() <= 0 {
		return nil, nil, fmt.Errorf("index box %+v outside %dx%d grid", b, len(s.lat), len(s.lat[0]))
	}
	lat = make([][]float64, 0, b.Height())
	lon = make([][]float64, 0, b.Height())
	for y := b.YMin; y < b.YMax; y++ {
		latRow := make([]float64, b.Width())
		lonRow := make([]float64, b.Width())
		copy(latRow, s.lat[y][b.XMin:b.XMax])
		copy(lonRow, s.lon[y][b.XMin:b.XMax])
		lat = append(lat, latRow)
		lon = append(lon, lonRow)
	}
	return lat, lon, nil
}

// readGrid pulls a 2-D variable out of the NetCDF group, accepting either
// float64 or float32 storage.
func readGrid(nc api.Group, name string) ([][]float64, error) {
	vr, err := nc.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("read %s variable: %w", name, err)
	}
	switch v := vr.Values.(type) {
	case [][]float64:
		return v, nil
	case [][]float32:
		out := make([][]float64, len(v))
		for y, row := range v {
			out[y] = make([]float64, len(row))
			for x, val := range row {
				out[y][x] = float64(val)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s variable has unexpected type %T, want 2-D float grid", name, vr.Values)
	}
}

func checkGrids(lat, lon [][]float64) error {
	if len(lat) == 0 || len(lat[0]) == 0 {
		return fmt.Errorf("latitude grid is empty")
	}
	if len(lon) != len(lat) || len(lon[0]) != len(lat[0]) {
		return fmt.Errorf("latitude grid is %dx%d but longitude grid is %dx%d",
			len(lat), len(lat[0]), len(lon), len(lon[0]))
	}
	return nil
}
