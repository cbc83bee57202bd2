package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/oceanvis/llc4320-gateway/internal/domain"
	"github.com/oceanvis/llc4320-gateway/internal/service"
)

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	field := queryOrDefault(r.URL.Query(), "field", "salinity")

	meta, err := s.api.Metadata(r.Context(), field)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleSlice(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseSliceQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.api.Slice(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTimestep(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	region, err := parseRegion(values)
	if err != nil {
		writeError(w, err)
		return
	}
	timestep, err := intOrDefault(values, "timestep", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	zMin, err := intOrDefault(values, "z_min", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	zMax, err := intOrDefault(values, "z_max", 1)
	if err != nil {
		writeError(w, err)
		return
	}
	quality, err := intOrDefault(values, "quality", s.defaultQuality)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.api.Timestep(r.Context(), domain.TimestepQuery{
		Field:    queryOrDefault(values, "field", "salinity"),
		Timestep: timestep,
		ZMin:     zMin,
		ZMax:     zMax,
		Region:   region,
		Quality:  quality,
		Format:   queryOrDefault(values, "format", domain.FormatArray),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFlow(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseSliceQuery(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.api.Flow(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCoordinates(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	latRange, err := optionalRange(values, "lat_min", "lat_max")
	if err != nil {
		writeError(w, err)
		return
	}
	lonRange, err := optionalRange(values, "lon_min", "lon_max")
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.api.Coordinates(r.Context(), service.CoordinateQuery{
		LatRange: latRange,
		LonRange: lonRange,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) parseSliceQuery(values url.Values) (domain.SliceQuery, error) {
	region, err := parseRegion(values)
	if err != nil {
		return domain.SliceQuery{}, err
	}
	timestep, err := intOrDefault(values, "timestep", 0)
	if err != nil {
		return domain.SliceQuery{}, err
	}
	depth, err := intOrDefault(values, "depth_level", 0)
	if err != nil {
		return domain.SliceQuery{}, err
	}
	quality, err := intOrDefault(values, "quality", s.defaultQuality)
	if err != nil {
		return domain.SliceQuery{}, err
	}

	return domain.SliceQuery{
		Field:      queryOrDefault(values, "field", "salinity"),
		Timestep:   timestep,
		DepthLevel: depth,
		Region:     region,
		Quality:    quality,
		Format:     queryOrDefault(values, "format", domain.FormatArray),
	}, nil
}

// parseRegion requires all four lat/lon bounds.
func parseRegion(values url.Values) (domain.Region, error) {
	latMin, err := requiredFloat(values, "lat_min")
	if err != nil {
		return domain.Region{}, err
	}
	latMax, err := requiredFloat(values, "lat_max")
	if err != nil {
		return domain.Region{}, err
	}
	lonMin, err := requiredFloat(values, "lon_min")
	if err != nil {
		return domain.Region{}, err
	}
	lonMax, err := requiredFloat(values, "lon_max")
	if err != nil {
		return domain.Region{}, err
	}
	return domain.Region{LatMin: latMin, LatMax: latMax, LonMin: lonMin, LonMax: lonMax}, nil
}

// optionalRange parses a min/max pair that must be provided together or not at all.
func optionalRange(values url.Values, minName, maxName string) (*[2]float64, error) {
	hasMin := values.Has(minName)
	hasMax := values.Has(maxName)
	if !hasMin && !hasMax {
		return nil, nil
	}
	if hasMin != hasMax {
		return nil, fmt.Errorf("%w: %s and %s must be provided together",
			domain.ErrBadParameter, minName, maxName)
	}
	lo, err := requiredFloat(values, minName)
	if err != nil {
		return nil, err
	}
	hi, err := requiredFloat(values, maxName)
	if err != nil {
		return nil, err
	}
	return &[2]float64{lo, hi}, nil
}

func requiredFloat(values url.Values, name string) (float64, error) {
	raw := values.Get(name)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing required parameter %q", domain.ErrBadParameter, name)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", domain.ErrBadParameter, name, raw)
	}
	return f, nil
}

func intOrDefault(values url.Values, name string, fallback int) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", domain.ErrBadParameter, name, raw)
	}
	return n, nil
}

func queryOrDefault(values url.Values, name, fallback string) string {
	if v := values.Get(name); v != "" {
		return v
	}
	return fallback
}
