package domain

import "fmt"

// Quality bounds accepted by the origin.
const (
	MinQuality = -12
	MaxQuality = 0
)

// Payload format names.
const (
	FormatArray  = "array"
	FormatBase64 = "base64"
)

// Region is a lat/lon bounding box in degrees.
type Region struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Validate checks the bounds are ordered.
func (r Region) Validate() error {
	if r.LatMin > r.LatMax {
		return fmt.Errorf("%w: lat_min %g exceeds lat_max %g", ErrBadParameter, r.LatMin, r.LatMax)
	}
	if r.LonMin > r.LonMax {
		return fmt.Errorf("%w: lon_min %g exceeds lon_max %g", ErrBadParameter, r.LonMin, r.LonMax)
	}
	return nil
}

// SliceQuery describes a 2-D slice request at one timestep and depth level.
type SliceQuery struct {
	Field      string
	Timestep   int
	DepthLevel int
	Region     Region
	Quality    int
	Format     string
}

// Validate checks ranges without touching the upstream.
func (q SliceQuery) Validate() error {
	if err := q.Region.Validate(); err != nil {
		return err
	}
	if q.Timestep < 0 {
		return fmt.Errorf("%w: timestep must be non-negative, got %d", ErrBadParameter, q.Timestep)
	}
	if q.DepthLevel < 0 {
		return fmt.Errorf("%w: depth_level must be non-negative, got %d", ErrBadParameter, q.DepthLevel)
	}
	if err := validateQuality(q.Quality); err != nil {
		return err
	}
	return validateFormat(q.Format)
}

// TimestepQuery describes a 3-D block request across a depth range [ZMin, ZMax).
type TimestepQuery struct {
	Field    string
	Timestep int
	ZMin     int
	ZMax     int
	Region   Region
	Quality  int
	Format   string
}

// Validate checks ranges without touching the upstream.
func (q TimestepQuery) Validate() error {
	if err := q.Region.Validate(); err != nil {
		return err
	}
	if q.Timestep < 0 {
		return fmt.Errorf("%w: timestep must be non-negative, got %d", ErrBadParameter, q.Timestep)
	}
	if q.ZMin < 0 {
		return fmt.Errorf("%w: z_min must be non-negative, got %d", ErrBadParameter, q.ZMin)
	}
	if q.ZMax <= q.ZMin {
		return fmt.Errorf("%w: z_max %d must exceed z_min %d", ErrBadParameter, q.ZMax, q.ZMin)
	}
	if err := validateQuality(q.Quality); err != nil {
		return err
	}
	return validateFormat(q.Format)
}

func validateQuality(q int) error {
	if q < MinQuality || q > MaxQuality {
		return fmt.Errorf("%w: quality must be between %d and %d, got %d",
			ErrBadParameter, MinQuality, MaxQuality, q)
	}
	return nil
}

func validateFormat(f string) error {
	if f != FormatArray && f != FormatBase64 {
		return fmt.Errorf("%w: format must be %q or %q, got %q",
			ErrBadParameter, FormatArray, FormatBase64, f)
	}
	return nil
}
