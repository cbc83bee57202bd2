package domain

import "time"

// UsageEvent records one served data request for downstream analysis of
// access patterns (hot regions, popular fields, quality distribution).
type UsageEvent struct {
	RequestID    string    `json:"request_id,omitempty"`
	Endpoint     string    `json:"endpoint"`
	Field        string    `json:"field"`
	Timestep     int       `json:"timestep"`
	Region       Region    `json:"region"`
	Quality      int       `json:"quality"`
	PayloadBytes int       `json:"payload_bytes"`
	DurationMS   int64     `json:"duration_ms"`
	At           time.Time `json:"at"`
}

// NewUsageEvent stamps an event with the package clock in UTC.
func NewUsageEvent(endpoint, field string, timestep int, region Region, quality, payloadBytes int, duration time.Duration) UsageEvent {
	return UsageEvent{
		Endpoint:     endpoint,
		Field:        field,
		Timestep:     timestep,
		Region:       region,
		Quality:      quality,
		PayloadBytes: payloadBytes,
		DurationMS:   duration.Milliseconds(),
		At:           clock.Now().UTC(),
	}
}
