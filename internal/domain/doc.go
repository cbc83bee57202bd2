// Package domain models queries against the LLC4320 ocean simulation dataset.
//
// # Dataset
//
// LLC4320 is a 1/48° MITgcm global ocean simulation (~250 TB). Each field is
// published as an OpenVisus IDX multi-resolution volume on the NSDF climate
// origin, indexed by (x, y, depth) with one volume per hourly timestep. The
// gateway serves three fields:
//
//	salt   practical salinity        g kg⁻¹   (alias: salinity)
//	theta  potential temperature     °C       (alias: temperature)
//	w      vertical velocity         m s⁻¹    (alias: vertical_velocity)
//
// # Coordinates
//
// The simulation grid is curvilinear: latitude and longitude are 2-D arrays
// with one entry per (y, x) cell center, distributed separately as a NetCDF
// file (llc4320_latlon.nc). Requests select regions in degrees; the gateway
// masks the coordinate grids and reads the bounding index box, so the data
// window is the smallest axis-aligned box covering the requested region.
//
// # Quality
//
// Quality is the OpenVisus resolution parameter, -12..0. Zero reads the full
// native resolution; each step below drops one refinement level, so more
// negative values return coarser, faster-to-fetch data. Coordinate arrays in
// responses are always full resolution regardless of the data quality.
//
// # Payload formats
//
// Slices are returned either as nested JSON arrays ("array") or as
// base64-encoded little-endian float32 bytes ("base64"), the latter being
// roughly 3x smaller on the wire for large windows.
package domain
