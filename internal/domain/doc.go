// Package domain models DMI gridded forecast data and the objects published
// from it.
//
// # Data Source
//
// Forecasts come from the DMI Forecast EDR API
// (https://opendatadocs.dmi.govcloud.dk/). A "cube" query for one collection
// and one parameter returns a NetCDF file with dimensions (time, y, x) clipped
// to a bounding box. Collections of the HARMONIE model family are delivered on
// a fixed Lambert Conformal Conic grid and must be requested with crs=native;
// every other collection is requested as crs84 (geographic WGS-84).
//
// # Band Keys
//
// Each forecast timestep becomes one band and one object. The object key is
// derived from the timestep's timestamp in UTC, truncated to whole seconds and
// stripped of separators:
//
//	2024-03-01T12:00:00.5  →  20240301120000
//
// Keys sort in time order and are unique within a run because the time axis
// is required to be strictly ascending at second precision. See [BandKey].
//
// # Storage Layout
//
// A publication target owns everything under one prefix:
//
//	{bucket}/{base_path}/{collection}/{parameter}/{key}.tif
//	{bucket}/{base_path}/{collection}/{parameter}/forecasts.json
//
// A run deletes the whole prefix before writing, and the manifest is written
// last. Consumers must drive discovery off the manifest: bands without a
// manifest entry are leftovers of an incomplete run.
//
// # Manifest Formats
//
// The default format maps band keys to addresses:
//
//	{"20240301000000": "https://bucket.host/data/.../20240301000000.tif"}
//
// The legacy format lists timestamps only:
//
//	{"available_forecasts": ["2024-03-01T00:00:00"]}
//
// Both are encoded with 4-space indentation and sorted keys so republishing
// the same dataset yields a byte-identical manifest.
package domain
