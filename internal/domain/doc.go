// Package domain models Sentinel-3 SLSTR land-surface-temperature (LST)
// scenes and their reduction into per-overpass summary records.
//
// # Data Source
//
// Scenes originate from the Copernicus Data Space Ecosystem (CDSE). The
// catalog is queried for SL_2_LST___ products intersecting an area of
// interest (AOI) and a date range; each product archive contains NetCDF
// files with the LST grid (Kelvin), per-pixel geodetic coordinates, and a
// set of named boolean cloud-quality flags.
//
// # Scene Title Conventions
//
// Product titles embed the acquisition timestamp as YYYYMMDDTHHMMSS:
//
//	"S3A_SL_2_LST____20240512T101015_..." → date 2024-05-12, time 10:10:15
//
// The timestamp is the record key source; a title without it cannot be
// keyed and the scene is skipped. See [ExtractDateTime].
//
// # Cloud Flags
//
// SLSTR distributes 17 cloud classifier flags (cloud_in plus 16 named
// variants, see [CloudFlagNames]). A pixel is treated as cloud when any
// flag present in the scene marks it nonzero; flags absent from a scene
// contribute nothing. The combined mask is dilated to remove thin cloud
// edges before statistics are taken. See [MaskScene].
//
// # Record Keys
//
// Reduction records are keyed "YYYY-MM-DD,HH:MM:SS". Keys are derived
// deterministically from the scene title, so reprocessing the same archive
// produces the same key and the store's insert-if-absent semantics make
// repeated runs idempotent.
package domain
