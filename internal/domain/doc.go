// Package domain models NOAA Storm Events database records and the
// merge-spatialize-aggregate pipeline over them.
//
// # Data Source
//
// Records come from the NOAA NCEI Storm Events bulk CSV files, published at
// https://www.ncei.noaa.gov/pub/data/swdi/stormevents/csvfiles/. Each yearly
// archive is split into three feeds sharing an EVENT_ID key:
//
//	StormEvents_details-*    per-event attributes (EVENT_TYPE, DAMAGE_PROPERTY, ...)
//	StormEvents_locations-*  per-event point coordinates (LATITUDE, LONGITUDE)
//	StormEvents_fatalities-* per-fatality records (not consumed here)
//
// Details and locations are joined inner on EVENT_ID: an event appearing in
// only one feed carries no usable signal and is dropped. Duplicate EVENT_IDs
// (multi-segment tornado tracks produce several location rows) fan out to one
// joined row per cross pairing.
//
// # DAMAGE_PROPERTY encoding
//
// Property damage is a numeral with a scale suffix: "2.5K" = 2500 USD,
// "10M" = 10 million, "1.5B" = 1.5 billion. Recognized suffixes live in a
// ScaleTable so new ones are data, not code.
//
// Zero sentinels: the empty string, "0", "0.00", and any other
// single-character value all normalize to 0. The single-character rule is a
// deliberate carry-over from the upstream encoding, where bare single digits
// only ever appear as an unreported placeholder; parsing "5" as five dollars
// would silently change every aggregated total downstream.
//
// A multi-character numeral without a recognized suffix is malformed: the
// feed always carries a suffix on real amounts, so an unexpected bare
// numeral halts the run rather than passing through at the wrong scale.
//
// # Spatial bucketing
//
// Each joined event point is tested against a reference polygon grid using
// an intersection predicate, so a point on a shared cell boundary belongs to
// every cell that touches it. Events outside the grid are dropped silently.
// Events and grid must share a coordinate reference system; the grid loader
// reprojects to WGS84 explicitly and refuses layers with no declared CRS.
package domain
