// Package domain models US traffic-accident records and the road-network
// attributes they are joined against.
//
// # Data Sources
//
// Accident records follow the column layout of the US Accidents dataset:
// one row per accident with a severity label, start/end timestamps, WGS-84
// coordinates, weather measurements, and boolean flags describing nearby
// road infrastructure (traffic signals, junctions, crossings, and so on).
//
// Road segments carry OpenStreetMap-style attributes. The two that matter
// for modeling are the highway class (functional road category) and the
// surface tag, both of which arrive as free-form strings and are normalized
// here into closed vocabularies.
//
// # Severity
//
// Severity is an ordinal label from 1 (least impact on traffic) to 4
// (greatest impact). Records outside that range are rejected at parse time.
// A derived binary flag marks records with Severity > 2 as "severe" for
// binary classification experiments.
//
// # Coordinate Validation
//
// The dataset covers the contiguous United States. Points outside
//
//	lat ∈ [24.5, 49.4]   (Key West to the Canadian border)
//	lon ∈ [-125, -66]    (Pacific to Atlantic coast)
//
// are treated as coordinate errors and dropped during ingest.
//
// # Surface Normalization
//
// OSM surface values collapse into a canonical set:
//
//	asphalt, paved, concrete, gravel, dirt, unpaved, cobblestone, unknown
//
// and further into the coarse categories paved / unpaved / unknown.
// Variants such as "concrete:plates", "fine_gravel", or "sett" map onto the
// canonical value of their physical surface. Unrecognized values become
// "unknown" rather than failing the pipeline.
//
// # Highway Normalization
//
// OSM highway classes keep their functional category with "*_link" ramp
// variants folded into the parent class ("motorway_link" → "motorway").
// "living_street" folds into "residential" and "road" into "unclassified".
// Anything else maps to "other".
//
// # ID Generation
//
// When a source row has no ID, a deterministic SHA-256 hash of
// severity|lat|lon|start-time is used instead. Deterministic IDs keep
// repeated runs over the same input idempotent: downstream sinks can upsert
// on the ID without deduplication state.
package domain
