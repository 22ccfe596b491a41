// Package domain models Argo float profile lookups driven by free-form
// natural-language questions.
//
// # Data Source
//
// Float positions come from monthly index files: CSV text files with one row
// per float record and columns floatid, latitude_min, latitude_max,
// longitude_min, longitude_max, date_time_min, date_time_max. A record's
// centroid is the midpoint of its latitude and longitude ranges, and its
// validity range is [date_time_min, date_time_max]. Profile rows and their
// measurement aggregates live in a relational store partitioned by year.
//
// # Query Resolution
//
// A question is resolved into a month-bounded [TimeWindow] and a [GeoPoint]:
//
//	"salinity near Chennai coast in March 2021"
//	  window:     2021-03-01T00:00:00Z .. 2021-03-31T23:59:59Z
//	  candidates: "coast of Chennai", "Chennai coast", "Chennai coastal area"
//
// Time: the first "<month> <yyyy>" phrase wins; full and abbreviated month
// names are recognized. Without one, the window is January 2019.
//
// Location, first success wins:
//
//  1. Direct coordinates: "lat 12.5 ... lon 80.25" in any order.
//  2. Region candidates, geocoded one by one in priority order.
//
// Region candidates are built by ordered rule stages (see
// [ExtractRegionCandidates]): strip dates, emit coastal phrasings first
// ("off the coast of X", "near X coast", "X coastal area", ...), then split the
// rest on locative cue words, drop task and measurement filler, add coastal
// variants, dedupe case-insensitively and cap at six.
//
// # Nearest Profiles
//
// Candidate records are ranked by squared Euclidean distance in
// latitude/longitude space (a flat brute-force index), the k closest records
// are deduplicated by float id, and a record lying within 1e-3 degrees of the
// query point in both axes is moved to the front. See [NearestSensors].
//
// # Answer Shapes
//
// Fetched profiles are projected into chart records, table rows, or a
// narrative prompt for a language model (see [ChartRecords], [TableRows],
// [NarrativePrompt]). Values that are missing or not finite render as
// "Unknown" in narrative text and as null in JSON.
package domain
