package domain

import (
	"cmp"
	"math"
	"slices"
)

const (
	// DefaultNearestK is the number of raw neighbours considered per query.
	DefaultNearestK = 10

	// exactMatchTolerance is the per-axis distance, in degrees, under which a
	// record counts as sitting on the query point.
	exactMatchTolerance = 1e-3
)

// NearestResult lists distinct sensors by ascending distance, with FileRefs
// aligned to SensorIDs.
type NearestResult struct {
	SensorIDs []string
	FileRefs  []string
}

// NearestSensors ranks locations by squared Euclidean distance to q in
// latitude/longitude space, takes the k closest records and deduplicates them
// by sensor, keeping each sensor's closest record.
//
// A record within 1e-3 degrees of q in both axes is an exact match: its
// sensor is moved to the front, or prepended when it was not among the k
// nearest. In that last case the result holds k+1 sensors; the override takes
// precedence over the k bound.
//
// An empty location set yields an empty result.
func NearestSensors(locations []ProfileLocation, q GeoPoint, k int) NearestResult {
	if len(locations) == 0 || k <= 0 {
		return NearestResult{}
	}

	order := make([]int, len(locations))
	dist := make([]float64, len(locations))
	for i, loc := range locations {
		order[i] = i
		dLat := loc.Centroid.Lat - q.Lat
		dLon := loc.Centroid.Lon - q.Lon
		dist[i] = dLat*dLat + dLon*dLon
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(dist[a], dist[b])
	})

	var res NearestResult
	seen := make(map[string]bool)
	for _, idx := range order[:min(k, len(order))] {
		loc := locations[idx]
		if seen[loc.SensorID] {
			continue
		}
		seen[loc.SensorID] = true
		res.SensorIDs = append(res.SensorIDs, loc.SensorID)
		res.FileRefs = append(res.FileRefs, loc.FileRef)
	}

	if exact, ok := exactMatch(locations, q); ok {
		res = promote(res, exact)
	}
	return res
}

// exactMatch returns the first record, in input order, lying on q.
func exactMatch(locations []ProfileLocation, q GeoPoint) (ProfileLocation, bool) {
	for _, loc := range locations {
		if math.Abs(loc.Centroid.Lat-q.Lat) <= exactMatchTolerance &&
			math.Abs(loc.Centroid.Lon-q.Lon) <= exactMatchTolerance {
			return loc, true
		}
	}
	return ProfileLocation{}, false
}

// promote puts loc's sensor first without duplicating it.
func promote(res NearestResult, loc ProfileLocation) NearestResult {
	pos := slices.Index(res.SensorIDs, loc.SensorID)
	if pos == 0 {
		return res
	}
	ids := []string{loc.SensorID}
	files := []string{loc.FileRef}
	for i, id := range res.SensorIDs {
		if i == pos {
			continue
		}
		ids = append(ids, id)
		files = append(files, res.FileRefs[i])
	}
	return NearestResult{SensorIDs: ids, FileRefs: files}
}
