// Package geo implements the geographic filtering used by search: a cheap
// bounding-box prefilter for storage queries and an exact great-circle
// radius filter for results.
package geo

import (
	"math"
	"slices"

	"github.com/poiesic/placefinder/core"
)

const (
	// EarthRadiusMiles is the mean earth radius used by DistanceMiles.
	EarthRadiusMiles = 3959.0

	// MetersPerMile converts between the provider's meters and search miles.
	MetersPerMile = 1609.34

	// DefaultRadiusMiles is the radius used when a search does not pick one.
	DefaultRadiusMiles = 5.0

	// AnyDistanceRadiusMiles stands in for "any distance" when a radius is still required.
	AnyDistanceRadiusMiles = 50.0

	milesPerDegreeLat = 69.0
)

// Locatable is anything with an optional position.
type Locatable interface {
	Position() (core.Coordinates, bool)
}

// Located pairs an item with its distance from a search center.
type Located[T any] struct {
	Item          T
	DistanceMiles float64
}

// BoundingBoxFor returns the flat-earth box enclosing a circle of radiusMiles
// around center. It over-approximates the circle and is only a prefilter.
func BoundingBoxFor(center core.Coordinates, radiusMiles float64) core.BoundingBox {
	latDelta := radiusMiles / milesPerDegreeLat

	cos := math.Cos(toRadians(center.Lat))
	lngDelta := 180.0
	if cos > 1e-9 {
		lngDelta = math.Min(radiusMiles/(milesPerDegreeLat*cos), 180.0)
	}

	return core.BoundingBox{
		MinLat: center.Lat - latDelta,
		MaxLat: center.Lat + latDelta,
		MinLng: center.Lng - lngDelta,
		MaxLng: center.Lng + lngDelta,
	}
}

// DistanceMiles returns the haversine great-circle distance between a and b.
func DistanceMiles(a, b core.Coordinates) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMiles * c
}

// FilterByRadius keeps the items whose exact distance from center is within
// radiusMiles, annotates each with its distance rounded to 0.1 mile and
// returns them nearest first. Items without a position never match.
func FilterByRadius[T Locatable](items []T, center core.Coordinates, radiusMiles float64) []Located[T] {
	result := make([]Located[T], 0, len(items))
	for _, item := range items {
		pos, ok := item.Position()
		if !ok {
			continue
		}
		d := DistanceMiles(center, pos)
		if d > radiusMiles {
			continue
		}
		result = append(result, Located[T]{Item: item, DistanceMiles: RoundTenth(d)})
	}

	slices.SortStableFunc(result, func(a, b Located[T]) int {
		switch {
		case a.DistanceMiles < b.DistanceMiles:
			return -1
		case a.DistanceMiles > b.DistanceMiles:
			return 1
		}
		return 0
	})
	return result
}

// Annotate computes distances without filtering. Items without a position
// are kept with ok=false in their slot.
func Annotate[T Locatable](items []T, center core.Coordinates) (distances []float64, ok []bool) {
	distances = make([]float64, len(items))
	ok = make([]bool, len(items))
	for i, item := range items {
		pos, has := item.Position()
		if !has {
			continue
		}
		distances[i] = RoundTenth(DistanceMiles(center, pos))
		ok[i] = true
	}
	return distances, ok
}

// MilesToMeters converts miles to meters.
func MilesToMeters(miles float64) float64 {
	return miles * MetersPerMile
}

// MetersToMiles converts meters to miles.
func MetersToMiles(meters float64) float64 {
	return meters / MetersPerMile
}

// RoundTenth rounds to one decimal place.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
