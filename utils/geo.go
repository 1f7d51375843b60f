package utils

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"p9e.in/genfuel/models"
)

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidateCoordinate checks latitude and longitude ranges.
func ValidateCoordinate(coord Coordinate) error {
	if coord.Lat < -90 || coord.Lat > 90 {
		return fmt.Errorf("latitude %.6f is out of valid range [-90, 90]", coord.Lat)
	}
	if coord.Lng < -180 || coord.Lng > 180 {
		return fmt.Errorf("longitude %.6f is out of valid range [-180, 180]", coord.Lng)
	}
	return nil
}

// ValidateOptionalCoordinate accepts both values absent or both present and
// in range.
func ValidateOptionalCoordinate(lat, lng *float64) error {
	if lat == nil && lng == nil {
		return nil
	}
	if lat == nil || lng == nil {
		return fmt.Errorf("latitude and longitude must be provided together")
	}
	return ValidateCoordinate(Coordinate{Lat: *lat, Lng: *lng})
}

// GeneratorFeatureCollection renders generators with coordinates as GeoJSON
// points. Generators without a position are skipped.
func GeneratorFeatureCollection(generators []models.Generator) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, g := range generators {
		if !g.HasCoordinates() {
			continue
		}
		// GeoJSON order is [lng, lat]
		feature := geojson.NewFeature(orb.Point{*g.Longitude, *g.Latitude})
		feature.ID = g.ID.String()
		feature.Properties["name"] = g.Name
		feature.Properties["location"] = g.Location
		feature.Properties["currentFuel"] = g.CurrentFuel
		feature.Properties["capacity"] = g.Capacity
		fill := 0.0
		if g.Capacity > 0 {
			fill = Round2(g.CurrentFuel / g.Capacity)
		}
		feature.Properties["fillRatio"] = fill
		fc.Append(feature)
	}
	return fc
}
