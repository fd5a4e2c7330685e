// Package geo holds the distance function and the fixed-size bounding box used
// to match fixes against stored coordinates.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ThresholdMeters is the radius within which two coordinates refer to the same place.
const ThresholdMeters = 100.0

// metersPerDegree is the length of one degree of arc at the equator.
var metersPerDegree = orb.EarthRadius * math.Pi / 180

// ThresholdDegrees is ThresholdMeters expressed in degrees at the equator.
// It is used as the half-width of the candidate box for both axes and is not
// corrected for latitude, so east-west neighbours away from the equator can
// fall outside the box even though they are within ThresholdMeters.
var ThresholdDegrees = ThresholdMeters / metersPerDegree

// Distance returns the great-circle distance in meters between two coordinates.
func Distance(aLat, aLon, bLat, bLon float64) float64 {
	return geo.DistanceHaversine(orb.Point{aLon, aLat}, orb.Point{bLon, bLat})
}

// Within reports whether two coordinates are no further apart than ThresholdMeters.
func Within(aLat, aLon, bLat, bLon float64) bool {
	return Distance(aLat, aLon, bLat, bLon) <= ThresholdMeters
}

// Box is a latitude/longitude rectangle.
type Box struct {
	orb.Bound
}

// BoxAround returns the candidate box centered on lat/lon.
func BoxAround(lat, lon float64) Box {
	return BoxWithHalfWidth(lat, lon, ThresholdDegrees)
}

// BoxWithHalfWidth returns a box extending half degrees on each side of lat/lon.
func BoxWithHalfWidth(lat, lon, half float64) Box {
	return Box{orb.Bound{
		Min: orb.Point{lon - half, lat - half},
		Max: orb.Point{lon + half, lat + half},
	}}
}

func (b Box) MinLat() float64 { return b.Min.Lat() }
func (b Box) MaxLat() float64 { return b.Max.Lat() }
func (b Box) MinLon() float64 { return b.Min.Lon() }
func (b Box) MaxLon() float64 { return b.Max.Lon() }

// ContainsCoord reports whether lat/lon lies inside the box, edges included.
func (b Box) ContainsCoord(lat, lon float64) bool {
	return b.Contains(orb.Point{lon, lat})
}

// ValidCoord reports whether lat/lon are finite and within the WGS84 range.
func ValidCoord(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
