package geo

import (
	"math"

	"github.com/example/yinsee/internal/models"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AreaPoint is the reference coordinate of one area.
type AreaPoint struct {
	Area models.Area
	Loc  Coord
}

// Areas is ordered the same as models.AllAreas. Ties resolve to the earlier entry.
var Areas = []AreaPoint{
	{models.Auckland, Coord{-36.8485, 174.7633}},
	{models.Wellington, Coord{-41.2865, 174.7762}},
	{models.Christchurch, Coord{-43.5321, 172.6362}},
	{models.Hamilton, Coord{-37.787, 175.2793}},
	{models.Tauranga, Coord{-37.6878, 176.1651}},
	{models.Dunedin, Coord{-45.8788, 170.5028}},
}

// NearestArea picks the area whose reference point is closest in plain degree
// space. It never consults the great-circle distance.
func NearestArea(lat, lon float64) models.Area {
	return nearest(Areas, lat, lon)
}

func nearest(points []AreaPoint, lat, lon float64) models.Area {
	best := points[0]
	bestDist := degreeDistance(lat, lon, best.Loc)
	for _, p := range points[1:] {
		if d := degreeDistance(lat, lon, p.Loc); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best.Area
}

// PointOf returns the reference coordinate of a.
func PointOf(a models.Area) (Coord, bool) {
	for _, p := range Areas {
		if p.Area == a {
			return p.Loc, true
		}
	}
	return Coord{}, false
}

func degreeDistance(lat, lon float64, c Coord) float64 {
	dLat := lat - c.Lat
	dLon := lon - c.Lon
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// ValidCoord reports whether lat/lon lie in their usual ranges.
func ValidCoord(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
