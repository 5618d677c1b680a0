package note

import "math"

const earthRadiusMeters = 6371000

// haversineMeters returns the great-circle distance between two points.
func haversineMeters(lon1, lat1, lon2, lat2 float64) float64 {
	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(a))
}

// boundingBox returns a longitude/latitude box that fully contains the circle
// of radiusKm around the point. Longitude shrink near the poles is clamped so
// the box stays valid.
func boundingBox(longitude, latitude, radiusKm float64) (minLon, maxLon, minLat, maxLat float64) {
	dLat := radiusKm / 111.32
	cosLat := math.Cos(latitude * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	dLon := radiusKm / (111.32 * cosLat)

	return longitude - dLon, longitude + dLon, latitude - dLat, latitude + dLat
}
