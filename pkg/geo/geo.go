// Package geo contains pure geographic computation helpers.
package geo

import "math"

const (
	earthRadiusKm = 6371.0
	// avgCitySpeedKmh is the flat speed assumption used for ETA estimates.
	avgCitySpeedKmh = 40.0
)

// DistanceKm returns the haversine great-circle distance in kilometres
// between two points specified in decimal degrees.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// EstimateDurationMinutes converts a distance to rough city travel time.
func EstimateDurationMinutes(distanceKm float64) int {
	return int(math.Round(distanceKm / avgCitySpeedKmh * 60))
}

// RoundKm rounds a distance to one decimal place for display.
func RoundKm(distanceKm float64) float64 {
	return math.Round(distanceKm*10) / 10
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
