package cities

import (
	"math"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// major is the compiled-in city table. Names must be unique.
var major = []models.City{
	{Name: "서울", Coordinates: models.Coordinates{Latitude: 37.5665, Longitude: 126.978}},
	{Name: "부산", Coordinates: models.Coordinates{Latitude: 35.1796, Longitude: 129.0756}},
	{Name: "인천", Coordinates: models.Coordinates{Latitude: 37.4563, Longitude: 126.7052}},
	{Name: "대구", Coordinates: models.Coordinates{Latitude: 35.8714, Longitude: 128.6014}},
	{Name: "대전", Coordinates: models.Coordinates{Latitude: 36.3504, Longitude: 127.3845}},
	{Name: "광주", Coordinates: models.Coordinates{Latitude: 35.1595, Longitude: 126.8526}},
	{Name: "수원", Coordinates: models.Coordinates{Latitude: 37.2636, Longitude: 127.0286}},
	{Name: "울산", Coordinates: models.Coordinates{Latitude: 35.5384, Longitude: 129.3114}},
	{Name: "창원", Coordinates: models.Coordinates{Latitude: 35.2322, Longitude: 128.6811}},
	{Name: "고양", Coordinates: models.Coordinates{Latitude: 37.6583, Longitude: 126.832}},
}

// All returns a copy of the city table in display order.
func All() []models.City {
	out := make([]models.City, len(major))
	copy(out, major)
	return out
}

// Default is the city selected at startup.
func Default() models.City {
	return major[0]
}

// Lookup finds a city by exact name.
func Lookup(name string) (models.City, bool) {
	for _, c := range major {
		if c.Name == name {
			return c, true
		}
	}
	return models.City{}, false
}

// Nearest returns the table city closest to pos by great-circle distance.
func Nearest(pos models.Coordinates) models.City {
	best := major[0]
	bestDist := math.Inf(1)
	for _, c := range major {
		d := haversineKm(pos, c.Coordinates)
		if d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

const earthRadiusKm = 6371.0

func haversineKm(a, b models.Coordinates) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
