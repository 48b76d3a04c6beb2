package models

// Coordinates is a WGS84 position in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// City is immutable reference data. Identity is by Name.
type City struct {
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
}
