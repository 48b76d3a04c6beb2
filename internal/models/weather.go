package models

import "time"

// Condition is the provider's weather condition triple.
type Condition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// CurrentWeather is the mapped result of the current conditions endpoint.
type CurrentWeather struct {
	CityName  string    `json:"cityName,omitempty"`
	Temp      float64   `json:"temp"`
	FeelsLike float64   `json:"feelsLike"`
	Humidity  int       `json:"humidity"`
	WindSpeed float64   `json:"windSpeed"`
	Pressure  int       `json:"pressure"`
	Condition Condition `json:"condition"`
	Sunrise   int64     `json:"sunrise"` // unix seconds
	Sunset    int64     `json:"sunset"`  // unix seconds
	Timestamp time.Time `json:"timestamp"`
}

// ForecastSample is one 3-hour forecast observation.
type ForecastSample struct {
	Timestamp int64     `json:"timestamp"` // unix seconds
	Temp      float64   `json:"temp"`
	TempMin   float64   `json:"tempMin"`
	TempMax   float64   `json:"tempMax"`
	Humidity  int       `json:"humidity"`
	Weather   Condition `json:"weather"`
	TimeText  string    `json:"timeText"`
}

// DailySummary aggregates the samples of one UTC calendar day.
// TempMin and TempMax are bucket-wide extremes while Temp comes from a single
// representative sample, so TempMin <= Temp <= TempMax does not always hold.
type DailySummary struct {
	Date      string    `json:"date"` // YYYY-MM-DD, UTC
	Timestamp int64     `json:"timestamp"`
	Temp      float64   `json:"temp"`
	TempMin   float64   `json:"tempMin"`
	TempMax   float64   `json:"tempMax"`
	Humidity  int       `json:"humidity"`
	Weather   Condition `json:"weather"`
	TimeText  string    `json:"timeText"`
}

// Forecast bundles the raw samples of one fetch with their daily summaries.
type Forecast struct {
	City    string           `json:"city"`
	Samples []ForecastSample `json:"samples"`
	Days    []DailySummary   `json:"days"`
}

// AirQuality is the first entry of the air pollution endpoint.
type AirQuality struct {
	AQI  int     `json:"aqi"` // 1 (best) .. 5 (worst)
	PM25 float64 `json:"pm25"`
	PM10 float64 `json:"pm10"`
	CO   float64 `json:"co"`
	NO2  float64 `json:"no2"`
	O3   float64 `json:"o3"`
}

// UVIndex is the solar ultraviolet intensity at a point.
type UVIndex struct {
	Value float64 `json:"value"`
}

// DetailedWeather is the joined result shown in the detailed panel.
type DetailedWeather struct {
	Current        CurrentWeather `json:"current"`
	AirQuality     AirQuality     `json:"airQuality"`
	AQIDescription string         `json:"aqiDescription"`
	UVIndex        UVIndex        `json:"uvIndex"`
	UVIDescription string         `json:"uviDescription"`
}
