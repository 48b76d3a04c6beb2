package client

import "strings"

// iconSymbols covers every OpenWeatherMap icon code. Day (d) and night (n)
// variants are listed separately so the table stays exhaustive.
var iconSymbols = map[string]string{
	"01d": "☀️",
	"01n": "🌙",
	"02d": "⛅",
	"02n": "☁️",
	"03d": "☁️",
	"03n": "☁️",
	"04d": "☁️",
	"04n": "☁️",
	"09d": "🌧️",
	"09n": "🌧️",
	"10d": "🌦️",
	"10n": "🌧️",
	"11d": "⛈️",
	"11n": "⛈️",
	"13d": "❄️",
	"13n": "❄️",
	"50d": "🌫️",
	"50n": "🌫️",
}

// DefaultIconSymbol is shown for unknown or empty icon codes.
const DefaultIconSymbol = "🌡️"

// IconSymbol maps a provider icon code to a display symbol.
func IconSymbol(code string) string {
	if s, ok := iconSymbols[strings.ToLower(strings.TrimSpace(code))]; ok {
		return s
	}
	return DefaultIconSymbol
}

// IconURL returns the provider-hosted image for code.
func IconURL(code string) string {
	if code == "" {
		return ""
	}
	return "https://openweathermap.org/img/wn/" + code + "@2x.png"
}
