package dashboard

import (
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Status is the lifecycle of one data stream.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// View selects which cities the dropdown lists.
type View string

const (
	ViewAll       View = "all"
	ViewFavorites View = "favorites"
)

// Stream names, also used as metric labels.
const (
	StreamCurrent  = "current"
	StreamForecast = "forecast"
	StreamDetailed = "detailed"
)

// User-facing failure messages.
const (
	MsgFetchFailed  = "날씨 정보를 불러오는데 실패했습니다."
	MsgLocateFailed = "위치 정보를 가져올 수 없습니다."
)

// Panel is the status shared by every stream. City names the city the
// panel's data (or pending fetch) belongs to.
type Panel struct {
	Status    Status     `json:"status"`
	City      string     `json:"city,omitempty"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type CurrentPanel struct {
	Panel
	Data *models.CurrentWeather `json:"data,omitempty"`
}

type ForecastPanel struct {
	Panel
	Data *models.Forecast `json:"data,omitempty"`
}

type DetailedPanel struct {
	Panel
	Data *models.DetailedWeather `json:"data,omitempty"`
}

// CityEntry is one row of the city dropdown.
type CityEntry struct {
	models.City
	Favorite bool `json:"favorite"`
	Selected bool `json:"selected"`
}

// State is an immutable snapshot of the dashboard.
type State struct {
	SelectedCity  models.City   `json:"selectedCity"`
	View          View          `json:"view"`
	DropdownOpen  bool          `json:"dropdownOpen"`
	IsFavorite    bool          `json:"isFavorite"`
	LocationError string        `json:"locationError,omitempty"`
	Current       CurrentPanel  `json:"current"`
	Forecast      ForecastPanel `json:"forecast"`
	Detailed      DetailedPanel `json:"detailed"`
}
