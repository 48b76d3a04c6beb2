package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// WeatherClient reads from the remote weather provider. Calls are independent
// and safe for concurrent use. Failures are returned unchanged: no retries, no caching.
type WeatherClient interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (models.CurrentWeather, error)
	FetchForecast(ctx context.Context, lat, lon float64) ([]models.ForecastSample, error)
	FetchAirQuality(ctx context.Context, lat, lon float64) (models.AirQuality, error)
	FetchUVIndex(ctx context.Context, lat, lon float64) (models.UVIndex, error)
}

var (
	// ErrNetwork marks transport failures: DNS, connection, timeout, cancellation.
	ErrNetwork = errors.New("network error")
	// ErrProvider marks non-success or unusable responses from the provider.
	ErrProvider = errors.New("provider error")

	ErrInvalidAPIKey = fmt.Errorf("%w: invalid API key", ErrProvider)
	ErrNotFound      = fmt.Errorf("%w: not found", ErrProvider)
	ErrRateLimited   = fmt.Errorf("%w: rate limited", ErrProvider)
)

// Endpoint names, relative to the base URL. Also used as metric labels.
const (
	EndpointCurrent    = "weather"
	EndpointForecast   = "forecast"
	EndpointAirQuality = "air_pollution"
	EndpointUVIndex    = "uvi"
)

const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

type OpenWeatherClient struct {
	apiKey   string
	baseURL  string
	language string
	timeout  time.Duration
	client   *http.Client
	now      func() time.Time
}

func NewOpenWeatherClient(apiKey, baseURL, language string, timeout time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if language == "" {
		language = "kr"
	}

	return &OpenWeatherClient{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		language: language,
		timeout:  timeout,
		client: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}, nil
}

type conditionJSON struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type currentResponse struct {
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
		Pressure  int     `json:"pressure"`
	} `json:"main"`
	Weather []conditionJSON `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
	Name string `json:"name"`
	Dt   int64  `json:"dt"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Humidity int     `json:"humidity"`
		} `json:"main"`
		Weather []conditionJSON `json:"weather"`
		DtTxt   string          `json:"dt_txt"`
	} `json:"list"`
}

type airPollutionResponse struct {
	List []struct {
		Main struct {
			AQI int `json:"aqi"`
		} `json:"main"`
		Components struct {
			CO   float64 `json:"co"`
			NO2  float64 `json:"no2"`
			O3   float64 `json:"o3"`
			PM25 float64 `json:"pm2_5"`
			PM10 float64 `json:"pm10"`
		} `json:"components"`
	} `json:"list"`
}

type uvIndexResponse struct {
	Value float64 `json:"value"`
}

// FetchCurrent returns current conditions at (lat, lon).
func (c *OpenWeatherClient) FetchCurrent(ctx context.Context, lat, lon float64) (models.CurrentWeather, error) {
	var resp currentResponse
	if err := c.get(ctx, EndpointCurrent, lat, lon, true, &resp); err != nil {
		return models.CurrentWeather{}, err
	}
	return c.mapCurrent(resp), nil
}

// FetchForecast returns the 5-day/3-hour forecast in provider order.
func (c *OpenWeatherClient) FetchForecast(ctx context.Context, lat, lon float64) ([]models.ForecastSample, error) {
	var resp forecastResponse
	if err := c.get(ctx, EndpointForecast, lat, lon, true, &resp); err != nil {
		return nil, err
	}
	samples := make([]models.ForecastSample, 0, len(resp.List))
	for _, item := range resp.List {
		samples = append(samples, models.ForecastSample{
			Timestamp: item.Dt,
			Temp:      item.Main.Temp,
			TempMin:   item.Main.TempMin,
			TempMax:   item.Main.TempMax,
			Humidity:  item.Main.Humidity,
			Weather:   firstCondition(item.Weather),
			TimeText:  item.DtTxt,
		})
	}
	return samples, nil
}

// FetchAirQuality returns the first air pollution entry at (lat, lon).
func (c *OpenWeatherClient) FetchAirQuality(ctx context.Context, lat, lon float64) (models.AirQuality, error) {
	var resp airPollutionResponse
	if err := c.get(ctx, EndpointAirQuality, lat, lon, false, &resp); err != nil {
		return models.AirQuality{}, err
	}
	if len(resp.List) == 0 {
		return models.AirQuality{}, fmt.Errorf("%w: %s: empty list", ErrProvider, EndpointAirQuality)
	}
	first := resp.List[0]
	return models.AirQuality{
		AQI:  first.Main.AQI,
		PM25: first.Components.PM25,
		PM10: first.Components.PM10,
		CO:   first.Components.CO,
		NO2:  first.Components.NO2,
		O3:   first.Components.O3,
	}, nil
}

// FetchUVIndex returns the UV index at (lat, lon).
func (c *OpenWeatherClient) FetchUVIndex(ctx context.Context, lat, lon float64) (models.UVIndex, error) {
	var resp uvIndexResponse
	if err := c.get(ctx, EndpointUVIndex, lat, lon, false, &resp); err != nil {
		return models.UVIndex{}, err
	}
	return models.UVIndex{Value: resp.Value}, nil
}

// ValidateAPIKey issues a single current-conditions request and reports whether
// the provider accepts the key.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context, pos models.Coordinates) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := c.FetchCurrent(ctx, pos.Latitude, pos.Longitude)
	if err != nil {
		return fmt.Errorf("validate API key: %w", err)
	}
	return nil
}

// get performs one request against endpoint and decodes the JSON body into out.
// localized adds units and language parameters.
func (c *OpenWeatherClient) get(ctx context.Context, endpoint string, lat, lon float64, localized bool, out interface{}) error {
	start := time.Now()

	reqCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.buildRequest(reqCtx, endpoint, lat, lon, localized)
	if err != nil {
		c.recordFailure(endpoint, "error", time.Since(start), err)
		return fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		err = fmt.Errorf("%w: GET %s: %w", ErrNetwork, endpoint, err)
		c.recordFailure(endpoint, "error", time.Since(start), err)
		return err
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	if err := c.handleErrorResponse(endpoint, resp); err != nil {
		c.recordFailure(endpoint, status, time.Since(start), err)
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("%w: read %s response body: %w", ErrNetwork, endpoint, err)
		c.recordFailure(endpoint, status, time.Since(start), err)
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		err = fmt.Errorf("%w: parse %s response: %w", ErrProvider, endpoint, err)
		c.recordFailure(endpoint, status, time.Since(start), err)
		return err
	}

	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
	return nil
}

func (c *OpenWeatherClient) recordFailure(endpoint, status string, elapsed time.Duration, err error) {
	observability.WeatherAPICallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(endpoint, status).Observe(elapsed.Seconds())
	observability.WeatherAPIErrorsTotal.WithLabelValues(endpoint, string(CategorizeError(err))).Inc()
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, endpoint string, lat, lon float64, localized bool) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + "/" + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("appid", c.apiKey)
	if localized {
		params.Set("units", "metric")
		params.Set("lang", c.language)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// handleErrorResponse maps non-2xx statuses to provider error kinds. The
// provider's own message, when present, is kept for diagnostics.
func (c *OpenWeatherClient) handleErrorResponse(endpoint string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg := providerMessage(resp.Body)

	var kind error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		kind = ErrInvalidAPIKey
	case http.StatusNotFound:
		kind = ErrNotFound
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	default:
		kind = ErrProvider
	}
	if msg != "" {
		return fmt.Errorf("%w: %s: HTTP %d: %s", kind, endpoint, resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: %s: HTTP %d", kind, endpoint, resp.StatusCode)
}

func providerMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.Message
}

func (c *OpenWeatherClient) mapCurrent(resp currentResponse) models.CurrentWeather {
	ts := c.now()
	if resp.Dt > 0 {
		ts = time.Unix(resp.Dt, 0)
	}
	return models.CurrentWeather{
		CityName:  resp.Name,
		Temp:      resp.Main.Temp,
		FeelsLike: resp.Main.FeelsLike,
		Humidity:  resp.Main.Humidity,
		WindSpeed: resp.Wind.Speed,
		Pressure:  resp.Main.Pressure,
		Condition: firstCondition(resp.Weather),
		Sunrise:   resp.Sys.Sunrise,
		Sunset:    resp.Sys.Sunset,
		Timestamp: ts.UTC(),
	}
}

func firstCondition(conds []conditionJSON) models.Condition {
	if len(conds) == 0 {
		return models.Condition{}
	}
	return models.Condition{
		Main:        conds[0].Main,
		Description: conds[0].Description,
		Icon:        conds[0].Icon,
	}
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
