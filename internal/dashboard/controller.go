// Package dashboard owns the dashboard state: the selected city, the active
// view and one independently loading data stream per panel.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/weather-dashboard/internal/cities"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/favorites"
	"github.com/kjstillabower/weather-dashboard/internal/forecast"
	"github.com/kjstillabower/weather-dashboard/internal/geolocation"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

const (
	DefaultCurrentInterval  = 600 * time.Second
	DefaultForecastInterval = 1800 * time.Second
)

var (
	// ErrUnknownCity is returned for names in neither the city table nor the favorites.
	ErrUnknownCity = errors.New("unknown city")
	// ErrInvalidView is returned by SetView for anything but "all" and "favorites".
	ErrInvalidView = errors.New("invalid view")
	// ErrAlreadyStarted is returned by a second Start without Stop.
	ErrAlreadyStarted = errors.New("dashboard already started")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("dashboard closed")
)

// Config tunes the controller. Zero values take the defaults.
type Config struct {
	CurrentInterval  time.Duration
	ForecastInterval time.Duration
	// Location is the display timezone used to pick each day's noon sample.
	Location      *time.Location
	LocateTimeout time.Duration
}

// Controller drives the dashboard. All methods are safe for concurrent use.
//
// Every fetch captures its stream's generation number when it starts; the
// result is applied only if no newer fetch for that stream began meanwhile,
// so a slow response for a previously selected city never overwrites the
// panel of the current one.
type Controller struct {
	client    client.WeatherClient
	favorites *favorites.Service
	logger    *zap.Logger
	cfg       Config
	now       func() time.Time

	mu           sync.Mutex
	selected     models.City
	view         View
	dropdownOpen bool
	locationErr  string
	current      CurrentPanel
	forecast     ForecastPanel
	detailed     DetailedPanel
	gen          map[string]uint64

	lifecycleMu sync.Mutex
	sched       *cron.Cron
	unsubscribe func()
	jobCtx      context.Context
	closed      bool

	// bg tracks fetches started from favorites notifications.
	bg sync.WaitGroup

	lookups singleflight.Group
}

// New creates a controller showing cities.Default() in the "all" view.
func New(wc client.WeatherClient, favs *favorites.Service, logger *zap.Logger, cfg Config) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CurrentInterval <= 0 {
		cfg.CurrentInterval = DefaultCurrentInterval
	}
	if cfg.ForecastInterval <= 0 {
		cfg.ForecastInterval = DefaultForecastInterval
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LocateTimeout <= 0 {
		cfg.LocateTimeout = geolocation.DefaultTimeout
	}
	c := &Controller{
		client:    wc,
		favorites: favs,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		selected:  cities.Default(),
		view:      ViewAll,
		gen:       make(map[string]uint64),
	}
	c.current.Status = StatusIdle
	c.forecast.Status = StatusIdle
	c.detailed.Status = StatusIdle
	c.unsubscribe = favs.Subscribe(c.onFavoritesChange)
	return c
}

// Start loads current and forecast data for the selected city and arms the
// two refresh jobs. A closed controller cannot be started again.
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.sched != nil {
		return ErrAlreadyStarted
	}

	jobCtx := context.WithoutCancel(ctx)
	sched := cron.New(
		cron.WithLogger(cronLogger{c.logger.Sugar()}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{c.logger.Sugar()})),
	)
	if _, err := sched.AddFunc(every(c.cfg.CurrentInterval), func() { c.RefreshCurrent(jobCtx) }); err != nil {
		return fmt.Errorf("schedule current refresh: %w", err)
	}
	if _, err := sched.AddFunc(every(c.cfg.ForecastInterval), func() { c.RefreshForecast(jobCtx) }); err != nil {
		return fmt.Errorf("schedule forecast refresh: %w", err)
	}

	c.jobCtx = jobCtx
	c.refreshSelected(jobCtx)

	sched.Start()
	c.sched = sched
	c.logger.Info("dashboard started",
		zap.String("city", c.State().SelectedCity.Name),
		zap.Duration("currentInterval", c.cfg.CurrentInterval),
		zap.Duration("forecastInterval", c.cfg.ForecastInterval),
	)
	return nil
}

// Stop disarms both refresh jobs and waits for running jobs to finish.
// It is a no-op when the controller is not started. Favorites changes keep
// updating the detailed panel until Close.
func (c *Controller) Stop() {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	if c.sched == nil {
		return
	}
	<-c.sched.Stop().Done()
	c.sched = nil
	c.jobCtx = nil
	c.logger.Info("dashboard stopped")
}

// Close stops the controller, detaches it from the favorites service and
// waits for detailed loads started by favorites changes. It is idempotent.
func (c *Controller) Close() {
	c.Stop()

	c.lifecycleMu.Lock()
	if c.closed {
		c.lifecycleMu.Unlock()
		return
	}
	c.closed = true
	c.unsubscribe()
	c.lifecycleMu.Unlock()

	c.bg.Wait()
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// State returns a snapshot of the dashboard.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		SelectedCity:  c.selected,
		View:          c.view,
		DropdownOpen:  c.dropdownOpen,
		IsFavorite:    c.favorites.Contains(c.selected.Name),
		LocationError: c.locationErr,
		Current:       c.current,
		Forecast:      c.forecast,
		Detailed:      c.detailed,
	}
}

// DisplayCities lists the favorites in the favorites view, otherwise the
// whole city table.
func (c *Controller) DisplayCities() []CityEntry {
	c.mu.Lock()
	view, selected := c.view, c.selected.Name
	c.mu.Unlock()

	list := cities.All()
	if view == ViewFavorites {
		list = c.favorites.List()
	}
	out := make([]CityEntry, len(list))
	for i, city := range list {
		out[i] = CityEntry{
			City:     city,
			Favorite: c.favorites.Contains(city.Name),
			Selected: city.Name == selected,
		}
	}
	return out
}

// ResolveCity finds name in the city table, then among the favorites.
func (c *Controller) ResolveCity(name string) (models.City, error) {
	if city, ok := cities.Lookup(name); ok {
		return city, nil
	}
	if city, ok := c.favorites.Lookup(name); ok {
		return city, nil
	}
	return models.City{}, fmt.Errorf("%w: %q", ErrUnknownCity, name)
}

// SelectCity makes name the selected city, closes the dropdown and reloads
// the panels. It returns once the fetches it started have been applied or
// discarded.
func (c *Controller) SelectCity(ctx context.Context, name string) error {
	city, err := c.ResolveCity(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.selected = city
	c.dropdownOpen = false
	c.mu.Unlock()

	observability.RecordCitySelection(city.Name)
	loggerFromContext(ctx, c.logger).Info("city selected", zap.String("city", city.Name))

	c.refreshSelected(context.WithoutCancel(ctx))
	return nil
}

// refreshSelected reloads current and forecast concurrently, plus the
// detailed panel when it is on screen.
func (c *Controller) refreshSelected(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.RefreshCurrent(ctx)
	}()
	go func() {
		defer wg.Done()
		c.RefreshForecast(ctx)
	}()
	if c.detailedVisible() {
		c.LoadDetailed(ctx)
	} else {
		c.clearDetailed()
	}
	wg.Wait()
}

// SetView switches the dropdown between all cities and favorites. Entering
// the favorites view with a favorite selected loads the detailed panel.
func (c *Controller) SetView(ctx context.Context, view View) error {
	if view != ViewAll && view != ViewFavorites {
		return fmt.Errorf("%w: %q", ErrInvalidView, view)
	}
	c.mu.Lock()
	changed := c.view != view
	c.view = view
	c.mu.Unlock()
	if !changed {
		return nil
	}
	if c.detailedVisible() {
		c.LoadDetailed(context.WithoutCancel(ctx))
	} else {
		c.clearDetailed()
	}
	return nil
}

// ToggleDropdown flips the dropdown and returns its new state.
func (c *Controller) ToggleDropdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropdownOpen = !c.dropdownOpen
	return c.dropdownOpen
}

// ToggleFavorite adds or removes name and returns whether it is a favorite afterwards.
func (c *Controller) ToggleFavorite(ctx context.Context, name string) (bool, error) {
	city, err := c.ResolveCity(name)
	if err != nil {
		return false, err
	}
	return c.favorites.Toggle(ctx, city)
}

// Locate resolves the user's position and selects the nearest table city.
// Failures are kept in State().LocationError and returned.
func (c *Controller) Locate(ctx context.Context, locator geolocation.Locator) (models.City, error) {
	logger := loggerFromContext(ctx, c.logger)
	pos, err := geolocation.WithTimeout(locator, c.cfg.LocateTimeout).Locate(ctx)
	if err != nil {
		c.mu.Lock()
		c.locationErr = MsgLocateFailed
		c.mu.Unlock()
		logger.Warn("geolocation failed", zap.Error(err))
		return models.City{}, err
	}
	city := cities.Nearest(pos)
	c.mu.Lock()
	c.locationErr = ""
	c.mu.Unlock()
	logger.Info("location resolved",
		zap.Float64("latitude", pos.Latitude),
		zap.Float64("longitude", pos.Longitude),
		zap.String("city", city.Name),
	)
	if err := c.SelectCity(ctx, city.Name); err != nil {
		return models.City{}, err
	}
	return city, nil
}

// RefreshCurrent reloads the current-conditions panel for the selected city.
func (c *Controller) RefreshCurrent(ctx context.Context) {
	gen, city := c.begin(StreamCurrent)
	wx, err := c.client.FetchCurrent(ctx, city.Coordinates.Latitude, city.Coordinates.Longitude)
	c.finish(ctx, StreamCurrent, gen, city, err, func() {
		c.current.Data = &wx
	})
}

// RefreshForecast reloads the forecast panel for the selected city.
func (c *Controller) RefreshForecast(ctx context.Context) {
	gen, city := c.begin(StreamForecast)
	samples, err := c.client.FetchForecast(ctx, city.Coordinates.Latitude, city.Coordinates.Longitude)
	c.finish(ctx, StreamForecast, gen, city, err, func() {
		fc := c.buildForecast(city, samples)
		c.forecast.Data = &fc
	})
}

// LoadDetailed fetches current conditions, air quality and UV index for the
// selected city concurrently. The panel only shows a result when all three
// succeed.
func (c *Controller) LoadDetailed(ctx context.Context) {
	gen, city := c.begin(StreamDetailed)
	detailed, err := c.fetchDetailed(ctx, city)
	c.finish(ctx, StreamDetailed, gen, city, err, func() {
		c.detailed.Data = &detailed
	})
}

func (c *Controller) fetchDetailed(ctx context.Context, city models.City) (models.DetailedWeather, error) {
	lat, lon := city.Coordinates.Latitude, city.Coordinates.Longitude
	var (
		wx models.CurrentWeather
		aq models.AirQuality
		uv models.UVIndex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		wx, err = c.client.FetchCurrent(gctx, lat, lon)
		return err
	})
	g.Go(func() (err error) {
		aq, err = c.client.FetchAirQuality(gctx, lat, lon)
		return err
	})
	g.Go(func() (err error) {
		uv, err = c.client.FetchUVIndex(gctx, lat, lon)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.DetailedWeather{}, err
	}
	return models.DetailedWeather{
		Current:        wx,
		AirQuality:     aq,
		AQIDescription: client.DescribeAQI(aq.AQI),
		UVIndex:        uv,
		UVIDescription: client.DescribeUVI(uv.Value),
	}, nil
}

// Forecast fetches and aggregates the forecast for any known city without
// touching dashboard state. Concurrent calls for the same city share one
// upstream request.
func (c *Controller) Forecast(ctx context.Context, name string) (models.Forecast, error) {
	city, err := c.ResolveCity(name)
	if err != nil {
		return models.Forecast{}, err
	}
	v, err, shared := c.lookups.Do(city.Name, func() (interface{}, error) {
		samples, err := c.client.FetchForecast(context.WithoutCancel(ctx), city.Coordinates.Latitude, city.Coordinates.Longitude)
		if err != nil {
			return models.Forecast{}, err
		}
		return c.buildForecast(city, samples), nil
	})
	if shared {
		loggerFromContext(ctx, c.logger).Debug("forecast lookup coalesced", zap.String("city", city.Name))
	}
	if err != nil {
		return models.Forecast{}, err
	}
	return v.(models.Forecast), nil
}

func (c *Controller) buildForecast(city models.City, samples []models.ForecastSample) models.Forecast {
	return models.Forecast{
		City:    city.Name,
		Samples: samples,
		Days:    forecast.Limit(forecast.GroupByDay(samples, c.cfg.Location), forecast.StripDays),
	}
}

// detailedVisible reports whether the detailed panel is on screen: favorites
// view with a favorite selected.
func (c *Controller) detailedVisible() bool {
	c.mu.Lock()
	view, name := c.view, c.selected.Name
	c.mu.Unlock()
	return view == ViewFavorites && c.favorites.Contains(name)
}

// clearDetailed resets the detailed panel and discards any fetch in flight.
func (c *Controller) clearDetailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[StreamDetailed]++
	c.detailed = DetailedPanel{Panel: Panel{Status: StatusIdle}}
}

func (c *Controller) onFavoritesChange(ch favorites.Change) {
	c.mu.Lock()
	affectsSelected := ch.City.Name == c.selected.Name && c.view == ViewFavorites
	c.mu.Unlock()
	if !affectsSelected {
		return
	}
	switch ch.Op {
	case favorites.OpRemove:
		c.clearDetailed()
	case favorites.OpAdd:
		c.lifecycleMu.Lock()
		if c.closed {
			c.lifecycleMu.Unlock()
			return
		}
		ctx := c.jobCtx
		if ctx == nil {
			ctx = context.Background()
		}
		c.bg.Add(1)
		c.lifecycleMu.Unlock()
		go func() {
			defer c.bg.Done()
			c.LoadDetailed(ctx)
		}()
	}
}

// begin marks stream loading for the selected city and returns the fetch's
// generation. Data is kept while reloading the same city.
func (c *Controller) begin(stream string) (uint64, models.City) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen[stream]++
	p := c.panel(stream)
	if p.City != c.selected.Name {
		c.clearData(stream)
	}
	*p = Panel{Status: StatusLoading, City: c.selected.Name, UpdatedAt: p.UpdatedAt}
	return c.gen[stream], c.selected
}

// finish applies a fetch result unless a newer fetch for stream has begun.
// apply runs under c.mu and only on success.
func (c *Controller) finish(ctx context.Context, stream string, gen uint64, city models.City, err error, apply func()) {
	logger := loggerFromContext(ctx, c.logger)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen[stream] != gen {
		observability.DashboardRefreshTotal.WithLabelValues(stream, "stale").Inc()
		logger.Debug("discarded stale result", zap.String("stream", stream), zap.String("city", city.Name))
		return
	}

	now := c.now()
	p := c.panel(stream)
	if err != nil {
		c.clearData(stream)
		*p = Panel{Status: StatusFailed, City: city.Name, Error: MsgFetchFailed, UpdatedAt: &now}
		observability.DashboardRefreshTotal.WithLabelValues(stream, string(StatusFailed)).Inc()
		logger.Error("refresh failed",
			zap.String("stream", stream),
			zap.String("city", city.Name),
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err),
		)
		return
	}
	apply()
	*p = Panel{Status: StatusReady, City: city.Name, UpdatedAt: &now}
	observability.DashboardRefreshTotal.WithLabelValues(stream, string(StatusReady)).Inc()
	logger.Debug("refresh applied", zap.String("stream", stream), zap.String("city", city.Name))
}

// panel and clearData expect c.mu held.
func (c *Controller) panel(stream string) *Panel {
	switch stream {
	case StreamCurrent:
		return &c.current.Panel
	case StreamForecast:
		return &c.forecast.Panel
	default:
		return &c.detailed.Panel
	}
}

func (c *Controller) clearData(stream string) {
	switch stream {
	case StreamCurrent:
		c.current.Data = nil
	case StreamForecast:
		c.forecast.Data = nil
	default:
		c.detailed.Data = nil
	}
}

// loggerFromContext returns the request-scoped logger if present, else fallback.
func loggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return fallback
}

// cronLogger routes scheduler diagnostics to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
