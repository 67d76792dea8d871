package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-collector/internal/weather"
)

// DefaultOpenWeatherBaseURL is the public OpenWeatherMap API host.
const DefaultOpenWeatherBaseURL = "https://api.openweathermap.org"

// OpenWeatherConfig holds the fixed parameters of every current-weather call.
type OpenWeatherConfig struct {
	APIKey   string
	BaseURL  string
	Location weather.Location
	// RatePerMinute caps calls against the API key; 0 disables the limiter.
	RatePerMinute int
	// Interval is the collection interval. An open circuit breaker is
	// half-open again before the next cycle; 0 keeps the 30 minute default.
	Interval time.Duration
}

// OpenWeatherFetcher implements weather.Fetcher for OpenWeatherMap.
type OpenWeatherFetcher struct {
	name     string
	apiKey   string
	endpoint string
	location weather.Location
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	logger   *slog.Logger
}

func NewOpenWeatherFetcher(client *http.Client, cfg OpenWeatherConfig, logger *slog.Logger) *OpenWeatherFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultOpenWeatherBaseURL
	}

	var limiter *rate.Limiter
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1)
	}

	return &OpenWeatherFetcher{
		name:     "openweathermap",
		apiKey:   cfg.APIKey,
		endpoint: base + "/data/2.5/weather",
		location: cfg.Location,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Limiter: limiter,
		},
		circuit: newCircuitBreaker("openweather", breakerTimeout(cfg.Interval)),
		logger:  logger.With("provider", "openweathermap", "location", cfg.Location.Key()),
	}
}

func (p *OpenWeatherFetcher) Name() string {
	return p.name
}

// Fetch retrieves and normalizes the current observation. Missing or oddly
// typed nested fields degrade to nulls/defaults; only a body that is not a
// JSON object yields weather.ErrParse.
func (p *OpenWeatherFetcher) Fetch(ctx context.Context) (weather.Observation, error) {
	if p.apiKey == "" {
		return weather.Observation{}, fmt.Errorf("%w: openweather api key is not configured", weather.ErrUpstream)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(p.location.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(p.location.Lon, 'f', -1, 64))
		values.Set("units", "metric")
		values.Set("appid", p.apiKey)

		u := fmt.Sprintf("%s?%s", p.endpoint, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	body, err := doRequest(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Observation{}, err
	}

	return p.parse(body)
}

// Sections of the current-weather payload. Numeric fields are decoded as
// floats so fractional integers (e.g. pressure 1012.5) do not fail decoding.
type owMain struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
	Pressure *float64 `json:"pressure"`
}

type owWind struct {
	Speed *float64 `json:"speed"`
	Deg   *float64 `json:"deg"`
}

type owCondition struct {
	Description *string `json:"description"`
}

func (p *OpenWeatherFetcher) parse(body []byte) (weather.Observation, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return weather.Observation{}, fmt.Errorf("%w: %w", weather.ErrParse, err)
	}
	if top == nil {
		return weather.Observation{}, fmt.Errorf("%w: response is not a JSON object", weather.ErrParse)
	}

	var dt float64
	p.section(top, "dt", &dt)

	var main owMain
	p.section(top, "main", &main)

	var wind owWind
	p.section(top, "wind", &wind)

	description := weather.DefaultDescription
	var conditions []json.RawMessage
	if p.section(top, "weather", &conditions) && len(conditions) > 0 {
		var first owCondition
		if err := json.Unmarshal(conditions[0], &first); err != nil {
			p.logger.Debug("ignoring malformed weather condition", "error", err)
		} else if first.Description != nil {
			description = *first.Description
		}
	}

	windDirection := 0
	if d := roundPtr(wind.Deg); d != nil {
		windDirection = *d
	}

	return weather.Observation{
		Timestamp:     time.Unix(int64(dt), 0),
		Temperature:   main.Temp,
		Humidity:      roundPtr(main.Humidity),
		Pressure:      roundPtr(main.Pressure),
		WindSpeed:     wind.Speed,
		WindDirection: windDirection,
		Description:   description,
		City:          p.location.City,
	}, nil
}

// section decodes top[key] into dst and reports whether it held usable data.
// Missing keys and type mismatches leave dst at its zero value.
func (p *OpenWeatherFetcher) section(top map[string]json.RawMessage, key string, dst any) bool {
	raw, ok := top[key]
	if !ok || string(raw) == "null" {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		p.logger.Debug("ignoring malformed response section", "section", key, "error", err)
		return false
	}
	return true
}

func roundPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}
