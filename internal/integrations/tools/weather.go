package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	defaultForecastURL = "https://api.open-meteo.com/v1/forecast"
	defaultGeocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
)

type place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

var defaultPlace = place{Name: "San Francisco", Latitude: 37.7749, Longitude: -122.4194}

type geocodeResponse struct {
	Results []place `json:"results"`
}

type forecastResponse struct {
	CurrentWeather *struct {
		Temperature float64 `json:"temperature"`
		WeatherCode int     `json:"weathercode"`
	} `json:"current_weather"`
}

func (r *Registry) weather(ctx context.Context, args map[string]string) (string, error) {
	loc := defaultPlace
	if q := strings.TrimSpace(args["location"]); q != "" && !strings.EqualFold(q, "current") {
		found, err := r.lookupPlace(ctx, q)
		switch {
		case err != nil:
			r.log.Warn("geocoding failed, using default location", "location", q, "err", err)
		case found != nil:
			loc = *found
		}
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	params.Set("current_weather", "true")
	params.Set("temperature_unit", "fahrenheit")

	var out forecastResponse
	if err := r.getJSON(ctx, r.forecast+"?"+params.Encode(), &out); err != nil {
		return "", err
	}
	if out.CurrentWeather == nil {
		return "", userError("Weather data not available")
	}
	temp := int(math.Round(out.CurrentWeather.Temperature))
	return fmt.Sprintf("%d°F and %s in %s", temp, weatherCondition(out.CurrentWeather.WeatherCode), loc.Name), nil
}

func (r *Registry) lookupPlace(ctx context.Context, name string) (*place, error) {
	params := url.Values{}
	params.Set("name", name)
	params.Set("count", "1")
	params.Set("language", "en")
	params.Set("format", "json")

	var out geocodeResponse
	if err := r.getJSON(ctx, r.geocode+"?"+params.Encode(), &out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, nil
	}
	return &out.Results[0], nil
}

// weatherCondition maps WMO weather codes to a short description.
func weatherCondition(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "foggy"
	case code <= 67:
		return "rainy"
	case code <= 77:
		return "snowy"
	case code <= 82:
		return "showery"
	case code <= 99:
		return "stormy"
	}
	return "cloudy"
}

func (r *Registry) getJSON(ctx context.Context, u string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("tools: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	res, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tools: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("tools: unexpected status %d from %s", res.StatusCode, req.URL.Host)
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("tools: decode response: %w", err)
	}
	return nil
}
