// Package tools implements the side questions a user may ask mid-conversation:
// clock, calendar, weather, arithmetic and web search. Results are plain text
// meant to be fed back to the generator.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"formula-agent/internal/domain"
)

const (
	ToolCurrentTime = "getCurrentTime"
	ToolCurrentDate = "getCurrentDate"
	ToolWeather     = "getWeather"
	ToolCalculate   = "calculate"
	ToolSearchWeb   = "searchWeb"
)

type handlerFunc func(ctx context.Context, args map[string]string) (string, error)

type tool struct {
	def domain.ToolDefinition
	run handlerFunc
}

// Registry dispatches tool calls by name.
type Registry struct {
	now        func() time.Time
	loc        *time.Location
	httpClient *http.Client
	forecast   string
	geocode    string
	searchURL  string
	log        *slog.Logger

	tools []tool
	index map[string]int
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLocation sets the zone the clock tools report in.
func WithLocation(loc *time.Location) Option {
	return func(r *Registry) { r.loc = loc }
}

func WithHTTPClient(c *http.Client) Option {
	return func(r *Registry) { r.httpClient = c }
}

// WithWeatherURLs overrides the forecast and geocoding endpoints.
func WithWeatherURLs(forecast, geocode string) Option {
	return func(r *Registry) {
		if forecast != "" {
			r.forecast = forecast
		}
		if geocode != "" {
			r.geocode = geocode
		}
	}
}

func WithSearchURL(u string) Option {
	return func(r *Registry) {
		if u != "" {
			r.searchURL = u
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.log = l }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		now:        time.Now,
		loc:        time.Local,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		forecast:   defaultForecastURL,
		geocode:    defaultGeocodeURL,
		searchURL:  defaultSearchURL,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.register(ToolCurrentTime, "Get the current time. Use this when the user asks what time it is.",
		nil, r.currentTime)
	r.register(ToolCurrentDate, "Get the current date. Use this when the user asks what day it is or what the date is.",
		nil, r.currentDate)
	r.register(ToolWeather, "Get the current weather for a location. Use this when the user asks about weather.",
		[]param{{"location", `The city or location to get weather for (e.g., "San Francisco", "New York"). Use "current" if user doesn't specify.`, false}},
		r.weather)
	r.register(ToolCalculate, "Perform mathematical calculations. Use this when the user asks to calculate something or asks a math question.",
		[]param{{"expression", `The mathematical expression to calculate (e.g., "25 * 4", "100 / 5 + 10")`, true}},
		r.calculate)
	r.register(ToolSearchWeb, "Search for general knowledge information. Use this when the user asks factual questions you don't know the answer to.",
		[]param{{"query", "The search query or question to look up", true}},
		r.search)
	return r
}

type param struct {
	name        string
	description string
	required    bool
}

func (r *Registry) register(name, description string, params []param, run handlerFunc) {
	schema := map[string]any{"type": "object", "properties": map[string]any{}}
	props := schema["properties"].(map[string]any)
	var required []string
	for _, p := range params {
		props[p.name] = map[string]string{"type": "string", "description": p.description}
		if p.required {
			required = append(required, p.name)
		}
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)

	if r.index == nil {
		r.index = make(map[string]int)
	}
	r.index[name] = len(r.tools)
	r.tools = append(r.tools, tool{
		def: domain.ToolDefinition{Name: name, Description: description, Parameters: raw},
		run: run,
	})
}

// Definitions lists every tool in registration order.
func (r *Registry) Definitions() []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, len(r.tools))
	for i, t := range r.tools {
		out[i] = t.def
	}
	return out
}

// Execute runs call and returns the text to inject as the tool result.
// Failures become a short message instead of an error so the conversation
// can continue.
func (r *Registry) Execute(ctx context.Context, call domain.ToolCall) string {
	name := call.Function.Name
	i, ok := r.index[name]
	if !ok {
		r.log.Warn("unknown tool requested", "tool", name)
		return fmt.Sprintf("Unknown function: %s", name)
	}

	args := map[string]string{}
	if call.Function.Arguments != "" {
		var raw map[string]any
		if err := json.Unmarshal([]byte(call.Function.Arguments), &raw); err != nil {
			r.log.Warn("tool arguments are not JSON", "tool", name, "err", err)
		}
		for k, v := range raw {
			if s, ok := v.(string); ok {
				args[k] = s
			} else if v != nil {
				args[k] = fmt.Sprint(v)
			}
		}
	}

	start := r.now()
	out, err := r.tools[i].run(ctx, args)
	if err != nil {
		r.log.Warn("tool failed", "tool", name, "err", err)
		return failureMessage(name, err)
	}
	r.log.Info("tool executed", "tool", name, "duration_ms", r.now().Sub(start).Milliseconds())
	return out
}

// userError is an error whose message is safe to show as the tool result.
type userError string

func (e userError) Error() string { return string(e) }

func failureMessage(name string, err error) string {
	if ue, ok := err.(userError); ok {
		return string(ue)
	}
	switch name {
	case ToolWeather:
		return "Failed to fetch weather data"
	case ToolSearchWeb:
		return "Web search temporarily unavailable. Please try again later."
	case ToolCalculate:
		return "Invalid calculation"
	default:
		return fmt.Sprintf("Error executing %s", name)
	}
}
