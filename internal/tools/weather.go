package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/leocavalcante/leochat/internal/llm"
)

const GetWeatherToolName = "get_weather"

// weatherDescriptions maps WMO weather codes to human-readable conditions.
var weatherDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	71: "Slight snow",
	73: "Moderate snow",
	75: "Heavy snow",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

// GetWeatherTool reports current conditions using the open-meteo geocoding
// and forecast APIs.
type GetWeatherTool struct {
	client      *http.Client
	geocodeURL  string
	forecastURL string
}

func NewGetWeatherTool() *GetWeatherTool {
	return &GetWeatherTool{
		client:      &http.Client{Timeout: 30 * time.Second},
		geocodeURL:  "https://geocoding-api.open-meteo.com",
		forecastURL: "https://api.open-meteo.com",
	}
}

func (t *GetWeatherTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        GetWeatherToolName,
		Description: "Get current weather information for a location. Use this when the user asks about weather conditions.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"location": map[string]interface{}{
					"type":        "string",
					"description": "The city or location to get weather for (e.g., 'London', 'New York', 'Tokyo')",
				},
			},
			"required": []string{"location"},
		},
	}
}

func (t *GetWeatherTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var payload struct {
		Location string `json:"location"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return "", fmt.Errorf("parse get_weather args: %w", err)
	}

	geoURL := fmt.Sprintf("%s/v1/search?name=%s&count=1", t.geocodeURL, url.QueryEscape(payload.Location))
	var geo struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Name      string  `json:"name"`
			Country   string  `json:"country"`
		} `json:"results"`
	}
	if err := t.getJSON(ctx, geoURL, &geo); err != nil {
		return fmt.Sprintf("Weather lookup failed: %v", err), nil
	}
	if len(geo.Results) == 0 {
		return fmt.Sprintf("Could not find location: %s", payload.Location), nil
	}
	place := geo.Results[0]

	forecastURL := fmt.Sprintf(
		"%s/v1/forecast?latitude=%g&longitude=%g&current=temperature_2m,relative_humidity_2m,apparent_temperature,weather_code,wind_speed_10m&timezone=auto",
		t.forecastURL, place.Latitude, place.Longitude)
	var forecast struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			Humidity    float64 `json:"relative_humidity_2m"`
			FeelsLike   float64 `json:"apparent_temperature"`
			WeatherCode int     `json:"weather_code"`
			WindSpeed   float64 `json:"wind_speed_10m"`
		} `json:"current"`
	}
	if err := t.getJSON(ctx, forecastURL, &forecast); err != nil {
		return fmt.Sprintf("Weather lookup failed: %v", err), nil
	}

	description, ok := weatherDescriptions[forecast.Current.WeatherCode]
	if !ok {
		description = "Unknown"
	}

	return fmt.Sprintf(`Weather in %s, %s:
- Condition: %s
- Temperature: %g°C
- Feels like: %g°C
- Humidity: %g%%
- Wind speed: %g km/h`,
		place.Name, place.Country,
		description,
		forecast.Current.Temperature,
		forecast.Current.FeelsLike,
		forecast.Current.Humidity,
		forecast.Current.WindSpeed), nil
}

func (t *GetWeatherTool) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}
