package insight

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errMissingField = errors.New("missing field")

// parsed is the provider payload after per-group validation.
// A nil group failed validation and must be substituted.
type parsed struct {
	weather *WeatherSnapshot
	climate *ClimateAverages
	tips    []string
	// problems records why each missing group was rejected.
	problems map[Group]error
}

// parsePayload decodes the generated text into its three groups.
// An error means the text is not a JSON object at all.
func parsePayload(text string) (*parsed, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(text)), &top); err != nil {
		return nil, fmt.Errorf("parsing generated JSON: %w", err)
	}
	if top == nil {
		return nil, errors.New("parsing generated JSON: payload is null")
	}

	p := &parsed{problems: make(map[Group]error)}

	if w, err := decodeWeather(top[string(GroupWeather)]); err != nil {
		p.problems[GroupWeather] = err
	} else {
		p.weather = w
	}

	if c, err := decodeClimate(top[string(GroupClimate)]); err != nil {
		p.problems[GroupClimate] = err
	} else {
		p.climate = c
	}

	if t, err := decodeTips(top[string(GroupTips)]); err != nil {
		p.problems[GroupTips] = err
	} else {
		p.tips = t
	}

	return p, nil
}

// stripFences removes a ```json ... ``` wrapper the model sometimes adds when tools are on.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func decodeWeather(raw json.RawMessage) (*WeatherSnapshot, error) {
	if !present(raw) {
		return nil, errMissingField
	}

	var w struct {
		Temp          *float64 `json:"temp"`
		Condition     *string  `json:"condition"`
		Description   *string  `json:"description"`
		Humidity      *float64 `json:"humidity"`
		WindSpeed     *float64 `json:"windSpeed"`
		ConditionType *string  `json:"conditionType"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decoding weather: %w", err)
	}

	switch {
	case w.Temp == nil:
		return nil, fmt.Errorf("weather.temp: %w", errMissingField)
	case w.Condition == nil || strings.TrimSpace(*w.Condition) == "":
		return nil, fmt.Errorf("weather.condition: %w", errMissingField)
	case w.Description == nil:
		return nil, fmt.Errorf("weather.description: %w", errMissingField)
	case w.Humidity == nil:
		return nil, fmt.Errorf("weather.humidity: %w", errMissingField)
	case w.WindSpeed == nil:
		return nil, fmt.Errorf("weather.windSpeed: %w", errMissingField)
	case w.ConditionType == nil:
		return nil, fmt.Errorf("weather.conditionType: %w", errMissingField)
	}

	if *w.Humidity < 0 || *w.Humidity > 100 {
		return nil, fmt.Errorf("weather.humidity %v out of range", *w.Humidity)
	}
	if *w.WindSpeed < 0 {
		return nil, fmt.Errorf("weather.windSpeed %v is negative", *w.WindSpeed)
	}

	category := Condition(strings.ToLower(strings.TrimSpace(*w.ConditionType)))
	if !category.Valid() {
		return nil, fmt.Errorf("weather.conditionType %q is not a known category", *w.ConditionType)
	}

	return &WeatherSnapshot{
		Temperature: *w.Temp,
		Condition:   strings.TrimSpace(*w.Condition),
		Description: strings.TrimSpace(*w.Description),
		Humidity:    *w.Humidity,
		WindSpeed:   *w.WindSpeed,
		Category:    category,
	}, nil
}

func decodeClimate(raw json.RawMessage) (*ClimateAverages, error) {
	if !present(raw) {
		return nil, errMissingField
	}

	var c struct {
		AvgTemp   *string `json:"avgTemp"`
		WaterTemp *string `json:"waterTemp"`
		RainDays  *string `json:"rainDays"`
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decoding januaryClimate: %w", err)
	}

	blank := func(s *string) bool { return s == nil || strings.TrimSpace(*s) == "" }
	switch {
	case blank(c.AvgTemp):
		return nil, fmt.Errorf("januaryClimate.avgTemp: %w", errMissingField)
	case blank(c.WaterTemp):
		return nil, fmt.Errorf("januaryClimate.waterTemp: %w", errMissingField)
	case blank(c.RainDays):
		return nil, fmt.Errorf("januaryClimate.rainDays: %w", errMissingField)
	}

	return &ClimateAverages{
		AverageTemperature: strings.TrimSpace(*c.AvgTemp),
		WaterTemperature:   strings.TrimSpace(*c.WaterTemp),
		RainyDaysPerMonth:  strings.TrimSpace(*c.RainDays),
	}, nil
}

func decodeTips(raw json.RawMessage) ([]string, error) {
	if !present(raw) {
		return nil, errMissingField
	}

	var tips []string
	if err := json.Unmarshal(raw, &tips); err != nil {
		return nil, fmt.Errorf("decoding tips: %w", err)
	}

	out := make([]string, 0, len(tips))
	for _, t := range tips {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
		if len(out) == maxTips {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("tips: %w", errMissingField)
	}

	return out, nil
}
