package insight

// Condition is the coarse weather category used to pick an icon.
type Condition string

const (
	ConditionSunny  Condition = "sunny"
	ConditionCloudy Condition = "cloudy"
	ConditionRainy  Condition = "rainy"
	ConditionWindy  Condition = "windy"
)

// Valid reports whether c is one of the known categories.
func (c Condition) Valid() bool {
	switch c {
	case ConditionSunny, ConditionCloudy, ConditionRainy, ConditionWindy:
		return true
	}
	return false
}

// WeatherSnapshot holds current conditions at the destination.
type WeatherSnapshot struct {
	Temperature float64   `json:"temp"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
	Category    Condition `json:"conditionType"`
}

// ClimateAverages holds historical January values as free text ("28°C", "7 días").
type ClimateAverages struct {
	AverageTemperature string `json:"avgTemp"`
	WaterTemperature   string `json:"waterTemp"`
	RainyDaysPerMonth  string `json:"rainDays"`
}

// GroundingSource is a citation returned with the generated content.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Bundle is the weather, climate, tips and provenance shown on the page.
type Bundle struct {
	Weather          WeatherSnapshot   `json:"weather"`
	JanuaryClimate   ClimateAverages   `json:"januaryClimate"`
	Tips             []string          `json:"tips"`
	GroundingSources []GroundingSource `json:"groundingSources"`
}

// Highlights returns the tips shown on the page (at most two).
func (b Bundle) Highlights() []string {
	if len(b.Tips) <= highlightCount {
		return b.Tips
	}
	return b.Tips[:highlightCount]
}

const (
	highlightCount = 2
	maxTips        = 10
)

// Group names a top-level section of the generated payload.
type Group string

const (
	GroupWeather Group = "weather"
	GroupClimate Group = "januaryClimate"
	GroupTips    Group = "tips"
)

// Status describes how a Bundle was obtained.
type Status string

const (
	// StatusLive means every group came from the provider.
	StatusLive Status = "live"
	// StatusPartial means some groups were replaced by fallback values.
	StatusPartial Status = "partial"
	// StatusFallback means the provider call failed and the whole fallback record is used.
	StatusFallback Status = "fallback"
)

// Outcome is the result of a fetch. Bundle is always usable.
type Outcome struct {
	Bundle  Bundle  `json:"bundle"`
	Status  Status  `json:"status"`
	Missing []Group `json:"missing,omitempty"`
	Err     error   `json:"-"`
}

// Degraded reports whether any fallback data is in use.
func (o Outcome) Degraded() bool {
	return o.Status != StatusLive
}
