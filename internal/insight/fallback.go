package insight

// Fallback returns the hardcoded record used when live data is unavailable.
// Each call returns a fresh copy.
func Fallback() Bundle {
	return Bundle{
		Weather:        fallbackWeather(),
		JanuaryClimate: fallbackClimate(),
		Tips:           fallbackTips(),
		// Always non-nil so it encodes as [].
		GroundingSources: []GroundingSource{},
	}
}

func fallbackWeather() WeatherSnapshot {
	return WeatherSnapshot{
		Temperature: 29,
		Condition:   "Soleado",
		Description: "Cielo despejado en Oranjestad",
		Humidity:    72,
		WindSpeed:   18,
		Category:    ConditionSunny,
	}
}

func fallbackClimate() ClimateAverages {
	return ClimateAverages{
		AverageTemperature: "28°C",
		WaterTemperature:   "26°C",
		RainyDaysPerMonth:  "7 días",
	}
}

func fallbackTips() []string {
	return []string{
		"Visiten Baby Beach para aguas tranquilas.",
		"Lleven protector solar biodegradable.",
		"Cenen en Zeerover para pescado fresco.",
	}
}
