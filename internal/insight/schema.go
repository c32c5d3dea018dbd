package insight

import (
	"fmt"

	"google.golang.org/genai"
)

func object(props map[string]*genai.Schema, required ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

func scalar(t genai.Type) *genai.Schema { return &genai.Schema{Type: t} }

// responseSchema describes the JSON object the model must return.
func responseSchema() *genai.Schema {
	return object(map[string]*genai.Schema{
		string(GroupWeather): object(map[string]*genai.Schema{
			"temp":        scalar(genai.TypeNumber),
			"condition":   scalar(genai.TypeString),
			"description": scalar(genai.TypeString),
			"humidity":    scalar(genai.TypeNumber),
			"windSpeed":   scalar(genai.TypeNumber),
			"conditionType": {
				Type: genai.TypeString,
				Enum: []string{
					string(ConditionSunny), string(ConditionCloudy),
					string(ConditionRainy), string(ConditionWindy),
				},
			},
		}, "temp", "condition", "description", "humidity", "windSpeed", "conditionType"),
		string(GroupClimate): object(map[string]*genai.Schema{
			"avgTemp":   scalar(genai.TypeString),
			"waterTemp": scalar(genai.TypeString),
			"rainDays":  scalar(genai.TypeString),
		}, "avgTemp", "waterTemp", "rainDays"),
		string(GroupTips): {Type: genai.TypeArray, Items: scalar(genai.TypeString)},
	}, string(GroupWeather), string(GroupClimate), string(GroupTips))
}

// buildPrompt asks for today's weather, January averages and three tips for location.
func buildPrompt(location string, year int) string {
	return fmt.Sprintf(
		"Proporciona datos climáticos detallados para hoy en %s (temperatura en °C, humedad en %%, viento en km/h), "+
			"el clima promedio de enero (temperatura del aire, temperatura del agua, días de lluvia) "+
			"y 3 consejos de viaje breves para enero de %d. Responde en español.",
		location, year,
	)
}
