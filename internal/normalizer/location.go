package normalizer

import (
	"strings"

	"github.com/repolens/repolens/internal/model"
)

type cityRule struct {
	city     model.City
	patterns []string
}

var cityRules = []cityRule{
	{model.City{Name: "San Francisco", Country: "USA", Lat: 37.7749, Lon: -122.4194}, []string{"san francisco", "sf, ca"}},
	{model.City{Name: "New York", Country: "USA", Lat: 40.7128, Lon: -74.0060}, []string{"new york", "nyc", "ny"}},
	{model.City{Name: "London", Country: "UK", Lat: 51.5074, Lon: -0.1278}, []string{"london"}},
	{model.City{Name: "Paris", Country: "France", Lat: 48.8566, Lon: 2.3522}, []string{"paris"}},
	{model.City{Name: "Berlin", Country: "Germany", Lat: 52.5200, Lon: 13.4050}, []string{"berlin"}},
	{model.City{Name: "Tokyo", Country: "Japan", Lat: 35.6762, Lon: 139.6503}, []string{"tokyo"}},
	{model.City{Name: "Beijing", Country: "China", Lat: 39.9042, Lon: 116.4074}, []string{"beijing"}},
	{model.City{Name: "Shanghai", Country: "China", Lat: 31.2304, Lon: 121.4737}, []string{"shanghai"}},
	{model.City{Name: "Seattle", Country: "USA", Lat: 47.6062, Lon: -122.3321}, []string{"seattle"}},
	{model.City{Name: "Austin", Country: "USA", Lat: 30.2672, Lon: -97.7431}, []string{"austin"}},
	{model.City{Name: "Boston", Country: "USA", Lat: 42.3601, Lon: -71.0589}, []string{"boston"}},
	{model.City{Name: "Chicago", Country: "USA", Lat: 41.8781, Lon: -87.6298}, []string{"chicago"}},
	{model.City{Name: "Los Angeles", Country: "USA", Lat: 34.0522, Lon: -118.2437}, []string{"los angeles", "la, ca"}},
	{model.City{Name: "Toronto", Country: "Canada", Lat: 43.6532, Lon: -79.3832}, []string{"toronto"}},
	{model.City{Name: "Vancouver", Country: "Canada", Lat: 49.2827, Lon: -123.1207}, []string{"vancouver"}},
	{model.City{Name: "Sydney", Country: "Australia", Lat: -33.8688, Lon: 151.2093}, []string{"sydney"}},
	{model.City{Name: "Melbourne", Country: "Australia", Lat: -37.8136, Lon: 144.9631}, []string{"melbourne"}},
	{model.City{Name: "Singapore", Country: "Singapore", Lat: 1.3521, Lon: 103.8198}, []string{"singapore"}},
	{model.City{Name: "Bangalore", Country: "India", Lat: 12.9716, Lon: 77.5946}, []string{"bangalore", "bengaluru"}},
	{model.City{Name: "Mumbai", Country: "India", Lat: 19.0760, Lon: 72.8777}, []string{"mumbai"}},
	{model.City{Name: "Tel Aviv", Country: "Israel", Lat: 32.0853, Lon: 34.7818}, []string{"tel aviv"}},
	{model.City{Name: "Amsterdam", Country: "Netherlands", Lat: 52.3676, Lon: 4.9041}, []string{"amsterdam"}},
	{model.City{Name: "Stockholm", Country: "Sweden", Lat: 59.3293, Lon: 18.0686}, []string{"stockholm"}},
	{model.City{Name: "Copenhagen", Country: "Denmark", Lat: 55.6761, Lon: 12.5683}, []string{"copenhagen"}},
}

// ResolveCity maps a free-form owner location string like "Brooklyn, NY" or
// "Bengaluru, India" onto a known city with coordinates. Unrecognized
// locations resolve to nothing rather than a placeholder.
func ResolveCity(raw string) (model.City, bool) {
	if raw == "" {
		return model.City{}, false
	}
	lowered := strings.ToLower(raw)
	for _, rule := range cityRules {
		for _, pattern := range rule.patterns {
			if matchesPattern(lowered, pattern) {
				return rule.city, true
			}
		}
	}
	return model.City{}, false
}

// Short codes match whole tokens only; a substring match would make
// "Sunnyvale" read as New York.
func matchesPattern(lowered, pattern string) bool {
	if len(pattern) > 3 {
		return strings.Contains(lowered, pattern)
	}
	for _, token := range strings.FieldsFunc(lowered, func(r rune) bool {
		return r == ',' || r == ' ' || r == '/'
	}) {
		if token == pattern {
			return true
		}
	}
	return false
}
