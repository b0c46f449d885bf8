package resilience

import (
	"fmt"
	"time"

	"github.com/voyago/voyago-travel-assistant/pkg/logging"
	"github.com/voyago/voyago-travel-assistant/pkg/mcp"
)

// DegradedResponse is a canned, reduced-fidelity answer for a provider
// category.
type DegradedResponse struct {
	Message      string                 `json:"message"`
	Suggestions  []string               `json:"suggestions"`
	FallbackData map[string]interface{} `json:"fallback_data"`
}

// DegradedResponseCatalog maps provider services to categories and
// categories to canned degraded payloads. A degraded response is a
// successful outcome from the caller's point of view: valid data to show the
// user, just reduced in fidelity.
type DegradedResponseCatalog struct {
	categories map[string]string
	responses  map[string]DegradedResponse
	logger     *logging.Logger
}

// NewDegradedResponseCatalog creates a catalog with the built-in travel
// provider categories and canned responses.
func NewDegradedResponseCatalog() *DegradedResponseCatalog {
	return &DegradedResponseCatalog{
		categories: map[string]string{
			"duffel_flights":  "flights",
			"amadeus_flights": "flights",
			"kiwi_flights":    "flights",
			"airbnb":          "accommodations",
			"booking_com":     "accommodations",
			"expedia":         "accommodations",
			"google_maps":     "maps",
			"mapbox":          "maps",
			"here_maps":       "maps",
			"openweather":     "weather",
			"open_meteo":      "weather",
		},
		responses: map[string]DegradedResponse{
			"flights": {
				Message: "Flight search is temporarily unavailable.",
				Suggestions: []string{
					"Try again in a few minutes",
					"Check airline websites directly",
					"Consider flexible travel dates",
				},
				FallbackData: map[string]interface{}{
					"results":   []interface{}{},
					"total":     0,
					"available": false,
				},
			},
			"accommodations": {
				Message: "Accommodation search is temporarily unavailable.",
				Suggestions: []string{
					"Try again in a few minutes",
					"Check hotel websites directly",
					"Consider nearby locations",
				},
				FallbackData: map[string]interface{}{
					"results":   []interface{}{},
					"total":     0,
					"available": false,
				},
			},
			"maps": {
				Message: "Map and routing data is temporarily unavailable.",
				Suggestions: []string{
					"Try again in a few minutes",
					"Use approximate travel times for planning",
				},
				FallbackData: map[string]interface{}{
					"routes":    []interface{}{},
					"available": false,
				},
			},
			"weather": {
				Message: "Weather data is temporarily unavailable.",
				Suggestions: []string{
					"Try again in a few minutes",
					"Check a weather service directly",
				},
				FallbackData: map[string]interface{}{
					"forecast":  []interface{}{},
					"available": false,
				},
			},
		},
		logger: logging.GetLogger(),
	}
}

// RegisterService adds or overrides the category mapping for a service.
// Must be called during setup, before concurrent use.
func (c *DegradedResponseCatalog) RegisterService(service, category string) {
	c.categories[service] = category
}

// Category returns the category a service degrades into
func (c *DegradedResponseCatalog) Category(service string) (string, bool) {
	category, ok := c.categories[service]
	return category, ok
}

// Degrade builds a canned degraded response for the failed operation,
// stamped with the original params and the current timestamp.
func (c *DegradedResponseCatalog) Degrade(service, method string, params mcp.Params) *FallbackResult {
	category, ok := c.categories[service]
	if !ok {
		return failureResult(StrategyGracefulDegradation,
			fmt.Sprintf("no graceful degradation available for service %q", service))
	}

	canned := c.responses[category]

	fallbackData := make(map[string]interface{}, len(canned.FallbackData)+3)
	for k, v := range canned.FallbackData {
		fallbackData[k] = v
	}
	fallbackData["service"] = category
	fallbackData["original_params"] = params
	fallbackData["generated_at"] = time.Now().UTC().Format(time.RFC3339)

	payload := map[string]interface{}{
		"message":       canned.Message,
		"suggestions":   canned.Suggestions,
		"fallback_data": fallbackData,
	}

	c.logger.Info("Serving degraded response",
		"service", service,
		"method", method,
		"category", category,
	)

	return successResult(StrategyGracefulDegradation, payload).
		withMeta("category", category).
		withMeta("degraded", true)
}
