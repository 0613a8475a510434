package domain

// QueryType is the coarse classification of a request.
type QueryType string

// Query types.
const (
	QueryExact   QueryType = "exact"
	QueryVague   QueryType = "vague"
	QueryMenu    QueryType = "menu"
	QueryComplex QueryType = "complex"
)

// ParseQueryType maps model labels (Russian or English) to a QueryType. Unknown labels are Vague.
func ParseQueryType(s string) QueryType {
	switch s {
	case "точный", "exact":
		return QueryExact
	case "меню", "menu":
		return QueryMenu
	case "сложный", "complex":
		return QueryComplex
	default:
		return QueryVague
	}
}

// Modifier keys carried in QueryIntent.Modifiers and ComponentSpec.Modifiers.
const (
	ModSpiciness = "spiciness"
	ModVegan     = "vegan"
	ModCheapness = "cheapness"
)

// ComponentSpec is one part of a decomposed request, e.g. the soup of a lunch set.
type ComponentSpec struct {
	Name         string             `json:"name"`
	SearchPhrase string             `json:"search_phrase"`
	Modifiers    map[string]float64 `json:"modifiers,omitempty"`
	Count        int                `json:"count"`
	Priority     int                `json:"priority"`
}

// QueryIntent is the structured interpretation of a query.
type QueryIntent struct {
	Type               QueryType          `json:"type"`
	Category           string             `json:"category,omitempty"`
	Modifiers          map[string]float64 `json:"modifiers,omitempty"`
	SearchPhrase       string             `json:"search_phrase"`
	MiniContext        string             `json:"mini_context"`
	NeedsDecomposition bool               `json:"needs_decomposition"`
	Components         []ComponentSpec    `json:"components,omitempty"`
	// Source names the strategy that produced the intent. Logging only.
	Source string `json:"-"`
}

// VeganRequired reports whether the vegan modifier is strong enough to filter on.
func (q QueryIntent) VeganRequired() bool {
	return q.Modifiers[ModVegan] >= 0.5
}

// RequestedSpiceTier maps the spiciness strength to a tier. ok is false when no spice was requested.
func (q QueryIntent) RequestedSpiceTier() (SpiceTier, bool) {
	v, present := q.Modifiers[ModSpiciness]
	if !present || v <= 0 {
		return SpiceLow, false
	}
	switch {
	case v >= 0.75:
		return SpiceHigh, true
	case v >= 0.4:
		return SpiceMedium, true
	default:
		return SpiceLow, true
	}
}

// SearchTask is one retrieval unit derived from an intent.
type SearchTask struct {
	ID           string `json:"id"`
	SearchPhrase string `json:"search_phrase"`
	Description  string `json:"description"`
	Priority     int    `json:"priority"`
}
