package domain

import "strings"

// SpiceTier is the ordinal spiciness bucket of an item.
type SpiceTier int

// Spice tiers. Levels 2 and above collapse into SpiceHigh.
const (
	SpiceLow SpiceTier = iota
	SpiceMedium
	SpiceHigh
)

// MaxSpiceTier is the top tier; requesting it makes spice a hard filter.
const MaxSpiceTier = SpiceHigh

// String returns the catalog label of the tier.
func (t SpiceTier) String() string {
	switch t {
	case SpiceLow:
		return "низкая"
	case SpiceMedium:
		return "средняя"
	default:
		return "высокая"
	}
}

// SpiceTierOf maps the raw stored spice level to its tier.
func SpiceTierOf(level int) SpiceTier {
	switch {
	case level <= 0:
		return SpiceLow
	case level == 1:
		return SpiceMedium
	default:
		return SpiceHigh
	}
}

// IsVeganOf maps the raw stored vegan flag (0/1) to a bool.
func IsVeganOf(flag int) bool {
	return flag != 0
}

// Item is the denormalized catalog record held in index metadata.
// Description, Ingredients and Tags are always present, possibly empty.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	SpiceLevel  int      `json:"spice_level"`
	IsVegan     int      `json:"is_vegan"`
	Description string   `json:"description"`
	Ingredients []string `json:"ingredients"`
	Tags        []string `json:"tags"`
}

// Normalized returns a copy with nil slices replaced by empty ones and text trimmed.
func (it Item) Normalized() Item {
	it.ID = strings.TrimSpace(it.ID)
	it.Name = strings.TrimSpace(it.Name)
	it.Category = strings.TrimSpace(it.Category)
	if it.Ingredients == nil {
		it.Ingredients = []string{}
	}
	if it.Tags == nil {
		it.Tags = []string{}
	}
	return it
}

// DocumentText is the text embedded for the item: name, description, ingredients, category, tags.
func (it Item) DocumentText() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{
		it.Name,
		it.Description,
		strings.Join(it.Ingredients, " "),
		it.Category,
		strings.Join(it.Tags, " "),
	} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
