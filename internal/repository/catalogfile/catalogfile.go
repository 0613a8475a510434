// Package catalogfile reads a catalog export from a JSON file.
//
// Two layouts are accepted: a bare array of items, or an object with an
// "items" array (the layout of the index meta.json). Ingredients and tags may
// be plain strings or objects carrying a name.
package catalogfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kailas-cloud/dishfinder/internal/domain"
)

// ErrMalformedCatalog is returned for a file that is not a catalog export.
var ErrMalformedCatalog = errors.New("malformed catalog export")

// Source reads items from a file on every List call.
type Source struct {
	path string
}

// New creates a file source.
func New(path string) *Source { return &Source{path: path} }

// List implements catalog.Source.
func (s *Source) List(ctx context.Context) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Decode(data)
}

type rawItem struct {
	ID          json.RawMessage   `json:"id"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	CategoryAlt string            `json:"category_name"`
	Price       float64           `json:"price"`
	SpiceLevel  int               `json:"spice_level"`
	IsVegan     json.RawMessage   `json:"is_vegan"`
	Description string            `json:"description"`
	Ingredients []json.RawMessage `json:"ingredients"`
	Tags        []json.RawMessage `json:"tags"`
}

// Decode parses a catalog export.
func Decode(data []byte) ([]domain.Item, error) {
	var raws []rawItem
	if err := json.Unmarshal(data, &raws); err != nil {
		var wrapped struct {
			Items []rawItem `json:"items"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCatalog, err)
		}
		raws = wrapped.Items
	}

	items := make([]domain.Item, 0, len(raws))
	for i, r := range raws {
		id, err := decodeID(r.ID)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w: %w", i, ErrMalformedCatalog, err)
		}
		vegan, err := decodeFlag(r.IsVegan)
		if err != nil {
			return nil, fmt.Errorf("item %s: is_vegan: %w: %w", id, ErrMalformedCatalog, err)
		}
		category := r.Category
		if category == "" {
			category = r.CategoryAlt
		}
		items = append(items, domain.Item{
			ID:          id,
			Name:        r.Name,
			Category:    category,
			Price:       r.Price,
			SpiceLevel:  r.SpiceLevel,
			IsVegan:     vegan,
			Description: r.Description,
			Ingredients: names(r.Ingredients, "ingredient_name"),
			Tags:        names(r.Tags, "tag_name"),
		}.Normalized())
	}
	return items, nil
}

// decodeID accepts a string or an integer id.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("id: %w", err)
	}
	return n.String(), nil
}

// decodeFlag accepts 0/1 or a boolean.
func decodeFlag(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, err
	}
	if v != 0 {
		return 1, nil
	}
	return 0, nil
}

// names flattens strings or {"name": ...} objects, skipping anything else.
func names(raws []json.RawMessage, altKey string) []string {
	out := make([]string, 0, len(raws))
	for _, raw := range raws {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}
		for _, key := range []string{"name", altKey} {
			if v, ok := obj[key].(string); ok && strings.TrimSpace(v) != "" {
				out = append(out, strings.TrimSpace(v))
				break
			}
		}
	}
	return out
}
