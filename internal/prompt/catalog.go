// Package prompt builds the system prompts sent with every chat turn.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Product is one catalog entry.
type Product struct {
	ID             int            `json:"id"`
	Name           string         `json:"name"`
	Price          int64          `json:"price"`
	Category       string         `json:"category"`
	Description    string         `json:"description"`
	Specifications map[string]any `json:"specifications,omitempty"`
	Features       []string       `json:"features,omitempty"`
}

// Catalog is the static product list embedded into prompts.
type Catalog struct {
	Products []Product `json:"products"`
}

// LoadCatalog reads a catalog file. A missing file yields an empty catalog
// and a warning, matching a fresh install without product data.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Warn("catalog not found", "path", path)
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	return &c, nil
}

// Find returns the product with the given id.
func (c *Catalog) Find(id int) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// formatPrice renders an amount with thousands separators, e.g. 1,250,000.
func formatPrice(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := false
	if v < 0 {
		neg = true
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
