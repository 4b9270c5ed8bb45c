package prompt

import (
	"fmt"
	"strconv"
	"strings"
)

const unspecified = "not specified"

// Preferences drive a recommendation request.
type Preferences struct {
	Budget     int64    `json:"budget,omitempty"`
	Style      string   `json:"style,omitempty"`
	Room       string   `json:"room,omitempty"`
	Priorities []string `json:"priorities,omitempty"`
}

// Recommendation renders the user message for a recommendation request.
func Recommendation(p Preferences) string {
	budget := unspecified
	if p.Budget > 0 {
		budget = formatPrice(p.Budget)
	}
	return fmt.Sprintf(`Based on the following customer preferences, recommend the best furniture:

Preferences:
- Budget: %s
- Style: %s
- Room: %s
- Priorities: %s

INSTRUCTIONS:
1. Recommend the 2-3 most suitable products
2. Explain why each product fits their needs
3. Offer alternatives within budget where available
4. Be ready to negotiate or customize`,
		budget, orUnspecified(p.Style), orUnspecified(p.Room), strings.Join(p.Priorities, ", "))
}

// Comparison renders the user message for a product comparison.
func Comparison(productIDs []int) string {
	ids := make([]string, len(productIDs))
	for i, id := range productIDs {
		ids[i] = strconv.Itoa(id)
	}
	return fmt.Sprintf(`Compare the products with IDs: %s

COMPARISON FOCUS:
1. Price vs value
2. Materials & durability
3. Design & aesthetics
4. Features & functionality
5. Fit with different interior styles
6. Best for (use case)

Give a clear comparison table and say which one is best for which scenario.`, strings.Join(ids, ", "))
}

// StyledRoom renders a room styling request.
func StyledRoom(room, style string) string {
	return fmt.Sprintf(`You are an interior design consultant. Put together a furniture set for a %s in %s style.

DELIVERABLES:
1. A harmonious selection of furniture
2. Color palette recommendation
3. Layout suggestions
4. Total estimated cost
5. Alternatives at different budgets

Focus on aesthetic cohesion, functionality and value for money.`, orUnspecified(room), orUnspecified(style))
}

func orUnspecified(s string) string {
	if s == "" {
		return unspecified
	}
	return s
}
