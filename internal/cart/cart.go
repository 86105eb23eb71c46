package cart

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ID is a line or product identifier. Guest carts generate string
// ids client-side; the backend hands out numeric ids for server
// carts, so decoding accepts both shapes.
type ID string

func (id ID) String() string { return string(id) }

func (id *ID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Price wraps a decimal amount with lenient decoding: a missing,
// null, or malformed price reads as zero so denormalized snapshots
// from either cart origin never fail to load.
type Price struct {
	decimal.Decimal
}

func NewPrice(d decimal.Decimal) Price { return Price{Decimal: d} }

func PriceFromString(value string) Price {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Price{}
	}
	return Price{Decimal: d}
}

func (p *Price) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		p.Decimal = decimal.Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(trimmed); err != nil {
		p.Decimal = decimal.Zero
		return nil
	}
	p.Decimal = d
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal.String()), nil
}

// Line is one product entry in a cart. The name, price, and image
// are a denormalized snapshot taken when the line was created; they
// are not refreshed against the live catalog.
type Line struct {
	LineID       ID     `json:"id"`
	ProductID    ID     `json:"product_id"`
	ProductName  string `json:"product_name"`
	UnitPrice    Price  `json:"product_price"`
	ProductImage string `json:"product_image,omitempty"`
	Quantity     int    `json:"quantity"`
}

// LineTotal is always recomputed from its inputs, never stored.
func (l Line) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered collection of lines plus the derived grand total.
type Cart struct {
	Items      []Line `json:"items"`
	GrandTotal Price  `json:"grand_total"`
}

// TotalQuantity sums line quantities; it backs the cart badge count.
func TotalQuantity(lines []Line) int {
	total := 0
	for _, line := range lines {
		total += line.Quantity
	}
	return total
}

// GrandTotal recomputes the cart total from current lines on every
// call. Malformed prices decode as zero upstream, so incomplete
// snapshots contribute nothing instead of failing.
func GrandTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal())
	}
	return total
}
