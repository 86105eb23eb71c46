// Package guest holds the anonymous visitor's cart in local
// persisted storage with no network dependency.
package guest

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-client/internal/cart"
	"github.com/angelmondragon/storefront-client/internal/localstore"
)

// StorageKey is the fixed namespace key for the guest cart blob.
const StorageKey = "guest_cart"

// Product is the catalog snapshot captured onto a new line.
type Product struct {
	ID    cart.ID
	Name  string
	Price cart.Price
	Image string
}

type Store struct {
	store *localstore.Store
}

func NewStore(store *localstore.Store) *Store {
	return &Store{store: store}
}

// Load returns the persisted guest lines. Missing or unparsable
// state reads as an empty cart, never an error.
func (s *Store) Load() []cart.Line {
	var lines []cart.Line
	if !s.store.Get(StorageKey, &lines) {
		return nil
	}
	// Drop lines an older blob shape may have left without a
	// positive quantity or product reference.
	kept := lines[:0]
	for _, line := range lines {
		if line.Quantity >= 1 && line.ProductID != "" {
			kept = append(kept, line)
		}
	}
	return kept
}

// Save overwrites the persisted cart with the given lines.
func (s *Store) Save(lines []cart.Line) {
	s.store.Set(StorageKey, lines)
}

// Clear removes the persisted cart entirely.
func (s *Store) Clear() {
	s.store.Remove(StorageKey)
}

// AddOrIncrement merges the product into the cart: an existing line
// for the same product grows by qty, otherwise a new line is
// appended with a freshly generated id. Load, mutate, and save run
// as one synchronous operation.
func (s *Store) AddOrIncrement(product Product, qty int) []cart.Line {
	if qty < 1 {
		qty = 1
	}

	lines := s.Load()
	for i := range lines {
		if lines[i].ProductID == product.ID {
			lines[i].Quantity += qty
			s.Save(lines)
			return lines
		}
	}

	lines = append(lines, cart.Line{
		LineID:       newLineID(),
		ProductID:    product.ID,
		ProductName:  product.Name,
		UnitPrice:    product.Price,
		ProductImage: product.Image,
		Quantity:     qty,
	})
	s.Save(lines)
	return lines
}

// SetQuantity updates the line's quantity. A quantity below 1
// removes the line; an unknown id is a no-op.
func (s *Store) SetQuantity(lineID cart.ID, qty int) []cart.Line {
	lines := s.Load()
	for i := range lines {
		if lines[i].LineID != lineID {
			continue
		}
		if qty < 1 {
			lines = append(lines[:i], lines[i+1:]...)
		} else {
			lines[i].Quantity = qty
		}
		s.Save(lines)
		return lines
	}
	return lines
}

// RemoveLine drops the line if present; unknown ids are a no-op.
func (s *Store) RemoveLine(lineID cart.ID) []cart.Line {
	lines := s.Load()
	for i := range lines {
		if lines[i].LineID == lineID {
			lines = append(lines[:i], lines[i+1:]...)
			s.Save(lines)
			return lines
		}
	}
	return lines
}

// newLineID returns a time-ordered identifier so guest lines keep
// their insertion order even across blob rewrites.
func newLineID() cart.ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return cart.ID(id.String())
}
