// Package cart holds the client-side shopping cart and its derived totals.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

const StorageKey = "cart-storage"

type Item struct {
	ID       uint            `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	ImageURL string          `json:"imageUrl,omitempty"`
}

// State is an immutable cart snapshot. Every operation returns a new State
// with TotalItems and TotalPrice recomputed over the whole collection.
type State struct {
	Cart       []Item          `json:"cart"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

func Empty() State {
	return State{Cart: []Item{}, TotalPrice: decimal.Zero}
}

func recompute(items []Item) State {
	s := State{Cart: items, TotalPrice: decimal.Zero}
	for _, it := range items {
		s.TotalItems += it.Quantity
		s.TotalPrice = s.TotalPrice.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return s
}

// sanitize drops lines with a non-positive quantity and merges repeated ids
// into the first line for that id.
func sanitize(items []Item) []Item {
	out := make([]Item, 0, len(items))
	seen := make(map[uint]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if i, ok := seen[it.ID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		seen[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}

func (s State) index(id uint) int {
	return slices.IndexFunc(s.Cart, func(it Item) bool { return it.ID == id })
}

// Add increments the line for item.ID by one, or appends it with quantity 1.
// The Quantity of the argument is ignored.
func (s State) Add(item Item) State {
	items := slices.Clone(s.Cart)
	if i := s.index(item.ID); i >= 0 {
		items[i].Quantity++
	} else {
		item.Quantity = 1
		items = append(items, item)
	}
	return recompute(items)
}

func (s State) Remove(id uint) State {
	items := slices.DeleteFunc(slices.Clone(s.Cart), func(it Item) bool { return it.ID == id })
	if items == nil {
		items = []Item{}
	}
	return recompute(items)
}

// UpdateQuantity sets the quantity of id. qty <= 0 removes the line.
func (s State) UpdateQuantity(id uint, qty int) State {
	if qty <= 0 {
		return s.Remove(id)
	}
	items := slices.Clone(s.Cart)
	if i := s.index(id); i >= 0 {
		items[i].Quantity = qty
	}
	if items == nil {
		items = []Item{}
	}
	return recompute(items)
}

func (s State) Clear() State {
	return Empty()
}

func (s State) Find(id uint) (Item, bool) {
	if i := s.index(id); i >= 0 {
		return s.Cart[i], true
	}
	return Item{}, false
}

func (s State) IsEmpty() bool { return len(s.Cart) == 0 }
