package domain

import "time"

// CartLine is one product entry in a cart. Price is the unit price
// snapshot taken when the item was added, not a live catalog lookup.
type CartLine struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Cart is the server-owned cart for one user. The client only ever
// holds a read-through copy fetched after the latest mutation; a line
// with quantity 0 does not exist.
type Cart struct {
	ID        string     `json:"id,omitempty"`
	UserID    string     `json:"user_id,omitempty"`
	Items     []CartLine `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Line returns the cart line for the given product, if present.
func (c *Cart) Line(productID string) (CartLine, bool) {
	if c == nil {
		return CartLine{}, false
	}
	for _, line := range c.Items {
		if line.ProductID == productID {
			return line, true
		}
	}
	return CartLine{}, false
}
