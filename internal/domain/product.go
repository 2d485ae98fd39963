package domain

// Product represents a sellable item in the catalog. Category references a
// Category by name; nothing enforces that the category actually exists.
type Product struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
	Brand    string  `json:"brand"`
	Icon     string  `json:"icon,omitempty"`
}

// Category represents a product category
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Table represents a physical table in the venue. ID 0 is reserved for the
// bar (orders not bound to any table).
type Table struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// BarTable is the reserved table id for orders without a table.
const BarTable int64 = 0

// ToOrderItem snapshots the product into an order line. The copy is what
// keeps later product edits from rewriting historical orders.
func (p Product) ToOrderItem() OrderItem {
	return OrderItem{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: 1,
		Category: p.Category,
	}
}

// User is an operator account. PIN holds the bcrypt hash of the 4-digit
// PIN, never the PIN itself.
type User struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	PIN            string `json:"pin"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}
