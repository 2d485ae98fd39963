package domain

import (
	"math/rand"
	"time"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusInProgress OrderStatus = "inProgress"
	StatusUnpaid     OrderStatus = "unpaid"
	StatusPaid       OrderStatus = "paid"
	StatusCanceled   OrderStatus = "canceled"
)

// OrderItem is a denormalized snapshot of a product at the moment it was
// added to an order. Later product edits never change historical orders.
type OrderItem struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Category string  `json:"category"`
}

// Order is a customer order. Total and ItemCount are derived from Items and
// must be settled with Recalculate after every mutation.
type Order struct {
	ID            int64       `json:"id"`
	TableNumber   int64       `json:"tableNumber"`
	Status        OrderStatus `json:"status"`
	Items         []OrderItem `json:"items"`
	Total         float64     `json:"total"`
	ItemCount     int         `json:"itemCount"`
	Date          string      `json:"date"`
	PaymentMethod string      `json:"paymentMethod"`
	TotalPaid     float64     `json:"totalPaid"`
	Change        float64     `json:"change"`
	TicketPath    string      `json:"ticketPath"`
}

// NewOrderID returns a process-unique time-based order id: current unix
// milliseconds plus a small random component to disambiguate ids minted
// within the same millisecond.
func NewOrderID() int64 {
	return time.Now().UnixMilli() + rand.Int63n(1000)
}

// NewOrder creates an empty inProgress order bound to the given table.
func NewOrder(tableNumber int64) Order {
	return Order{
		ID:            NewOrderID(),
		TableNumber:   tableNumber,
		Status:        StatusInProgress,
		Items:         []OrderItem{},
		Date:          time.Now().Format("2006-01-02"),
		PaymentMethod: "efectivo",
	}
}

// Recalculate recomputes Total and ItemCount by summing over Items. It is
// called unconditionally after every item mutation; running totals are
// never trusted on their own.
func (o *Order) Recalculate() {
	var total float64
	var count int
	for _, item := range o.Items {
		total += item.Price * float64(item.Quantity)
		count += item.Quantity
	}
	o.Total = total
	o.ItemCount = count
}

// AddItem increments the quantity of an existing line or appends a new one,
// then settles the derived fields.
func (o *Order) AddItem(item OrderItem) {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	for i := range o.Items {
		if o.Items[i].ID == item.ID {
			o.Items[i].Quantity += item.Quantity
			o.Recalculate()
			return
		}
	}
	o.Items = append(o.Items, item)
	o.Recalculate()
}

// RemoveItem decrements the quantity of the line for productID, dropping
// the line once it reaches zero. Removing an absent product is a no-op.
func (o *Order) RemoveItem(productID int64) {
	for i := range o.Items {
		if o.Items[i].ID != productID {
			continue
		}
		if o.Items[i].Quantity > 1 {
			o.Items[i].Quantity--
		} else {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
		}
		break
	}
	o.Recalculate()
}

// IsEmptySlot reports whether the order is an unbound empty order that
// table assignment may claim instead of creating a new one.
func (o *Order) IsEmptySlot() bool {
	return o.Status == StatusInProgress && o.TableNumber == BarTable && len(o.Items) == 0
}
