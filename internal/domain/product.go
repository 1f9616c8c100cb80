package domain

import "time"

// Product is a physical good listed by a vendor. The negotiation core only
// needs identity, ownership, and available quantity.
type Product struct {
	ID          string
	VendorID    string
	Name        string
	Description string
	BasePrice   float64
	Quantity    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
