package domain

import "time"

// Product status constants.
const (
	ProductStatusActive       = "active"
	ProductStatusInactive     = "inactive"
	ProductStatusDiscontinued = "discontinued"
)

// Product groups display metadata with one or more purchasable variants.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	Variants    []Variant `json:"variants"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Variant is a concrete purchasable SKU under a product. Price is in cents.
// Inventory only decreases, through checkout's conditional decrement.
type Variant struct {
	ID         string            `json:"id"`
	ProductID  string            `json:"product_id"`
	Name       string            `json:"name"`
	SKU        string            `json:"sku"`
	Price      int64             `json:"price"`
	Inventory  int               `json:"inventory"`
	Attributes map[string]string `json:"attributes,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// ValidProductStatuses returns the set of valid product statuses.
func ValidProductStatuses() []string {
	return []string{ProductStatusActive, ProductStatusInactive, ProductStatusDiscontinued}
}

// IsValidProductStatus checks whether the given status is a valid product status.
func IsValidProductStatus(status string) bool {
	for _, s := range ValidProductStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// FindVariant returns the variant with the given ID, or nil.
func (p *Product) FindVariant(variantID string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			return &p.Variants[i]
		}
	}
	return nil
}
