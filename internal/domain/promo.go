package domain

import "time"

// Promo type constants.
const (
	PromoTypePercentage = "percentage"
	PromoTypeFixed      = "fixed"
)

// Promo status constants.
const (
	PromoStatusActive   = "active"
	PromoStatusInactive = "inactive"
	PromoStatusExpired  = "expired"
)

// Promo is a discount code with eligibility and usage constraints. For
// percentage promos Value is whole percent points; for fixed promos Value is
// an amount in cents. MinAmount, MaxDiscount are cents; zero means unset.
type Promo struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	Value       int64     `json:"value"`
	MinAmount   int64     `json:"min_amount,omitempty"`
	MaxDiscount int64     `json:"max_discount,omitempty"`
	UsageLimit  int       `json:"usage_limit,omitempty"`
	UsageCount  int       `json:"usage_count"`
	ValidFrom   time.Time `json:"valid_from"`
	ValidTo     time.Time `json:"valid_to"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidPromoTypes returns the set of valid promo types.
func ValidPromoTypes() []string {
	return []string{PromoTypePercentage, PromoTypeFixed}
}

// IsValidPromoType checks whether the given type is a valid promo type.
func IsValidPromoType(t string) bool {
	for _, v := range ValidPromoTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// ValidPromoStatuses returns the set of valid promo statuses.
func ValidPromoStatuses() []string {
	return []string{PromoStatusActive, PromoStatusInactive, PromoStatusExpired}
}

// IsValidPromoStatus checks whether the given status is a valid promo status.
func IsValidPromoStatus(status string) bool {
	for _, s := range ValidPromoStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsWithinWindow reports whether now falls inside the promo's validity window.
func (p *Promo) IsWithinWindow(now time.Time) bool {
	return !now.Before(p.ValidFrom) && !now.After(p.ValidTo)
}

// UsageExhausted reports whether the usage limit has been reached. A zero
// limit means unlimited.
func (p *Promo) UsageExhausted() bool {
	return p.UsageLimit > 0 && p.UsageCount >= p.UsageLimit
}

// CalculateDiscount computes the discount in cents for the given subtotal.
// Percentage discounts round half up to the nearest cent and are capped at
// MaxDiscount when set. The result never exceeds the subtotal.
func (p *Promo) CalculateDiscount(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}

	var discount int64
	switch p.Type {
	case PromoTypePercentage:
		discount = (subtotal*p.Value + 50) / 100
		if p.MaxDiscount > 0 && discount > p.MaxDiscount {
			discount = p.MaxDiscount
		}
	case PromoTypeFixed:
		discount = p.Value
	default:
		return 0
	}

	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		return 0
	}
	return discount
}
