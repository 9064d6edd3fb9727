package model

import (
	"time"

	"course-billing/internal/domain"
)

// AccessCode is a redeemable grant of course access shared by a cohort of
// customers, bounded by an optional usage cap and expiry.
type AccessCode struct {
	ID        string
	Code      string
	Title     string
	Active    bool
	ExpiresAt *time.Time // nil means never expires
	MaxUses   *int       // nil means unlimited
	UsedCount int
	CreatedAt time.Time
}

// ValidateForRedemption reports whether the code can be redeemed right now.
func (c *AccessCode) ValidateForRedemption(now time.Time) error {
	if !c.Active {
		return domain.ErrCodeInactive
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return domain.ErrCodeExpired
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return domain.ErrCodeExhausted
	}
	return nil
}

// RemainingUses returns how many redemptions are left, or -1 when unlimited.
func (c *AccessCode) RemainingUses() int {
	if c.MaxUses == nil {
		return -1
	}
	left := *c.MaxUses - c.UsedCount
	if left < 0 {
		return 0
	}
	return left
}
