package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address is a shipping destination persisted once per checkout and shared by
// every order that checkout produced.
type Address struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Line1      string    `gorm:"column:line1;not null" json:"line1"`
	Line2      *string   `gorm:"column:line2" json:"line2,omitempty"`
	City       string    `gorm:"column:city;not null" json:"city"`
	State      string    `gorm:"column:state;not null" json:"state"`
	PostalCode string    `gorm:"column:postal_code;not null" json:"postal_code"`
	Country    string    `gorm:"column:country;not null;default:'IN'" json:"country"`
	Phone      string    `gorm:"column:phone;not null" json:"phone"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
}

// EqualValue compares two addresses field by field, ignoring identity.
// Used when deciding whether a checkout address is already in the user's book.
func (a Address) EqualValue(other Address) bool {
	line2 := func(p *string) string {
		if p == nil {
			return ""
		}
		return strings.TrimSpace(*p)
	}
	return strings.EqualFold(strings.TrimSpace(a.Line1), strings.TrimSpace(other.Line1)) &&
		line2(a.Line2) == line2(other.Line2) &&
		strings.EqualFold(strings.TrimSpace(a.City), strings.TrimSpace(other.City)) &&
		strings.EqualFold(strings.TrimSpace(a.State), strings.TrimSpace(other.State)) &&
		strings.TrimSpace(a.PostalCode) == strings.TrimSpace(other.PostalCode) &&
		strings.EqualFold(strings.TrimSpace(a.Country), strings.TrimSpace(other.Country))
}
