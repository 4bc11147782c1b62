package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CertificationStatus tracks whether a facility is mirrored on the ledger.
type CertificationStatus string

const (
	CertificationUncertified CertificationStatus = "UNCERTIFIED"
	CertificationCertified   CertificationStatus = "CERTIFIED"
)

// Facility is a production site owned by a producer.
type Facility struct {
	ID               uuid.UUID           `json:"id"`
	ProducerID       uuid.UUID           `json:"producer_id"`
	Name             string              `json:"name"`
	Location         string              `json:"location"`
	Source           RenewableSource     `json:"source"`
	Capacity         decimal.Decimal     `json:"capacity"` // kg per day
	IsActive         bool                `json:"is_active"`
	Certification    CertificationStatus `json:"certification"`
	LedgerFacilityID *string             `json:"ledger_facility_id,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// IsMirrored reports whether the ledger-side facility id is known.
func (f *Facility) IsMirrored() bool {
	return f.LedgerFacilityID != nil && *f.LedgerFacilityID != ""
}
