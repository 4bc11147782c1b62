package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the capability a caller acts under.
type Role string

const (
	RoleProducer  Role = "PRODUCER"
	RoleValidator Role = "VALIDATOR"
	RoleBuyer     Role = "BUYER"
	RoleAuditor   Role = "AUDITOR"
	RoleAdmin     Role = "ADMIN"
)

// ParseRole accepts any capitalisation of a known role.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch r {
	case RoleProducer, RoleValidator, RoleBuyer, RoleAuditor, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// User is a registered participant.
type User struct {
	ID            uuid.UUID `json:"id"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"` // Never expose
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	WalletAddress *string   `json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
