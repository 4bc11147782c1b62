package service

import (
	"strings"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/pkg/apperror"
)

// authorize is the single capability check at each operation boundary.
func authorize(caller ports.Caller, allowed ...domain.Role) error {
	for _, r := range allowed {
		if caller.Role == r {
			return nil
		}
	}
	names := make([]string, len(allowed))
	for i, r := range allowed {
		names[i] = string(r)
	}
	return apperror.ErrForbiddenRole(strings.Join(names, "|"))
}

var anyRole = []domain.Role{
	domain.RoleProducer,
	domain.RoleValidator,
	domain.RoleBuyer,
	domain.RoleAuditor,
	domain.RoleAdmin,
}
