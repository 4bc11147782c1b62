package ports

import "context"

// HealthChecker is one dependency behind GET /health: the credit store,
// Redis when locks are distributed, and the value ledger. Ping must honour
// ctx; the probe gives each checker its own deadline.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}
