package service

import (
	"context"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/pkg/apperror"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// marketplaceService implements ports.MarketplaceService.
type marketplaceService struct {
	userRepo     ports.UserRepository
	facilityRepo ports.FacilityRepository
	creditRepo   ports.CreditRepository
	txRepo       ports.TransactionRepository
	log          zerolog.Logger
}

// NewMarketplaceService creates a new marketplace service.
func NewMarketplaceService(
	userRepo ports.UserRepository,
	facilityRepo ports.FacilityRepository,
	creditRepo ports.CreditRepository,
	txRepo ports.TransactionRepository,
	log zerolog.Logger,
) ports.MarketplaceService {
	return &marketplaceService{
		userRepo:     userRepo,
		facilityRepo: facilityRepo,
		creditRepo:   creditRepo,
		txRepo:       txRepo,
		log:          log,
	}
}

// ListAvailableCredits returns settled, ledger-bound credits the caller
// does not already own.
func (s *marketplaceService) ListAvailableCredits(ctx context.Context, caller ports.Caller, filter ports.AvailableCreditFilter) ([]domain.Credit, error) {
	if err := authorize(caller, anyRole...); err != nil {
		return nil, err
	}

	settled := domain.CreditStatusSettledOnChain
	callerID := caller.UserID
	credits, err := s.creditRepo.List(ctx, ports.CreditListParams{
		Status:         &settled,
		ExcludeOwnerID: &callerID,
		Source:         filter.Source,
		MaxUnitPrice:   filter.MaxUnitPrice,
		MinAmount:      filter.MinAmount,
		BoundOnly:      true,
	})
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return credits, nil
}

func (s *marketplaceService) ListCredits(ctx context.Context, caller ports.Caller, params ports.CreditListParams) ([]domain.Credit, error) {
	if err := authorize(caller, anyRole...); err != nil {
		return nil, err
	}
	credits, err := s.creditRepo.List(ctx, params)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return credits, nil
}

// ListTransactions returns a page of the caller's purchases and sales.
func (s *marketplaceService) ListTransactions(ctx context.Context, caller ports.Caller, page, pageSize int) ([]domain.Transaction, int64, error) {
	if err := authorize(caller, anyRole...); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	txns, total, err := s.txRepo.ListByUser(ctx, ports.TransactionListParams{
		UserID:   caller.UserID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return txns, total, nil
}

// GetStats counts the four record kinds concurrently.
func (s *marketplaceService) GetStats(ctx context.Context, caller ports.Caller) (*ports.Stats, error) {
	if err := authorize(caller, anyRole...); err != nil {
		return nil, err
	}

	var stats ports.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { stats.Users, err = s.userRepo.Count(gctx); return })
	g.Go(func() (err error) { stats.Facilities, err = s.facilityRepo.Count(gctx); return })
	g.Go(func() (err error) { stats.Credits, err = s.creditRepo.Count(gctx); return })
	g.Go(func() (err error) { stats.Transactions, err = s.txRepo.Count(gctx); return })
	if err := g.Wait(); err != nil {
		return nil, apperror.InternalError(err)
	}
	return &stats, nil
}

// ClearCredits is the administrative bulk-clear. It bypasses every lifecycle
// rule and is only reachable by admins.
func (s *marketplaceService) ClearCredits(ctx context.Context, caller ports.Caller) (int64, error) {
	if err := authorize(caller, domain.RoleAdmin); err != nil {
		return 0, err
	}
	n, err := s.creditRepo.DeleteAll(ctx)
	if err != nil {
		return 0, apperror.InternalError(err)
	}
	s.log.Warn().Int64("deleted", n).Str("admin_id", caller.UserID.String()).Msg("credits cleared")
	return n, nil
}
