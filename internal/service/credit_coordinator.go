package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/pkg/apperror"
	"credit-ledger-bridge/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultLockTTL        = 5 * time.Minute
	defaultIdempotencyTTL = 24 * time.Hour
)

// CoordinatorDeps groups the collaborators of the coordinator.
// IdempotencyCache and Metrics are optional.
type CoordinatorDeps struct {
	Credits      ports.CreditRepository
	Facilities   ports.FacilityRepository
	Mints        ports.LedgerMintRepository
	Transactions ports.TransactionRepository
	Ledger       ports.ValueLedger
	Locker       ports.CreditLocker
	Idempotency  ports.IdempotencyCache
	Metrics      *Metrics
	Currency     money.Currency
	LockTTL      time.Duration
	IdemTTL      time.Duration
	Logger       zerolog.Logger
}

// CreditCoordinatorImpl implements ports.CreditCoordinator.
//
// The relational credit row decides what happens next. Every mutating
// pipeline runs under a per-credit lock and writes through conditional
// status updates, so neither a crashed request nor a concurrent caller can
// cause a second mint or a second payment.
type CreditCoordinatorImpl struct {
	creditRepo   ports.CreditRepository
	facilityRepo ports.FacilityRepository
	mintRepo     ports.LedgerMintRepository
	txRepo       ports.TransactionRepository
	ledger       ports.ValueLedger
	locker       ports.CreditLocker
	idempCache   ports.IdempotencyCache
	metrics      *Metrics
	currency     money.Currency
	lockTTL      time.Duration
	idemTTL      time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// NewCreditCoordinator creates a new CreditCoordinatorImpl.
func NewCreditCoordinator(d CoordinatorDeps) *CreditCoordinatorImpl {
	if d.LockTTL <= 0 {
		d.LockTTL = defaultLockTTL
	}
	if d.IdemTTL <= 0 {
		d.IdemTTL = defaultIdempotencyTTL
	}
	return &CreditCoordinatorImpl{
		creditRepo:   d.Credits,
		facilityRepo: d.Facilities,
		mintRepo:     d.Mints,
		txRepo:       d.Transactions,
		ledger:       d.Ledger,
		locker:       d.Locker,
		idempCache:   d.Idempotency,
		metrics:      d.Metrics,
		currency:     d.Currency,
		lockTTL:      d.LockTTL,
		idemTTL:      d.IdemTTL,
		log:          d.Logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// SubmitCredit records a new pending credit for the calling producer.
// No ledger call is made.
func (s *CreditCoordinatorImpl) SubmitCredit(ctx context.Context, caller ports.Caller, req ports.SubmitCreditRequest) (*domain.Credit, error) {
	if err := authorize(caller, domain.RoleProducer); err != nil {
		return nil, err
	}
	if req.IdempotencyKey != "" && s.idempCache != nil {
		return s.submitIdempotent(ctx, caller, req)
	}
	return s.submit(ctx, caller, req)
}

func (s *CreditCoordinatorImpl) submit(ctx context.Context, caller ports.Caller, req ports.SubmitCreditRequest) (*domain.Credit, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.Validation("amount must be positive")
	}
	if !req.UnitPrice.IsPositive() {
		return nil, apperror.Validation("unit price must be positive")
	}
	if req.ProductionDate.IsZero() {
		return nil, apperror.Validation("production date is required")
	}
	if req.ProductionDate.After(s.now()) {
		return nil, apperror.Validation("production date cannot be in the future")
	}

	facility, err := s.facilityRepo.GetByID(ctx, req.FacilityID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get facility: %w", err))
	}
	if facility == nil || facility.ProducerID != caller.UserID {
		return nil, apperror.Validation("facility not found for this producer")
	}
	if !facility.IsActive {
		return nil, apperror.Validation("facility is not active")
	}

	source := facility.Source
	if strings.TrimSpace(req.Source) != "" {
		if source, err = domain.ParseRenewableSource(req.Source); err != nil {
			return nil, apperror.Validation(err.Error())
		}
	}

	if err := domain.CheckCreditPrecision(req.Amount, req.UnitPrice); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	// The only conversion to smallest units. Mint and purchase use the
	// stored figures, so a later currency.scale change cannot reprice a lot.
	unitPriceMinor, err := s.currency.ToMinor(req.UnitPrice)
	if err != nil {
		return nil, apperror.Validation(fmt.Sprintf("price cannot settle in %s: %v", s.currency.Code, err))
	}
	total, err := s.currency.Total(req.Amount, req.UnitPrice)
	if err != nil {
		return nil, apperror.Validation(fmt.Sprintf("price cannot settle in %s: %v", s.currency.Code, err))
	}

	now := s.now()
	credit := &domain.Credit{
		ID:              uuid.New(),
		Amount:          req.Amount,
		UnitPrice:       req.UnitPrice,
		UnitPriceMinor:  unitPriceMinor,
		TotalPriceMinor: total,
		PriceScale:      s.currency.Scale,
		ProducerID:      caller.UserID,
		FacilityID:      facility.ID,
		Source:          source,
		ProductionDate:  req.ProductionDate.UTC(),
		OwnerID:         caller.UserID,
		Status:          domain.CreditStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.creditRepo.Create(ctx, credit); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create credit: %w", err))
	}

	s.log.Info().
		Str("credit_id", credit.ID.String()).
		Str("producer_id", caller.UserID.String()).
		Str("amount", credit.Amount.String()).
		Msg("credit submitted")

	return credit, nil
}

// submitIdempotent replays the cached credit for a repeated key. The cache is
// an accelerator: if Redis is down the submit proceeds uncached.
func (s *CreditCoordinatorImpl) submitIdempotent(ctx context.Context, caller ports.Caller, req ports.SubmitCreditRequest) (*domain.Credit, error) {
	key := fmt.Sprintf("submit:%s:%s", caller.UserID, req.IdempotencyKey)
	inflight := key + ":inflight"

	if credit := s.cachedCredit(ctx, key); credit != nil {
		return credit, nil
	}

	reserved, err := s.idempCache.Reserve(ctx, inflight, s.lockTTL)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("idempotency reserve failed, submitting uncached")
	} else if !reserved {
		return nil, apperror.ErrDuplicateSubmission()
	} else {
		defer func() {
			if err := s.idempCache.Delete(context.WithoutCancel(ctx), inflight); err != nil {
				s.log.Warn().Err(err).Str("key", inflight).Msg("failed to release idempotency reservation")
			}
		}()
		// A request that finished between the first lookup and the reservation.
		if credit := s.cachedCredit(ctx, key); credit != nil {
			return credit, nil
		}
	}

	credit, err := s.submit(ctx, caller, req)
	if err != nil {
		return nil, err
	}

	if body, err := json.Marshal(credit); err == nil {
		if err := s.idempCache.Set(ctx, key, body, s.idemTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to cache submit response")
		}
	}
	return credit, nil
}

func (s *CreditCoordinatorImpl) cachedCredit(ctx context.Context, key string) *domain.Credit {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("idempotency cache lookup failed")
		return nil
	}
	if cached == nil {
		return nil
	}
	var credit domain.Credit
	if err := json.Unmarshal(cached, &credit); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached submit")
		return nil
	}
	return &credit
}

// GetCredit returns the current durable record.
func (s *CreditCoordinatorImpl) GetCredit(ctx context.Context, caller ports.Caller, creditID uuid.UUID) (*domain.Credit, error) {
	if err := authorize(caller, anyRole...); err != nil {
		return nil, err
	}
	return s.loadCredit(ctx, creditID)
}

func (s *CreditCoordinatorImpl) loadCredit(ctx context.Context, creditID uuid.UUID) (*domain.Credit, error) {
	credit, err := s.creditRepo.GetByID(ctx, creditID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get credit: %w", err))
	}
	if credit == nil {
		return nil, apperror.ErrNotFound("credit")
	}
	return credit, nil
}

// errLeaseLost cancels a pipeline whose credit lock could not be renewed.
var errLeaseLost = errors.New("credit lock lease lost")

// withCreditLock runs fn while holding the credit's lock. A lock store error
// fails closed. The lock is renewed every third of its TTL for as long as fn
// runs; if renewal fails the context handed to fn is cancelled with
// errLeaseLost, so no further ledger write is sent without the lock.
func (s *CreditCoordinatorImpl) withCreditLock(ctx context.Context, creditID uuid.UUID, fn func(ctx context.Context) error) error {
	token, acquired, err := s.locker.Acquire(ctx, creditID, s.lockTTL)
	if err != nil {
		return apperror.ErrLockUnavailable(err)
	}
	if !acquired {
		return apperror.ErrConflict("credit is being processed by another request")
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), creditID, token); err != nil {
			s.log.Warn().Err(err).Str("credit_id", creditID.String()).Msg("failed to release credit lock")
		}
	}()

	leaseCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	stop := s.keepLease(leaseCtx, cancel, creditID, token)
	defer stop()

	return fn(leaseCtx)
}

// keepLease renews the lock in the background until stop is called. A lease
// that cannot be renewed within one TTL counts as lost.
func (s *CreditCoordinatorImpl) keepLease(ctx context.Context, lost context.CancelCauseFunc, creditID uuid.UUID, token string) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(max(s.lockTTL/3, time.Millisecond))
		defer ticker.Stop()
		renewed := time.Now()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			held, err := s.locker.Extend(ctx, creditID, token, s.lockTTL)
			switch {
			case err == nil && held:
				renewed = time.Now()
				continue
			case err == nil:
				s.log.Error().Str("credit_id", creditID.String()).Msg("credit lock taken over, cancelling pipeline")
				lost(errLeaseLost)
				return
			}
			s.log.Warn().Err(err).Str("credit_id", creditID.String()).Msg("failed to renew credit lock")
			if time.Since(renewed) >= s.lockTTL {
				lost(errLeaseLost)
				return
			}
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

// ledgerCall times one ledger call.
func (s *CreditCoordinatorImpl) ledgerCall(op string, call func() error) error {
	start := time.Now()
	err := call()
	s.metrics.observeLedger(op, time.Since(start), err)
	return err
}

// outcomeUnknown reports whether a failed ledger call may still have taken
// effect. Only explicit rejections and calls that were never sent are known
// to have done nothing.
func outcomeUnknown(err error) bool {
	switch {
	case errors.Is(err, domain.ErrLedgerRejected),
		errors.Is(err, domain.ErrLedgerUnavailable),
		errors.Is(err, domain.ErrPriceMismatch),
		errors.Is(err, domain.ErrInsufficientFunds):
		return false
	}
	return true
}

// ledgerReadError maps a failed ledger read to an AppError.
func ledgerReadError(err error) error {
	switch {
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return apperror.ErrLedgerUnavailable(err)
	case errors.Is(err, domain.ErrLedgerRejected):
		return apperror.ErrLedgerRejected(err)
	default:
		return apperror.ErrLedgerTimeout(err)
	}
}

// partial builds a PartialFailure for stage and logs it. Unknown outcomes are
// logged at error level because they need an operator or a reconcile call.
func (s *CreditCoordinatorImpl) partial(stage domain.Stage, pc domain.PartialCompletion, err error) error {
	pc.Stage = stage
	s.metrics.partial(stage)

	evt := s.log.Warn()
	if pc.Resume.NeedsReconciliation {
		evt = s.log.Error().Bool("needs_reconciliation", true)
	}
	evt = evt.Err(err).
		Str("credit_id", pc.Resume.CreditID.String()).
		Str("stage", string(stage)).
		Str("status", string(pc.Resume.Status))
	if pc.Resume.LedgerCreditID != nil {
		evt = evt.Str("ledger_credit_id", *pc.Resume.LedgerCreditID)
	}
	if pc.Resume.LedgerTxReference != nil {
		evt = evt.Str("ledger_tx_reference", *pc.Resume.LedgerTxReference)
	}

	switch stage {
	case domain.StageLedgerPurchase, domain.StageRecordSettlement, domain.StageTransferOwner:
		evt.Msg("purchase stopped after ledger transfer")
		if stage == domain.StageLedgerPurchase {
			return apperror.ErrLedgerTimeout(err).WithDetails(pc)
		}
		return apperror.ErrPurchasePartial(string(stage), pc, err)
	default:
		evt.Msg("validation stopped after durable step")
		return apperror.ErrValidationPartial(string(stage), pc, err)
	}
}
