package service

import (
	"context"
	"fmt"
	"strings"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/pkg/apperror"

	"github.com/google/uuid"
)

// ReattachLedgerBinding binds a credit to a token that was minted (and
// possibly marked) while the relational binding was lost. It never mints.
func (s *CreditCoordinatorImpl) ReattachLedgerBinding(ctx context.Context, caller ports.Caller, creditID uuid.UUID, ledgerCreditID string) (*domain.Credit, error) {
	if err := authorize(caller, domain.RoleValidator, domain.RoleAdmin); err != nil {
		return nil, err
	}
	ledgerCreditID = strings.TrimSpace(ledgerCreditID)
	if ledgerCreditID == "" {
		return nil, apperror.Validation("ledger_credit_id is required")
	}

	var out *domain.Credit
	err := s.withCreditLock(ctx, creditID, func(ctx context.Context) error {
		credit, err := s.loadCredit(ctx, creditID)
		if err != nil {
			return err
		}
		if credit.HasLedgerBinding() {
			if *credit.LedgerID == ledgerCreditID {
				out = credit
				return nil
			}
			return apperror.ErrConflict("credit is bound to a different ledger credit")
		}
		if credit.Status != domain.CreditStatusValidated {
			return apperror.ErrConflict(fmt.Sprintf("credit is %s; only validated credits can be re-attached", credit.Status))
		}

		var lc *domain.LedgerCredit
		err = s.ledgerCall("get_credit", func() (err error) {
			lc, err = s.ledger.GetCredit(ctx, ledgerCreditID)
			return err
		})
		if err != nil {
			return ledgerReadError(err)
		}
		if lc == nil {
			return apperror.ErrNotFound("ledger credit")
		}
		if lc.ExternalRef != credit.ID.String() {
			return apperror.ErrConflict("ledger credit was minted for a different credit")
		}

		pc := domain.PartialCompletion{
			Credit: credit,
			Resume: domain.ResumeToken{CreditID: credit.ID, Status: credit.Status, LedgerCreditID: &lc.ID},
		}

		if !lc.Validated {
			validator := caller.UserID
			if credit.ValidatedBy != nil {
				validator = *credit.ValidatedBy
			}
			err := s.ledgerCall("mark_validated", func() error {
				return s.ledger.MarkValidated(ctx, lc.ID, validator.String())
			})
			if err != nil {
				pc.Resume.NeedsReconciliation = outcomeUnknown(err)
				return s.partial(domain.StageMarkValidated, pc, err)
			}
		}
		pc.Resume.LedgerMarked = true

		now := s.now()
		s.recordCheckpoint(ctx, &domain.LedgerMint{
			CreditID:       credit.ID,
			LedgerCreditID: lc.ID,
			Marked:         true,
			MintedAt:       now,
			MarkedAt:       &now,
		})

		out, err = s.bind(ctx, credit, lc.ID, pc)
		if err == nil {
			s.log.Info().
				Str("credit_id", credit.ID.String()).
				Str("ledger_credit_id", lc.ID).
				Str("by", caller.UserID.String()).
				Msg("ledger binding re-attached")
		}
		return err
	})
	return out, err
}

// ReconcileCredit compares the durable record with the ledger and names the
// operation that converges them. It is read-only and takes no lock.
func (s *CreditCoordinatorImpl) ReconcileCredit(ctx context.Context, caller ports.Caller, creditID uuid.UUID) (*ports.ReconciliationReport, error) {
	if err := authorize(caller, domain.RoleValidator, domain.RoleAuditor, domain.RoleAdmin); err != nil {
		return nil, err
	}

	credit, err := s.loadCredit(ctx, creditID)
	if err != nil {
		return nil, err
	}

	txs, err := s.txRepo.ListByCredit(ctx, creditID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list settlements: %w", err))
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	cp, err := s.mintRepo.Get(ctx, creditID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get checkpoint: %w", err))
	}

	lc, err := s.lookupLedgerCredit(ctx, credit, cp)
	if err != nil {
		return nil, ledgerReadError(err)
	}

	report := &ports.ReconciliationReport{
		Credit:       credit,
		Checkpoint:   cp,
		Ledger:       lc,
		Transactions: txs,
	}
	if lc != nil {
		id := lc.ID
		report.LedgerCreditID = &id
	}
	decideReconcileAction(report)

	s.log.Info().
		Str("credit_id", creditID.String()).
		Str("action", string(report.Action)).
		Msg("credit reconciled")

	return report, nil
}

// lookupLedgerCredit finds the ledger's view of the credit: by binding, then
// by checkpoint, then by external reference.
func (s *CreditCoordinatorImpl) lookupLedgerCredit(ctx context.Context, credit *domain.Credit, cp *domain.LedgerMint) (*domain.LedgerCredit, error) {
	var lc *domain.LedgerCredit
	var err error
	switch {
	case credit.HasLedgerBinding():
		err = s.ledgerCall("get_credit", func() (err error) {
			lc, err = s.ledger.GetCredit(ctx, *credit.LedgerID)
			return err
		})
	case cp != nil:
		err = s.ledgerCall("get_credit", func() (err error) {
			lc, err = s.ledger.GetCredit(ctx, cp.LedgerCreditID)
			return err
		})
	case credit.Status == domain.CreditStatusPending:
		return nil, nil
	default:
		err = s.ledgerCall("find_credit", func() (err error) {
			lc, err = s.ledger.FindCredit(ctx, credit.ID.String())
			return err
		})
	}
	if err != nil {
		return nil, err
	}
	return lc, nil
}

func decideReconcileAction(r *ports.ReconciliationReport) {
	lc := r.Ledger
	switch r.Credit.Status {
	case domain.CreditStatusPending:
		r.Action, r.Reason = domain.ReconcileNone, "credit awaits validation"

	case domain.CreditStatusValidated:
		switch {
		case lc == nil:
			r.Action, r.Reason = domain.ReconcileResumeValidation, "no ledger credit exists; validation resumes at ensure_facility"
		case !lc.Validated:
			r.Action, r.Reason = domain.ReconcileResumeValidation, "ledger credit minted but not marked; validation resumes at mark_validated"
		default:
			r.Action, r.Reason = domain.ReconcileReattachBinding, "ledger credit minted and marked but the binding was not persisted"
		}

	case domain.CreditStatusSettledOnChain:
		switch {
		case lc == nil:
			r.Action, r.Reason = domain.ReconcileManualReview, "bound ledger credit not found on the ledger"
		case lc.Sold && lc.PurchaseRef != nil:
			ref := *lc.PurchaseRef
			r.Action, r.Reason = domain.ReconcileReplaySettlement, "ledger reports the credit sold but ownership was not transferred"
			r.LedgerTxReference = &ref
		case lc.Sold:
			r.Action, r.Reason = domain.ReconcileManualReview, "ledger reports the credit sold without a purchase reference"
		default:
			r.Action, r.Reason = domain.ReconcileNone, "credit is listed for sale"
		}

	case domain.CreditStatusRetired:
		switch {
		case lc == nil:
			r.Action, r.Reason = domain.ReconcileManualReview, "bound ledger credit not found on the ledger"
		case len(r.Transactions) == 0:
			r.Action, r.Reason = domain.ReconcileManualReview, "credit retired without a settlement record"
		default:
			r.Action, r.Reason = domain.ReconcileNone, "credit sold and settled"
		}

	default:
		r.Action, r.Reason = domain.ReconcileManualReview, fmt.Sprintf("unknown status %q", r.Credit.Status)
	}
}
