package service

import (
	"context"
	"errors"
	"fmt"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/pkg/apperror"

	"github.com/google/uuid"
)

// ValidateCredit approves a pending credit and carries it onto the ledger:
// set_validated, ensure_facility, mint, mark_validated, bind_ledger.
//
// A credit already at VALIDATED resumes from the first step that has not
// durably happened. Mint runs only when neither the checkpoint nor the
// ledger knows of a token for the credit.
func (s *CreditCoordinatorImpl) ValidateCredit(ctx context.Context, caller ports.Caller, creditID uuid.UUID) (*domain.Credit, error) {
	if err := authorize(caller, domain.RoleValidator); err != nil {
		return nil, err
	}

	var out *domain.Credit
	err := s.withCreditLock(ctx, creditID, func(ctx context.Context) error {
		credit, err := s.loadCredit(ctx, creditID)
		if err != nil {
			return err
		}

		switch credit.Status {
		case domain.CreditStatusPending:
			updated, err := s.creditRepo.SetValidated(ctx, creditID, caller.UserID, s.now())
			if errors.Is(err, domain.ErrStaleStatus) {
				return apperror.ErrConflict("credit was validated by another request")
			}
			if err != nil {
				return apperror.InternalError(fmt.Errorf("set validated: %w", err))
			}
			s.metrics.transition(domain.CreditStatusValidated)
			credit = updated
		case domain.CreditStatusValidated:
			s.log.Info().Str("credit_id", creditID.String()).Msg("resuming validation")
		default:
			return apperror.ErrConflict(fmt.Sprintf("credit is already %s", credit.Status))
		}

		out, err = s.advanceToLedger(ctx, credit, caller.UserID)
		return err
	})
	return out, err
}

// advanceToLedger takes a VALIDATED credit to SETTLED_ON_CHAIN.
func (s *CreditCoordinatorImpl) advanceToLedger(ctx context.Context, credit *domain.Credit, caller uuid.UUID) (*domain.Credit, error) {
	pc := domain.PartialCompletion{
		Credit: credit,
		Resume: domain.ResumeToken{CreditID: credit.ID, Status: credit.Status},
	}

	mint, err := s.resolveMint(ctx, credit)
	if err != nil {
		// Whether a token exists is unknown, so minting is off the table.
		pc.Resume.NeedsReconciliation = true
		return nil, s.partial(domain.StageMint, pc, err)
	}

	if mint == nil {
		if credit.UnitPriceMinor <= 0 {
			return nil, s.partial(domain.StageMint, pc, errors.New("credit has no stored unit price"))
		}

		ledgerFacilityID, err := s.ensureFacility(ctx, credit.FacilityID)
		if err != nil {
			return nil, s.partial(domain.StageEnsureFacility, pc, err)
		}

		mint, err = s.mint(ctx, credit, ledgerFacilityID)
		if err != nil {
			pc.Resume.NeedsReconciliation = outcomeUnknown(err)
			return nil, s.partial(domain.StageMint, pc, err)
		}
	}

	ledgerID := mint.LedgerCreditID
	pc.Resume.LedgerCreditID = &ledgerID

	if !mint.Marked {
		validator := caller
		if credit.ValidatedBy != nil {
			validator = *credit.ValidatedBy
		}
		err := s.ledgerCall("mark_validated", func() error {
			return s.ledger.MarkValidated(ctx, ledgerID, validator.String())
		})
		if err != nil {
			pc.Resume.NeedsReconciliation = outcomeUnknown(err)
			return nil, s.partial(domain.StageMarkValidated, pc, err)
		}
		if err := s.mintRepo.MarkValidated(ctx, credit.ID, s.now()); err != nil {
			s.log.Warn().Err(err).Str("credit_id", credit.ID.String()).Msg("failed to checkpoint ledger mark")
		}
	}
	pc.Resume.LedgerMarked = true

	return s.bind(ctx, credit, ledgerID, pc)
}

// resolveMint finds an existing token for the credit: first the local
// checkpoint, then the ledger itself keyed by the credit id. It returns
// (nil, nil) only when the ledger confirms there is none.
func (s *CreditCoordinatorImpl) resolveMint(ctx context.Context, credit *domain.Credit) (*domain.LedgerMint, error) {
	cp, err := s.mintRepo.Get(ctx, credit.ID)
	if err != nil {
		s.log.Warn().Err(err).Str("credit_id", credit.ID.String()).Msg("checkpoint lookup failed, asking ledger")
	} else if cp != nil {
		return cp, nil
	}

	var found *domain.LedgerCredit
	err = s.ledgerCall("find_credit", func() (err error) {
		found, err = s.ledger.FindCredit(ctx, credit.ID.String())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("look up existing mint: %w", err)
	}
	if found == nil {
		return nil, nil
	}

	s.log.Info().
		Str("credit_id", credit.ID.String()).
		Str("ledger_credit_id", found.ID).
		Msg("recovered mint from ledger")

	cp = &domain.LedgerMint{
		CreditID:       credit.ID,
		LedgerCreditID: found.ID,
		Marked:         found.Validated,
		MintedAt:       s.now(),
	}
	s.recordCheckpoint(ctx, cp)
	return cp, nil
}

// ensureFacility returns the ledger-side facility id, creating the mirror
// when the facility has none yet.
func (s *CreditCoordinatorImpl) ensureFacility(ctx context.Context, facilityID uuid.UUID) (string, error) {
	facility, err := s.facilityRepo.GetByID(ctx, facilityID)
	if err != nil {
		return "", fmt.Errorf("get facility: %w", err)
	}
	if facility == nil {
		return "", fmt.Errorf("facility %s not found", facilityID)
	}
	if facility.IsMirrored() {
		return *facility.LedgerFacilityID, nil
	}

	var ledgerFacilityID string
	err = s.ledgerCall("ensure_facility", func() (err error) {
		ledgerFacilityID, err = s.ledger.EnsureFacility(ctx, ports.EnsureFacilityRequest{
			FacilityID: facility.ID,
			ProducerID: facility.ProducerID,
			Name:       facility.Name,
			Location:   facility.Location,
			Source:     facility.Source,
			Capacity:   facility.Capacity,
		})
		return err
	})
	if err != nil {
		return "", err
	}

	if err := s.facilityRepo.SetLedgerMirror(ctx, facility.ID, ledgerFacilityID); err != nil {
		s.log.Warn().Err(err).
			Str("facility_id", facility.ID.String()).
			Str("ledger_facility_id", ledgerFacilityID).
			Msg("failed to record facility mirror")
	}
	return ledgerFacilityID, nil
}

// mint creates the ledger token. It is the only non-idempotent write in the
// pipeline and runs at most once per attempt.
func (s *CreditCoordinatorImpl) mint(ctx context.Context, credit *domain.Credit, ledgerFacilityID string) (*domain.LedgerMint, error) {
	// Never start a mint without a live lease.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: mint not sent: %w", domain.ErrLedgerUnavailable, context.Cause(ctx))
	}

	var ledgerID string
	err := s.ledgerCall("mint", func() (err error) {
		ledgerID, err = s.ledger.Mint(ctx, ports.MintRequest{
			ExternalRef:      credit.ID,
			LedgerFacilityID: ledgerFacilityID,
			Producer:         credit.ProducerID,
			Amount:           credit.Amount,
			UnitPriceMinor:   credit.UnitPriceMinor,
			Source:           credit.Source,
			ProductionDate:   credit.ProductionDate,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("credit_id", credit.ID.String()).
		Str("ledger_credit_id", ledgerID).
		Msg("credit minted")

	cp := &domain.LedgerMint{
		CreditID:       credit.ID,
		LedgerCreditID: ledgerID,
		MintedAt:       s.now(),
	}
	s.recordCheckpoint(ctx, cp)
	return cp, nil
}

func (s *CreditCoordinatorImpl) recordCheckpoint(ctx context.Context, cp *domain.LedgerMint) {
	if err := s.mintRepo.Record(ctx, cp); err != nil {
		s.log.Warn().Err(err).
			Str("credit_id", cp.CreditID.String()).
			Str("ledger_credit_id", cp.LedgerCreditID).
			Msg("failed to record mint checkpoint")
	}
}

// bind persists the ledger id and moves the credit to SETTLED_ON_CHAIN. A
// lost race is success if the winner bound the same token.
func (s *CreditCoordinatorImpl) bind(ctx context.Context, credit *domain.Credit, ledgerID string, pc domain.PartialCompletion) (*domain.Credit, error) {
	bound, err := s.creditRepo.SetLedgerBinding(ctx, credit.ID, ledgerID)
	if errors.Is(err, domain.ErrStaleStatus) {
		current, gerr := s.creditRepo.GetByID(ctx, credit.ID)
		if gerr == nil && current != nil && current.HasLedgerBinding() && *current.LedgerID == ledgerID {
			return current, nil
		}
		return nil, apperror.ErrConflict("credit was bound by another request")
	}
	if err != nil {
		pc.Resume.NeedsReconciliation = true
		return nil, s.partial(domain.StageBindLedger, pc, err)
	}

	s.metrics.transition(domain.CreditStatusSettledOnChain)
	s.log.Info().
		Str("credit_id", credit.ID.String()).
		Str("ledger_credit_id", ledgerID).
		Msg("credit settled on ledger")
	return bound, nil
}
