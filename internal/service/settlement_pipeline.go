package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/pkg/apperror"
	"credit-ledger-bridge/pkg/money"

	"github.com/google/uuid"
)

// PurchaseCredit buys a whole settled credit: ledger purchase, settlement
// record, ownership transfer. Nothing relational is written before the ledger
// confirms the payment.
func (s *CreditCoordinatorImpl) PurchaseCredit(ctx context.Context, caller ports.Caller, req ports.PurchaseCreditRequest) (*ports.Settlement, error) {
	if err := authorize(caller, domain.RoleBuyer); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.Validation("amount must be positive")
	}

	var out *ports.Settlement
	err := s.withCreditLock(ctx, req.CreditID, func(ctx context.Context) error {
		credit, err := s.loadCredit(ctx, req.CreditID)
		if err != nil {
			return err
		}
		if !credit.IsPurchasable() {
			return apperror.ErrConflict(fmt.Sprintf("credit is %s and not available for purchase", credit.Status))
		}
		if credit.OwnerID == caller.UserID {
			return apperror.Validation("cannot purchase a credit you own")
		}
		if !req.Amount.Equal(credit.Amount) {
			return apperror.Validation(fmt.Sprintf("credit is an indivisible lot of %s", credit.Amount.String()))
		}

		total, err := storedTotal(credit)
		if err != nil {
			return apperror.InternalError(err)
		}

		var ref string
		err = s.ledgerCall("purchase", func() (err error) {
			ref, err = s.ledger.Purchase(ctx, ports.LedgerPurchaseRequest{
				LedgerCreditID: *credit.LedgerID,
				Buyer:          caller.UserID.String(),
				Amount:         credit.Amount,
				TotalMinor:     total,
			})
			return err
		})
		if err != nil {
			return s.purchaseError(credit, err)
		}

		s.log.Info().
			Str("credit_id", credit.ID.String()).
			Str("buyer_id", caller.UserID.String()).
			Str("ledger_tx_reference", ref).
			Int64("total_minor", total).
			Msg("ledger purchase confirmed")

		out, err = s.settle(ctx, credit, caller.UserID, ref, total)
		return err
	})
	return out, err
}

// purchaseError maps a failed ledger purchase. Known rejections are clean
// aborts; anything else may have moved value.
func (s *CreditCoordinatorImpl) purchaseError(credit *domain.Credit, err error) error {
	switch {
	case errors.Is(err, domain.ErrPriceMismatch):
		return apperror.ErrPriceMismatch()
	case errors.Is(err, domain.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds()
	case errors.Is(err, domain.ErrLedgerRejected):
		return apperror.ErrLedgerRejected(err)
	case errors.Is(err, domain.ErrLedgerUnavailable):
		return apperror.ErrLedgerUnavailable(err)
	}
	return s.partial(domain.StageLedgerPurchase, domain.PartialCompletion{
		Credit: credit,
		Resume: domain.ResumeToken{
			CreditID:            credit.ID,
			Status:              credit.Status,
			LedgerCreditID:      credit.LedgerID,
			LedgerMarked:        true,
			NeedsReconciliation: true,
		},
	}, err)
}

// ReplaySettlement converges the store with a purchase the ledger already
// confirmed. It never calls Purchase, so it cannot charge twice.
func (s *CreditCoordinatorImpl) ReplaySettlement(ctx context.Context, caller ports.Caller, req ports.ReplaySettlementRequest) (*ports.Settlement, error) {
	if err := authorize(caller, domain.RoleBuyer, domain.RoleAdmin); err != nil {
		return nil, err
	}
	buyer := caller.UserID
	if caller.Role == domain.RoleAdmin {
		if req.BuyerID == nil {
			return nil, apperror.Validation("buyer_id is required")
		}
		buyer = *req.BuyerID
	}
	ref := strings.TrimSpace(req.LedgerTxReference)
	if ref == "" {
		return nil, apperror.Validation("ledger_tx_reference is required")
	}

	var out *ports.Settlement
	err := s.withCreditLock(ctx, req.CreditID, func(ctx context.Context) error {
		credit, err := s.loadCredit(ctx, req.CreditID)
		if err != nil {
			return err
		}
		if !credit.HasLedgerBinding() {
			return apperror.ErrConflict("credit has no ledger binding")
		}

		var purchase *domain.LedgerPurchase
		err = s.ledgerCall("get_purchase", func() (err error) {
			purchase, err = s.ledger.GetPurchase(ctx, ref)
			return err
		})
		if err != nil {
			return ledgerReadError(err)
		}
		if purchase == nil {
			return apperror.ErrNotFound("ledger purchase")
		}
		if purchase.LedgerCreditID != *credit.LedgerID {
			return apperror.ErrConflict("ledger purchase is for a different credit")
		}
		if purchase.Buyer != "" && purchase.Buyer != buyer.String() {
			return apperror.ErrConflict("ledger purchase was made by a different buyer")
		}

		total, err := storedTotal(credit)
		if err != nil {
			return apperror.InternalError(err)
		}
		if purchase.TotalMinor != total {
			s.log.Error().
				Str("credit_id", credit.ID.String()).
				Str("ledger_tx_reference", ref).
				Int64("ledger_total_minor", purchase.TotalMinor).
				Int64("expected_total_minor", total).
				Msg("ledger purchase total disagrees with credit price")
			return apperror.ErrPriceMismatch()
		}

		out, err = s.settle(ctx, credit, buyer, ref, total)
		return err
	})
	return out, err
}

// settle records the settlement for ref and hands the credit to buyer. Both
// writes are idempotent: the record is looked up before insert and the
// ownership transfer is conditional on SETTLED_ON_CHAIN.
func (s *CreditCoordinatorImpl) settle(ctx context.Context, credit *domain.Credit, buyer uuid.UUID, ref string, total int64) (*ports.Settlement, error) {
	pc := domain.PartialCompletion{
		Credit: credit,
		Resume: domain.ResumeToken{
			CreditID:          credit.ID,
			Status:            credit.Status,
			LedgerCreditID:    credit.LedgerID,
			LedgerMarked:      true,
			LedgerTxReference: &ref,
		},
	}

	tx, err := s.recordSettlement(ctx, credit, buyer, ref, total)
	if err != nil {
		return nil, s.partial(domain.StageRecordSettlement, pc, err)
	}
	if tx.CreditID != credit.ID || tx.ToUserID != buyer {
		return nil, apperror.ErrConflict("ledger reference is recorded for another settlement")
	}
	pc.Transaction = tx

	updated := credit
	switch {
	case credit.Status == domain.CreditStatusRetired && credit.OwnerID == buyer:
		// already transferred by an earlier attempt
	case credit.Status == domain.CreditStatusRetired:
		return nil, apperror.ErrConflict("credit was retired to a different owner")
	default:
		updated, err = s.creditRepo.SetOwnership(ctx, credit.ID, buyer)
		if errors.Is(err, domain.ErrStaleStatus) {
			current, gerr := s.creditRepo.GetByID(ctx, credit.ID)
			if gerr != nil || current == nil || current.Status != domain.CreditStatusRetired || current.OwnerID != buyer {
				pc.Resume.NeedsReconciliation = true
				return nil, s.partial(domain.StageTransferOwner, pc, err)
			}
			updated = current
		} else if err != nil {
			return nil, s.partial(domain.StageTransferOwner, pc, err)
		} else {
			s.metrics.transition(domain.CreditStatusRetired)
		}
	}

	s.log.Info().
		Str("credit_id", credit.ID.String()).
		Str("transaction_id", tx.ID.String()).
		Str("ledger_tx_reference", ref).
		Msg("settlement recorded")

	return &ports.Settlement{
		Transaction: tx,
		Credit:      updated,
		TotalPrice:  s.priceCurrency(credit).Format(tx.TotalPriceMinor),
	}, nil
}

// storedTotal returns the settlement total fixed at submit.
func storedTotal(credit *domain.Credit) (int64, error) {
	if credit.TotalPriceMinor <= 0 {
		return 0, fmt.Errorf("credit %s has no stored settlement total", credit.ID)
	}
	return credit.TotalPriceMinor, nil
}

// priceCurrency renders the credit's figures at the scale they were
// converted with.
func (s *CreditCoordinatorImpl) priceCurrency(credit *domain.Credit) money.Currency {
	return money.Currency{Code: s.currency.Code, Scale: credit.PriceScale}
}

// recordSettlement returns the Transaction for ref, creating it if absent.
func (s *CreditCoordinatorImpl) recordSettlement(ctx context.Context, credit *domain.Credit, buyer uuid.UUID, ref string, total int64) (*domain.Transaction, error) {
	existing, err := s.txRepo.GetByLedgerReference(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("look up settlement: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	seller := credit.OwnerID
	if credit.Status == domain.CreditStatusRetired {
		seller = credit.ProducerID
	}
	tx := &domain.Transaction{
		ID:              uuid.New(),
		CreditID:        credit.ID,
		FromUserID:      seller,
		ToUserID:        buyer,
		Amount:          credit.Amount,
		UnitPrice:       credit.UnitPrice,
		TotalPriceMinor: total,
		LedgerReference: &ref,
		TransactionType: domain.TransactionTypePurchase,
		Status:          domain.TransactionStatusConfirmed,
		CreatedAt:       s.now(),
	}
	err = s.txRepo.Create(ctx, tx)
	if errors.Is(err, domain.ErrDuplicateSettlement) {
		existing, err = s.txRepo.GetByLedgerReference(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("re-read settlement: %w", err)
		}
		if existing == nil {
			return nil, fmt.Errorf("settlement %s reported duplicate but not found", ref)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create settlement: %w", err)
	}
	return tx, nil
}
