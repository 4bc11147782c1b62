package domain

import "github.com/google/uuid"

// Stage names a step of the validation or purchase pipeline.
type Stage string

const (
	StageSetValidated     Stage = "set_validated"
	StageEnsureFacility   Stage = "ensure_facility"
	StageMint             Stage = "mint"
	StageMarkValidated    Stage = "mark_validated"
	StageBindLedger       Stage = "bind_ledger"
	StageLedgerPurchase   Stage = "ledger_purchase"
	StageRecordSettlement Stage = "record_settlement"
	StageTransferOwner    Stage = "transfer_ownership"
)

// ResumeToken carries everything a retry needs so it never repeats an
// irreversible ledger effect.
type ResumeToken struct {
	CreditID            uuid.UUID    `json:"credit_id"`
	Status              CreditStatus `json:"status"`
	LedgerCreditID      *string      `json:"ledger_credit_id,omitempty"`
	LedgerMarked        bool         `json:"ledger_marked"`
	LedgerTxReference   *string      `json:"ledger_tx_reference,omitempty"`
	NeedsReconciliation bool         `json:"needs_reconciliation"`
}

// PartialCompletion is attached to partial-failure errors.
type PartialCompletion struct {
	Stage       Stage        `json:"stage"`
	Credit      *Credit      `json:"credit,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Resume      ResumeToken  `json:"resume"`
}

// ReconcileAction is the next step a reconciliation report recommends.
type ReconcileAction string

const (
	ReconcileNone             ReconcileAction = "NONE"
	ReconcileResumeValidation ReconcileAction = "RESUME_VALIDATION"
	ReconcileReattachBinding  ReconcileAction = "REATTACH_BINDING"
	ReconcileReplaySettlement ReconcileAction = "REPLAY_SETTLEMENT"
	ReconcileManualReview     ReconcileAction = "MANUAL_REVIEW"
)
