package handler

import (
	"credit-ledger-bridge/internal/adapter/http/dto"
	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/pkg/apperror"
	"credit-ledger-bridge/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey makes credit submission safe to repeat.
const HeaderIdempotencyKey = "Idempotency-Key"

// CreditHandler exposes the credit lifecycle.
type CreditHandler struct {
	coordinator ports.CreditCoordinator
	marketplace ports.MarketplaceService
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(coordinator ports.CreditCoordinator, marketplace ports.MarketplaceService) *CreditHandler {
	return &CreditHandler{coordinator: coordinator, marketplace: marketplace}
}

// Submit handles POST /api/v1/credits.
func (h *CreditHandler) Submit(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var req dto.SubmitCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	facilityID, err := uuid.Parse(req.FacilityID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid facility_id"))
		return
	}
	productionDate, err := dto.ParseDate(req.ProductionDate)
	if err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	key := c.GetHeader(HeaderIdempotencyKey)
	if len(key) > 128 {
		response.Error(c, apperror.Validation("Idempotency-Key too long"))
		return
	}

	credit, err := h.coordinator.SubmitCredit(c.Request.Context(), caller, ports.SubmitCreditRequest{
		FacilityID:     facilityID,
		Amount:         req.Amount,
		UnitPrice:      req.UnitPrice,
		Source:         req.Source,
		ProductionDate: productionDate,
		IdempotencyKey: key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, credit)
}

// List handles GET /api/v1/credits?status=&producer_id=&owner_id=.
func (h *CreditHandler) List(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var params ports.CreditListParams
	if s := c.Query("status"); s != "" {
		status, err := domain.ParseCreditStatus(s)
		if err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		params.Status = &status
	}
	var err error
	if params.ProducerID, err = uuidQuery(c, "producer_id"); err != nil {
		response.Error(c, err)
		return
	}
	if params.OwnerID, err = uuidQuery(c, "owner_id"); err != nil {
		response.Error(c, err)
		return
	}
	params.Limit = intQuery(c, "limit", 0)

	credits, err := h.marketplace.ListCredits(c.Request.Context(), caller, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, credits)
}

// ListAvailable handles GET /api/v1/credits/available.
func (h *CreditHandler) ListAvailable(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var filter ports.AvailableCreditFilter
	if s := c.Query("source"); s != "" {
		source, err := domain.ParseRenewableSource(s)
		if err != nil {
			response.Error(c, apperror.Validation(err.Error()))
			return
		}
		filter.Source = &source
	}
	var err error
	if filter.MaxUnitPrice, err = decimalQuery(c, "max_unit_price"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.MinAmount, err = decimalQuery(c, "min_amount"); err != nil {
		response.Error(c, err)
		return
	}

	credits, err := h.marketplace.ListAvailableCredits(c.Request.Context(), caller, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, credits)
}

// Get handles GET /api/v1/credits/:id.
func (h *CreditHandler) Get(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	credit, err := h.coordinator.GetCredit(c.Request.Context(), caller, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, credit)
}

// Validate handles POST /api/v1/credits/:id/validate. A partial completion
// is answered with 202 and the resume token in details.
func (h *CreditHandler) Validate(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	credit, err := h.coordinator.ValidateCredit(c.Request.Context(), caller, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, credit)
}

// Reattach handles POST /api/v1/credits/:id/ledger-binding.
func (h *CreditHandler) Reattach(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ReattachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	credit, err := h.coordinator.ReattachLedgerBinding(c.Request.Context(), caller, id, req.LedgerCreditID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, credit)
}

// Reconcile handles GET /api/v1/credits/:id/reconciliation.
func (h *CreditHandler) Reconcile(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	report, err := h.coordinator.ReconcileCredit(c.Request.Context(), caller, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}

// Purchase handles POST /api/v1/credits/:id/purchase.
func (h *CreditHandler) Purchase(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.PurchaseCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	settlement, err := h.coordinator.PurchaseCredit(c.Request.Context(), caller, ports.PurchaseCreditRequest{
		CreditID: id,
		Amount:   req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, settlement)
}

// ReplaySettlement handles POST /api/v1/credits/:id/settlements/replay.
func (h *CreditHandler) ReplaySettlement(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ReplaySettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	replay := ports.ReplaySettlementRequest{CreditID: id, LedgerTxReference: req.LedgerTxReference}
	if req.BuyerID != nil {
		buyerID, err := uuid.Parse(*req.BuyerID)
		if err != nil {
			response.Error(c, apperror.Validation("invalid buyer_id"))
			return
		}
		replay.BuyerID = &buyerID
	}

	settlement, err := h.coordinator.ReplaySettlement(c.Request.Context(), caller, replay)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, settlement)
}

// Clear handles DELETE /api/v1/credits.
func (h *CreditHandler) Clear(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	n, err := h.marketplace.ClearCredits(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ClearCreditsResponse{Deleted: n})
}
