package handler

import (
	"credit-ledger-bridge/internal/adapter/http/dto"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/pkg/apperror"
	"credit-ledger-bridge/pkg/response"

	"github.com/gin-gonic/gin"
)

// FacilityHandler handles facility registry endpoints.
type FacilityHandler struct {
	facilitySvc ports.FacilityService
}

// NewFacilityHandler creates a new FacilityHandler.
func NewFacilityHandler(facilitySvc ports.FacilityService) *FacilityHandler {
	return &FacilityHandler{facilitySvc: facilitySvc}
}

// Register handles POST /api/v1/facilities.
func (h *FacilityHandler) Register(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var req dto.RegisterFacilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	facility, err := h.facilitySvc.RegisterFacility(c.Request.Context(), caller, ports.RegisterFacilityRequest{
		Name:     req.Name,
		Location: req.Location,
		Source:   req.Source,
		Capacity: req.Capacity,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, facility)
}

// List handles GET /api/v1/facilities?producer_id=.
func (h *FacilityHandler) List(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	producerID, err := uuidQuery(c, "producer_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	facilities, err := h.facilitySvc.ListFacilities(c.Request.Context(), caller, producerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, facilities)
}
