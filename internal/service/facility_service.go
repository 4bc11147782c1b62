package service

import (
	"context"
	"strings"
	"time"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/pkg/apperror"

	"github.com/google/uuid"
)

type facilityService struct {
	facilityRepo ports.FacilityRepository
}

// NewFacilityService creates a new facility registry service.
func NewFacilityService(facilityRepo ports.FacilityRepository) ports.FacilityService {
	return &facilityService{facilityRepo: facilityRepo}
}

func (s *facilityService) RegisterFacility(ctx context.Context, caller ports.Caller, req ports.RegisterFacilityRequest) (*domain.Facility, error) {
	if err := authorize(caller, domain.RoleProducer); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperror.Validation("facility name is required")
	}
	source, err := domain.ParseRenewableSource(req.Source)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if !req.Capacity.IsPositive() {
		return nil, apperror.Validation("capacity must be positive")
	}

	now := time.Now().UTC()
	facility := &domain.Facility{
		ID:            uuid.New(),
		ProducerID:    caller.UserID,
		Name:          name,
		Location:      strings.TrimSpace(req.Location),
		Source:        source,
		Capacity:      req.Capacity,
		IsActive:      true,
		Certification: domain.CertificationUncertified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.facilityRepo.Create(ctx, facility); err != nil {
		return nil, apperror.InternalError(err)
	}
	return facility, nil
}

func (s *facilityService) ListFacilities(ctx context.Context, caller ports.Caller, producerID *uuid.UUID) ([]domain.Facility, error) {
	if err := authorize(caller, anyRole...); err != nil {
		return nil, err
	}
	facilities, err := s.facilityRepo.List(ctx, producerID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return facilities, nil
}
