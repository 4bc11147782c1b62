package service

import (
	"context"
	"errors"
	"testing"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestFacilityService_Register_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockFacilityRepository(ctrl)
	svc := NewFacilityService(repo)

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	f, err := svc.RegisterFacility(context.Background(), producer, ports.RegisterFacilityRequest{
		Name:     "  Delta Wind Farm ",
		Location: "Aalborg",
		Source:   "wind",
		Capacity: decimal.NewFromInt(1200),
	})
	require.NoError(t, err)
	assert.Equal(t, "Delta Wind Farm", f.Name)
	assert.Equal(t, domain.SourceWind, f.Source)
	assert.Equal(t, producerID, f.ProducerID)
	assert.True(t, f.IsActive)
	assert.Equal(t, domain.CertificationUncertified, f.Certification)
	assert.False(t, f.IsMirrored())
}

func TestFacilityService_Register_Rejections(t *testing.T) {
	valid := ports.RegisterFacilityRequest{Name: "Site", Source: "Hydro", Capacity: decimal.NewFromInt(1)}

	tests := []struct {
		name   string
		caller ports.Caller
		mutate func(*ports.RegisterFacilityRequest)
		code   string
	}{
		{"buyer cannot register", buyer, func(*ports.RegisterFacilityRequest) {}, "AUTH_005"},
		{"blank name", producer, func(r *ports.RegisterFacilityRequest) { r.Name = "  " }, "CRD_001"},
		{"unknown source", producer, func(r *ports.RegisterFacilityRequest) { r.Source = "nuclear" }, "CRD_001"},
		{"zero capacity", producer, func(r *ports.RegisterFacilityRequest) { r.Capacity = decimal.Zero }, "CRD_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewFacilityService(mocks.NewMockFacilityRepository(gomock.NewController(t)))
			req := valid
			tt.mutate(&req)

			_, err := svc.RegisterFacility(context.Background(), tt.caller, req)
			assertAppError(t, err, tt.code)
		})
	}
}

func TestFacilityService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockFacilityRepository(ctrl)
	svc := NewFacilityService(repo)

	owner := uuid.New()
	repo.EXPECT().List(gomock.Any(), &owner).Return([]domain.Facility{{ID: uuid.New()}}, nil)

	got, err := svc.ListFacilities(context.Background(), auditor, &owner)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	repo.EXPECT().List(gomock.Any(), (*uuid.UUID)(nil)).Return(nil, errors.New("db down"))
	_, err = svc.ListFacilities(context.Background(), auditor, nil)
	assertAppError(t, err, "SYS_001")
}
