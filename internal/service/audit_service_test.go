package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestAuditService_Log_PersistsToRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) error {
			assert.Equal(t, domain.AuditActionValidateCredit, entry.Action)
			assert.NotEqual(t, uuid.Nil, entry.ID)
			assert.False(t, entry.CreatedAt.IsZero())
			close(done)
			return nil
		},
	)

	userID := uuid.New()
	svc.Log(context.Background(), &domain.AuditLog{
		UserID:       &userID,
		Action:       domain.AuditActionValidateCredit,
		ResourceType: "credit",
		ResourceID:   uuid.New().String(),
		IPAddress:    "127.0.0.1",
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit log not persisted in time")
	}
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	svc.Log(context.Background(), &domain.AuditLog{
		Action:       domain.AuditActionLogin,
		ResourceType: "user",
		IPAddress:    "10.0.0.1",
	})
}

func TestAuditService_Log_RepoErrorIsSwallowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockAuditRepository(ctrl)
	svc := NewAuditService(mockRepo, newTestLogger())

	done := make(chan struct{})
	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, *domain.AuditLog) error {
			close(done)
			return errors.New("db down")
		},
	)

	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionPurchaseCredit, ResourceType: "credit"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("repo not called")
	}
}
