package postgres

import (
	"context"
	"errors"
	"testing"

	"credit-ledger-bridge/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUser() *domain.User {
	return &domain.User{
		ID:            uuid.New(),
		Username:      "solar_farm",
		PasswordHash:  "$argon2id$v=19$m=65536,t=1,p=4$salt$hash",
		Name:          "Solar Farm Ltd",
		Role:          domain.RoleProducer,
		WalletAddress: strPtr("0xabc"),
		CreatedAt:     testTime(),
		UpdatedAt:     testTime(),
	}
}

func userRow(u *domain.User) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "username", "password_hash", "name", "role", "wallet_address", "created_at", "updated_at"}).
		AddRow(u.ID, u.Username, u.PasswordHash, u.Name, u.Role, u.WalletAddress, u.CreatedAt, u.UpdatedAt)
}

func TestUserRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)
	u := newTestUser()

	mock.ExpectExec("INSERT INTO users").
		WithArgs(u.ID, u.Username, u.PasswordHash, u.Name, u.Role, u.WalletAddress, u.CreatedAt, u.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), u)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Create_DuplicateUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)

	mock.ExpectExec("INSERT INTO users").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err = repo.Create(context.Background(), newTestUser())
	assert.ErrorIs(t, err, domain.ErrDuplicateUsername)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByUsername(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)
	u := newTestUser()

	mock.ExpectQuery("SELECT .+ FROM users WHERE username").
		WithArgs(u.Username).
		WillReturnRows(userRow(u))

	result, err := repo.GetByUsername(context.Background(), u.Username)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, u.ID, result.ID)
	assert.Equal(t, domain.RoleProducer, result.Role)
	assert.Equal(t, "0xabc", *result.WalletAddress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM users WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "password_hash", "name", "role", "wallet_address", "created_at", "updated_at"}))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_Count(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewUserRepo(mock)

	mock.ExpectQuery("SELECT COUNT.+ FROM users").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	mock.ExpectQuery("SELECT COUNT.+ FROM users").
		WillReturnError(errors.New("connection reset"))

	_, err = repo.Count(context.Background())
	assert.ErrorContains(t, err, "count users")
	assert.NoError(t, mock.ExpectationsWereMet())
}
