package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"murmur/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndLookup(t *testing.T) {
	db := setupSQLite(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	alice := mustUser(t, db, "alice@example.com", "alice")
	assert.NotZero(t, alice.ID)

	got, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, alice.ID, got.ID)

	got, err = repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice@example.com", got.Email)

	got, err = repo.GetByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = repo.GetByID(ctx, 999)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestUserRepository_CreateDuplicates(t *testing.T) {
	db := setupSQLite(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	mustUser(t, db, "a@x.com", "alpha")

	err := repo.Create(ctx, &models.User{Email: "a@x.com", Password: "h", IsActive: true})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
	assert.Equal(t, []string{"A user with this email already exists."}, appErr.Fields["email"])

	err = repo.Create(ctx, &models.User{Email: "b@x.com", Username: models.StringPtr("alpha"), Password: "h", IsActive: true})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, []string{"A user with this username already exists."}, appErr.Fields["username"])

	// Users without a username do not collide with each other.
	require.NoError(t, repo.Create(ctx, &models.User{Email: "c@x.com", Password: "h", IsActive: true}))
	require.NoError(t, repo.Create(ctx, &models.User{Email: "d@x.com", Password: "h", IsActive: true}))
}

func TestUserRepository_UpdateListAndStaff(t *testing.T) {
	db := setupSQLite(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	a := mustUser(t, db, "a@x.com", "a_user")
	b := mustUser(t, db, "b@x.com", "b_user")

	b.IsStaff = true
	b.FirstName = "Bea"
	require.NoError(t, repo.Update(ctx, b))

	staff, err := repo.ListStaff(ctx)
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, b.ID, staff[0].ID)
	assert.Equal(t, "Bea", staff[0].FirstName)

	all, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.TouchLastLogin(ctx, a.ID, at))
	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, at.Equal(*got.LastLogin))
}

func TestUserRepository_GetByEmail_SQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "username"}).AddRow(1, "test@example.com", "testuser")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1 ORDER BY "users"."id" LIMIT $2`)).
		WithArgs("test@example.com", 1).
		WillReturnRows(rows)

	user, err := repo.GetByEmail(context.Background(), "test@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "testuser", user.UsernameOrEmpty())
	assert.NoError(t, mock.ExpectationsWereMet())
}
