package repository

import (
	"testing"
	"time"

	"murmur/internal/models"
	"murmur/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupSQLite returns a migrated in-memory database private to the test.
func setupSQLite(t *testing.T) *gorm.DB {
	return testutil.NewSQLiteDB(t, "repo")
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func mustUser(t *testing.T, db *gorm.DB, email, username string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Username: models.StringPtr(username), Password: "hash", IsActive: true}
	require.NoError(t, NewUserRepository(db).Create(t.Context(), u))
	return u
}

func mustPost(t *testing.T, db *gorm.DB, owner uint, title string, updatedAt time.Time) *models.Post {
	t.Helper()
	p := &models.Post{UserID: owner, Title: title, Content: "content of " + title}
	require.NoError(t, NewPostRepository(db).Create(t.Context(), p))
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", p.ID).UpdateColumn("updated_at", updatedAt).Error)
	p.UpdatedAt = updatedAt
	return p
}
