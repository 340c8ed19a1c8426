// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"murmur/internal/auth"
	"murmur/internal/models"
	"murmur/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated account.
const DefaultPassword = "password123"

// Factory builds domain entities and persists them through the repositories.
type Factory struct {
	faker    *gofakeit.Faker
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	// bcrypt is slow; every generated user shares one hash
	passwordHash string
	seq          int
	maxDays      int
}

// NewFactory creates a Factory bound to db. The same seed yields the same data.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	return &Factory{
		faker:    gofakeit.New(seed),
		users:    repository.NewUserRepository(db),
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		maxDays:  90,
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

// username derives a valid, unique handle from a fake name.
func (f *Factory) username(first, last string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(first + "_" + last) {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "user"
	}
	return truncate(name, 24) + fmt.Sprintf("%d", f.seq)
}

// BuildUser returns an unsaved active user with fake profile fields.
func (f *Factory) BuildUser(overrides ...func(*models.User)) (*models.User, error) {
	if f.passwordHash == "" {
		hash, err := auth.HashPassword(DefaultPassword)
		if err != nil {
			return nil, err
		}
		f.passwordHash = hash
	}

	f.seq++
	first, last := f.faker.FirstName(), f.faker.LastName()
	user := &models.User{
		Email:     fmt.Sprintf("user%d.%s@example.com", f.seq, strings.ToLower(f.faker.LetterN(6))),
		Username:  models.StringPtr(f.username(first, last)),
		Password:  f.passwordHash,
		FirstName: first,
		LastName:  last,
		IsActive:  true,
	}
	for _, override := range overrides {
		override(user)
	}
	return user, nil
}

// CreateUser builds and persists a user.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	user, err := f.BuildUser(overrides...)
	if err != nil {
		return nil, err
	}
	if err := f.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost returns an unsaved post for user with a created time somewhere in
// the last maxDays days and an update time after it.
func (f *Factory) BuildPost(user *models.User, overrides ...func(*models.Post)) *models.Post {
	created := time.Now().UTC().
		Add(-time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute).
		Truncate(time.Microsecond)
	updated := created
	if f.faker.Bool() {
		updated = created.Add(time.Duration(f.faker.Number(1, 600)) * time.Minute)
		if now := time.Now().UTC(); updated.After(now) {
			updated = now.Truncate(time.Microsecond)
		}
	}

	post := &models.Post{
		UserID:    user.ID,
		Title:     truncate(f.faker.Sentence(f.faker.Number(3, 8)), models.PostTitleMaxLen),
		Content:   truncate(f.faker.Paragraph(1, 3, 12, " "), models.PostContentMaxLen),
		CreatedAt: created,
		UpdatedAt: updated,
	}
	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost builds and persists a post owned by user.
func (f *Factory) CreatePost(ctx context.Context, user *models.User, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(user, overrides...)
	if err := f.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// CreateComment persists a short fake comment by user on post.
func (f *Factory) CreateComment(ctx context.Context, user *models.User, post *models.Post) (*models.Comment, error) {
	comment := &models.Comment{
		UserID:  user.ID,
		PostID:  post.ID,
		Comment: truncate(f.faker.Sentence(f.faker.Number(4, 16)), 500),
	}
	if err := f.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}
