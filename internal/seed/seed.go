package seed

import (
	"context"
	"fmt"

	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"

	"gorm.io/gorm"
)

// Options configure a seeding run.
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
}

// Summary counts what a run created.
type Summary struct {
	Users    int
	Posts    int
	Comments int
	Likes    int
}

// Seeder fills the database with users, posts, comments and likes.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
	likes   repository.LikeRepository
}

// NewSeeder creates a Seeder on db.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	return &Seeder{
		db:      db,
		factory: NewFactory(db, seed),
		likes:   repository.NewLikeRepository(db),
	}
}

// seededTables lists child tables first so plain deletes respect foreign keys.
var seededTables = []string{"comments", "likes", "posts", "users"}

// ClearAll removes every row from the seeded tables.
func (s *Seeder) ClearAll(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Exec("TRUNCATE TABLE comments, likes, posts, users RESTART IDENTITY CASCADE").Error
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for _, table := range seededTables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return nil
	})
}

// Seed creates opts.NumUsers users and opts.NumPosts posts spread across them.
// Each post gets up to two comments and a random set of likes.
func (s *Seeder) Seed(ctx context.Context, opts Options) (*Summary, error) {
	log := observability.Logger()
	log.InfoContext(ctx, "seeding database", "users", opts.NumUsers, "posts", opts.NumPosts)

	if opts.ShouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return nil, fmt.Errorf("clear data: %w", err)
		}
	}

	sum := &Summary{}
	if opts.NumUsers <= 0 {
		return sum, nil
	}

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u, err := s.factory.CreateUser(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)

	faker := s.factory.faker
	for i := 0; i < opts.NumPosts; i++ {
		owner := users[faker.Number(0, len(users)-1)]
		post, err := s.factory.CreatePost(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		sum.Posts++

		for c := faker.Number(0, 2); c > 0; c-- {
			author := users[faker.Number(0, len(users)-1)]
			if _, err := s.factory.CreateComment(ctx, author, post); err != nil {
				return nil, fmt.Errorf("failed to create comment: %w", err)
			}
			sum.Comments++
		}

		for _, u := range users {
			if faker.Number(0, 3) != 0 {
				continue
			}
			if err := s.likes.Create(ctx, u.ID, post.ID); err != nil {
				return nil, fmt.Errorf("failed to create like: %w", err)
			}
			sum.Likes++
		}
	}

	log.InfoContext(ctx, "database seeding completed",
		"users", sum.Users, "posts", sum.Posts, "comments", sum.Comments, "likes", sum.Likes)
	return sum, nil
}
