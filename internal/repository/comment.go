package repository

import (
	"context"

	"murmur/internal/models"

	"gorm.io/gorm"
)

// CommentRepository stores comments. Comments have no HTTP surface; they are
// written by the seeder and removed with their post.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit("User", "Post").Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
