package repository

import (
	"context"
	"log/slog"

	"murmur/internal/models"
	"murmur/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository stores (user, post) likes. Writes are idempotent: liking
// twice or unliking a missing like is a no-op.
type LikeRepository interface {
	Exists(ctx context.Context, userID, postID uint) (bool, error)
	Create(ctx context.Context, userID, postID uint) error
	Delete(ctx context.Context, userID, postID uint) error
	Count(ctx context.Context, postID uint) (int64, error)
	Toggle(ctx context.Context, userID, postID uint) (liked bool, count int64, err error)
}

type likeRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewLikeRepository creates a new LikeRepository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db, log: observability.NewRepoLogger("likes")}
}

func likeExists(tx *gorm.DB, userID, postID uint) (bool, error) {
	var n int64
	err := tx.Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

func (r *likeRepository) insert(ctx context.Context, tx *gorm.DB, userID, postID uint) error {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
		DoNothing: true,
	}).Create(&models.Like{UserID: userID, PostID: postID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		r.log.LogConflict(ctx, "create", slog.Uint64("user_id", uint64(userID)), slog.Uint64("post_id", uint64(postID)))
	}
	return nil
}

func remove(tx *gorm.DB, userID, postID uint) error {
	return tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{}).Error
}

func countLikes(tx *gorm.DB, postID uint) (int64, error) {
	var n int64
	err := tx.Model(&models.Like{}).Where("post_id = ?", postID).Count(&n).Error
	return n, err
}

func (r *likeRepository) Exists(ctx context.Context, userID, postID uint) (bool, error) {
	ok, err := likeExists(r.db.WithContext(ctx), userID, postID)
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return ok, nil
}

// Create inserts a like; an existing row is left alone.
func (r *likeRepository) Create(ctx context.Context, userID, postID uint) error {
	if err := r.insert(ctx, r.db.WithContext(ctx), userID, postID); err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes a like; zero affected rows is not an error.
func (r *likeRepository) Delete(ctx context.Context, userID, postID uint) error {
	if err := remove(r.db.WithContext(ctx), userID, postID); err != nil {
		r.log.LogError(ctx, err, "delete")
		return models.NewInternalError(err)
	}
	return nil
}

func (r *likeRepository) Count(ctx context.Context, postID uint) (int64, error) {
	n, err := countLikes(r.db.WithContext(ctx), postID)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

// Toggle flips the like state of (userID, postID) and returns the stored state
// and the post's like count, all read inside one transaction.
func (r *likeRepository) Toggle(ctx context.Context, userID, postID uint) (bool, int64, error) {
	var (
		liked bool
		count int64
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := likeExists(tx, userID, postID)
		if err != nil {
			return err
		}
		if exists {
			err = remove(tx, userID, postID)
		} else {
			err = r.insert(ctx, tx, userID, postID)
		}
		if err != nil {
			return err
		}

		if liked, err = likeExists(tx, userID, postID); err != nil {
			return err
		}
		count, err = countLikes(tx, postID)
		return err
	})
	if err != nil {
		r.log.LogError(ctx, err, "toggle")
		return false, 0, models.NewInternalError(err)
	}
	return liked, count, nil
}
