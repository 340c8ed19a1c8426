package repository

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"murmur/internal/models"
	"murmur/internal/observability"

	"gorm.io/gorm"
)

// Page sizes for the post feed.
const (
	DefaultPageSize = 3
	MaxPageSize     = 100
)

// PostFilter narrows the feed by owner username. Empty fields are ignored.
type PostFilter struct {
	Username         string
	UsernameContains string
}

// PostPage is one page of the feed plus cursors to its neighbours.
type PostPage struct {
	Results  []*models.Post
	Next     *Cursor
	Previous *Cursor
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	List(ctx context.Context, filter PostFilter, cursor *Cursor, size int, viewerID uint) (*PostPage, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db, log: observability.NewRepoLogger("posts")}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, slog.Uint64("post_id", uint64(post.ID)), slog.Uint64("user_id", uint64(post.UserID)))
	return nil
}

// withDetails selects the post columns plus the owner's username, the like
// count and whether viewerID likes the post. Anonymous viewers (0) never match.
func withDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	return db.Model(&models.Post{}).
		Joins("JOIN users ON users.id = posts.user_id").
		Select(
			"posts.*, users.username AS username, "+
				"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count, "+
				"EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS is_liked",
			viewerID,
		)
}

// GetByID reads from the primary so a post is visible right after it is written.
func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := withDetails(r.db.WithContext(ctx), viewerID).
		Where("posts.id = ?", id).
		Take(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func applyFilter(db *gorm.DB, f PostFilter) *gorm.DB {
	if f.Username != "" {
		db = db.Where("users.username = ?", f.Username)
	}
	if f.UsernameContains != "" {
		db = db.Where(`LOWER(users.username) LIKE ? ESCAPE '\'`, "%"+escapeLike(strings.ToLower(f.UsernameContains))+"%")
	}
	return db
}

// List returns one feed page ordered by updated_at DESC, id DESC.
//
// A forward cursor selects rows strictly after its position. A reverse cursor
// selects rows strictly before it, queried ascending and flipped back.
func (r *postRepository) List(ctx context.Context, filter PostFilter, cursor *Cursor, size int, viewerID uint) (*PostPage, error) {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	reverse := cursor != nil && cursor.Reverse
	q := applyFilter(withDetails(readDB(r.db).WithContext(ctx), viewerID), filter)

	if cursor != nil {
		if reverse {
			q = q.Where("(posts.updated_at > ? OR (posts.updated_at = ? AND posts.id > ?))",
				cursor.UpdatedAt, cursor.UpdatedAt, cursor.ID)
		} else {
			q = q.Where("(posts.updated_at < ? OR (posts.updated_at = ? AND posts.id < ?))",
				cursor.UpdatedAt, cursor.UpdatedAt, cursor.ID)
		}
	}
	if reverse {
		q = q.Order("posts.updated_at ASC").Order("posts.id ASC")
	} else {
		q = q.Order("posts.updated_at DESC").Order("posts.id DESC")
	}

	var posts []*models.Post
	if err := q.Limit(size + 1).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}

	hasMore := len(posts) > size
	if hasMore {
		posts = posts[:size]
	}
	if reverse {
		for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
			posts[i], posts[j] = posts[j], posts[i]
		}
	}

	page := &PostPage{Results: posts}
	if len(posts) == 0 {
		return page, nil
	}
	first, last := posts[0], posts[len(posts)-1]

	if reverse {
		if hasMore {
			page.Previous = cursorAt(first, true)
		}
		page.Next = cursorAt(last, false)
	} else {
		if hasMore {
			page.Next = cursorAt(last, false)
		}
		if cursor != nil {
			page.Previous = cursorAt(first, true)
		}
	}
	return page, nil
}

// Update writes title and content. Owner and creation time never change.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	res := r.db.WithContext(ctx).Model(post).Select("title", "content", "updated_at").Updates(post)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	return nil
}

// Delete removes a post; likes and comments go with it through the foreign keys.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "delete")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	r.log.LogDelete(ctx, slog.Uint64("post_id", uint64(id)))
	return nil
}
