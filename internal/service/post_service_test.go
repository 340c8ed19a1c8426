package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"murmur/internal/authz"
	"murmur/internal/models"
	"murmur/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn  func(context.Context, *models.Post) error
	getByIDFn func(context.Context, uint, uint) (*models.Post, error)
	listFn    func(context.Context, repository.PostFilter, *repository.Cursor, int, uint) (*repository.PostPage, error)
	updateFn  func(context.Context, *models.Post) error
	deleteFn  func(context.Context, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, viewerID)
}
func (s *postRepoStub) List(ctx context.Context, f repository.PostFilter, c *repository.Cursor, size int, viewerID uint) (*repository.PostPage, error) {
	return s.listFn(ctx, f, c, size, viewerID)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}

// ownedPostRepo serves a single post 10 owned by user 1.
func ownedPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, p *models.Post) error { p.ID = 10; return nil },
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Post, error) {
			if id != 10 {
				return nil, models.NewNotFoundError("Post", id)
			}
			return &models.Post{ID: 10, UserID: 1, Title: "t", Content: "c"}, nil
		},
		listFn: func(context.Context, repository.PostFilter, *repository.Cursor, int, uint) (*repository.PostPage, error) {
			return &repository.PostPage{}, nil
		},
		updateFn: func(context.Context, *models.Post) error { return nil },
		deleteFn: func(context.Context, uint) error { return nil },
	}
}

// likeRepoStub is a stub for repository.LikeRepository.
type likeRepoStub struct {
	toggleFn func(context.Context, uint, uint) (bool, int64, error)
}

func (s *likeRepoStub) Exists(context.Context, uint, uint) (bool, error) { return false, nil }
func (s *likeRepoStub) Create(context.Context, uint, uint) error         { return nil }
func (s *likeRepoStub) Delete(context.Context, uint, uint) error         { return nil }
func (s *likeRepoStub) Count(context.Context, uint) (int64, error)       { return 0, nil }
func (s *likeRepoStub) Toggle(ctx context.Context, userID, postID uint) (bool, int64, error) {
	return s.toggleFn(ctx, userID, postID)
}

func noopLikeRepo() *likeRepoStub {
	return &likeRepoStub{toggleFn: func(context.Context, uint, uint) (bool, int64, error) { return true, 1, nil }}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func strPtr(s string) *string { return &s }

func TestPostService_CreatePost_Validation(t *testing.T) {
	t.Parallel()

	svc := NewPostService(ownedPostRepo(), noopLikeRepo(), 0)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreatePostInput
	}{
		{"empty title", CreatePostInput{Content: "c"}},
		{"empty content", CreatePostInput{Title: "t"}},
		{"blank title", CreatePostInput{Title: "  \n\t", Content: "c"}},
		{"title too long", CreatePostInput{Title: strings.Repeat("x", 256), Content: "c"}},
		{"content too long", CreatePostInput{Title: "t", Content: strings.Repeat("x", 501)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, authz.Actor{ID: 1}, tt.input)
			assertValidationError(t, err)
		})
	}
}

func TestPostService_CreatePost_OwnerIsActor(t *testing.T) {
	repo := ownedPostRepo()
	var stored *models.Post
	repo.createFn = func(_ context.Context, p *models.Post) error {
		p.ID = 10
		stored = p
		return nil
	}
	svc := NewPostService(repo, noopLikeRepo(), 0)

	_, err := svc.CreatePost(context.Background(), authz.Actor{ID: 7}, CreatePostInput{
		Title:   "  if a<b then c ",
		Content: "<i>world</i> & more",
	})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, uint(7), stored.UserID)
	assert.Equal(t, "if a<b then c", stored.Title)
	assert.Equal(t, "<i>world</i> & more", stored.Content)
}

func TestPostService_Anonymous(t *testing.T) {
	svc := NewPostService(ownedPostRepo(), noopLikeRepo(), 0)
	ctx := context.Background()

	_, err := svc.ListPosts(ctx, authz.Anonymous, ListPostsInput{})
	assertCode(t, err, models.CodeUnauthenticated)
	_, err = svc.CreatePost(ctx, authz.Anonymous, CreatePostInput{Title: "t", Content: "c"})
	assertCode(t, err, models.CodeUnauthenticated)
	_, err = svc.GetPost(ctx, authz.Anonymous, 10)
	assertCode(t, err, models.CodeUnauthenticated)
	_, err = svc.ToggleLike(ctx, authz.Anonymous, 10)
	assertCode(t, err, models.CodeUnauthenticated)
}

func TestPostService_UpdatePost_Ownership(t *testing.T) {
	repo := ownedPostRepo()
	updated := false
	repo.updateFn = func(context.Context, *models.Post) error { updated = true; return nil }
	svc := NewPostService(repo, noopLikeRepo(), 0)
	ctx := context.Background()

	_, err := svc.UpdatePost(ctx, authz.Actor{ID: 2}, 10, UpdatePostInput{Title: strPtr("x"), Partial: true})
	assertCode(t, err, models.CodeForbidden)
	assert.False(t, updated)

	_, err = svc.UpdatePost(ctx, authz.Actor{ID: 2}, 99, UpdatePostInput{Title: strPtr("x"), Partial: true})
	assertCode(t, err, models.CodeNotFound)

	_, err = svc.UpdatePost(ctx, authz.Actor{ID: 1}, 10, UpdatePostInput{Title: strPtr("x"), Partial: true})
	require.NoError(t, err)
	assert.True(t, updated)
}

func TestPostService_UpdatePost_FullRequiresBothFields(t *testing.T) {
	repo := ownedPostRepo()
	var stored *models.Post
	repo.updateFn = func(_ context.Context, p *models.Post) error { stored = p; return nil }
	svc := NewPostService(repo, noopLikeRepo(), 0)
	ctx := context.Background()
	owner := authz.Actor{ID: 1}

	_, err := svc.UpdatePost(ctx, owner, 10, UpdatePostInput{Title: strPtr("only title")})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "content")
	assert.Nil(t, stored)

	_, err = svc.UpdatePost(ctx, owner, 10, UpdatePostInput{Title: strPtr("T2"), Content: strPtr("C2")})
	require.NoError(t, err)
	assert.Equal(t, "T2", stored.Title)
	assert.Equal(t, "C2", stored.Content)

	_, err = svc.UpdatePost(ctx, owner, 10, UpdatePostInput{Content: strPtr(""), Partial: true})
	assertValidationError(t, err)
}

func TestPostService_DeletePost(t *testing.T) {
	repo := ownedPostRepo()
	var deleted uint
	repo.deleteFn = func(_ context.Context, id uint) error { deleted = id; return nil }
	svc := NewPostService(repo, noopLikeRepo(), 0)
	ctx := context.Background()

	err := svc.DeletePost(ctx, authz.Actor{ID: 3}, 10)
	assertCode(t, err, models.CodeForbidden)
	assert.Zero(t, deleted)

	require.NoError(t, svc.DeletePost(ctx, authz.Actor{ID: 1}, 10))
	assert.Equal(t, uint(10), deleted)
}

func TestPostService_ToggleLike(t *testing.T) {
	state := map[uint]bool{}
	likes := &likeRepoStub{toggleFn: func(_ context.Context, userID, _ uint) (bool, int64, error) {
		state[userID] = !state[userID]
		var n int64
		for _, v := range state {
			if v {
				n++
			}
		}
		return state[userID], n, nil
	}}
	svc := NewPostService(ownedPostRepo(), likes, 0)
	ctx := context.Background()

	res, err := svc.ToggleLike(ctx, authz.Actor{ID: 1}, 10)
	require.NoError(t, err)
	assert.True(t, res.IsLiked, "owners may like their own posts")
	assert.Equal(t, int64(1), res.LikesCount)
	assert.Equal(t, int64(1), res.Post.LikesCount)

	res, err = svc.ToggleLike(ctx, authz.Actor{ID: 2}, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.LikesCount)

	res, err = svc.ToggleLike(ctx, authz.Actor{ID: 1}, 10)
	require.NoError(t, err)
	assert.False(t, res.IsLiked)
	assert.False(t, res.Post.IsLiked)
	assert.Equal(t, int64(1), res.LikesCount)

	_, err = svc.ToggleLike(ctx, authz.Actor{ID: 1}, 404)
	assertCode(t, err, models.CodeNotFound)
}

func TestPostService_ListPosts(t *testing.T) {
	repo := ownedPostRepo()
	var gotSize int
	var gotViewer uint
	var gotFilter repository.PostFilter
	repo.listFn = func(_ context.Context, f repository.PostFilter, _ *repository.Cursor, size int, viewer uint) (*repository.PostPage, error) {
		gotFilter, gotSize, gotViewer = f, size, viewer
		return &repository.PostPage{}, nil
	}
	svc := NewPostService(repo, noopLikeRepo(), 0)
	ctx := context.Background()

	_, err := svc.ListPosts(ctx, authz.Actor{ID: 4}, ListPostsInput{Filter: repository.PostFilter{Username: "bob"}})
	require.NoError(t, err)
	assert.Equal(t, repository.DefaultPageSize, gotSize)
	assert.Equal(t, uint(4), gotViewer)
	assert.Equal(t, "bob", gotFilter.Username)

	_, err = svc.ListPosts(ctx, authz.Actor{ID: 4}, ListPostsInput{Cursor: "%%%"})
	assertValidationError(t, err)
}
