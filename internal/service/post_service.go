package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"murmur/internal/authz"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// PostService implements the post feed, post CRUD and the like toggle.
type PostService struct {
	posts    repository.PostRepository
	likes    repository.LikeRepository
	pageSize int
}

// NewPostService creates a PostService. A non-positive pageSize uses the default.
func NewPostService(posts repository.PostRepository, likes repository.LikeRepository, pageSize int) *PostService {
	if pageSize <= 0 {
		pageSize = repository.DefaultPageSize
	}
	return &PostService{posts: posts, likes: likes, pageSize: pageSize}
}

type ListPostsInput struct {
	Filter repository.PostFilter
	Cursor string
}

type CreatePostInput struct {
	Title   string
	Content string
}

// UpdatePostInput carries the fields to change. A full update needs both;
// a partial one needs at least the fields it sets.
type UpdatePostInput struct {
	Title   *string
	Content *string
	Partial bool
}

// LikeResult is the post after a toggle together with the stored like state.
type LikeResult struct {
	Post       *models.Post
	LikesCount int64
	IsLiked    bool
}

// checkText trims v and reports blank or over-long values. Markup is kept as sent.
func checkText(f fieldErrors, field, v string, max int) string {
	clean := strings.TrimSpace(v)
	switch {
	case clean == "":
		f.add(field, "This field may not be blank.")
	case utf8.RuneCountInString(clean) > max:
		f.add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", max))
	}
	return clean
}

// ListPosts returns one feed page as seen by actor.
func (s *PostService) ListPosts(ctx context.Context, actor authz.Actor, in ListPostsInput) (*repository.PostPage, error) {
	if err := Authorize(actor, authz.ResourcePost, authz.ActionList, nil); err != nil {
		return nil, err
	}
	cursor, err := repository.DecodeCursor(in.Cursor)
	if err != nil {
		return nil, err
	}
	return s.posts.List(ctx, in.Filter, cursor, s.pageSize, actor.ID)
}

// CreatePost stores a post owned by actor, whatever the request claimed.
func (s *PostService) CreatePost(ctx context.Context, actor authz.Actor, in CreatePostInput) (_ *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "CreatePost")
	defer func() { observability.EndSpan(span, err) }()

	if err := Authorize(actor, authz.ResourcePost, authz.ActionCreate, nil); err != nil {
		return nil, err
	}

	f := fieldErrors{}
	title := checkText(f, "title", in.Title, models.PostTitleMaxLen)
	content := checkText(f, "content", in.Content, models.PostContentMaxLen)
	if err := f.err(); err != nil {
		return nil, err
	}

	post := &models.Post{UserID: actor.ID, Title: title, Content: content}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, post.ID, actor.ID)
}

// GetPost returns one post as seen by actor.
func (s *PostService) GetPost(ctx context.Context, actor authz.Actor, id uint) (*models.Post, error) {
	if err := Authorize(actor, authz.ResourcePost, authz.ActionRetrieve, nil); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, id, actor.ID)
}

// loadForAction checks the class-level policy, loads the post and then checks
// the object-level policy against its owner. A missing post is NOT_FOUND before
// ownership is considered.
func (s *PostService) loadForAction(ctx context.Context, actor authz.Actor, id uint, action authz.Action) (*models.Post, error) {
	if err := Authorize(actor, authz.ResourcePost, action, nil); err != nil {
		return nil, err
	}
	post, err := s.posts.GetByID(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, authz.ResourcePost, action, &authz.Target{OwnerID: post.UserID}); err != nil {
		return nil, err
	}
	return post, nil
}

func updateAction(partial bool) authz.Action {
	if partial {
		return authz.ActionPartialUpdate
	}
	return authz.ActionUpdate
}

// AuthorizeUpdate reports whether actor may update post id, before any body
// is read.
func (s *PostService) AuthorizeUpdate(ctx context.Context, actor authz.Actor, id uint, partial bool) error {
	_, err := s.loadForAction(ctx, actor, id, updateAction(partial))
	return err
}

// UpdatePost changes title and/or content. Only the owner may update.
func (s *PostService) UpdatePost(ctx context.Context, actor authz.Actor, id uint, in UpdatePostInput) (_ *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "UpdatePost", attribute.Int("post.id", int(id)))
	defer func() { observability.EndSpan(span, err) }()

	post, err := s.loadForAction(ctx, actor, id, updateAction(in.Partial))
	if err != nil {
		return nil, err
	}

	f := fieldErrors{}
	if !in.Partial {
		if in.Title == nil {
			f.add("title", "This field is required.")
		}
		if in.Content == nil {
			f.add("content", "This field is required.")
		}
	}
	if in.Title != nil {
		post.Title = checkText(f, "title", *in.Title, models.PostTitleMaxLen)
	}
	if in.Content != nil {
		post.Content = checkText(f, "content", *in.Content, models.PostContentMaxLen)
	}
	if err := f.err(); err != nil {
		return nil, err
	}

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.posts.GetByID(ctx, id, actor.ID)
}

// DeletePost removes a post. Only the owner may delete.
func (s *PostService) DeletePost(ctx context.Context, actor authz.Actor, id uint) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "DeletePost", attribute.Int("post.id", int(id)))
	defer func() { observability.EndSpan(span, err) }()

	if _, err := s.loadForAction(ctx, actor, id, authz.ActionDestroy); err != nil {
		return err
	}
	return s.posts.Delete(ctx, id)
}

// ToggleLike flips actor's like on the post. Any authenticated user may like
// any post, their own included.
func (s *PostService) ToggleLike(ctx context.Context, actor authz.Actor, id uint) (_ *LikeResult, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "ToggleLike", attribute.Int("post.id", int(id)))
	defer func() { observability.EndSpan(span, err) }()

	if _, err := s.loadForAction(ctx, actor, id, authz.ActionLike); err != nil {
		return nil, err
	}

	liked, count, err := s.likes.Toggle(ctx, actor.ID, id)
	if err != nil {
		return nil, err
	}
	state := "unliked"
	if liked {
		state = "liked"
	}
	observability.LikeToggles.WithLabelValues(state).Inc()

	post, err := s.posts.GetByID(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	post.LikesCount = count
	post.IsLiked = liked
	return &LikeResult{Post: post, LikesCount: count, IsLiked: liked}, nil
}
