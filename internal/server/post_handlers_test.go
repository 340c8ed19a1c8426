package server

import (
	"net/http"
	"testing"
	"time"

	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtectedEndpoints_RequireAuthentication(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/post"},
		{http.MethodPost, "/api/post"},
		{http.MethodGet, "/api/post/1"},
		{http.MethodPut, "/api/post/1"},
		{http.MethodPatch, "/api/post/1"},
		{http.MethodDelete, "/api/post/1"},
		{http.MethodPost, "/api/post/1/like"},
		{http.MethodGet, "/api/user"},
		{http.MethodGet, "/api/user/me"},
		{http.MethodPatch, "/api/user/1"},
		{http.MethodPost, "/api/auth/logout"},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			status, body := env.do(r.method, r.path, nil, "")
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, models.CodeUnauthenticated, errorCode(body))
		})
	}
}

func TestUnknownEndpoints_DefaultDeny(t *testing.T) {
	env := newTestEnv(t)
	acct := env.register("a@x.com", "alice")

	for _, token := range []string{"", acct.Access} {
		status, body := env.do(http.MethodGet, "/api/comments", nil, token)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, models.CodeForbidden, errorCode(body))

		status, _ = env.do(http.MethodDelete, "/api/auth/login", nil, token)
		assert.Equal(t, http.StatusForbidden, status)
	}

	status, body := env.do(http.MethodGet, "/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, errorCode(body))
}

func TestCreatePost_OwnerIsCaller(t *testing.T) {
	env := newTestEnv(t)
	u := env.register("u@x.com", "uma")
	v := env.register("v@x.com", "vic")

	status, body := env.do(http.MethodPost, "/api/post", map[string]any{
		"title":   "hello",
		"content": "world",
		"user":    v.ID,
	}, u.Access)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, float64(u.ID), body["user"])
	assert.Equal(t, "uma", body["username"])
	assert.Equal(t, float64(0), body["likes_count"])
	assert.Equal(t, false, body["is_liked"])
	assert.NotEmpty(t, body["created_datetime"])
	assert.NotEmpty(t, body["updated_datetime"])

	status, body = env.do(http.MethodPost, "/api/post", map[string]any{"title": "", "content": "x"}, u.Access)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "title")
}

func TestPostOwnership(t *testing.T) {
	env := newTestEnv(t)
	u := env.register("u@x.com", "uma")
	v := env.register("v@x.com", "vic")
	id := env.createPost(u.Access, "original")
	path := "/api/post/" + itoa(id)

	status, body := env.do(http.MethodPatch, path, map[string]string{"title": "hijacked"}, v.Access)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, models.CodeForbidden, errorCode(body))

	status, _ = env.do(http.MethodPut, path, map[string]string{"title": "hijacked", "content": "x"}, v.Access)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(http.MethodDelete, path, nil, v.Access)
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(http.MethodGet, path, nil, v.Access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "original", body["title"])

	status, body = env.do(http.MethodPatch, path, map[string]string{"title": "edited"}, u.Access)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "edited", body["title"])
	assert.Equal(t, "content of original", body["content"])

	status, body = env.do(http.MethodPut, path, map[string]string{"title": "only title"}, u.Access)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["fields"], "content")

	status, body = env.do(http.MethodPut, path, map[string]string{"title": "T", "content": "C"}, u.Access)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "T", body["title"])
	assert.Equal(t, "C", body["content"])

	status, _ = env.do(http.MethodDelete, path, nil, u.Access)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = env.do(http.MethodGet, path, nil, u.Access)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, errorCode(body))

	status, _ = env.do(http.MethodPatch, path, map[string]string{"title": "x"}, v.Access)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestUpdatePost_NonOwnerForbiddenBeforeBodyIsRead(t *testing.T) {
	env := newTestEnv(t)
	u := env.register("u@x.com", "uma")
	v := env.register("v@x.com", "vic")
	path := "/api/post/" + itoa(env.createPost(u.Access, "original"))

	for _, method := range []string{http.MethodPatch, http.MethodPut} {
		status, body := env.do(method, path, []byte("{not json"), v.Access)
		assert.Equal(t, http.StatusForbidden, status, method)
		assert.Equal(t, models.CodeForbidden, errorCode(body), method)
	}

	status, body := env.do(http.MethodPatch, path, []byte("{not json"), u.Access)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errorCode(body))

	status, body = env.do(http.MethodPatch, "/api/post/9999", []byte("{not json"), u.Access)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, models.CodeNotFound, errorCode(body))
}

func TestPostText_StoredAsSent(t *testing.T) {
	env := newTestEnv(t)
	u := env.register("u@x.com", "uma")

	status, body := env.do(http.MethodPost, "/api/post", map[string]string{
		"title":   "if a<b then c",
		"content": "  <em>fish</em> & chips ",
	}, u.Access)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "if a<b then c", body["title"])
	assert.Equal(t, "<em>fish</em> & chips", body["content"])
	path := "/api/post/" + itoa(uint(body["id"].(float64)))

	status, body = env.do(http.MethodPatch, path, map[string]string{"content": "x <y> z"}, u.Access)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "if a<b then c", body["title"])
	assert.Equal(t, "x <y> z", body["content"])

	status, body = env.do(http.MethodGet, path, nil, u.Access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "x <y> z", body["content"])
}

func TestGetPost_InvalidID(t *testing.T) {
	env := newTestEnv(t)
	u := env.register("u@x.com", "uma")

	status, body := env.do(http.MethodGet, "/api/post/abc", nil, u.Access)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errorCode(body))
}

func TestLikePost_ToggleOwnPost(t *testing.T) {
	env := newTestEnv(t)
	u := env.register("u@x.com", "uma")
	v := env.register("v@x.com", "vic")
	id := env.createPost(u.Access, "mine")
	path := "/api/post/" + itoa(id) + "/like"

	status, body := env.do(http.MethodPost, path, nil, u.Access)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(1), body["likes_count"])
	assert.Equal(t, true, body["is_liked"])

	status, body = env.do(http.MethodPost, path, nil, v.Access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["likes_count"])

	status, body = env.do(http.MethodPost, path, nil, u.Access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["likes_count"])
	assert.Equal(t, false, body["is_liked"])

	var rows int64
	require.NoError(t, env.db.Model(&models.Like{}).Where("user_id = ? AND post_id = ?", u.ID, id).Count(&rows).Error)
	assert.Zero(t, rows)

	status, body = env.do(http.MethodGet, "/api/post/"+itoa(id), nil, v.Access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["is_liked"])

	status, _ = env.do(http.MethodPost, "/api/post/999/like", nil, u.Access)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestListPosts_CursorPagination(t *testing.T) {
	env := newTestEnv(t)
	u := env.register("u@x.com", "uma")

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]uint, 7)
	for i := range ids {
		ids[i] = env.createPost(u.Access, "post "+itoa(uint(i+1)))
		require.NoError(t, env.db.Model(&models.Post{}).Where("id = ?", ids[i]).
			UpdateColumn("updated_at", base.Add(time.Duration(i)*time.Minute)).Error)
	}

	titles := func(body map[string]any) []string {
		var out []string
		for _, r := range body["results"].([]any) {
			out = append(out, r.(map[string]any)["title"].(string))
		}
		return out
	}

	status, first := env.do(http.MethodGet, "/api/post", nil, u.Access)
	require.Equal(t, http.StatusOK, status, first)
	assert.Equal(t, []string{"post 7", "post 6", "post 5"}, titles(first))
	assert.Nil(t, first["previous"])
	require.NotNil(t, first["next"])

	status, second := env.do(http.MethodGet, cursorPath(t, first["next"]), nil, u.Access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"post 4", "post 3", "post 2"}, titles(second))
	require.NotNil(t, second["previous"])

	status, third := env.do(http.MethodGet, cursorPath(t, second["next"]), nil, u.Access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"post 1"}, titles(third))
	assert.Nil(t, third["next"])

	status, back := env.do(http.MethodGet, cursorPath(t, third["previous"]), nil, u.Access)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"post 4", "post 3", "post 2"}, titles(back))

	status, body := env.do(http.MethodGet, "/api/post?cursor=not-a-cursor", nil, u.Access)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, models.CodeValidation, errorCode(body))
}

func TestListPosts_UsernameFilter(t *testing.T) {
	env := newTestEnv(t)
	john := env.register("john@x.com", "johndoe")
	jane := env.register("jane@x.com", "janedoe")
	bob := env.register("bob@x.com", "bob")
	env.createPost(john.Access, "from john")
	env.createPost(jane.Access, "from jane")
	env.createPost(bob.Access, "from bob")

	count := func(query string) (int, map[string]any) {
		status, body := env.do(http.MethodGet, "/api/post?"+query, nil, bob.Access)
		require.Equal(t, http.StatusOK, status, body)
		return len(body["results"].([]any)), body
	}

	n, body := count("user__username=johndoe")
	assert.Equal(t, 1, n)
	assert.Equal(t, "from john", body["results"].([]any)[0].(map[string]any)["title"])

	n, _ = count("user__username=john")
	assert.Zero(t, n)

	n, _ = count("user__username__icontains=DOE")
	assert.Equal(t, 2, n)

	n, _ = count("user__username__icontains=%25")
	assert.Zero(t, n)
}

func TestListPosts_FilterKeptInPageLinks(t *testing.T) {
	env := newTestEnv(t)
	u := env.register("u@x.com", "uma")
	for i := 0; i < 4; i++ {
		env.createPost(u.Access, "p"+itoa(uint(i)))
	}

	status, body := env.do(http.MethodGet, "/api/post?user__username=uma", nil, u.Access)
	require.Equal(t, http.StatusOK, status)
	next := cursorPath(t, body["next"])
	assert.Contains(t, next, "user__username=uma")
	assert.Contains(t, next, "cursor=")
}
