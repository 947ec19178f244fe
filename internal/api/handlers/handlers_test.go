package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/maheshrc27/xscheduler/configs"
	"github.com/maheshrc27/xscheduler/internal/api/middleware"
	"github.com/maheshrc27/xscheduler/internal/models"
	"github.com/maheshrc27/xscheduler/internal/service"
	"github.com/maheshrc27/xscheduler/internal/transfer"
)

type stubPosts struct {
	service.PostService
	publishNow  func(content string) (*models.Post, error)
	createDraft func(content string) (*models.Post, error)
	list        func(status string) ([]*models.Post, error)
	update      func(id int64, u *transfer.PostUpdate) (*models.Post, error)
	summary     *transfer.TriggerSummary
	swept       bool
}

func (s *stubPosts) PublishNow(_ context.Context, _ int64, content string) (*models.Post, error) {
	return s.publishNow(content)
}

func (s *stubPosts) CreateDraft(_ context.Context, _ int64, content string, _ time.Time) (*models.Post, error) {
	return s.createDraft(content)
}

func (s *stubPosts) List(_ context.Context, _ int64, status string) ([]*models.Post, error) {
	return s.list(status)
}

func (s *stubPosts) Update(_ context.Context, _, id int64, u *transfer.PostUpdate) (*models.Post, error) {
	return s.update(id, u)
}

func (s *stubPosts) FailExpiredLeases(context.Context) (int, error) {
	s.swept = true
	return 0, nil
}

func (s *stubPosts) ProcessDuePosts(context.Context) (*transfer.TriggerSummary, error) {
	return s.summary, nil
}

type stubCreds struct {
	service.CredentialService
	get    func() (*transfer.SettingsView, error)
	verify func() (*transfer.XUser, error)
}

func (s *stubCreds) Get(context.Context, int64) (*transfer.SettingsView, error) {
	return s.get()
}

func (s *stubCreds) Verify(context.Context, int64) (*transfer.XUser, error) {
	return s.verify()
}

func asUser(c *fiber.Ctx) error {
	c.Locals("user_id", "7")
	return c.Next()
}

func newApp(posts *stubPosts, creds *stubCreds) *fiber.App {
	app := fiber.New()

	trigger := NewTriggerHandler(posts)
	auth := middleware.NewAuthMiddleware(config.Config{
		Publisher: config.Publisher{TriggerToken: "let-me-in"},
	}, nil)
	app.Get("/api/trigger-scheduled-posts", trigger.Usage)
	app.Post("/api/trigger-scheduled-posts", auth.TriggerAuth(), trigger.TriggerScheduledPosts)

	api := app.Group("/api", asUser)

	tw := NewTwitterHandler(posts, creds)
	api.Post("/twitter/post", tw.PublishNow)
	api.Post("/twitter/verify", tw.Verify)

	post := NewPostHandler(posts)
	api.Post("/posts/create", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts/update", post.UpdatePost)
	api.Post("/posts/remove", post.RemovePost)

	settings := NewSettingsHandler(creds)
	api.Get("/settings/info", settings.GetSettingsInfo)
	return app
}

func do(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return send(t, app, req)
}

func send(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func publishedPost(id int64, remoteID string) *models.Post {
	return &models.Post{ID: id, Status: models.PostStatusPublished, Published: true, RemoteID: &remoteID}
}

func TestPublishNowResponds(t *testing.T) {
	posts := &stubPosts{publishNow: func(content string) (*models.Post, error) {
		assert.Equal(t, "Hello world", content)
		return publishedPost(4, "123"), nil
	}}
	status, body := do(t, newApp(posts, nil), http.MethodPost, "/api/twitter/post", `{"content":"Hello world"}`)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "123", body["remote_id"])
	assert.EqualValues(t, 4, body["post_id"])
}

func TestPublishNowSurfacesRemoteRejection(t *testing.T) {
	payload := `{"detail":"duplicate content","status":403,"title":"Forbidden"}`
	posts := &stubPosts{publishNow: func(string) (*models.Post, error) {
		return &models.Post{ID: 5, Status: models.PostStatusFailed},
			&service.RemoteError{StatusCode: 403, Body: []byte(payload)}
	}}
	status, body := do(t, newApp(posts, nil), http.MethodPost, "/api/twitter/post", `{"content":"Hello world"}`)

	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, false, body["success"])
	assert.EqualValues(t, 403, body["status"])
	assert.EqualValues(t, 5, body["post_id"])

	want := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(payload), &want))
	assert.Equal(t, want, body["details"])
}

func TestPublishNowErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&service.TransportError{Err: context.DeadlineExceeded}, http.StatusBadGateway},
		{service.ErrCredentialsNotFound, http.StatusNotFound},
		{service.ErrCredentialsNotConnected, http.StatusBadRequest},
		{&service.ValidationError{Field: "content", Message: "content cannot be empty"}, http.StatusBadRequest},
		{service.ErrAlreadyPublished, http.StatusConflict},
		{&service.RemoteError{StatusCode: 200, Body: []byte("oops")}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		posts := &stubPosts{publishNow: func(string) (*models.Post, error) { return nil, tc.err }}
		status, body := do(t, newApp(posts, nil), http.MethodPost, "/api/twitter/post", `{"content":"x"}`)
		assert.Equal(t, tc.want, status, tc.err.Error())
		assert.Equal(t, false, body["success"])
		assert.NotEmpty(t, body["error"])
	}
}

func TestPublishNowHidesInternalErrors(t *testing.T) {
	posts := &stubPosts{publishNow: func(string) (*models.Post, error) {
		return nil, io.ErrUnexpectedEOF
	}}
	status, body := do(t, newApp(posts, nil), http.MethodPost, "/api/twitter/post", `{"content":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "something went wrong", body["error"])
}

func TestVerifyResponds(t *testing.T) {
	creds := &stubCreds{verify: func() (*transfer.XUser, error) {
		return nil, &service.RemoteError{StatusCode: 401, Body: []byte(`{"title":"Unauthorized"}`)}
	}}
	status, body := do(t, newApp(&stubPosts{}, creds), http.MethodPost, "/api/twitter/verify", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, map[string]any{"title": "Unauthorized"}, body["details"])

	creds.verify = func() (*transfer.XUser, error) { return &transfer.XUser{ID: "1", Username: "me"}, nil }
	status, body = do(t, newApp(&stubPosts{}, creds), http.MethodPost, "/api/twitter/verify", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
}

func TestCreatePostModes(t *testing.T) {
	posts := &stubPosts{createDraft: func(content string) (*models.Post, error) {
		if content == "" {
			return nil, &service.ValidationError{Field: "content", Message: "content cannot be empty"}
		}
		return &models.Post{ID: 1, Content: content, Status: models.PostStatusDraft}, nil
	}}
	app := newApp(posts, nil)

	status, body := do(t, app, http.MethodPost, "/api/posts/create", `{"content":"idea","mode":"draft"}`)
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "draft", body["status"])

	status, body = do(t, app, http.MethodPost, "/api/posts/create", `{"content":"","mode":"draft"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "content", body["field"])

	status, _ = do(t, app, http.MethodPost, "/api/posts/create", `{"content":"idea","mode":"someday"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestListPostsPassesStatus(t *testing.T) {
	var got string
	posts := &stubPosts{list: func(status string) ([]*models.Post, error) {
		got = status
		if status == "bogus" {
			return nil, &service.ValidationError{Field: "status", Message: "unknown status"}
		}
		return nil, nil
	}}
	app := newApp(posts, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/posts?status=failed", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[]", string(raw))
	assert.Equal(t, "failed", got)

	status, _ := do(t, app, http.MethodGet, "/api/posts?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUpdatePostConflicts(t *testing.T) {
	posts := &stubPosts{update: func(id int64, u *transfer.PostUpdate) (*models.Post, error) {
		assert.Equal(t, int64(9), id)
		assert.Equal(t, "draft", u.Status)
		return nil, service.ErrPostNotEditable
	}}
	status, _ := do(t, newApp(posts, nil), http.MethodPost, "/api/posts/update?id=9", `{"content":"x","status":"draft"}`)
	assert.Equal(t, http.StatusConflict, status)
}

func TestRemovePostRequiresID(t *testing.T) {
	status, body := do(t, newApp(&stubPosts{}, nil), http.MethodPost, "/api/posts/remove", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "id", body["field"])
}

func TestSettingsInfoWithoutRecord(t *testing.T) {
	creds := &stubCreds{get: func() (*transfer.SettingsView, error) { return nil, service.ErrCredentialsNotFound }}
	status, body := do(t, newApp(&stubPosts{}, creds), http.MethodGet, "/api/settings/info", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["is_connected"])
}

func TestTriggerScheduledPosts(t *testing.T) {
	posts := &stubPosts{summary: &transfer.TriggerSummary{Found: 2, Succeeded: 1, Failed: 1}}
	app := newApp(posts, nil)

	status, _ := do(t, app, http.MethodPost, "/api/trigger-scheduled-posts", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	req := httptest.NewRequest(http.MethodPost, "/api/trigger-scheduled-posts", nil)
	req.Header.Set(middleware.TriggerTokenHeader, "wrong")
	status, _ = send(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, posts.swept)

	req = httptest.NewRequest(http.MethodPost, "/api/trigger-scheduled-posts", nil)
	req.Header.Set(middleware.TriggerTokenHeader, "let-me-in")
	status, body := send(t, app, req)
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["found"])
	assert.EqualValues(t, 1, body["failed"])
	assert.True(t, posts.swept)

	status, body = do(t, app, http.MethodGet, "/api/trigger-scheduled-posts", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["message"], "X-Trigger-Token")
}

func TestHandlersRejectMissingUser(t *testing.T) {
	posts := &stubPosts{}
	for _, local := range []any{nil, "", "abc", 7} {
		app := fiber.New()
		app.Use(func(c *fiber.Ctx) error {
			if local != nil {
				c.Locals("user_id", local)
			}
			return c.Next()
		})
		app.Get("/posts", NewPostHandler(posts).ListPosts)

		status, body := do(t, app, http.MethodGet, "/posts", "")
		assert.Equal(t, http.StatusUnauthorized, status, "%v", local)
		assert.Equal(t, "Unauthorized", body["error"])
	}
}
