package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"github.com/BorisDmv/portfolio-api/internal/auth"
	"github.com/BorisDmv/portfolio-api/internal/content"
	"github.com/BorisDmv/portfolio-api/internal/db"
	"github.com/BorisDmv/portfolio-api/internal/models"
)

const adminPassword = "test-admin-password"

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

type testServer struct {
	handler http.Handler
	slot    *db.MemorySlot
	clock   *clock
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRouterFor(repo db.Repository, c *clock) http.Handler {
	return routerWith(NewPostsHandler(repo, quietLogger()).WithClock(c.Now), c)
}

func routerWith(posts *PostsHandler, c *clock) http.Handler {
	logger := quietLogger()
	gate := auth.NewGate(adminPassword, time.Hour).WithClock(c.Now)
	return NewRouter(RouterConfig{
		Posts:          posts,
		Admin:          NewAdminHandler(gate, logger),
		Gate:           gate,
		AllowedOrigins: []string{"*"},
	})
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, sanitizer *content.Sanitizer) *testServer {
	t.Helper()
	slot := &db.MemorySlot{}
	repo, err := db.OpenLocalStore(context.Background(), slot)
	assert.NilError(t, err)

	c := &clock{now: time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)}
	posts := NewPostsHandler(repo, quietLogger()).WithClock(c.Now)
	if sanitizer != nil {
		posts.WithSanitizer(sanitizer)
	}
	return &testServer{
		handler: routerWith(posts, c),
		slot:    slot,
		clock:   c,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		assert.NilError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Origin", "https://portfolio.example")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	assert.NilError(t, json.NewDecoder(rec.Body).Decode(dst))
}

func (s *testServer) list(t *testing.T) []models.Post {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/posts", nil, "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var resp PostsResponse
	decode(t, rec, &resp)
	return resp.Posts
}

func (s *testServer) create(t *testing.T, body interface{}) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/admin/posts", body, adminPassword)
	assert.Equal(t, rec.Code, http.StatusCreated, rec.Body.String())
	var resp successResponse
	decode(t, rec, &resp)
	assert.Assert(t, resp.Success)
	assert.Assert(t, resp.ID != "")
	return resp.ID
}

func samplePost() map[string]interface{} {
	return map[string]interface{}{
		"title":    "A",
		"excerpt":  "B",
		"content":  "<p>C</p>",
		"author":   "X",
		"category": "Y",
		"tags":     []string{"k8s"},
		"readTime": 3,
	}
}

func TestPostLifecycle(t *testing.T) {
	s := newTestServer(t)
	callTime := s.clock.now

	// Create
	rec := s.do(t, http.MethodPost, "/admin/posts", samplePost(), adminPassword)
	assert.Equal(t, rec.Code, http.StatusCreated)
	var created struct {
		Success bool        `json:"success"`
		ID      interface{} `json:"id"`
	}
	decode(t, rec, &created)
	assert.Assert(t, created.Success)
	id, ok := created.ID.(string)
	assert.Assert(t, ok, "id should be a string, got %T", created.ID)
	assert.Assert(t, id != "")

	posts := s.list(t)
	assert.Equal(t, len(posts), 1)
	original := posts[0]
	assert.Equal(t, original.ID, id)
	assert.Equal(t, original.Title, "A")
	assert.DeepEqual(t, original.Tags, []string{"k8s"})
	assert.Equal(t, original.ReadTime, 3)
	assert.Equal(t, original.Date, "2026-10-18")
	createdAt, err := models.ParseTimestamp(original.CreatedAt)
	assert.NilError(t, err)
	assert.Assert(t, !createdAt.Before(callTime))
	assert.Equal(t, original.UpdatedAt, "")

	// Update
	s.clock.now = s.clock.now.Add(time.Minute)
	rec = s.do(t, http.MethodPut, "/admin/posts", map[string]interface{}{"id": id, "category": "Z"}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "{\"success\":true}\n")

	posts = s.list(t)
	assert.Equal(t, len(posts), 1)
	updated := posts[0]
	assert.Equal(t, updated.Category, "Z")
	updatedAt, err := models.ParseTimestamp(updated.UpdatedAt)
	assert.NilError(t, err)
	assert.Assert(t, updatedAt.After(createdAt))

	want := original
	want.Category = "Z"
	want.UpdatedAt = updated.UpdatedAt
	assert.DeepEqual(t, updated, want)

	// Delete
	rec = s.do(t, http.MethodDelete, "/admin/posts", map[string]string{"id": id}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, len(s.list(t)), 0)

	// A second delete is a no-op.
	rec = s.do(t, http.MethodDelete, "/admin/posts", map[string]string{"id": id}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "{\"success\":true}\n")
}

func TestUpdateAlwaysRefreshesUpdatedAt(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, samplePost())

	s.clock.now = s.clock.now.Add(time.Second)
	rec := s.do(t, http.MethodPut, "/admin/posts", map[string]string{"id": id}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusOK)
	first := s.list(t)[0].UpdatedAt

	s.clock.now = s.clock.now.Add(time.Second)
	rec = s.do(t, http.MethodPut, "/admin/posts", map[string]string{"id": id}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusOK)
	second := s.list(t)[0].UpdatedAt

	assert.Assert(t, first != "")
	assert.Assert(t, second > first)
}

func TestUpdateIgnoresIdentityFields(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, samplePost())
	before := s.list(t)[0]

	rec := s.do(t, http.MethodPut, "/admin/posts", map[string]interface{}{
		"id":        id,
		"createdAt": "1999-01-01T00:00:00.000Z",
		"title":     "A2",
	}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusOK)

	after := s.list(t)[0]
	assert.Equal(t, after.ID, before.ID)
	assert.Equal(t, after.CreatedAt, before.CreatedAt)
	assert.Equal(t, after.Title, "A2")
}

func TestMutationsRequireToken(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, samplePost())
	snapshot := string(s.slot.Bytes())

	for _, token := range []string{"", "wrong"} {
		rec := s.do(t, http.MethodPost, "/admin/posts", samplePost(), token)
		assert.Equal(t, rec.Code, http.StatusUnauthorized)

		rec = s.do(t, http.MethodPut, "/admin/posts", map[string]string{"id": id, "title": "hacked"}, token)
		assert.Equal(t, rec.Code, http.StatusUnauthorized)

		rec = s.do(t, http.MethodDelete, "/admin/posts", map[string]string{"id": id}, token)
		assert.Equal(t, rec.Code, http.StatusUnauthorized)
		assert.Equal(t, rec.Body.String(), "{\"error\":\"Unauthorized\"}\n")
	}

	assert.Equal(t, string(s.slot.Bytes()), snapshot)
	posts := s.list(t)
	assert.Equal(t, len(posts), 1)
	assert.Equal(t, posts[0].Title, "A")
}

func TestSessionTokenAuthorizesMutations(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/admin/login", LoginRequest{Password: adminPassword}, "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var login LoginResponse
	decode(t, rec, &login)
	assert.Assert(t, login.Token != "")
	assert.Equal(t, login.ExpiresAt, "2026-10-18T10:00:00Z")

	rec = s.do(t, http.MethodPost, "/admin/posts", samplePost(), login.Token)
	assert.Equal(t, rec.Code, http.StatusCreated)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/admin/login", LoginRequest{Password: "guess"}, "")
	assert.Equal(t, rec.Code, http.StatusUnauthorized)

	rec = s.do(t, http.MethodPost, "/admin/login", LoginRequest{}, "")
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestCreateValidation(t *testing.T) {
	s := newTestServer(t)

	body := samplePost()
	delete(body, "title")
	rec := s.do(t, http.MethodPost, "/admin/posts", body, adminPassword)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, resp.Error, "title is required")

	req := httptest.NewRequest(http.MethodPost, "/admin/posts", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+adminPassword)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	assert.Equal(t, len(s.list(t)), 0)
}

func TestCreateAppliesDefaults(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, map[string]interface{}{
		"title":   "A",
		"excerpt": "B",
		"content": "<p>C</p>",
		"date":    "2024-05-01",
	})

	rec := s.do(t, http.MethodGet, "/posts/"+id, nil, "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var resp PostResponse
	decode(t, rec, &resp)

	assert.Equal(t, resp.Post.ReadTime, models.DefaultReadTime)
	assert.DeepEqual(t, resp.Post.Tags, []string{})
	assert.Equal(t, resp.Post.Date, "2024-05-01")
}

func TestFieldsStoredExactlyAsSent(t *testing.T) {
	s := newTestServer(t)
	body := `<pre><code class="language-yaml">kind: Pod</code></pre>` +
		`<iframe src="https://www.youtube.com/embed/x"></iframe>` +
		`<img src="data:image/png;base64,iVBORw0KGgo=" style="width: 50%">`
	id := s.create(t, map[string]interface{}{
		"title":   "Generics with <T any>",
		"excerpt": "Tom &amp; Jerry",
		"content": body,
	})

	posts := s.list(t)
	assert.Equal(t, len(posts), 1)
	assert.Equal(t, posts[0].Title, "Generics with <T any>")
	assert.Equal(t, posts[0].Excerpt, "Tom &amp; Jerry")
	assert.Equal(t, posts[0].Content, body)

	rec := s.do(t, http.MethodPut, "/admin/posts", map[string]string{
		"id":      id,
		"excerpt": "Use <Deployment> objects",
	}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusOK)

	posts = s.list(t)
	assert.Equal(t, posts[0].Excerpt, "Use <Deployment> objects")
	assert.Equal(t, posts[0].Title, "Generics with <T any>")
	assert.Equal(t, posts[0].Content, body)
}

func TestSanitizerScrubsOnlyContent(t *testing.T) {
	s := newTestServerWith(t, content.NewSanitizer())
	id := s.create(t, map[string]interface{}{
		"title":   "<b>A</b>",
		"excerpt": "B & C",
		"content": `<p class="lead">C</p><script>alert(1)</script>`,
	})

	posts := s.list(t)
	assert.Equal(t, posts[0].Title, "<b>A</b>")
	assert.Equal(t, posts[0].Excerpt, "B & C")
	assert.Equal(t, posts[0].Content, `<p class="lead">C</p>`)

	// A body that is nothing but active content is empty once scrubbed.
	rec := s.do(t, http.MethodPost, "/admin/posts", map[string]string{
		"title":   "T",
		"excerpt": "E",
		"content": "<script>alert(1)</script>",
	}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, resp.Error, "content is required")

	rec = s.do(t, http.MethodPut, "/admin/posts", map[string]string{
		"id":      id,
		"content": "<script>alert(1)</script>",
	}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
	posts = s.list(t)
	assert.Equal(t, len(posts), 1)
	assert.Equal(t, posts[0].Content, `<p class="lead">C</p>`)
}

func TestUpdateAndDeleteRequireID(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPut, "/admin/posts", map[string]string{"title": "T"}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, resp.Error, "Post ID required")

	rec = s.do(t, http.MethodDelete, "/admin/posts", map[string]string{}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec = s.do(t, http.MethodDelete, "/admin/posts", nil, adminPassword)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestUpdateRejectsEmptyRequiredField(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, samplePost())

	rec := s.do(t, http.MethodPut, "/admin/posts", map[string]string{"id": id, "content": ""}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
	assert.Equal(t, s.list(t)[0].Content, "<p>C</p>")
}

func TestUpdateUnknownIDSucceedsWithoutChanges(t *testing.T) {
	s := newTestServer(t)
	s.create(t, samplePost())
	snapshot := string(s.slot.Bytes())

	rec := s.do(t, http.MethodPut, "/admin/posts", map[string]string{"id": "missing", "title": "T"}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, string(s.slot.Bytes()), snapshot)
}

func TestUpdateByQueryIDWithoutBody(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, samplePost())
	s.clock.now = s.clock.now.Add(time.Minute)

	rec := s.do(t, http.MethodPut, "/admin/posts?id="+id, nil, adminPassword)
	assert.Equal(t, rec.Code, http.StatusOK, rec.Body.String())

	post := s.list(t)[0]
	assert.Equal(t, post.Title, "A")
	assert.Equal(t, post.UpdatedAt, models.Timestamp(s.clock.now))
}

func TestDeleteByQueryID(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, samplePost())

	rec := s.do(t, http.MethodDelete, "/admin/posts?id="+id, nil, adminPassword)
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, len(s.list(t)), 0)
}

func TestGetPost(t *testing.T) {
	s := newTestServer(t)
	id := s.create(t, samplePost())

	rec := s.do(t, http.MethodGet, "/posts/"+id, nil, "")
	assert.Equal(t, rec.Code, http.StatusOK)
	var resp PostResponse
	decode(t, rec, &resp)
	assert.Equal(t, resp.Post.ID, id)

	rec = s.do(t, http.MethodGet, "/posts/missing", nil, "")
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestListOrderedByDateDescending(t *testing.T) {
	s := newTestServer(t)
	for _, date := range []string{"2024-02-01", "2025-01-01", "2023-06-30"} {
		body := samplePost()
		body["title"] = date
		body["date"] = date
		s.create(t, body)
	}

	var dates []string
	for _, p := range s.list(t) {
		dates = append(dates, p.Date)
	}
	assert.DeepEqual(t, dates, []string{"2025-01-01", "2024-02-01", "2023-06-30"})
}

func TestListEmptyIsArray(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/posts", nil, "")
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "{\"posts\":[]}\n")
}

func TestOptionsAndCORS(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/posts", "/admin/posts"} {
		rec := s.do(t, http.MethodOptions, path, nil, "")
		assert.Equal(t, rec.Code, http.StatusOK, path)
		assert.Equal(t, rec.Body.Len(), 0, path)

		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://portfolio.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		pre := httptest.NewRecorder()
		s.handler.ServeHTTP(pre, req)
		assert.Equal(t, pre.Code, http.StatusOK, path)
		assert.Equal(t, pre.Header().Get("Access-Control-Allow-Origin"), "*", path)
	}

	rec := s.do(t, http.MethodGet, "/posts", nil, "")
	assert.Equal(t, rec.Header().Get("Access-Control-Allow-Origin"), "*")

	rec = s.do(t, http.MethodPost, "/admin/posts", samplePost(), "wrong")
	assert.Equal(t, rec.Header().Get("Access-Control-Allow-Origin"), "*")
}

func TestCORSHeaderWithoutOrigin(t *testing.T) {
	s := newTestServer(t)

	for _, tc := range []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, "/posts", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/posts/missing", http.StatusNotFound},
		{http.MethodPost, "/admin/posts", http.StatusUnauthorized},
		{http.MethodPatch, "/admin/posts", http.StatusMethodNotAllowed},
	} {
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, rec.Code, tc.code, tc.path)
		assert.Equal(t, rec.Header().Get("Access-Control-Allow-Origin"), "*", tc.method+" "+tc.path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/posts"},
		{http.MethodDelete, "/posts"},
		{http.MethodPatch, "/admin/posts"},
		{http.MethodGet, "/admin/posts"},
	}
	for _, tc := range cases {
		rec := s.do(t, tc.method, tc.path, nil, adminPassword)
		assert.Equal(t, rec.Code, http.StatusMethodNotAllowed, "%s %s", tc.method, tc.path)
		var resp errorResponse
		decode(t, rec, &resp)
		assert.Equal(t, resp.Error, "Method not allowed")
	}
}

func TestMissingMongoURIIsConfigurationError(t *testing.T) {
	repo := db.NewMongoStore(db.NewMongoManager("", "portfolio", "blogPosts"))
	handler := newRouterFor(repo, &clock{now: time.Now()})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))

	assert.Equal(t, rec.Code, http.StatusInternalServerError)
	var resp errorResponse
	decode(t, rec, &resp)
	assert.DeepEqual(t, resp, errorResponse{Error: "Configuration error", Message: "MONGODB_URI is not set"})
}

func TestMalformedMongoIDIsBadRequest(t *testing.T) {
	repo := db.NewMongoStore(db.NewMongoManager("", "portfolio", "blogPosts"))
	s := &testServer{handler: newRouterFor(repo, &clock{now: time.Now()})}

	rec := s.do(t, http.MethodDelete, "/admin/posts", map[string]string{"id": "nope"}, adminPassword)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, resp.Error, "Invalid post ID")
}

type failingRepo struct {
	err error
}

func (f failingRepo) List(context.Context) ([]models.Post, error) { return nil, f.err }
func (f failingRepo) Get(context.Context, string) (*models.Post, error) {
	return nil, f.err
}
func (f failingRepo) Create(context.Context, models.Post) (string, error) { return "", f.err }
func (f failingRepo) Update(context.Context, string, models.PostUpdate) error {
	return f.err
}
func (f failingRepo) Delete(context.Context, string) error { return f.err }
func (f failingRepo) Close(context.Context) error          { return nil }

func TestDatabaseErrorsPassMessageThrough(t *testing.T) {
	repo := failingRepo{err: errors.New("connection refused")}
	s := &testServer{handler: newRouterFor(repo, &clock{now: time.Now()})}

	requests := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodGet, "/posts", nil},
		{http.MethodPost, "/admin/posts", samplePost()},
		{http.MethodPut, "/admin/posts", map[string]string{"id": "1", "title": "T"}},
		{http.MethodDelete, "/admin/posts", map[string]string{"id": "1"}},
	}
	for _, r := range requests {
		rec := s.do(t, r.method, r.path, r.body, adminPassword)
		assert.Equal(t, rec.Code, http.StatusInternalServerError, "%s %s", r.method, r.path)
		var resp errorResponse
		decode(t, rec, &resp)
		assert.DeepEqual(t, resp, errorResponse{Error: "Database error", Message: "connection refused"})
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, rec.Code, http.StatusOK)
	assert.Equal(t, rec.Body.String(), "{\"status\":\"ok\"}\n")
}
