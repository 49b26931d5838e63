package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nmelnikov/contentflow/pkg/contentflow"
	"github.com/nmelnikov/contentflow/pkg/contentflow/auth"
	memoryrepo "github.com/nmelnikov/contentflow/pkg/contentflow/repo/memory"
	memorystorage "github.com/nmelnikov/contentflow/pkg/contentflow/storage/memory"
)

// fakeQueue collects tasks; the tests only need to see what was enqueued.
type fakeQueue struct {
	mu    sync.Mutex
	tasks []contentflow.Task
}

func (q *fakeQueue) Enqueue(ctx context.Context, task contentflow.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, timeout time.Duration) (*contentflow.Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil, nil
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return &task, nil
}

type testEnv struct {
	router chi.Router
	svc    contentflow.Service
	tokens *auth.TokenService
	queue  *fakeQueue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := memoryrepo.New()
	queue := &fakeQueue{}
	svc, err := contentflow.New(
		contentflow.WithRepository(repo),
		contentflow.WithBlobStore(memorystorage.New()),
		contentflow.WithTaskQueue(queue),
	)
	require.NoError(t, err)

	tokens := auth.NewTokenService([]byte("test-secret"), time.Hour, repo)
	return &testEnv{
		router: NewRouter(svc, tokens),
		svc:    svc,
		tokens: tokens,
		queue:  queue,
	}
}

// register creates an account directly through the service and returns a
// valid token for it.
func (e *testEnv) register(t *testing.T, username string, role contentflow.Role) (*contentflow.Account, string) {
	t.Helper()
	account, err := e.svc.RegisterAccount(context.Background(), contentflow.RegisterAccountRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret-password",
		Role:     role,
	})
	require.NoError(t, err)

	token, err := e.tokens.Issue(account.ID, role, 0)
	require.NoError(t, err)
	return account, token
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestCreateAndGetContent(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice", contentflow.RoleUser)

	rec := env.request(t, http.MethodPost, "/api/contents", token, CreateContentRequest{Filename: "records.xml"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created contentflow.Content
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, contentflow.ContentStatusUploading, created.Status)
	require.Len(t, created.UID, 10)

	rec = env.request(t, http.MethodGet, "/api/contents/"+created.UID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("unknown uid", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/contents/nosuchuid0", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("another account cannot see it", func(t *testing.T) {
		_, otherToken := env.register(t, "bob", contentflow.RoleUser)
		rec := env.request(t, http.MethodGet, "/api/contents/"+created.UID, otherToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestContentRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice", contentflow.RoleUser)

	t.Run("missing header", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/contents", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "auth_header_not_found", errorCode(t, rec))
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/contents", "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "signature_invalid", errorCode(t, rec))
	})

	t.Run("revoked token", func(t *testing.T) {
		require.NoError(t, env.tokens.Revoke(context.Background(), token))
		rec := env.request(t, http.MethodGet, "/api/contents", token, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "access_token_revoked", errorCode(t, rec))
	})
}

func TestUploadFileFlow(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice", contentflow.RoleUser)

	rec := env.request(t, http.MethodPost, "/api/contents", token, CreateContentRequest{Filename: "records.xml"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created contentflow.Content
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.request(t, http.MethodPut, "/api/contents/"+created.UID+"/file", token, "<records/>")
	require.Equal(t, http.StatusOK, rec.Code)

	var uploaded contentflow.Content
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &uploaded))
	assert.Equal(t, contentflow.ContentStatusProcessing, uploaded.Status)
	require.Len(t, env.queue.tasks, 1)
	assert.Equal(t, created.ID, env.queue.tasks[0].ContentID)

	t.Run("re-upload rejected", func(t *testing.T) {
		rec := env.request(t, http.MethodPut, "/api/contents/"+created.UID+"/file", token, "<records/>")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "not_allowed", errorCode(t, rec))
		assert.Len(t, env.queue.tasks, 1)
	})

	t.Run("download while processing", func(t *testing.T) {
		rec := env.request(t, http.MethodGet, "/api/contents/"+created.UID+"/file", token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "file_processing", errorCode(t, rec))
	})
}

func TestDownloadBeforeUpload(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice", contentflow.RoleUser)

	rec := env.request(t, http.MethodPost, "/api/contents", token, CreateContentRequest{Filename: "records.xml"})
	var created contentflow.Content
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.request(t, http.MethodGet, "/api/contents/"+created.UID+"/file", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "file_not_upload", errorCode(t, rec))
}

func TestApplyResultEndpoint(t *testing.T) {
	env := newTestEnv(t)
	account, userToken := env.register(t, "alice", contentflow.RoleUser)
	_, robotToken := env.register(t, "robot", contentflow.RoleRobot)

	uploaded := func(t *testing.T) contentflow.Content {
		t.Helper()
		rec := env.request(t, http.MethodPost, "/api/contents", userToken, CreateContentRequest{Filename: "records.xml"})
		require.Equal(t, http.StatusCreated, rec.Code)
		var created contentflow.Content
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		rec = env.request(t, http.MethodPut, "/api/contents/"+created.UID+"/file", userToken, "<records/>")
		require.Equal(t, http.StatusOK, rec.Code)
		return created
	}

	intp := func(v int) *int { return &v }

	t.Run("robot reports success", func(t *testing.T) {
		content := uploaded(t)
		rec := env.request(t, http.MethodPut, "/api/contents", robotToken, ApplyResultRequest{
			AccountID:      account.ID,
			ContentID:      content.ID,
			Status:         "success",
			TotalRecords:   intp(10),
			SuccessRecords: intp(9),
			ErrorRecords:   intp(1),
		})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.request(t, http.MethodGet, "/api/contents/"+content.UID, userToken, nil)
		var got contentflow.Content
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, contentflow.ContentStatusSuccess, got.Status)
		require.NotNil(t, got.TotalRecords)
		assert.Equal(t, 10, *got.TotalRecords)
	})

	t.Run("robot reports error without counts", func(t *testing.T) {
		content := uploaded(t)
		rec := env.request(t, http.MethodPut, "/api/contents", robotToken, ApplyResultRequest{
			AccountID: account.ID,
			ContentID: content.ID,
			Status:    "error",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("user role is forbidden", func(t *testing.T) {
		content := uploaded(t)
		rec := env.request(t, http.MethodPut, "/api/contents", userToken, ApplyResultRequest{
			AccountID: account.ID,
			ContentID: content.ID,
			Status:    "error",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "not_allowed", errorCode(t, rec))
	})

	t.Run("success without counts is malformed", func(t *testing.T) {
		content := uploaded(t)
		rec := env.request(t, http.MethodPut, "/api/contents", robotToken, ApplyResultRequest{
			AccountID: account.ID,
			ContentID: content.ID,
			Status:    "success",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "malformed_request", errorCode(t, rec))
	})

	t.Run("second outcome rejected", func(t *testing.T) {
		content := uploaded(t)
		req := ApplyResultRequest{AccountID: account.ID, ContentID: content.ID, Status: "error"}
		rec := env.request(t, http.MethodPut, "/api/contents", robotToken, req)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.request(t, http.MethodPut, "/api/contents", robotToken, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "not_allowed", errorCode(t, rec))
	})
}

func TestDownloadAfterProcessing(t *testing.T) {
	env := newTestEnv(t)
	account, userToken := env.register(t, "alice", contentflow.RoleUser)
	_, robotToken := env.register(t, "robot", contentflow.RoleRobot)

	rec := env.request(t, http.MethodPost, "/api/contents", userToken, CreateContentRequest{Filename: "records.xml"})
	var created contentflow.Content
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	rec = env.request(t, http.MethodPut, "/api/contents/"+created.UID+"/file", userToken, "<records/>")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPut, "/api/contents", robotToken, ApplyResultRequest{
		AccountID: account.ID,
		ContentID: created.ID,
		Status:    "error",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/contents/"+created.UID+"/file", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<records/>", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "records.xml")
}

func TestListContents(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice", contentflow.RoleUser)

	for _, name := range []string{"a.xml", "b.xml"} {
		rec := env.request(t, http.MethodPost, "/api/contents", token, CreateContentRequest{Filename: name})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.request(t, http.MethodGet, "/api/contents", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListContentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Contents, 2)
	require.NotNil(t, resp.Summary)
	assert.Equal(t, 2, resp.Summary.Total)
	assert.Equal(t, 2, resp.Summary.Uploading)
}

func TestUpdateAndDeleteContent(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.register(t, "alice", contentflow.RoleUser)

	rec := env.request(t, http.MethodPost, "/api/contents", token, CreateContentRequest{Filename: "records.xml"})
	var created contentflow.Content
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = env.request(t, http.MethodPut, "/api/contents/"+created.UID, token, UpdateContentRequest{Filename: "renamed.xml"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated contentflow.Content
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "renamed.xml", updated.Filename)

	t.Run("rename without extension", func(t *testing.T) {
		rec := env.request(t, http.MethodPut, "/api/contents/"+created.UID, token, UpdateContentRequest{Filename: "renamed"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "malformed_request", errorCode(t, rec))
	})

	rec = env.request(t, http.MethodDelete, "/api/contents/"+created.UID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/contents/"+created.UID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
