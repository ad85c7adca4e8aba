package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"todoapp/internal/domain/models"
	"todoapp/internal/server"
	storage "todoapp/repository/inmemory"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAuthSecret = "0123456789abcdef0123456789abcdef"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storage.NewStorage()
	api := server.NewTaskAPI(store, store, &server.Config{AuthSecret: testAuthSecret})
	require.NotNil(t, api)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func sessionFile(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "session.json")
}

func TestRegisterPersistsSession(t *testing.T) {
	srv := newTestServer(t)
	path := sessionFile(t)

	c := New(srv.URL, path)
	assert.False(t, c.LoggedIn())

	user, err := c.Register(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, c.LoggedIn())

	// новый клиент поднимает сессию из файла
	reloaded := New(srv.URL, path)
	assert.True(t, reloaded.LoggedIn())
	require.NotNil(t, reloaded.CurrentUser())
	assert.Equal(t, "alice@example.com", reloaded.CurrentUser().Email)
}

func TestLoginAndLogout(t *testing.T) {
	srv := newTestServer(t)
	path := sessionFile(t)

	c := New(srv.URL, path)
	_, err := c.Register(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)
	c.Logout()
	assert.False(t, c.LoggedIn())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	user, err := c.Login(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.True(t, c.LoggedIn())

	_, err = c.Login(context.Background(), "alice@example.com", "wrongpassword")
	assert.ErrorIs(t, err, ErrServer)
}

func TestCorruptedSessionFileMeansLoggedOut(t *testing.T) {
	path := sessionFile(t)
	require.NoError(t, os.WriteFile(path, []byte("{мусор"), 0o600))

	c := New("http://localhost:0", path)
	assert.False(t, c.LoggedIn())
	assert.Nil(t, c.CurrentUser())

	// повреждённый файл удалён, чтобы не спотыкаться о него снова
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSessionWithoutTokenMeansLoggedOut(t *testing.T) {
	path := sessionFile(t)
	data, err := json.Marshal(Session{User: models.Account{ID: "account1"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	c := New("http://localhost:0", path)
	assert.False(t, c.LoggedIn())
}

func TestRequestsRequireLogin(t *testing.T) {
	c := New("http://localhost:0", sessionFile(t))

	_, _, err := c.Tasks(context.Background(), models.TaskFilter{})
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	_, err = c.Me(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestRejectedTokenClearsSession(t *testing.T) {
	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer stale-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": "недействительный токен"}`))
	}))
	defer stub.Close()

	path := sessionFile(t)
	data, err := json.Marshal(Session{Token: "stale-token", User: models.Account{ID: "account1"}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	c := New(stub.URL, path)
	require.True(t, c.LoggedIn())

	_, _, err = c.Tasks(context.Background(), models.TaskFilter{})
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, c.LoggedIn())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestTaskLifecycleThroughClient(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	c := New(srv.URL, sessionFile(t))
	_, err := c.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	created, err := c.CreateTask(ctx, models.CreateTaskRequest{
		Title:       "купить хлеб",
		Description: "в булочной на углу",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "General", created.Category)
	assert.Equal(t, "Low", created.Priority)

	got, err := c.Task(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "купить хлеб", got.Title)

	title := "купить хлеб и молоко"
	updated, err := c.UpdateTask(ctx, created.ID, models.UpdateTaskRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "купить хлеб и молоко", updated.Title)

	done, err := c.SetCompletion(ctx, created.ID, true)
	require.NoError(t, err)
	assert.True(t, done.Completed)

	completed := true
	tasks, count, err := c.Tasks(ctx, models.TaskFilter{Completed: &completed})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, tasks, 1)
	assert.Equal(t, created.ID, tasks[0].ID)

	require.NoError(t, c.DeleteTask(ctx, created.ID))

	_, err = c.Task(ctx, created.ID)
	assert.ErrorIs(t, err, ErrServer)
}

func TestTwoUsersCannotSeeEachOther(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	alice := New(srv.URL, sessionFile(t))
	_, err := alice.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	bob := New(srv.URL, sessionFile(t))
	_, err = bob.Register(ctx, "bob@example.com", "password123")
	require.NoError(t, err)

	aliceTask, err := alice.CreateTask(ctx, models.CreateTaskRequest{Title: "задача Алисы"})
	require.NoError(t, err)

	// чужая задача выглядит как несуществующая
	_, err = bob.Task(ctx, aliceTask.ID)
	assert.ErrorIs(t, err, ErrServer)

	title := "взломано"
	_, err = bob.UpdateTask(ctx, aliceTask.ID, models.UpdateTaskRequest{Title: &title})
	assert.ErrorIs(t, err, ErrServer)

	err = bob.DeleteTask(ctx, aliceTask.ID)
	assert.ErrorIs(t, err, ErrServer)

	tasks, count, err := bob.Tasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Zero(t, count)

	// у владельца задача цела
	got, err := alice.Task(ctx, aliceTask.ID)
	require.NoError(t, err)
	assert.Equal(t, "задача Алисы", got.Title)
}

func TestRefreshReplacesToken(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	c := New(srv.URL, sessionFile(t))
	_, err := c.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	oldToken := c.session.Token
	require.NoError(t, c.Refresh(ctx))
	// jti в claims делает каждый выпущенный токен уникальным
	assert.NotEqual(t, oldToken, c.session.Token)

	// новый токен принимается сервером
	_, err = c.Me(ctx)
	assert.NoError(t, err)
}

func TestMeRefreshesUserSnapshot(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	c := New(srv.URL, sessionFile(t))
	registered, err := c.Register(ctx, "alice@example.com", "password123")
	require.NoError(t, err)

	user, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Equal(t, "alice@example.com", user.Email)
}
