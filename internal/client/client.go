package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"todoapp/internal/domain/models"
)

var (
	ErrSessionExpired = errors.New("сессия истекла, требуется повторный вход")
	ErrNotLoggedIn    = errors.New("вход не выполнен")
	ErrServer         = errors.New("сервер вернул ошибку")
)

// Session — текущее состояние входа: токен и снимок аккаунта.
type Session struct {
	Token string         `json:"token"`
	User  models.Account `json:"user"`
}

// Client держит сессию, добавляет токен к каждому запросу и сбрасывает
// состояние при отказе в авторизации. Повреждённый файл сессии означает
// "вход не выполнен", а не ошибку.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	sessionPath string
	session     *Session
}

func New(baseURL string, sessionPath string) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		sessionPath: sessionPath,
	}
	c.loadSession()
	return c
}

func (c *Client) LoggedIn() bool {
	return c.session != nil && c.session.Token != ""
}

func (c *Client) CurrentUser() *models.Account {
	if !c.LoggedIn() {
		return nil
	}
	user := c.session.User
	return &user
}

// Logout чистит только клиентское состояние: на сервере отзыва токенов нет.
func (c *Client) Logout() {
	c.clearSession()
}

func (c *Client) Register(ctx context.Context, email string, password string) (*models.Account, error) {
	return c.authenticate(ctx, "/auth/signup", email, password)
}

func (c *Client) Login(ctx context.Context, email string, password string) (*models.Account, error) {
	return c.authenticate(ctx, "/auth/signin", email, password)
}

func (c *Client) authenticate(ctx context.Context, path string, email string, password string) (*models.Account, error) {
	body := models.SigninRequest{Email: email, Password: password}
	resp, err := c.do(ctx, http.MethodPost, path, body, false)
	if err != nil {
		return nil, err
	}
	if resp.User == nil || resp.Token == "" {
		return nil, ErrServer
	}

	c.session = &Session{Token: resp.Token, User: *resp.User}
	c.saveSession()
	return resp.User, nil
}

func (c *Client) Me(ctx context.Context) (*models.Account, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/me", nil, true)
	if err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, ErrServer
	}
	c.session.User = *resp.User
	c.saveSession()
	return resp.User, nil
}

// Refresh меняет текущий токен на новый с полным сроком действия.
func (c *Client) Refresh(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, true)
	if err != nil {
		return err
	}
	if resp.Token == "" {
		return ErrServer
	}
	c.session.Token = resp.Token
	c.saveSession()
	return nil
}

func (c *Client) Tasks(ctx context.Context, filter models.TaskFilter) ([]models.Task, int, error) {
	query := url.Values{}
	if filter.Completed != nil {
		query.Set("completed", strconv.FormatBool(*filter.Completed))
	}
	if filter.Offset > 0 {
		query.Set("offset", strconv.Itoa(filter.Offset))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	path := "/tasks"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, 0, err
	}
	return resp.Tasks, resp.Count, nil
}

func (c *Client) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	return c.taskRequest(ctx, http.MethodPost, "/tasks", req)
}

func (c *Client) Task(ctx context.Context, id string) (*models.Task, error) {
	return c.taskRequest(ctx, http.MethodGet, "/tasks/"+id, nil)
}

func (c *Client) UpdateTask(ctx context.Context, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	return c.taskRequest(ctx, http.MethodPut, "/tasks/"+id, req)
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/tasks/"+id, nil, true)
	return err
}

func (c *Client) SetCompletion(ctx context.Context, id string, completed bool) (*models.Task, error) {
	req := models.SetCompletionRequest{Completed: &completed}
	return c.taskRequest(ctx, http.MethodPatch, "/tasks/"+id+"/complete", req)
}

func (c *Client) taskRequest(ctx context.Context, method string, path string, body interface{}) (*models.Task, error) {
	resp, err := c.do(ctx, method, path, body, true)
	if err != nil {
		return nil, err
	}
	if resp.Task == nil {
		return nil, ErrServer
	}
	return resp.Task, nil
}

type apiResponse struct {
	Error string          `json:"error"`
	User  *models.Account `json:"user"`
	Token string          `json:"token"`
	Task  *models.Task    `json:"task"`
	Tasks []models.Task   `json:"tasks"`
	Count int             `json:"count"`
}

func (c *Client) do(ctx context.Context, method string, path string, body interface{}, authed bool) (*apiResponse, error) {
	if authed && !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	// отказ в авторизации сбрасывает сессию, чтобы вызывающая сторона
	// сразу отправила пользователя на повторный вход
	if authed && httpResp.StatusCode == http.StatusUnauthorized {
		c.clearSession()
		return nil, ErrSessionExpired
	}

	if httpResp.StatusCode == http.StatusNoContent {
		return &apiResponse{}, nil
	}

	var resp apiResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, err
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrServer, resp.Error)
		}
		return nil, ErrServer
	}

	return &resp, nil
}

func (c *Client) loadSession() {
	if c.sessionPath == "" {
		return
	}

	data, err := os.ReadFile(c.sessionPath)
	if err != nil {
		return
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil || session.Token == "" || session.User.ID == "" {
		log.Println("[WARN] Файл сессии повреждён, вход сброшен:", c.sessionPath)
		c.clearSession()
		return
	}

	c.session = &session
}

func (c *Client) saveSession() {
	if c.sessionPath == "" || c.session == nil {
		return
	}

	data, err := json.Marshal(c.session)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.sessionPath), 0o700); err != nil {
		log.Println("[WARN] Не удалось создать каталог для файла сессии:", err)
		return
	}
	if err := os.WriteFile(c.sessionPath, data, 0o600); err != nil {
		log.Println("[WARN] Не удалось сохранить файл сессии:", err)
	}
}

func (c *Client) clearSession() {
	c.session = nil
	if c.sessionPath != "" {
		_ = os.Remove(c.sessionPath)
	}
}
