package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"todoapp/internal/auth"
	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator"

	"golang.org/x/crypto/bcrypt"
)

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTasks(ctx context.Context, userID string, filter models.TaskFilter) ([]models.Task, int, error)
	GetTask(ctx context.Context, id string, userID string) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, userID string, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, id string, userID string) error
	SetTaskCompletion(ctx context.Context, id string, userID string, completed bool) (*models.Task, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 100
	maxListOffset    = 10000

	defaultCategory = "General"
	defaultPriority = "Low"
)

type TaskAPI struct {
	httpSrv  *http.Server
	accounts AccountRepository
	tasks    TaskRepository
	tokens   *auth.TokenService
	cfg      *Config
}

func NewTaskAPI(accounts AccountRepository, tasks TaskRepository, cfg *Config) *TaskAPI {
	if accounts == nil || tasks == nil {
		return nil
	}
	if cfg == nil {
		cfg = &Config{}
	}

	tokens, err := auth.NewTokenService(cfg.AuthSecret, cfg.TokenTTL())
	if err != nil {
		log.Println("[ERROR] Не удалось создать сервис токенов:", err)
		return nil
	}

	addr := ""
	if cfg.Addr != "" && cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port)
	}

	api := TaskAPI{
		httpSrv:  &http.Server{Addr: addr},
		accounts: accounts,
		tasks:    tasks,
		tokens:   tokens,
		cfg:      cfg,
	}

	api.configRoutes()

	return &api
}

func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}

	if api.httpSrv.Addr == "" {
		api.httpSrv.Addr = ":8080"
	}

	return api.httpSrv.ListenAndServe()
}

// Handler отдаёт корневой обработчик API, например для httptest.
func (api *TaskAPI) Handler() http.Handler {
	return api.httpSrv.Handler
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	if api.httpSrv == nil {
		return nil
	}
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) configRoutes() {
	router := gin.Default()

	router.Use(CORSAllowOrigins(api.cfg.CORSOrigins))
	router.Use(GzipRequestDecompress())
	router.Use(GzipResponseCompress())

	router.NoMethod(func(ctx *gin.Context) {
		ctx.JSON(http.StatusMethodNotAllowed, gin.H{"error": "использован некорректный HTTP-метод"})
	})

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", api.signup)
		authGroup.POST("/signin", api.signin)
		authGroup.POST("/refresh", api.authRequired(), api.refresh)
		authGroup.GET("/me", api.authRequired(), api.me)
	}

	tasks := router.Group("/tasks")
	tasks.Use(api.authRequired())
	{
		tasks.GET("", api.listTasks)
		tasks.POST("", api.createTask)
		tasks.GET(":taskID", api.getTask)
		tasks.PUT(":taskID", api.updateTask)
		tasks.DELETE(":taskID", api.deleteTask)
		tasks.PATCH(":taskID/complete", api.setCompletion)
	}

	api.httpSrv.Handler = router
}

func (api *TaskAPI) signup(ctx *gin.Context) {
	var req models.SignupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	existing, _ := api.accounts.GetAccountByEmail(ctx, req.Email)
	if existing != nil {
		ctx.JSON(http.StatusConflict, gin.H{"error": errors.ErrAccountExists.Error()})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	account := models.Account{
		Email:        req.Email,
		PasswordHash: string(hash),
	}
	if err := api.accounts.CreateAccount(ctx, &account); err != nil {
		if err == errors.ErrAccountExists {
			ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		storeErrorResponse(ctx, err)
		return
	}

	token, err := api.tokens.Issue(account.ID)
	if err != nil {
		log.Println("[ERROR] Не удалось выпустить токен:", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	log.Println("[SUCCESS] Пользователь зарегистрирован:", account.ID)
	ctx.JSON(http.StatusCreated, gin.H{"user": account, "token": token})
}

func (api *TaskAPI) signin(ctx *gin.Context) {
	var req models.SigninRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	account, err := api.accounts.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		if err == errors.ErrUnavailable {
			storeErrorResponse(ctx, err)
			return
		}
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrInvalidCredentials.Error()})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrInvalidCredentials.Error()})
		return
	}

	token, err := api.tokens.Issue(account.ID)
	if err != nil {
		log.Println("[ERROR] Не удалось выпустить токен:", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": account, "token": token})
}

func (api *TaskAPI) refresh(ctx *gin.Context) {
	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		return
	}

	if _, err := api.accounts.GetAccountByID(ctx, ownerID); err != nil {
		if err == errors.ErrUnavailable {
			storeErrorResponse(ctx, err)
			return
		}
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrAccountNotFound.Error()})
		return
	}

	token, err := api.tokens.Refresh(ctx.GetString(ctxToken))
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"token": token})
}

func (api *TaskAPI) me(ctx *gin.Context) {
	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		return
	}

	account, err := api.accounts.GetAccountByID(ctx, ownerID)
	if err != nil {
		if err == errors.ErrUnavailable {
			storeErrorResponse(ctx, err)
			return
		}
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrAccountNotFound.Error()})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": account})
}

func (api *TaskAPI) listTasks(ctx *gin.Context) {
	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		return
	}

	filter, err := parseTaskFilter(ctx)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tasks, count, err := api.tasks.GetTasks(ctx, ownerID, filter)
	if err != nil {
		storeErrorResponse(ctx, err)
		return
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	ctx.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": count})
}

func (api *TaskAPI) createTask(ctx *gin.Context) {
	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		return
	}

	var req models.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidTitle.Error()})
		return
	}

	task := models.Task{
		UserID:      ownerID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Category:    orDefault(strings.TrimSpace(req.Category), defaultCategory),
		Priority:    orDefault(strings.TrimSpace(req.Priority), defaultPriority),
		DueDate:     parseDueDate(req.DueDate),
	}

	if err := api.tasks.CreateTask(ctx, &task); err != nil {
		storeErrorResponse(ctx, err)
		return
	}

	log.Println("[SUCCESS] Задача создана:", task.ID)
	ctx.JSON(http.StatusCreated, gin.H{"task": task})
}

func (api *TaskAPI) getTask(ctx *gin.Context) {
	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		return
	}

	task, err := api.tasks.GetTask(ctx, ctx.Param("taskID"), ownerID)
	if err != nil {
		storeErrorResponse(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"task": task})
}

func (api *TaskAPI) updateTask(ctx *gin.Context) {
	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		return
	}

	var req models.UpdateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}

	valid := validator.New()
	if err := valid.Struct(req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": validationErrorToErrorResponse(err).Error()})
		return
	}

	var patch models.TaskPatch
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidTitle.Error()})
			return
		}
		patch.Title = &title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		patch.Description = &description
	}
	if req.Category != nil {
		category := orDefault(strings.TrimSpace(*req.Category), defaultCategory)
		patch.Category = &category
	}
	if req.Priority != nil {
		priority := orDefault(strings.TrimSpace(*req.Priority), defaultPriority)
		patch.Priority = &priority
	}
	if req.DueDate != nil {
		patch.DueDate = parseDueDate(*req.DueDate)
		// пустая строка очищает срок, нераспознанный формат не трогает его
		patch.SetDueDate = *req.DueDate == "" || patch.DueDate != nil
	}

	task, err := api.tasks.UpdateTask(ctx, ctx.Param("taskID"), ownerID, patch)
	if err != nil {
		storeErrorResponse(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"task": task})
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		return
	}

	if err := api.tasks.DeleteTask(ctx, ctx.Param("taskID"), ownerID); err != nil {
		storeErrorResponse(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

func (api *TaskAPI) setCompletion(ctx *gin.Context) {
	ownerID, ok := ownerFromContext(ctx)
	if !ok {
		return
	}

	var req models.SetCompletionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrBadRequest.Error()})
		return
	}
	if req.Completed == nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errors.ErrInvalidCompleted.Error()})
		return
	}

	task, err := api.tasks.SetTaskCompletion(ctx, ctx.Param("taskID"), ownerID, *req.Completed)
	if err != nil {
		storeErrorResponse(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"task": task})
}

func parseTaskFilter(ctx *gin.Context) (models.TaskFilter, error) {
	filter := models.TaskFilter{Limit: defaultListLimit}

	if raw, exists := ctx.GetQuery("completed"); exists {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.ErrInvalidFilter
		}
		filter.Completed = &completed
	}
	if raw, exists := ctx.GetQuery("offset"); exists {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 || offset > maxListOffset {
			return filter, errors.ErrInvalidFilter
		}
		filter.Offset = offset
	}
	if raw, exists := ctx.GetQuery("limit"); exists {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			return filter, errors.ErrInvalidFilter
		}
		filter.Limit = limit
	}

	return filter, nil
}

// Владелец всегда берётся из контекста, заполненного authRequired;
// идентификаторы из тела или пути запроса для выборок не используются.
func ownerFromContext(ctx *gin.Context) (string, bool) {
	ownerID := ctx.GetString(ctxAccountID)
	if ownerID == "" {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": errors.ErrUnauthorized.Error()})
		return "", false
	}
	return ownerID, true
}

// Наружу уходит только маппинг ошибки, детали драйвера остаются в логах хранилища.
func storeErrorResponse(ctx *gin.Context, err error) {
	switch err {
	case errors.ErrTaskNotFound:
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.ErrAccountNotFound:
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.ErrUnavailable:
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errors.ErrInternalServer.Error()})
	}
}

func parseDueDate(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		log.Println("[WARN] Некорректный формат срока задачи, срок игнорируется:", raw)
		return nil
	}
	return &t
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func validationErrorToErrorResponse(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			switch verr.Field() {
			case "Email":
				return errors.ErrInvalidEmail
			case "Password":
				return errors.ErrInvalidPassword
			case "Title":
				return errors.ErrInvalidTitle
			case "Description":
				return errors.ErrInvalidDescription
			case "Category":
				return errors.ErrInvalidCategory
			case "Priority":
				return errors.ErrInvalidPriority
			case "Completed":
				return errors.ErrInvalidCompleted
			}
		}
	}
	return errors.ErrValidationFailed
}
