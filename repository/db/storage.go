package db

import (
	"context"
	stderrors "errors"
	"log"
	"sync"
	"time"

	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

type Storage struct {
	conn *pgx.Conn
	// одно соединение pgx не рассчитано на конкурентный доступ,
	// обработчики gin ходят сюда из разных горутин
	mu sync.Mutex

	prepCreateAccount     string
	prepGetAccountByEmail string
	prepGetAccountByID    string
	prepCreateTask        string
	prepGetTask           string
	prepGetTasks          string
	prepGetTasksByFlag    string
	prepCountTasks        string
	prepCountTasksByFlag  string
	prepUpdateTask        string
	prepDeleteTask        string
	prepSetCompletion     string
}

const taskColumns = `id, user_id, title, description, completed, category, priority, due_date, created_at, updated_at`

func NewStorage(connStr string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Println("[ERROR] Не удалось подключиться к базе данных:", err)
		return nil, err
	}

	s := &Storage{
		conn:                  conn,
		prepCreateAccount:     `INSERT INTO accounts (id, email, password_hash, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		prepGetAccountByEmail: `SELECT id, email, password_hash, created_at, updated_at FROM accounts WHERE email = $1`,
		prepGetAccountByID:    `SELECT id, email, password_hash, created_at, updated_at FROM accounts WHERE id = $1`,
		prepCreateTask:        `INSERT INTO tasks (` + taskColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		prepGetTask:           `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`,
		prepGetTasks:          `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3`,
		prepGetTasksByFlag:    `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 AND completed = $2 ORDER BY created_at DESC, id DESC OFFSET $3 LIMIT $4`,
		prepCountTasks:        `SELECT count(*) FROM tasks WHERE user_id = $1`,
		prepCountTasksByFlag:  `SELECT count(*) FROM tasks WHERE user_id = $1 AND completed = $2`,
		prepUpdateTask:        `UPDATE tasks SET title = $1, description = $2, category = $3, priority = $4, due_date = $5, updated_at = $6 WHERE id = $7 AND user_id = $8`,
		prepDeleteTask:        `DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		prepSetCompletion:     `UPDATE tasks SET completed = $1, updated_at = $2 WHERE id = $3 AND user_id = $4 RETURNING ` + taskColumns,
	}
	log.Println("[SUCCESS] Соединение с базой данных установлено успешно")
	return s, nil
}

func (s *Storage) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close(ctx)
}

func (s *Storage) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	now := time.Now()
	account.ID = uuid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now

	stmt, err := s.conn.Prepare(ctx, "create_account", s.prepCreateAccount)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на создание аккаунта:", err)
		return errors.ErrUnavailable
	}
	_, err = s.conn.Exec(ctx, stmt.Name, account.ID, account.Email, account.PasswordHash, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			log.Println("[ERROR] Аккаунт с таким email уже существует:", account.Email)
			return errors.ErrAccountExists
		}
		log.Println("[ERROR] Не удалось создать аккаунт:", err)
		return errors.ErrUnavailable
	}
	log.Println("[SUCCESS] Аккаунт успешно создан:", account.ID)
	return nil
}

func (s *Storage) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	stmt, err := s.conn.Prepare(ctx, "get_account_by_email", s.prepGetAccountByEmail)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на поиск аккаунта по email:", err)
		return nil, errors.ErrUnavailable
	}
	return s.scanAccount(s.conn.QueryRow(ctx, stmt.Name, email))
}

func (s *Storage) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	stmt, err := s.conn.Prepare(ctx, "get_account_by_id", s.prepGetAccountByID)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на поиск аккаунта по ID:", err)
		return nil, errors.ErrUnavailable
	}
	return s.scanAccount(s.conn.QueryRow(ctx, stmt.Name, id))
}

func (s *Storage) scanAccount(row pgx.Row) (*models.Account, error) {
	account := &models.Account{}
	if err := row.Scan(&account.ID, &account.Email, &account.PasswordHash, &account.CreatedAt, &account.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		log.Println("[ERROR] Ошибка при чтении аккаунта:", err)
		return nil, errors.ErrUnavailable
	}
	return account, nil
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	now := time.Now()
	task.ID = uuid.New().String()
	task.Completed = false
	task.CreatedAt = now
	task.UpdatedAt = now

	stmt, err := s.conn.Prepare(ctx, "create_task", s.prepCreateTask)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на создание задачи:", err)
		return errors.ErrUnavailable
	}
	_, err = s.conn.Exec(ctx, stmt.Name,
		task.ID, task.UserID, task.Title, nullable(task.Description),
		task.Completed, task.Category, task.Priority, task.DueDate,
		task.CreatedAt, task.UpdatedAt)
	if err != nil {
		log.Println("[ERROR] Не удалось создать задачу:", err)
		return errors.ErrUnavailable
	}
	log.Println("[SUCCESS] Задача успешно создана:", task.ID)
	return nil
}

func (s *Storage) GetTasks(ctx context.Context, userID string, filter models.TaskFilter) ([]models.Task, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	var err error
	if filter.Completed != nil {
		stmt, perr := s.conn.Prepare(ctx, "get_tasks_by_flag", s.prepGetTasksByFlag)
		if perr != nil {
			log.Println("[ERROR] Не удалось подготовить запрос на получение задач:", perr)
			return nil, 0, errors.ErrUnavailable
		}
		rows, err = s.conn.Query(ctx, stmt.Name, userID, *filter.Completed, filter.Offset, limit)
	} else {
		stmt, perr := s.conn.Prepare(ctx, "get_tasks", s.prepGetTasks)
		if perr != nil {
			log.Println("[ERROR] Не удалось подготовить запрос на получение задач:", perr)
			return nil, 0, errors.ErrUnavailable
		}
		rows, err = s.conn.Query(ctx, stmt.Name, userID, filter.Offset, limit)
	}
	if err != nil {
		log.Println("[ERROR] Не удалось получить задачи:", err)
		return nil, 0, errors.ErrUnavailable
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, serr := scanTask(rows)
		if serr != nil {
			return nil, 0, serr
		}
		tasks = append(tasks, *task)
	}
	if rows.Err() != nil {
		log.Println("[ERROR] Ошибка при чтении задач:", rows.Err())
		return nil, 0, errors.ErrUnavailable
	}

	count, err := s.countTasks(ctx, userID, filter.Completed)
	if err != nil {
		return nil, 0, err
	}

	log.Println("[SUCCESS] Получено задач:", len(tasks))
	return tasks, count, nil
}

func (s *Storage) countTasks(ctx context.Context, userID string, completed *bool) (int, error) {
	var row pgx.Row
	if completed != nil {
		stmt, err := s.conn.Prepare(ctx, "count_tasks_by_flag", s.prepCountTasksByFlag)
		if err != nil {
			log.Println("[ERROR] Не удалось подготовить запрос на подсчёт задач:", err)
			return 0, errors.ErrUnavailable
		}
		row = s.conn.QueryRow(ctx, stmt.Name, userID, *completed)
	} else {
		stmt, err := s.conn.Prepare(ctx, "count_tasks", s.prepCountTasks)
		if err != nil {
			log.Println("[ERROR] Не удалось подготовить запрос на подсчёт задач:", err)
			return 0, errors.ErrUnavailable
		}
		row = s.conn.QueryRow(ctx, stmt.Name, userID)
	}

	var count int
	if err := row.Scan(&count); err != nil {
		log.Println("[ERROR] Ошибка при подсчёте задач:", err)
		return 0, errors.ErrUnavailable
	}
	return count, nil
}

// GetTask ищет задачу по паре (id, владелец): чужая задача неотличима
// от несуществующей.
func (s *Storage) GetTask(ctx context.Context, id string, userID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	return s.getTaskLocked(ctx, id, userID)
}

func (s *Storage) getTaskLocked(ctx context.Context, id string, userID string) (*models.Task, error) {
	stmt, err := s.conn.Prepare(ctx, "get_task", s.prepGetTask)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на получение задачи:", err)
		return nil, errors.ErrUnavailable
	}
	return scanTask(s.conn.QueryRow(ctx, stmt.Name, id, userID))
}

func (s *Storage) UpdateTask(ctx context.Context, id string, userID string, patch models.TaskPatch) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	task, err := s.getTaskLocked(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	applyPatch(task, patch)
	task.UpdatedAt = time.Now()

	stmt, err := s.conn.Prepare(ctx, "update_task", s.prepUpdateTask)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на обновление задачи:", err)
		return nil, errors.ErrUnavailable
	}
	ct, err := s.conn.Exec(ctx, stmt.Name,
		task.Title, nullable(task.Description), task.Category, task.Priority,
		task.DueDate, task.UpdatedAt, id, userID)
	if err != nil {
		log.Println("[ERROR] Не удалось обновить задачу:", err)
		return nil, errors.ErrUnavailable
	}
	if ct.RowsAffected() == 0 {
		log.Println("[ERROR] Задача для обновления не найдена:", id)
		return nil, errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] Задача успешно обновлена:", id)
	return task, nil
}

func (s *Storage) DeleteTask(ctx context.Context, id string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	stmt, err := s.conn.Prepare(ctx, "delete_task", s.prepDeleteTask)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на удаление задачи:", err)
		return errors.ErrUnavailable
	}
	ct, err := s.conn.Exec(ctx, stmt.Name, id, userID)
	if err != nil {
		log.Println("[ERROR] Не удалось удалить задачу:", err)
		return errors.ErrUnavailable
	}
	if ct.RowsAffected() == 0 {
		log.Println("[ERROR] Задача для удаления не найдена:", id)
		return errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] Задача успешно удалена:", id)
	return nil
}

func (s *Storage) SetTaskCompletion(ctx context.Context, id string, userID string, completed bool) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	stmt, err := s.conn.Prepare(ctx, "set_completion", s.prepSetCompletion)
	if err != nil {
		log.Println("[ERROR] Не удалось подготовить запрос на смену статуса задачи:", err)
		return nil, errors.ErrUnavailable
	}
	task, err := scanTask(s.conn.QueryRow(ctx, stmt.Name, completed, time.Now(), id, userID))
	if err != nil {
		return nil, err
	}
	log.Println("[SUCCESS] Статус задачи обновлён:", id)
	return task, nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	task := &models.Task{}
	var description *string
	if err := row.Scan(&task.ID, &task.UserID, &task.Title, &description,
		&task.Completed, &task.Category, &task.Priority, &task.DueDate,
		&task.CreatedAt, &task.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrTaskNotFound
		}
		log.Println("[ERROR] Ошибка при чтении задачи:", err)
		return nil, errors.ErrUnavailable
	}
	if description != nil {
		task.Description = *description
	}
	return task, nil
}

func applyPatch(task *models.Task, patch models.TaskPatch) {
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Category != nil {
		task.Category = *patch.Category
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.SetDueDate {
		task.DueDate = patch.DueDate
	}
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
