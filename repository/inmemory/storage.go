package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"

	"github.com/google/uuid"
)

// Storage — резервное хранилище в памяти с тем же контрактом, что и у БД.
type Storage struct {
	mu       sync.RWMutex
	accounts map[string]models.Account
	tasks    map[string]models.Task
}

func NewStorage() *Storage {
	return &Storage{
		accounts: make(map[string]models.Account),
		tasks:    make(map[string]models.Task),
	}
}

func (s *Storage) CreateAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.accounts {
		if existing.Email == account.Email {
			return errors.ErrAccountExists
		}
	}

	now := time.Now()
	account.ID = uuid.New().String()
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.ID] = *account
	return nil
}

func (s *Storage) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if account.Email == email {
			result := account
			return &result, nil
		}
	}
	return nil, errors.ErrAccountNotFound
}

func (s *Storage) GetAccountByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, errors.ErrAccountNotFound
	}
	return &account, nil
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	task.ID = uuid.New().String()
	task.Completed = false
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = *task
	return nil
}

func (s *Storage) GetTasks(_ context.Context, userID string, filter models.TaskFilter) ([]models.Task, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []models.Task{}
	for _, task := range s.tasks {
		if task.UserID != userID {
			continue
		}
		if filter.Completed != nil && task.Completed != *filter.Completed {
			continue
		}
		matched = append(matched, task)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	count := len(matched)

	offset := filter.Offset
	if offset > count {
		offset = count
	}
	matched = matched[offset:]

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit < len(matched) {
		matched = matched[:limit]
	}

	return matched, count, nil
}

func (s *Storage) GetTask(_ context.Context, id string, userID string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTaskLocked(id, userID)
}

// Чужая задача и отсутствующая задача дают один и тот же отказ.
func (s *Storage) getTaskLocked(id string, userID string) (*models.Task, error) {
	task, exists := s.tasks[id]
	if !exists || task.UserID != userID {
		return nil, errors.ErrTaskNotFound
	}
	result := task
	return &result, nil
}

func (s *Storage) UpdateTask(_ context.Context, id string, userID string, patch models.TaskPatch) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.getTaskLocked(id, userID)
	if err != nil {
		return nil, err
	}

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
	task.UpdatedAt = time.Now()

	s.tasks[id] = *task
	return task, nil
}

func (s *Storage) DeleteTask(_ context.Context, id string, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task, exists := s.tasks[id]; !exists || task.UserID != userID {
		return errors.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Storage) SetTaskCompletion(_ context.Context, id string, userID string, completed bool) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, err := s.getTaskLocked(id, userID)
	if err != nil {
		return nil, err
	}

	task.Completed = completed
	task.UpdatedAt = time.Now()
	s.tasks[id] = *task
	return task, nil
}

// DeleteAccount удаляет аккаунт вместе со всеми его задачами,
// как каскадное удаление в БД.
func (s *Storage) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[id]; !exists {
		return errors.ErrAccountNotFound
	}
	delete(s.accounts, id)
	for taskID, task := range s.tasks {
		if task.UserID == id {
			delete(s.tasks, taskID)
		}
	}
	return nil
}
