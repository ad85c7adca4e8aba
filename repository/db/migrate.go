package db

import (
	"log"

	"todoapp/internal/domain/errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migration применяет все неприменённые миграции из migratePath.
func Migration(dbStr string, migratePath string) error {
	if dbStr == "" || migratePath == "" {
		return errors.ErrConfigInvalidFormat
	}

	m, err := migrate.New("file://"+migratePath, dbStr)
	if err != nil {
		log.Println("[ERROR] Не удалось инициализировать миграции:", err)
		return err
	}
	defer func() {
		if serr, derr := m.Close(); serr != nil || derr != nil {
			log.Println("[WARN] Ошибка при закрытии миграций:", serr, derr)
		}
	}()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Println("[ERROR] Не удалось применить миграции:", err)
		return err
	}
	return nil
}
