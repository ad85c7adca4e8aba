package server

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"todoapp/internal/auth"
	"todoapp/internal/domain/errors"
)

type Config struct {
	Addr         string
	Port         int
	DBStr        string
	MigratePath  string
	AuthSecret   string
	TokenTTLDays int
	CORSOrigins  []string
}

const (
	defaultAddr         = "0.0.0.0"
	defaultPort         = 8080
	defaultDBStr        = "postgresql://shouldbeinVaultuser:shouldbeinVaultpassword@db:5432/todo?sslmode=disable"
	defaultMigratePath  = "migrations"
	defaultTokenTTLDays = 7
)

var (
	addr        = flag.String("addr", defaultAddr, "адрес сервера (по умолчанию 0.0.0.0)")
	port        = flag.Int("port", defaultPort, "порт сервера (по умолчанию 8080)")
	dbstr       = flag.String("dbstr", defaultDBStr, "строка подключения к БД (по умолчанию стандартная)")
	migratePath = flag.String("migratepath", defaultMigratePath, "путь к папке с миграциями")
	tokenTTL    = flag.Int("tokenttl", defaultTokenTTLDays, "срок действия токена в днях")
	corsOrigins = flag.String("corsorigins", "", "разрешённые origin для CORS через запятую")
	configFile  = flag.String("c", "", "путь к файлу конфигурации JSON")
	parsed      = false
)

func ReadConfig() *Config {
	if !parsed {
		flag.Parse()
		parsed = true
	}

	cfg := &Config{
		Addr:         defaultAddr,
		Port:         defaultPort,
		DBStr:        defaultDBStr,
		MigratePath:  defaultMigratePath,
		TokenTTLDays: defaultTokenTTLDays,
	}

	if jsonConfig := loadJSONConfig(); jsonConfig != nil {
		cfg = jsonConfig
	}

	cfg = applyEnvOverrides(cfg)
	cfg = applyFlagOverrides(cfg)

	return cfg
}

// Validate проверяет конфигурацию до старта сервера: без секрета подписи
// нормальной длины сервис не поднимается.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.AuthSecret) == "" {
		return errors.ErrConfigNoSecret
	}
	if len(cfg.AuthSecret) < auth.MinSecretLen {
		return errors.ErrWeakSecret
	}
	if cfg.TokenTTLDays <= 0 {
		return errors.ErrConfigInvalidFormat
	}
	return nil
}

func (cfg *Config) TokenTTL() time.Duration {
	return time.Duration(cfg.TokenTTLDays) * 24 * time.Hour
}

func loadJSONConfig() *Config {
	configPath := *configFile
	if configPath == "" {
		configPath = os.Getenv("CONFIG")
	}

	if configPath == "" {
		return nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		fmt.Printf("Warning: %s %s: %v\n", errors.ErrConfigFileReadFailed.Error(), configPath, err)
		return nil
	}

	var jsonConfig Config
	if err := json.Unmarshal(data, &jsonConfig); err != nil {
		fmt.Printf("Warning: %s: %v\n", errors.ErrConfigParseFailed.Error(), err)
		return nil
	}

	fmt.Printf("JSON конфигурация успешно загружена из: %s\n", configPath)
	return &jsonConfig
}

func applyEnvOverrides(cfg *Config) *Config {
	if addr := os.Getenv("ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err != nil {
			fmt.Printf("Warning: %s в переменной окружения PORT: %s\n", errors.ErrConfigInvalidFormat.Error(), port)
		} else if p < 1 || p > 65535 {
			fmt.Printf("Warning: %s - порт должен быть от 1 до 65535: %d\n", errors.ErrConfigInvalidFormat.Error(), p)
		} else {
			cfg.Port = p
		}
	}
	if dbStr := os.Getenv("DB_STR"); dbStr != "" {
		cfg.DBStr = dbStr
	}
	if migratePath := os.Getenv("MIGRATE_PATH"); migratePath != "" {
		cfg.MigratePath = migratePath
	}
	if secret := os.Getenv("AUTH_SECRET"); secret != "" {
		cfg.AuthSecret = secret
	}
	if ttl := os.Getenv("TOKEN_TTL_DAYS"); ttl != "" {
		if d, err := strconv.Atoi(ttl); err != nil || d < 1 {
			fmt.Printf("Warning: %s в переменной окружения TOKEN_TTL_DAYS: %s\n", errors.ErrConfigInvalidFormat.Error(), ttl)
		} else {
			cfg.TokenTTLDays = d
		}
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitOrigins(origins)
	}

	if cfg.DBStr == defaultDBStr {
		dbUser := os.Getenv("DB_USER")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbName := os.Getenv("DB_NAME")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		if dbUser != "" && dbPassword != "" && dbName != "" && dbHost != "" && dbPort != "" {
			cfg.DBStr = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, dbHost, dbPort, dbName)
		}
	}

	return cfg
}

// Флаги перекрывают JSON и окружение, но только если заданы явно.
func applyFlagOverrides(cfg *Config) *Config {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "port":
			cfg.Port = *port
		case "dbstr":
			cfg.DBStr = *dbstr
		case "migratepath":
			cfg.MigratePath = *migratePath
		case "tokenttl":
			cfg.TokenTTLDays = *tokenTTL
		case "corsorigins":
			cfg.CORSOrigins = splitOrigins(*corsOrigins)
		}
	})
	return cfg
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
