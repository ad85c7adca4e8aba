package errors

import "errors"

var (
	ErrAccountNotFound    = errors.New("пользователь не найден")
	ErrAccountExists      = errors.New("пользователь с таким email уже существует")
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	ErrTaskNotFound       = errors.New("задача не найдена")
	ErrTokenInvalid       = errors.New("недействительный токен")
	ErrTokenExpired       = errors.New("срок действия токена истёк")
	ErrWeakSecret         = errors.New("секрет подписи токенов слишком короткий")
	ErrValidationFailed   = errors.New("ошибка валидации")
	ErrUnauthorized       = errors.New("требуется авторизация")
	ErrUnavailable        = errors.New("хранилище недоступно")
	ErrInternalServer     = errors.New("внутренняя ошибка сервера")
	ErrBadRequest         = errors.New("неверный запрос")

	ErrInvalidEmail       = errors.New("некорректный email")
	ErrInvalidPassword    = errors.New("пароль должен содержать от 8 до 72 символов")
	ErrInvalidTitle       = errors.New("заголовок задачи не может быть пустым или длиннее 500 символов")
	ErrInvalidDescription = errors.New("описание задачи не может быть длиннее 10000 символов")
	ErrInvalidCategory    = errors.New("категория задачи не может быть длиннее 50 символов")
	ErrInvalidPriority    = errors.New("приоритет задачи не может быть длиннее 20 символов")
	ErrInvalidCompleted   = errors.New("не указан флаг завершения задачи")
	ErrInvalidFilter      = errors.New("некорректные параметры фильтрации")

	ErrConfigFileReadFailed = errors.New("не удалось прочитать файл конфигурации")
	ErrConfigParseFailed    = errors.New("не удалось разобрать файл конфигурации")
	ErrConfigInvalidFormat  = errors.New("некорректное значение конфигурации")
	ErrConfigNoSecret       = errors.New("не задан секрет подписи токенов (AUTH_SECRET)")

	ErrInvalidGzipRequest = errors.New("некорректное gzip-тело запроса")
)
