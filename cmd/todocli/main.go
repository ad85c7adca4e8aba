package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"todoapp/internal/client"
	"todoapp/internal/domain/models"
)

var serverURL = flag.String("server", "http://localhost:8080", "адрес сервера задач")

func main() {
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	c := client.New(*serverURL, sessionPath())
	ctx := context.Background()

	if err := run(ctx, c, args); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.Client, args []string) error {
	switch args[0] {
	case "register":
		return authenticate(ctx, c.Register)
	case "login":
		return authenticate(ctx, c.Login)
	case "logout":
		c.Logout()
		fmt.Println("Выход выполнен")
		return nil
	case "me":
		user, err := c.Me(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s)\n", user.Email, user.ID)
		return nil
	case "refresh":
		if err := c.Refresh(ctx); err != nil {
			return err
		}
		fmt.Println("Токен обновлён")
		return nil
	case "list":
		return listTasks(ctx, c, args[1:])
	case "add":
		return addTask(ctx, c, args[1:])
	case "show":
		return showTask(ctx, c, args[1:])
	case "done":
		return setCompletion(ctx, c, args[1:], true)
	case "undone":
		return setCompletion(ctx, c, args[1:], false)
	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("нужен идентификатор задачи")
		}
		if err := c.DeleteTask(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("Задача удалена")
		return nil
	default:
		usage()
		return fmt.Errorf("неизвестная команда: %s", args[0])
	}
}

func authenticate(ctx context.Context, action func(context.Context, string, string) (*models.Account, error)) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		return err
	}
	email = strings.TrimSpace(email)

	fmt.Print("Пароль: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return err
	}

	user, err := action(ctx, email, string(password))
	if err != nil {
		return err
	}

	fmt.Println("Успешно! Вход выполнен как", user.Email)
	return nil
}

func listTasks(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	completedFlag := fs.String("completed", "", "фильтр по статусу: true или false")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var filter models.TaskFilter
	switch *completedFlag {
	case "":
	case "true":
		completed := true
		filter.Completed = &completed
	case "false":
		completed := false
		filter.Completed = &completed
	default:
		return fmt.Errorf("недопустимое значение -completed: %s", *completedFlag)
	}

	tasks, count, err := c.Tasks(ctx, filter)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		mark := " "
		if task.Completed {
			mark = "x"
		}
		fmt.Printf("[%s] %s  %s\n", mark, task.ID, task.Title)
	}
	fmt.Printf("Всего: %d\n", count)
	return nil
}

func addTask(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("нужен заголовок задачи")
	}

	req := models.CreateTaskRequest{Title: args[0]}
	if len(args) > 1 {
		req.Description = strings.Join(args[1:], " ")
	}

	task, err := c.CreateTask(ctx, req)
	if err != nil {
		return err
	}
	fmt.Println("Задача создана:", task.ID)
	return nil
}

func showTask(ctx context.Context, c *client.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("нужен идентификатор задачи")
	}

	task, err := c.Task(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Println("Заголовок: ", task.Title)
	if task.Description != "" {
		fmt.Println("Описание:  ", task.Description)
	}
	fmt.Println("Категория: ", task.Category)
	fmt.Println("Приоритет: ", task.Priority)
	fmt.Println("Завершена: ", task.Completed)
	if task.DueDate != nil {
		fmt.Println("Срок:      ", task.DueDate.Format("2006-01-02 15:04"))
	}
	return nil
}

func setCompletion(ctx context.Context, c *client.Client, args []string, completed bool) error {
	if len(args) < 1 {
		return fmt.Errorf("нужен идентификатор задачи")
	}

	task, err := c.SetCompletion(ctx, args[0], completed)
	if err != nil {
		return err
	}
	if task.Completed {
		fmt.Println("Задача завершена:", task.ID)
	} else {
		fmt.Println("Задача снова активна:", task.ID)
	}
	return nil
}

func sessionPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "todocli", "session.json")
}

func usage() {
	fmt.Fprintln(os.Stderr, `Использование: todocli [-server URL] <команда>

Команды:
  register            регистрация нового аккаунта
  login               вход
  logout              выход (чистит локальную сессию)
  me                  текущий аккаунт
  refresh             обновить токен
  list [-completed=]  список задач
  add <заголовок> [описание]
  show <id>           подробности задачи
  done <id>           отметить выполненной
  undone <id>         вернуть в работу
  rm <id>             удалить задачу`)
}
