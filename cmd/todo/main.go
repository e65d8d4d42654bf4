package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sethvargo/go-envconfig"
	flag "github.com/spf13/pflag"

	"github.com/99minutos/todo-sync/internal/client/api"
	"github.com/99minutos/todo-sync/internal/client/localstore"
	"github.com/99minutos/todo-sync/internal/client/session"
	"github.com/99minutos/todo-sync/internal/client/todosync"
	"github.com/99minutos/todo-sync/internal/pkg/config"
	"github.com/99minutos/todo-sync/pkg/logger"
)

const usage = `Usage: todo [flags] <command> [args]

Commands:
  register          create an account and sign in
  login             sign in
  logout            sign out and forget cached todos
  me                show the signed-in user
  list              sync and print todos
  add <title>       create a todo
  toggle <id>       flip a todo between done and open
  rm <id>           delete a todo

Flags:
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "todo:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.LoadClient(ctx, envconfig.OsLookuper())
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("todo", flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "base URL of the todo API")
	fs.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "path of the local cache database")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	email := fs.StringP("email", "e", "", "account email for register and login")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true, Output: os.Stderr, Service: "todo-cli"})

	if cfg.CachePath == "" {
		cfg.CachePath, err = defaultCachePath()
		if err != nil {
			return err
		}
	}
	store, err := localstore.Open(ctx, cfg.CachePath)
	if err != nil {
		return err
	}
	defer store.Close()

	client := api.New(cfg.APIURL)
	sess := session.NewManager(client, store, logger.For("session"))
	app := &app{
		out:    out,
		in:     newPrompter(os.Stdin, os.Stderr),
		email:  *email,
		sess:   sess,
		syncer: todosync.New(client, store, sess, logger.For("todosync")),
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	log.Debug().Str("command", cmd).Str("api_url", cfg.APIURL).Msg("running")
	return app.dispatch(ctx, cmd, rest)
}

func defaultCachePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache directory: %w", err)
	}
	dir = filepath.Join(dir, "todo-sync")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create cache directory: %w", err)
	}
	return filepath.Join(dir, "cache.db"), nil
}

type app struct {
	out    io.Writer
	in     *prompter
	email  string
	sess   *session.Manager
	syncer *todosync.Syncer
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx)
	case "login":
		return a.login(ctx)
	case "logout":
		if err := a.sess.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Signed out.")
		return nil
	case "me":
		return a.me(ctx)
	case "list", "ls":
		return a.list(ctx)
	case "add":
		return a.add(ctx, strings.Join(args, " "))
	case "toggle":
		return a.withID(ctx, args, a.toggle)
	case "rm", "delete":
		return a.withID(ctx, args, a.remove)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) credentials() (string, string, error) {
	email := a.email
	if email == "" {
		var err error
		if email, err = a.in.line("Email"); err != nil {
			return "", "", err
		}
	}
	password, err := a.in.password("Password")
	if err != nil {
		return "", "", err
	}
	return email, password, nil
}

func (a *app) register(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	user, err := a.sess.Register(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered and signed in as %s.\n", user.Email)
	return nil
}

func (a *app) login(ctx context.Context) error {
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	if err := a.sess.Login(ctx, email, password); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed in.")
	return nil
}

func (a *app) me(ctx context.Context) error {
	user, err := a.sess.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%s)\n", user.Email, user.ID)
	return nil
}

func (a *app) list(ctx context.Context) error {
	if err := a.signedIn(ctx); err != nil {
		return err
	}
	if err := a.syncer.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not reach server, showing cached todos: %v\n", err)
	}
	printTodos(a.out, a.syncer.Todos())
	return nil
}

func (a *app) add(ctx context.Context, title string) error {
	if err := a.prepare(ctx); err != nil {
		return err
	}
	todo, err := a.syncer.Add(ctx, title)
	if errors.Is(err, todosync.ErrEmptyTitle) {
		return err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: saved locally only: %v\n", err)
	}
	fmt.Fprintf(a.out, "Added %s\n", todo.ID)
	return nil
}

func (a *app) toggle(ctx context.Context, id string) error {
	todo, err := a.syncer.Toggle(ctx, id)
	if err != nil {
		return err
	}
	printTodos(a.out, []todosync.Todo{todo})
	return nil
}

func (a *app) remove(ctx context.Context, id string) error {
	if err := a.syncer.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", id)
	return nil
}

func (a *app) withID(ctx context.Context, args []string, fn func(context.Context, string) error) error {
	if len(args) != 1 {
		return errors.New("expected exactly one todo id")
	}
	if err := a.prepare(ctx); err != nil {
		return err
	}
	return fn(ctx, args[0])
}

// prepare loads the cached list so mutations address the ids the user last saw.
func (a *app) prepare(ctx context.Context) error {
	if err := a.signedIn(ctx); err != nil {
		return err
	}
	return a.syncer.Restore(ctx)
}

func (a *app) signedIn(ctx context.Context) error {
	token, err := a.sess.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("%w: run `todo login` first", session.ErrSignedOut)
	}
	return nil
}

func printTodos(w io.Writer, todos []todosync.Todo) {
	if len(todos) == 0 {
		fmt.Fprintln(w, "No todos.")
		return
	}
	for _, t := range todos {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		suffix := ""
		if t.Local {
			suffix = " (local only)"
		}
		fmt.Fprintf(w, "[%s] %s  %s%s\n", mark, t.ID, t.Title, suffix)
	}
}
