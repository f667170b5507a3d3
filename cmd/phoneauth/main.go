package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medportal/phoneauth/internal/login/app"
)

const usage = `usage: phoneauth [-config file] [-env file] <command> [flags]

commands:
  login     sign in with your phone number and a Telegram code
  whoami    show the signed-in user
  logout    sign out and forget the cached session
  history   list recent login attempts
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("phoneauth", flag.ContinueOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	configPath := global.String("config", "", "path to a YAML config file")
	envFile := global.String("env", ".env", "path to a .env file, ignored if missing")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := app.LoadConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, *cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize application:", err)
		return 1
	}
	defer application.Close()

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "login":
		return login(ctx, application, rest)
	case "whoami":
		return whoami(ctx, application)
	case "logout":
		return logout(ctx, application)
	case "history":
		return history(ctx, application, rest)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

func login(ctx context.Context, application *app.Application, args []string) int {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	force := fs.Bool("force", false, "sign in again even if a session is cached")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	_, err := application.Login(ctx, os.Stdin, os.Stdout, *force)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrAbandoned), errors.Is(err, context.Canceled):
		return 130
	default:
		fmt.Fprintln(os.Stderr, "login failed:", err)
		return 1
	}
}

func whoami(ctx context.Context, application *app.Application) int {
	user, err := application.WhoAmI(ctx)
	if errors.Is(err, app.ErrNotSignedIn) {
		fmt.Println("Not signed in.")
		return 1
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "whoami failed:", err)
		return 1
	}

	fmt.Printf("%s\n  id:    %s\n  phone: %s\n", app.DisplayName(user), user.ID, user.Phone)
	return 0
}

func logout(ctx context.Context, application *app.Application) int {
	err := application.Logout(ctx)
	if errors.Is(err, app.ErrNotSignedIn) {
		fmt.Println("Not signed in.")
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "logout failed:", err)
		return 1
	}
	fmt.Println("Signed out.")
	return 0
}

func history(ctx context.Context, application *app.Application, args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	limit := fs.Int("n", 20, "number of attempts to show (0 = all)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	attempts, err := application.History(ctx, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "history failed:", err)
		return 1
	}
	if len(attempts) == 0 {
		fmt.Println("No login attempts recorded.")
		return 0
	}

	for _, a := range attempts {
		line := fmt.Sprintf("%s  %-13s  %s", a.At.Local().Format(time.DateTime), a.Outcome, a.Phone)
		if a.ErrorKind != "" {
			line += "  " + a.ErrorKind
		}
		fmt.Println(line)
	}
	return 0
}
