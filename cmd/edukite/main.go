package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"

	"github.com/edukite/go-edukite-client/authapi"
	"github.com/edukite/go-edukite-client/client"
	"github.com/edukite/go-edukite-client/internal/config"
	"github.com/edukite/go-edukite-client/internal/utils"
	"github.com/edukite/go-edukite-client/session"
	"github.com/edukite/go-edukite-client/tokenstore"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: edukite <login|whoami|change-password|logout> [flags]")
}

func run(command string, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(zerolog.WarnLevel).With().Timestamp().Logger()
	if os.Getenv("EDUKITE_DEBUG") != "" {
		logger = logger.Level(zerolog.DebugLevel)
	}

	storeKey := cfg.GetTokenStoreKey()
	if storeKey == "" {
		storeKey, err = tokenstore.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "No store key configured; generated one for this run.\n")
		fmt.Fprintf(os.Stderr, "Export it to keep your session across invocations:\n")
		fmt.Fprintf(os.Stderr, "  export EDUKITE_STORE_KEY=%s\n\n", storeKey)
	}

	store, err := tokenstore.NewFileStore(cfg.GetTokenStorePath(), storeKey, tokenstore.WithLogger(logger))
	if err != nil {
		return err
	}

	sess, err := session.NewManager(store, session.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := sess.HydrateFromStorage(); err != nil {
		return err
	}

	api, err := client.New(cfg, sess, client.WithLogger(logger))
	if err != nil {
		return err
	}
	auth, err := authapi.New(api, sess, authapi.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx := context.Background()

	switch command {
	case "login":
		return cmdLogin(ctx, cfg, auth, args)
	case "whoami":
		return cmdWhoami(ctx, sess)
	case "change-password":
		return cmdChangePassword(ctx, auth, args)
	case "logout":
		return auth.Logout()
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func loadConfig() (config.Config, error) {
	if path := os.Getenv("EDUKITE_CONFIG"); path != "" {
		return config.LoadFile(path)
	}
	return config.New(), nil
}

func cmdLogin(ctx context.Context, cfg config.Config, auth *authapi.Service, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	tenant := fs.String("tenant", "", "tenant id (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	displayAppname(cfg.GetAppName())

	resp, err := auth.Login(ctx, authapi.LoginRequest{
		Email:    *email,
		Password: *password,
		TenantID: *tenant,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (%s)\n", resp.User.Email, resp.User.Role)
	if utils.Value(resp.MustChangePassword) {
		fmt.Println("⚠️  Password change required - run: edukite change-password")
	}
	return nil
}

func cmdWhoami(ctx context.Context, sess *session.Manager) error {
	if sess.AccessToken() == "" {
		// Cold start: only the refresh token survives restarts.
		auth, err := sess.Refresh(ctx)
		if err != nil {
			return err
		}
		if auth == nil {
			return fmt.Errorf("not logged in")
		}
	}

	claims, err := sess.Introspect()
	if err != nil {
		return err
	}

	fmt.Printf("User:    %s (%s)\n", claims.Email, claims.Subject)
	fmt.Printf("Role:    %s\n", claims.Role)
	if claims.TenantID != "" {
		fmt.Printf("Tenant:  %s\n", claims.TenantID)
	}
	if !claims.Expiry.IsZero() {
		fmt.Printf("Expires: %s\n", claims.Expiry.Format(time.RFC1123))
	}
	return nil
}

func cmdChangePassword(ctx context.Context, auth *authapi.Service, args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ExitOnError)
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := auth.ChangePassword(ctx, *current, *next); err != nil {
		return err
	}
	fmt.Println("Password changed")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
