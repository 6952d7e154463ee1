// Command admin runs one-off operator tasks against the server database:
//
//	admin [flags] migrate
//	admin [flags] sweep
//	admin [flags] set-password <email|phone>
//
// Flags and the config file are the same as for the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dmitrijs2005/saraha/internal/common"
	"github.com/dmitrijs2005/saraha/internal/cryptox"
	"github.com/dmitrijs2005/saraha/internal/logging"
	"github.com/dmitrijs2005/saraha/internal/server"
	"github.com/dmitrijs2005/saraha/internal/server/auth"
	"github.com/dmitrijs2005/saraha/internal/server/config"
	"github.com/dmitrijs2005/saraha/internal/server/services"
	"github.com/dmitrijs2005/saraha/internal/server/sweeper"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "admin:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cmd, rest := command(args)
	if cmd == "" {
		return errors.New("usage: admin [flags] migrate|sweep|set-password <email|phone>")
	}

	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := logging.New("text", cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}

	// Backends applies pending migrations before returning.
	d, db, err := server.Backends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	switch cmd {
	case "migrate":
		if db == nil {
			return errors.New("migrate needs a PostgreSQL DSN")
		}
		logger.Info(ctx, "migrations applied")
		return nil

	case "sweep":
		n, err := sweeper.New(d.Repos.Tokens(d.DB), cfg.SweepInterval, logger).RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d expired token records\n", n)
		return nil

	case "set-password":
		if len(rest) != 1 {
			return errors.New("usage: admin set-password <email|phone>")
		}
		return setPassword(ctx, cfg, d, rest[0])
	}
	return fmt.Errorf("unknown command %q", cmd)
}

// command returns the first positional argument and everything after it.
// Flag values are skipped the same way the config loader reads them.
func command(args []string) (string, []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "-") {
			return a, args[i+1:]
		}
		if !strings.Contains(a, "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
		}
	}
	return "", nil
}

func setPassword(ctx context.Context, cfg *config.Config, d services.Deps, identity string) error {
	hasher, err := cryptox.NewHasher(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		return err
	}
	d.Hasher = hasher
	d.Issuer = auth.NewIssuer([]byte(cfg.SecretKey))

	password, err := readPassword()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	email, phone := identity, ""
	if !strings.Contains(identity, "@") {
		email, phone = "", identity
	}

	svc := services.NewAuthService(d, cfg)
	if err := svc.SetPassword(ctx, email, phone, string(password)); err != nil {
		return errors.New(common.Message(err))
	}
	fmt.Println("password updated")
	return nil
}

func readPassword() ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("set-password must be run from a terminal")
	}

	fmt.Fprint(os.Stderr, "New password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(os.Stderr, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		common.WipeByteArray(first)
		return nil, err
	}
	defer common.WipeByteArray(second)

	if string(first) != string(second) {
		common.WipeByteArray(first)
		return nil, errors.New("passwords do not match")
	}
	if len(first) < 6 {
		common.WipeByteArray(first)
		return nil, errors.New("password must be at least 6 characters")
	}
	return first, nil
}
