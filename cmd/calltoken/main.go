// Command calltoken mints a bearer token for callers of the outbound call API.
//
// It reads JWT_SECRET, JWT_ISSUER, JWT_AUDIENCE and JWT_TOKEN_TTL from env,
// the same as the API process.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"outbound-caller/internal/auth"
	"outbound-caller/internal/config"
	"outbound-caller/pkg/logger"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now()); err != nil {
		slog.Error("calltoken failed", "err", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, now time.Time) error {
	fs := flag.NewFlagSet("calltoken", flag.ContinueOnError)
	subject := fs.String("sub", "", "subject the token is issued to (required)")
	scope := fs.String("scope", auth.ScopeCalls, "space-separated scopes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(logger.New(cfg.App.Env))

	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}
	tok, err := m.Issue(now, *subject, strings.Fields(*scope)...)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}
