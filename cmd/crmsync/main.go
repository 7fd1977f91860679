// Command crmsync runs one GoHighLevel sync direction and prints the result as
// JSON, for use from cron or a scheduled job. With -hash-token it instead
// reads an admin token from stdin and prints its APP_ADMIN_TOKEN_HASH value.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/velvetbrow/studio/internal/auth"
	"github.com/velvetbrow/studio/internal/config"
	"github.com/velvetbrow/studio/internal/crmsync"
	"github.com/velvetbrow/studio/internal/store"
)

const (
	exitOK = iota
	exitFailed
	exitUsage
	exitNotConfigured
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("crmsync", flag.ContinueOnError)
	direction := fs.String("direction", "push", "sync direction: push, pull, or status")
	force := fs.Bool("force", false, "push records that are already linked to a CRM appointment")
	timeout := fs.Duration("timeout", 30*time.Minute, "overall time limit for the run")
	envFile := fs.String("env", ".env", "dotenv file to load before reading the environment")
	hashToken := fs.Bool("hash-token", false, "read an admin token from stdin, print its bcrypt hash and exit")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *hashToken {
		return printTokenHash(os.Stdin, os.Stdout)
	}
	switch *direction {
	case "push", "pull", "status":
	default:
		fmt.Fprintf(os.Stderr, "unknown -direction %q (want push, pull, or status)\n", *direction)
		return exitUsage
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] [crmsync] load %s: %v", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("[ERROR] [crmsync] load config: %v", err)
		return exitFailed
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Printf("[ERROR] [crmsync] create db pool: %v", err)
		return exitFailed
	}
	defer pool.Close()

	svc := crmsync.NewService(cfg, store.New(pool))

	switch *direction {
	case "push":
		var r *crmsync.PushResult
		if r, err = svc.Push(ctx, crmsync.PushOptions{ForceResync: *force}); r != nil {
			printJSON(r)
		}
	case "pull":
		var r *crmsync.PullResult
		if r, err = svc.Pull(ctx); r != nil {
			printJSON(r)
		}
	case "status":
		var r *crmsync.StatusReport
		if r, err = svc.Status(ctx); r != nil {
			printJSON(r)
		}
	}

	if err != nil {
		log.Printf("[ERROR] [crmsync] %s: %v", *direction, err)
		if errors.Is(err, crmsync.ErrNotConfigured) {
			return exitNotConfigured
		}
		return exitFailed
	}
	return exitOK
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Printf("[ERROR] [crmsync] write result: %v", err)
	}
}

func printTokenHash(in io.Reader, out io.Writer) int {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		log.Printf("[ERROR] [crmsync] read token: %v", err)
		return exitFailed
	}
	token := strings.TrimSpace(line)
	if token == "" {
		fmt.Fprintln(os.Stderr, "no token on stdin")
		return exitUsage
	}
	hash, err := auth.HashToken(token)
	if err != nil {
		log.Printf("[ERROR] [crmsync] hash token: %v", err)
		return exitFailed
	}
	fmt.Fprintln(out, hash)
	return exitOK
}
