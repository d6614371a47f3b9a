package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/storefront/internal/cart"
	"github.com/Skotchmaster/storefront/internal/client"
	"github.com/Skotchmaster/storefront/internal/session"
	"github.com/Skotchmaster/storefront/internal/storage"
	"github.com/Skotchmaster/storefront/pkg/config"
)

const usage = `usage: shopctl <command> [args]

account:
  register <email> <password>
  login <email> <password>
  logout
  whoami

catalog:
  products
  search <query> [-page N] [-size N]
  product-create -name NAME -price PRICE [-desc TEXT] [-image URL]   (admin)
  product-update <id> [-name NAME] [-price PRICE] [-desc TEXT] [-image URL]   (admin)
  product-delete <id>   (admin)

cart:
  add <productId>
  remove <productId>
  qty <productId> <quantity>
  clear
  cart
  checkout

orders:
  orders [-all]

environment:
  SHOPCTL_API    backend base URL (default http://localhost:8080)
  SHOPCTL_STATE  local state file (default $HOME/.shopctl.db)
`

type app struct {
	api     *client.Client
	session *session.Session
	cart    *cart.Store
	out     io.Writer
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shopctl.db"
	}
	return filepath.Join(home, ".shopctl.db")
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "help" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, client.ErrNetwork) {
			fmt.Fprintln(os.Stderr, "the server could not be reached, check SHOPCTL_API and try again")
		}
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	store, err := storage.Open(ctx, config.EnvDefault("SHOPCTL_STATE", defaultStatePath()))
	if err != nil {
		return err
	}
	defer store.Close()

	api := client.NewClient(config.EnvDefault("SHOPCTL_API", "http://localhost:8080"))

	sess, err := session.Restore(ctx, api, store)
	if err != nil {
		return err
	}
	cartStore, err := cart.Restore(ctx, store)
	if err != nil {
		return err
	}

	a := &app{api: api, session: sess, cart: cartStore, out: out}
	return a.dispatch(ctx, cmd, args)
}
