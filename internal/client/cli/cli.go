// Package cli implements the supwarden command line client.
package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/supwarden/internal/client/iocli"
	"github.com/iudanet/supwarden/internal/client/storage"
	"github.com/iudanet/supwarden/pkg/api"
)

// SessionService - локальная сессия пользователя
type SessionService interface {
	Register(ctx context.Context, req api.RegisterRequest) (*storage.AuthData, error)
	Login(ctx context.Context, pseudo, password string) (*storage.AuthData, error)
	Logout(ctx context.Context) error
	Session(ctx context.Context) (*storage.AuthData, error)
}

// APIClient - защищенные запросы к серверу
type APIClient interface {
	Me(ctx context.Context) (*api.UserResponse, error)
	ListVaults(ctx context.Context) ([]api.VaultResponse, error)
	ListSharedVaults(ctx context.Context) ([]api.SharedVaultResponse, error)
	AcceptInvitation(ctx context.Context, vaultID string) error
	ListElements(ctx context.Context, vaultID string) ([]api.ElementResponse, error)
	Challenge(ctx context.Context, elementID string) (*api.ChallengeResponse, error)
	Reveal(ctx context.Context, elementID, proof string) (*api.RevealResponse, error)
	Export(ctx context.Context, format string) ([]byte, error)
	Import(ctx context.Context, data []byte, contentType string) (*api.ImportResponse, error)
}

type Cli struct {
	io      iocli.IO
	session SessionService
	client  APIClient
}

func New(io iocli.IO, session SessionService, client APIClient) *Cli {
	return &Cli{
		io:      io,
		session: session,
		client:  client,
	}
}

// Run выполняет команду, args[0] - имя команды
func (c *Cli) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.PrintUsage()
		return fmt.Errorf("missing command")
	}

	command, rest := args[0], args[1:]
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "vaults":
		return c.runVaults(ctx)
	case "accept":
		return c.runAccept(ctx, rest)
	case "elements":
		return c.runElements(ctx, rest)
	case "reveal":
		return c.runReveal(ctx, rest)
	case "export":
		return c.runExport(ctx, rest)
	case "import":
		return c.runImport(ctx, rest)
	case "help":
		c.PrintUsage()
		return nil
	default:
		c.PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

// requireSession загружает сессию и передает токен HTTP клиенту
func (c *Cli) requireSession(ctx context.Context) (*storage.AuthData, error) {
	auth, err := c.session.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w. Please run 'supwarden login'", err)
	}
	return auth, nil
}

func (c *Cli) PrintUsage() {
	c.io.Println("Supwarden Client")
	c.io.Println()
	c.io.Println("Usage:")
	c.io.Println("  supwarden [OPTIONS] COMMAND")
	c.io.Println()
	c.io.Println("Options:")
	c.io.Println("  --version                    Show version information")
	c.io.Println("  --server URL                 Server URL (default: http://localhost:8080)")
	c.io.Println("  --db PATH                    Path to local session database (default: supwarden-client.db)")
	c.io.Println()
	c.io.Println("Commands:")
	c.io.Println("  register                     Register new user")
	c.io.Println("  login                        Login to server")
	c.io.Println("  logout                       Forget the local session")
	c.io.Println("  status                       Show authentication status")
	c.io.Println("  vaults                       List owned and shared vaults")
	c.io.Println("  accept <vault-id>            Accept a vault invitation")
	c.io.Println("  elements <vault-id>          List elements of a vault")
	c.io.Println("  reveal <element-id>          Show the password of an element (asks PIN or password)")
	c.io.Println("  export <file> [--format F]   Export all owned vaults (json or cbor)")
	c.io.Println("  import <file>                Import vaults from a json or cbor bundle")
	c.io.Println()
	c.io.Println("Examples:")
	c.io.Println("  supwarden --server https://vault.example.com login")
	c.io.Println("  supwarden elements b692f5c0-2d88-4aa1-a9e1-13aa6e4976d5")
	c.io.Println("  supwarden export backup.bin --format cbor")
}
