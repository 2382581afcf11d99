package cli

import (
	"context"
	"errors"
	"time"

	"github.com/iudanet/supwarden/internal/client/auth"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Authentication Status ===")
	c.io.Println()

	session, err := c.session.Session(ctx)
	switch {
	case errors.Is(err, auth.ErrNotLoggedIn):
		c.io.Println("Status: Not authenticated")
		c.io.Println()
		c.io.Println("Run 'supwarden login' to authenticate.")
		return nil
	case errors.Is(err, auth.ErrSessionExpired):
		c.io.Println("Status: Session expired")
		if session != nil {
			c.io.Printf("Pseudo: %s\n", session.Pseudo)
		}
		c.io.Println("⚠️  Token has expired. Please login again.")
		return nil
	case err != nil:
		return err
	}

	expiresAt := time.Unix(session.ExpiresAt, 0)

	c.io.Println("Status: Authenticated")
	c.io.Printf("Server: %s\n", session.ServerURL)
	c.io.Printf("Pseudo: %s\n", session.Pseudo)
	c.io.Printf("Email: %s\n", session.Email)
	c.io.Printf("Token expires: %s\n", expiresAt.Format(time.RFC3339))

	// Сервер мог удалить аккаунт, проверяем токен
	me, err := c.client.Me(ctx)
	if err != nil {
		c.io.Printf("\nWarning: server rejected the session: %v\n", err)
		return nil
	}

	c.io.Printf("PIN configured: %t\n", me.HasPin)
	c.io.Printf("Google linked: %t\n", me.GoogleID != "")
	return nil
}
