package cli

import (
	"context"
	"errors"

	"github.com/iudanet/supwarden/internal/client/auth"
)

func (c *Cli) runLogout(ctx context.Context) error {
	if err := c.session.Logout(ctx); err != nil {
		if errors.Is(err, auth.ErrNotLoggedIn) {
			c.io.Println("Not logged in.")
			return nil
		}
		return err
	}

	c.io.Println("✓ Logged out. Local session removed.")
	return nil
}
