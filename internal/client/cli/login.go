package cli

import (
	"context"
	"fmt"
	"time"
)

func (c *Cli) runLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	pseudo, err := c.io.ReadInput("Pseudo: ")
	if err != nil {
		return fmt.Errorf("failed to read pseudo: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	c.io.Println()
	c.io.Println("Authenticating...")

	auth, err := c.session.Login(ctx, pseudo, password)
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.io.Printf("Pseudo: %s\n", auth.Pseudo)
	c.io.Printf("Session expires: %s\n", time.Unix(auth.ExpiresAt, 0).Format(time.RFC3339))

	return nil
}
