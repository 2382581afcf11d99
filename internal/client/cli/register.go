package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/supwarden/pkg/api"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	pseudo, err := c.io.ReadInput("Pseudo: ")
	if err != nil {
		return fmt.Errorf("failed to read pseudo: %w", err)
	}

	email, err := c.io.ReadInput("Email: ")
	if err != nil {
		return fmt.Errorf("failed to read email: %w", err)
	}

	password, err := c.io.ReadPassword("Password (min 8 chars): ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}

	c.io.Println()
	c.io.Println("Registering user...")

	auth, err := c.session.Register(ctx, api.RegisterRequest{
		Pseudo:          pseudo,
		Email:           email,
		Password:        password,
		ConfirmPassword: confirm,
	})
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Registration successful!")
	c.io.Printf("User ID: %s\n", auth.UserID)
	c.io.Printf("Pseudo: %s\n", auth.Pseudo)
	c.io.Println()
	c.io.Println("You are now logged in.")

	return nil
}
