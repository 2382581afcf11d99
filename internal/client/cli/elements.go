package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/iudanet/supwarden/pkg/api"
)

const (
	hiddenPassword       = "********"
	stateChallengeIssued = "challenge_issued"
)

func (c *Cli) runElements(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing vault id. Usage: supwarden elements <vault-id>")
	}
	if _, err := c.requireSession(ctx); err != nil {
		return err
	}

	elements, err := c.client.ListElements(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to list elements: %w", err)
	}

	if len(elements) == 0 {
		c.io.Println("No elements found.")
		return nil
	}

	c.io.Printf("Found %d element(s):\n", len(elements))
	c.io.Println()

	for i, e := range elements {
		c.io.Printf("%d. %s\n", i+1, e.Name)
		c.io.Printf("   ID:       %s\n", e.ID)
		if e.Username != "" {
			c.io.Printf("   Username: %s\n", e.Username)
		}
		switch {
		case e.IsSensitive:
			c.io.Printf("   Password: %s (run 'supwarden reveal %s')\n", hiddenPassword, e.ID)
		case e.Password != "":
			c.io.Printf("   Password: %s\n", e.Password)
		}
		if len(e.URIs) > 0 {
			c.io.Printf("   URIs:     %s\n", strings.Join(e.URIs, ", "))
		}
		for _, f := range e.CustomFields {
			value := f.Value
			if f.Type == api.FieldTypePassword {
				value = hiddenPassword
			}
			c.io.Printf("   %s: %s\n", f.Name, value)
		}
		if len(e.Attachments) > 0 {
			c.io.Printf("   Files:    %d attachment(s)\n", len(e.Attachments))
		}
		if e.Note != "" {
			c.io.Printf("   Note:     %s\n", e.Note)
		}
		c.io.Println()
	}

	return nil
}

// runReveal раскрывает пароль sensitive элемента в два шага:
// challenge сообщает фактор, затем proof отправляется на reveal
func (c *Cli) runReveal(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing element id. Usage: supwarden reveal <element-id>")
	}
	if _, err := c.requireSession(ctx); err != nil {
		return err
	}
	elementID := args[0]

	challenge, err := c.client.Challenge(ctx, elementID)
	if err != nil {
		return fmt.Errorf("failed to start reveal: %w", err)
	}

	proof := ""
	if challenge.State == stateChallengeIssued {
		prompt := "Account password: "
		if challenge.Factor == "pin" {
			prompt = "PIN: "
		}
		proof, err = c.io.ReadPassword(prompt)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", challenge.Factor, err)
		}
	}

	revealed, err := c.client.Reveal(ctx, elementID, proof)
	if err != nil {
		return fmt.Errorf("failed to reveal password: %w", err)
	}

	c.io.Printf("Password: %s\n", revealed.Password)
	return nil
}
