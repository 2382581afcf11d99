package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/supwarden/pkg/api"
)

func (c *Cli) runVaults(ctx context.Context) error {
	if _, err := c.requireSession(ctx); err != nil {
		return err
	}

	owned, err := c.client.ListVaults(ctx)
	if err != nil {
		return fmt.Errorf("failed to list vaults: %w", err)
	}

	shared, err := c.client.ListSharedVaults(ctx)
	if err != nil {
		return fmt.Errorf("failed to list shared vaults: %w", err)
	}

	c.io.Println("=== My Vaults ===")
	c.io.Println()
	if len(owned) == 0 {
		c.io.Println("No vaults found.")
	}
	for i, v := range owned {
		c.io.Printf("%d. %s\n", i+1, v.Name)
		c.io.Printf("   ID:      %s\n", v.ID)
		if v.IsShared {
			c.io.Printf("   Members: %s\n", memberSummary(v.Members))
		}
	}

	c.io.Println()
	c.io.Println("=== Shared With Me ===")
	c.io.Println()
	if len(shared) == 0 {
		c.io.Println("No shared vaults.")
		return nil
	}
	for i, s := range shared {
		c.io.Printf("%d. %s [%s, %s]\n", i+1, s.Vault.Name, s.Permission, s.Invitation)
		c.io.Printf("   ID:      %s\n", s.Vault.ID)
		if s.Invitation == api.InvitationPending {
			c.io.Printf("   Run 'supwarden accept %s' to join.\n", s.Vault.ID)
		}
	}

	return nil
}

func (c *Cli) runAccept(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing vault id. Usage: supwarden accept <vault-id>")
	}
	if _, err := c.requireSession(ctx); err != nil {
		return err
	}

	if err := c.client.AcceptInvitation(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to accept invitation: %w", err)
	}

	c.io.Println("✓ Invitation accepted.")
	return nil
}

func memberSummary(members []api.MemberResponse) string {
	out := ""
	for i, m := range members {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s (%s)", m.Pseudo, m.Permission)
		if m.Invitation != api.InvitationAccepted {
			out += " " + m.Invitation
		}
	}
	return out
}
