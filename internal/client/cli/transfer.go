package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	contentTypeJSON = "application/json"
	contentTypeCBOR = "application/cbor"
)

func (c *Cli) runExport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing file. Usage: supwarden export <file> [--format json|cbor]")
	}
	if _, err := c.requireSession(ctx); err != nil {
		return err
	}

	path := args[0]
	format, err := exportFormat(path, args[1:])
	if err != nil {
		return err
	}

	data, err := c.client.Export(ctx, format)
	if err != nil {
		return fmt.Errorf("failed to export: %w", err)
	}

	// Экспорт содержит пароли в открытом виде
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	c.io.Printf("✓ Exported %d bytes to %s\n", len(data), path)
	c.io.Println("⚠️  The file contains plaintext passwords. Keep it safe.")
	return nil
}

func (c *Cli) runImport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing file. Usage: supwarden import <file>")
	}
	if _, err := c.requireSession(ctx); err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	contentType := contentTypeJSON
	if formatForPath(path) == "cbor" {
		contentType = contentTypeCBOR
	}

	report, err := c.client.Import(ctx, data, contentType)
	if err != nil {
		return fmt.Errorf("failed to import: %w", err)
	}

	c.io.Printf("Imported %d vault(s), %d element(s)\n", len(report.Vaults), report.Elements)
	for _, v := range report.Vaults {
		c.io.Printf("  %s -> %s (%d elements)\n", v.Name, v.ID, v.Elements)
	}
	for _, m := range report.DroppedMembers {
		c.io.Printf("  dropped member %s of %s: %s\n", m.UserID, m.VaultName, m.Reason)
	}
	for _, a := range report.DroppedAttachments {
		c.io.Printf("  dropped attachment %s of %s/%s: %s\n", a.Filename, a.VaultName, a.ElementName, a.Reason)
	}

	if report.Error != "" {
		return fmt.Errorf("import incomplete: %s", report.Error)
	}
	return nil
}

// exportFormat принимает "cbor", "--format cbor" или "--format=cbor",
// иначе формат берется из расширения файла
func exportFormat(path string, rest []string) (string, error) {
	format := formatForPath(path)
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		switch {
		case arg == "--format" || arg == "-format":
			if i+1 >= len(rest) {
				return "", fmt.Errorf("missing value for --format")
			}
			i++
			format = rest[i]
		case strings.HasPrefix(arg, "--format="):
			format = strings.TrimPrefix(arg, "--format=")
		default:
			format = arg
		}
	}

	format = strings.ToLower(format)
	if format != "json" && format != "cbor" {
		return "", fmt.Errorf("unknown export format %q, use json or cbor", format)
	}
	return format, nil
}

// formatForPath выбирает формат bundle по расширению файла
func formatForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".cbor") {
		return "cbor"
	}
	return "json"
}
