package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidatePseudo(t *testing.T) {
	tests := []struct {
		name    string
		pseudo  string
		wantErr bool
	}{
		{name: "valid simple", pseudo: "alice", wantErr: false},
		{name: "valid with dot and dash", pseudo: "alice.b-c_1", wantErr: false},
		{name: "empty", pseudo: "", wantErr: true},
		{name: "too short", pseudo: "ab", wantErr: true},
		{name: "too long", pseudo: strings.Repeat("a", 33), wantErr: true},
		{name: "space", pseudo: "alice b", wantErr: true},
		{name: "unicode", pseudo: "алиса", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePseudo(tt.pseudo)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizePseudo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "spaces become underscores", input: "Alice Martin", want: "Alice_Martin"},
		{name: "too few usable runes", input: "Zoé!", want: ""},
		{name: "keeps ascii part", input: "Zoé Dupont", want: "Zo_Dupont"},
		{name: "truncates", input: strings.Repeat("x", 40), want: strings.Repeat("x", 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizePseudo(tt.input))
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("alice@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("Alice <alice@example.com>"))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("longenough1"))
	assert.Error(t, ValidatePassword(""))
	assert.Error(t, ValidatePassword("short"))
	assert.Error(t, ValidatePassword(strings.Repeat("p", 73)))
}

func TestValidatePIN(t *testing.T) {
	tests := []struct {
		pin     string
		wantErr bool
	}{
		{pin: "1234", wantErr: false},
		{pin: "123456", wantErr: false},
		{pin: "123", wantErr: true},
		{pin: "1234567", wantErr: true},
		{pin: "12a4", wantErr: true},
		{pin: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.pin, func(t *testing.T) {
			err := ValidatePIN(tt.pin)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID(uuid.New().String()))
	assert.Error(t, ValidateID("64b7f0c2e4b0a1a2b3c4d5e6"))
	assert.Error(t, ValidateID(""))
}
