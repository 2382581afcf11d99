package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clientapi "github.com/iudanet/supwarden/internal/client/api"
	"github.com/iudanet/supwarden/internal/client/auth"
	"github.com/iudanet/supwarden/internal/client/storage"
	"github.com/iudanet/supwarden/pkg/api"
)

// mockIO пишет вывод в буфер и отдает заранее заданный ввод
type mockIO struct {
	out       bytes.Buffer
	inputs    []string
	passwords []string
	prompts   []string
}

func (m *mockIO) Println(a ...any)               { fmt.Fprintln(&m.out, a...) }
func (m *mockIO) Printf(format string, a ...any) { fmt.Fprintf(&m.out, format, a...) }
func (m *mockIO) Write(p []byte) (int, error)    { return m.out.Write(p) }

func (m *mockIO) ReadInput(prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if len(m.inputs) == 0 {
		return "", errors.New("no input")
	}
	v := m.inputs[0]
	m.inputs = m.inputs[1:]
	return v, nil
}

func (m *mockIO) ReadPassword(prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if len(m.passwords) == 0 {
		return "", errors.New("no password")
	}
	v := m.passwords[0]
	m.passwords = m.passwords[1:]
	return v, nil
}

type mockSession struct {
	auth       *storage.AuthData
	sessionErr error
	loginErr   error
	logoutErr  error
	lastReg    api.RegisterRequest
	lastPseudo string
	lastPass   string
}

func (m *mockSession) Register(ctx context.Context, req api.RegisterRequest) (*storage.AuthData, error) {
	m.lastReg = req
	return &storage.AuthData{UserID: "user-123", Pseudo: req.Pseudo, Token: "jwt"}, nil
}

func (m *mockSession) Login(ctx context.Context, pseudo, password string) (*storage.AuthData, error) {
	m.lastPseudo, m.lastPass = pseudo, password
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &storage.AuthData{Pseudo: pseudo, Token: "jwt", ExpiresAt: time.Now().Add(time.Hour).Unix()}, nil
}

func (m *mockSession) Logout(ctx context.Context) error { return m.logoutErr }

func (m *mockSession) Session(ctx context.Context) (*storage.AuthData, error) {
	return m.auth, m.sessionErr
}

type mockClient struct {
	me          *api.UserResponse
	meErr       error
	vaults      []api.VaultResponse
	shared      []api.SharedVaultResponse
	elements    []api.ElementResponse
	challenge   *api.ChallengeResponse
	revealErr   error
	export      []byte
	importResp  *api.ImportResponse
	accepted    string
	lastProof   string
	lastFormat  string
	lastImport  []byte
	lastCType   string
	revealCalls int
}

func (m *mockClient) Me(ctx context.Context) (*api.UserResponse, error) { return m.me, m.meErr }

func (m *mockClient) ListVaults(ctx context.Context) ([]api.VaultResponse, error) {
	return m.vaults, nil
}

func (m *mockClient) ListSharedVaults(ctx context.Context) ([]api.SharedVaultResponse, error) {
	return m.shared, nil
}

func (m *mockClient) AcceptInvitation(ctx context.Context, vaultID string) error {
	m.accepted = vaultID
	return nil
}

func (m *mockClient) ListElements(ctx context.Context, vaultID string) ([]api.ElementResponse, error) {
	return m.elements, nil
}

func (m *mockClient) Challenge(ctx context.Context, elementID string) (*api.ChallengeResponse, error) {
	return m.challenge, nil
}

func (m *mockClient) Reveal(ctx context.Context, elementID, proof string) (*api.RevealResponse, error) {
	m.revealCalls++
	m.lastProof = proof
	if m.revealErr != nil {
		return nil, m.revealErr
	}
	return &api.RevealResponse{State: "granted", Password: "s3cret"}, nil
}

func (m *mockClient) Export(ctx context.Context, format string) ([]byte, error) {
	m.lastFormat = format
	return m.export, nil
}

func (m *mockClient) Import(ctx context.Context, data []byte, contentType string) (*api.ImportResponse, error) {
	m.lastImport, m.lastCType = data, contentType
	return m.importResp, nil
}

func activeSession() *mockSession {
	return &mockSession{auth: &storage.AuthData{
		Pseudo:    "alice",
		Email:     "alice@example.com",
		Token:     "jwt",
		ServerURL: "http://localhost:8080",
		ExpiresAt: time.Now().Add(time.Hour).Unix(),
	}}
}

func TestCli_Run_Dispatch(t *testing.T) {
	tests := []struct {
		name    string
		wantErr string
		args    []string
	}{
		{name: "no command", args: nil, wantErr: "missing command"},
		{name: "unknown command", args: []string{"sync"}, wantErr: "unknown command: sync"},
		{name: "help", args: []string{"help"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			io := &mockIO{}
			c := New(io, activeSession(), &mockClient{})

			err := c.Run(context.Background(), tt.args)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, io.out.String(), "Usage:")
		})
	}
}

func TestCli_Register(t *testing.T) {
	io := &mockIO{
		inputs:    []string{"alice", "alice@example.com"},
		passwords: []string{"longpassword", "longpassword"},
	}
	session := &mockSession{}
	c := New(io, session, &mockClient{})

	require.NoError(t, c.Run(context.Background(), []string{"register"}))
	assert.Equal(t, api.RegisterRequest{
		Pseudo:          "alice",
		Email:           "alice@example.com",
		Password:        "longpassword",
		ConfirmPassword: "longpassword",
	}, session.lastReg)
	assert.Contains(t, io.out.String(), "User ID: user-123")
}

func TestCli_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		io := &mockIO{inputs: []string{"alice"}, passwords: []string{"longpassword"}}
		session := &mockSession{}
		c := New(io, session, &mockClient{})

		require.NoError(t, c.Run(context.Background(), []string{"login"}))
		assert.Equal(t, "alice", session.lastPseudo)
		assert.Equal(t, "longpassword", session.lastPass)
		assert.Contains(t, io.out.String(), "Login successful")
		assert.Equal(t, []string{"Pseudo: ", "Password: "}, io.prompts)
	})

	t.Run("rejected", func(t *testing.T) {
		io := &mockIO{inputs: []string{"alice"}, passwords: []string{"wrong"}}
		session := &mockSession{loginErr: errors.New("login failed: server error (401): invalid credentials")}
		c := New(io, session, &mockClient{})

		err := c.Run(context.Background(), []string{"login"})
		assert.ErrorContains(t, err, "invalid credentials")
		assert.NotContains(t, io.out.String(), "Login successful")
	})
}

func TestCli_Logout(t *testing.T) {
	tests := []struct {
		err     error
		name    string
		wantOut string
		wantErr bool
	}{
		{name: "logged in", wantOut: "Logged out"},
		{name: "not logged in", err: auth.ErrNotLoggedIn, wantOut: "Not logged in."},
		{name: "storage failure", err: errors.New("locked"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			io := &mockIO{}
			c := New(io, &mockSession{logoutErr: tt.err}, &mockClient{})

			err := c.Run(context.Background(), []string{"logout"})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, io.out.String(), tt.wantOut)
		})
	}
}

func TestCli_Status(t *testing.T) {
	tests := []struct {
		session *mockSession
		client  *mockClient
		name    string
		want    []string
	}{
		{
			name:    "authenticated",
			session: activeSession(),
			client:  &mockClient{me: &api.UserResponse{Pseudo: "alice", HasPin: true}},
			want:    []string{"Status: Authenticated", "Pseudo: alice", "PIN configured: true", "Google linked: false"},
		},
		{
			name:    "account gone on server",
			session: activeSession(),
			client:  &mockClient{meErr: &clientapi.APIError{StatusCode: http.StatusUnauthorized, Message: "account no longer exists"}},
			want:    []string{"Status: Authenticated", "server rejected the session"},
		},
		{
			name:    "not logged in",
			session: &mockSession{sessionErr: auth.ErrNotLoggedIn},
			client:  &mockClient{},
			want:    []string{"Status: Not authenticated"},
		},
		{
			name:    "expired",
			session: &mockSession{auth: &storage.AuthData{Pseudo: "alice"}, sessionErr: auth.ErrSessionExpired},
			client:  &mockClient{},
			want:    []string{"Status: Session expired", "Pseudo: alice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			io := &mockIO{}
			c := New(io, tt.session, tt.client)

			require.NoError(t, c.Run(context.Background(), []string{"status"}))
			for _, w := range tt.want {
				assert.Contains(t, io.out.String(), w)
			}
		})
	}
}

func TestCli_RequiresSession(t *testing.T) {
	commands := [][]string{
		{"vaults"},
		{"accept", "v1"},
		{"elements", "v1"},
		{"reveal", "e1"},
		{"export", "out.json"},
		{"import", "in.json"},
	}

	for _, args := range commands {
		t.Run(args[0], func(t *testing.T) {
			c := New(&mockIO{}, &mockSession{sessionErr: auth.ErrNotLoggedIn}, &mockClient{})

			err := c.Run(context.Background(), args)
			assert.ErrorIs(t, err, auth.ErrNotLoggedIn)
			assert.Contains(t, err.Error(), "supwarden login")
		})
	}
}

func TestCli_MissingArguments(t *testing.T) {
	for _, cmd := range []string{"accept", "elements", "reveal", "export", "import"} {
		t.Run(cmd, func(t *testing.T) {
			c := New(&mockIO{}, activeSession(), &mockClient{})
			err := c.Run(context.Background(), []string{cmd})
			assert.ErrorContains(t, err, "Usage: supwarden "+cmd)
		})
	}
}

func TestCli_Vaults(t *testing.T) {
	io := &mockIO{}
	client := &mockClient{
		vaults: []api.VaultResponse{{
			ID:       "v1",
			Name:     "Perso",
			IsShared: true,
			Members: []api.MemberResponse{
				{Pseudo: "bob", Permission: api.PermissionRead, Invitation: api.InvitationPending},
				{Pseudo: "carol", Permission: api.PermissionEdit, Invitation: api.InvitationAccepted},
			},
		}},
		shared: []api.SharedVaultResponse{{
			Vault:      api.VaultResponse{ID: "v2", Name: "Team"},
			Permission: api.PermissionEdit,
			Invitation: api.InvitationPending,
		}},
	}
	c := New(io, activeSession(), client)

	require.NoError(t, c.Run(context.Background(), []string{"vaults"}))
	out := io.out.String()
	assert.Contains(t, out, "1. Perso")
	assert.Contains(t, out, "bob (read) pending, carol (edit)")
	assert.Contains(t, out, "1. Team [edit, pending]")
	assert.Contains(t, out, "supwarden accept v2")

	require.NoError(t, c.Run(context.Background(), []string{"accept", "v2"}))
	assert.Equal(t, "v2", client.accepted)
}

func TestCli_Elements_HidesSecrets(t *testing.T) {
	io := &mockIO{}
	client := &mockClient{elements: []api.ElementResponse{
		{
			ID:          "e1",
			Name:        "bank",
			Username:    "alice",
			IsSensitive: true,
			CustomFields: []api.CustomFieldDTO{
				{Name: "otp seed", Value: "JBSWY3DP", Type: api.FieldTypePassword},
				{Name: "branch", Value: "north", Type: api.FieldTypeText},
			},
		},
		{ID: "e2", Name: "wifi", Password: "guest-pass", URIs: []string{"http://router"}},
	}}
	c := New(io, activeSession(), client)

	require.NoError(t, c.Run(context.Background(), []string{"elements", "v1"}))
	out := io.out.String()
	assert.Contains(t, out, "Found 2 element(s)")
	assert.Contains(t, out, "supwarden reveal e1")
	assert.NotContains(t, out, "JBSWY3DP")
	assert.Contains(t, out, "branch: north")
	assert.Contains(t, out, "Password: guest-pass")
	assert.Contains(t, out, "URIs:     http://router")
}

func TestCli_Reveal(t *testing.T) {
	tests := []struct {
		challenge  *api.ChallengeResponse
		revealErr  error
		name       string
		passwords  []string
		wantPrompt []string
		wantProof  string
		wantErr    string
	}{
		{
			name:       "pin",
			challenge:  &api.ChallengeResponse{State: "challenge_issued", Factor: "pin"},
			passwords:  []string{"1234"},
			wantPrompt: []string{"PIN: "},
			wantProof:  "1234",
		},
		{
			name:       "account password",
			challenge:  &api.ChallengeResponse{State: "challenge_issued", Factor: "password"},
			passwords:  []string{"longpassword"},
			wantPrompt: []string{"Account password: "},
			wantProof:  "longpassword",
		},
		{
			name:      "not sensitive",
			challenge: &api.ChallengeResponse{State: "granted", Factor: "none"},
		},
		{
			name:       "wrong proof",
			challenge:  &api.ChallengeResponse{State: "challenge_issued", Factor: "pin"},
			passwords:  []string{"0000"},
			wantPrompt: []string{"PIN: "},
			wantProof:  "0000",
			revealErr:  &clientapi.APIError{StatusCode: http.StatusForbidden, Message: "verification failed"},
			wantErr:    "verification failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			io := &mockIO{passwords: tt.passwords}
			client := &mockClient{challenge: tt.challenge, revealErr: tt.revealErr}
			c := New(io, activeSession(), client)

			err := c.Run(context.Background(), []string{"reveal", "e1"})
			assert.Equal(t, tt.wantPrompt, io.prompts)
			assert.Equal(t, 1, client.revealCalls)
			assert.Equal(t, tt.wantProof, client.lastProof)

			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				assert.NotContains(t, io.out.String(), "Password:")
				return
			}
			require.NoError(t, err)
			assert.Contains(t, io.out.String(), "Password: s3cret")
		})
	}
}

func TestCli_Export(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		wantFormat string
		extra      []string
	}{
		{name: "json by extension", file: "backup.json", wantFormat: "json"},
		{name: "cbor by extension", file: "backup.CBOR", wantFormat: "cbor"},
		{name: "positional format", file: "backup.bin", extra: []string{"cbor"}, wantFormat: "cbor"},
		{name: "format flag", file: "backup.bin", extra: []string{"--format", "cbor"}, wantFormat: "cbor"},
		{name: "format flag with value", file: "backup.cbor", extra: []string{"--format=JSON"}, wantFormat: "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			io := &mockIO{}
			client := &mockClient{export: []byte(`{"version":1}`)}
			c := New(io, activeSession(), client)

			args := append([]string{"export", path}, tt.extra...)
			require.NoError(t, c.Run(context.Background(), args))
			assert.Equal(t, tt.wantFormat, client.lastFormat)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, client.export, data)

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
		})
	}
}

func TestCli_Export_BadFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.json")
	tests := [][]string{
		{"export", path, "xml"},
		{"export", path, "--format"},
	}

	for _, args := range tests {
		client := &mockClient{}
		c := New(&mockIO{}, activeSession(), client)

		err := c.Run(context.Background(), args)
		assert.Error(t, err)
		assert.Empty(t, client.lastFormat)
		_, statErr := os.Stat(path)
		assert.True(t, os.IsNotExist(statErr))
	}
}

func TestCli_Import(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "bundle.json")
	cborPath := filepath.Join(dir, "bundle.cbor")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"version":1}`), 0600))
	require.NoError(t, os.WriteFile(cborPath, []byte{0xa0}, 0600))

	report := &api.ImportResponse{
		Vaults:   []api.ImportedVaultDTO{{SourceID: "old", ID: "new", Name: "Perso", Elements: 3}},
		Elements: 3,
		DroppedMembers: []api.DroppedMemberDTO{
			{VaultName: "Perso", UserID: "ghost", Reason: "unknown user"},
		},
	}

	t.Run("complete", func(t *testing.T) {
		io := &mockIO{}
		client := &mockClient{importResp: report}
		c := New(io, activeSession(), client)

		require.NoError(t, c.Run(context.Background(), []string{"import", jsonPath}))
		assert.Equal(t, "application/json", client.lastCType)
		assert.Equal(t, []byte(`{"version":1}`), client.lastImport)
		out := io.out.String()
		assert.Contains(t, out, "Imported 1 vault(s), 3 element(s)")
		assert.Contains(t, out, "Perso -> new (3 elements)")
		assert.Contains(t, out, "dropped member ghost of Perso: unknown user")
	})

	t.Run("partial", func(t *testing.T) {
		partial := *report
		partial.Error = "partial failure: database is locked"
		io := &mockIO{}
		client := &mockClient{importResp: &partial}
		c := New(io, activeSession(), client)

		err := c.Run(context.Background(), []string{"import", cborPath})
		assert.ErrorContains(t, err, "import incomplete")
		assert.Equal(t, "application/cbor", client.lastCType)
		assert.Contains(t, io.out.String(), "Imported 1 vault(s)")
	})

	t.Run("missing file", func(t *testing.T) {
		c := New(&mockIO{}, activeSession(), &mockClient{})
		err := c.Run(context.Background(), []string{"import", filepath.Join(dir, "nope.json")})
		assert.ErrorContains(t, err, "failed to read import file")
	})
}
