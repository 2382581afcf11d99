package handlers

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/supwarden/internal/crypto"
	"github.com/iudanet/supwarden/internal/server/access"
	"github.com/iudanet/supwarden/internal/server/events"
	"github.com/iudanet/supwarden/internal/server/identity"
	"github.com/iudanet/supwarden/internal/server/jwt"
	"github.com/iudanet/supwarden/internal/server/sensitive"
	"github.com/iudanet/supwarden/internal/server/services"
	"github.com/iudanet/supwarden/internal/server/storage/blob"
	"github.com/iudanet/supwarden/internal/server/storage/sqldb"
	"github.com/iudanet/supwarden/internal/server/transfer"
	"github.com/iudanet/supwarden/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

// stubVerifier - identity.Verifier с заранее заданными assertion
type stubVerifier struct {
	identities map[string]*identity.Identity
}

func (s *stubVerifier) Verify(_ context.Context, assertion string) (*identity.Identity, error) {
	id, ok := s.identities[assertion]
	if !ok {
		return nil, errRejected
	}
	return id, nil
}

type testEnv struct {
	store    *sqldb.Storage
	tokens   *jwt.Service
	verifier *stubVerifier
	auth     *AuthHandler
	users    *UserHandler
	vaults   *VaultHandler
	elements *ElementHandler
	transfer *TransferHandler
}

func setupTestEnv(t *testing.T) *testEnv {
	ctx := context.Background()
	logger := setupTestLogger()

	store, err := sqldb.New(ctx, sqldb.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	blobs, err := blob.NewBoltStore(filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = blobs.Close() })

	key := make([]byte, crypto.KeySize)
	_, err = rand.Read(key)
	require.NoError(t, err)
	cipher, err := crypto.NewFieldCipher(0, map[int][]byte{0: key})
	require.NoError(t, err)

	hasher, err := crypto.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := jwt.NewService([]byte("test-secret"), 0)
	require.NoError(t, err)

	policy := access.NewPolicy()
	publisher := events.NopPublisher{}
	verifier := &stubVerifier{identities: map[string]*identity.Identity{}}

	vaultSvc := services.NewVaultService(store, store, store, blobs, policy, publisher, logger)
	elementSvc := services.NewElementService(services.ElementServiceConfig{
		Elements:          store,
		Vaults:            store,
		Users:             store,
		Blobs:             blobs,
		Cipher:            cipher,
		Policy:            policy,
		Gate:              sensitive.NewGate(hasher),
		Publisher:         publisher,
		Logger:            logger,
		MaxAttachmentSize: 1024,
	})
	userSvc := services.NewUserService(store, vaultSvc, hasher, tokens, verifier, logger)
	transferSvc := transfer.NewService(store, store, store, blobs, cipher, logger)

	return &testEnv{
		store:    store,
		tokens:   tokens,
		verifier: verifier,
		auth:     NewAuthHandler(logger, userSvc),
		users:    NewUserHandler(logger, userSvc),
		vaults:   NewVaultHandler(logger, vaultSvc),
		elements: NewElementHandler(logger, elementSvc, 1024),
		transfer: NewTransferHandler(logger, transferSvc),
	}
}

// request описывает один вызов handler'а
type request struct {
	body    any
	path    map[string]string
	method  string
	target  string
	userID  string
	headers map[string]string
}

func (e *testEnv) do(t *testing.T, h http.HandlerFunc, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	switch b := req.body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	case string:
		body = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	method := req.method
	if method == "" {
		method = http.MethodGet
	}
	target := req.target
	if target == "" {
		target = "/"
	}

	r := httptest.NewRequest(method, target, body)
	r.Header.Set("Content-Type", "application/json")
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	for k, v := range req.path {
		r.SetPathValue(k, v)
	}
	if req.userID != "" {
		r = r.WithContext(WithClaims(r.Context(), &jwt.Claims{UserID: req.userID}))
	}

	w := httptest.NewRecorder()
	h(w, r)
	return w
}

// register создает пользователя через handler и возвращает ответ
func (e *testEnv) register(t *testing.T, pseudo string) api.AuthResponse {
	t.Helper()
	w := e.do(t, e.auth.Register, request{
		method: http.MethodPost,
		body: api.RegisterRequest{
			Pseudo:          pseudo,
			Email:           pseudo + "@example.com",
			Password:        "password-" + pseudo,
			ConfirmPassword: "password-" + pseudo,
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[api.AuthResponse](t, w)
}

func (e *testEnv) createVault(t *testing.T, ownerID string, members ...api.MemberRequest) api.VaultResponse {
	t.Helper()
	w := e.do(t, e.vaults.Create, request{
		method: http.MethodPost,
		userID: ownerID,
		body:   api.CreateVaultRequest{Name: "Vault", Members: members},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[api.VaultResponse](t, w)
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func strPtr(s string) *string { return &s }
