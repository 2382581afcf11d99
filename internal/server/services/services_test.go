package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/crypto"
	"github.com/iudanet/supwarden/internal/server/access"
	"github.com/iudanet/supwarden/internal/server/events"
	"github.com/iudanet/supwarden/internal/server/identity"
	"github.com/iudanet/supwarden/internal/server/jwt"
	"github.com/iudanet/supwarden/internal/server/sensitive"
	"github.com/iudanet/supwarden/internal/server/storage"
	"github.com/iudanet/supwarden/internal/server/storage/blob"
	"github.com/iudanet/supwarden/internal/server/storage/sqldb"
	"github.com/iudanet/supwarden/pkg/api"
)

// failingBlobs wraps a BlobStorage and fails Delete for selected refs
type failingBlobs struct {
	storage.BlobStorage
	failDelete map[string]error
	mu         sync.Mutex
}

func (f *failingBlobs) Delete(ctx context.Context, ref string) error {
	f.mu.Lock()
	err := f.failDelete[ref]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.BlobStorage.Delete(ctx, ref)
}

func (f *failingBlobs) failOn(ref string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDelete[ref] = err
}

// recordingPublisher collects published events
type recordingPublisher struct {
	events []events.Event
	mu     sync.Mutex
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Subject)
	}
	return out
}

// mockVerifier is a hand-written identity.Verifier
type mockVerifier struct {
	identities map[string]*identity.Identity
	err        error
}

func (m *mockVerifier) Verify(_ context.Context, assertion string) (*identity.Identity, error) {
	if m.err != nil {
		return nil, m.err
	}
	id, ok := m.identities[assertion]
	if !ok {
		return nil, identityRejected
	}
	return id, nil
}

var identityRejected = fmt.Errorf("%w: token rejected", common.ErrInvalidAssertion)

type testEnv struct {
	store     *sqldb.Storage
	blobs     *failingBlobs
	cipher    *crypto.FieldCipher
	tokens    *jwt.Service
	publisher *recordingPublisher
	verifier  *mockVerifier
	users     *UserService
	vaults    *VaultService
	elements  *ElementService
}

func setupTestEnv(t *testing.T) *testEnv {
	ctx := context.Background()

	store, err := sqldb.New(ctx, sqldb.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bolt, err := blob.NewBoltStore(filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })
	blobs := &failingBlobs{BlobStorage: bolt, failDelete: map[string]error{}}

	key := make([]byte, crypto.KeySize)
	_, err = rand.Read(key)
	require.NoError(t, err)
	cipher, err := crypto.NewFieldCipher(0, map[int][]byte{0: key})
	require.NoError(t, err)

	hasher, err := crypto.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	tokens, err := jwt.NewService([]byte("test-secret"), 0)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := &recordingPublisher{}
	verifier := &mockVerifier{identities: map[string]*identity.Identity{}}
	policy := access.NewPolicy()

	vaults := NewVaultService(store, store, store, blobs, policy, publisher, logger)
	elements := NewElementService(ElementServiceConfig{
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
	users := NewUserService(store, vaults, hasher, tokens, verifier, logger)

	return &testEnv{
		store:     store,
		blobs:     blobs,
		cipher:    cipher,
		tokens:    tokens,
		publisher: publisher,
		verifier:  verifier,
		users:     users,
		vaults:    vaults,
		elements:  elements,
	}
}

func (e *testEnv) register(t *testing.T, pseudo string) *AuthResult {
	res, err := e.users.Register(context.Background(), api.RegisterRequest{
		Pseudo:          pseudo,
		Email:           pseudo + "@example.com",
		Password:        "password-" + pseudo,
		ConfirmPassword: "password-" + pseudo,
	})
	require.NoError(t, err)
	return res
}

func (e *testEnv) createVault(t *testing.T, ownerID string, members ...api.MemberRequest) string {
	v, err := e.vaults.Create(context.Background(), ownerID, api.CreateVaultRequest{Name: "Vault", Members: members})
	require.NoError(t, err)
	return v.ID
}

func strPtr(s string) *string { return &s }
