package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/server/identity"
	"github.com/iudanet/supwarden/internal/server/storage"
	"github.com/iudanet/supwarden/pkg/api"
)

func TestUserService_Register(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	env.register(t, "existing")

	tests := []struct {
		wantError error
		req       api.RegisterRequest
		name      string
		wantMsg   string
	}{
		{
			name: "valid",
			req:  api.RegisterRequest{Pseudo: "alice", Email: "Alice@Example.com", Password: "longenough", ConfirmPassword: "longenough"},
		},
		{
			name:      "passwords differ",
			req:       api.RegisterRequest{Pseudo: "bob", Email: "bob@example.com", Password: "longenough", ConfirmPassword: "different1"},
			wantError: common.ErrValidation,
			wantMsg:   "do not match",
		},
		{
			name:      "short password",
			req:       api.RegisterRequest{Pseudo: "bob", Email: "bob@example.com", Password: "short", ConfirmPassword: "short"},
			wantError: common.ErrValidation,
		},
		{
			name:      "bad email",
			req:       api.RegisterRequest{Pseudo: "bob", Email: "not-an-email", Password: "longenough", ConfirmPassword: "longenough"},
			wantError: common.ErrValidation,
		},
		{
			name:      "bad pseudo",
			req:       api.RegisterRequest{Pseudo: "b o", Email: "bob@example.com", Password: "longenough", ConfirmPassword: "longenough"},
			wantError: common.ErrValidation,
		},
		{
			name:      "duplicate pseudo",
			req:       api.RegisterRequest{Pseudo: "existing", Email: "new@example.com", Password: "longenough", ConfirmPassword: "longenough"},
			wantError: common.ErrConflict,
			wantMsg:   "pseudo already exists",
		},
		{
			name:      "duplicate email",
			req:       api.RegisterRequest{Pseudo: "newcomer", Email: "existing@example.com", Password: "longenough", ConfirmPassword: "longenough"},
			wantError: common.ErrConflict,
			wantMsg:   "email already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := env.users.Register(ctx, tt.req)
			if tt.wantError != nil {
				require.ErrorIs(t, err, tt.wantError)
				if tt.wantMsg != "" {
					assert.Contains(t, err.Error(), tt.wantMsg)
				}
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.Equal(t, "alice@example.com", res.User.Email)
			assert.True(t, res.User.HasPassword)
			assert.NotEqual(t, tt.req.Password, res.User.PasswordHash)

			claims, err := env.tokens.Verify(res.Token)
			require.NoError(t, err)
			assert.Equal(t, res.User.ID, claims.UserID)
		})
	}
}

func TestUserService_Login(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	reg := env.register(t, "alice")

	res, err := env.users.Login(ctx, api.LoginRequest{Pseudo: "alice", Password: "password-alice"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, res.User.ID)

	_, err = env.users.Login(ctx, api.LoginRequest{Pseudo: "alice", Password: "wrong-password"})
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	assert.Contains(t, err.Error(), "invalid credentials")

	_, err = env.users.Login(ctx, api.LoginRequest{Pseudo: "nobody", Password: "whatever1"})
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	_, err = env.users.Login(ctx, api.LoginRequest{Pseudo: "alice"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUserService_GoogleLogin(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	env.register(t, "Alice_Liddell")
	env.register(t, "taken")

	env.verifier.identities["new"] = &identity.Identity{Subject: "sub-new", Email: "wonder@example.com", Name: "Alice Liddell"}
	env.verifier.identities["clash"] = &identity.Identity{Subject: "sub-clash", Email: "taken@example.com", Name: "Someone"}

	first, err := env.users.GoogleLogin(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "Alice_Liddell_2", first.User.Pseudo)
	assert.Equal(t, "sub-new", first.User.GoogleID)
	assert.False(t, first.User.HasPassword)

	again, err := env.users.GoogleLogin(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, again.User.ID)

	_, err = env.users.GoogleLogin(ctx, "clash")
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = env.users.GoogleLogin(ctx, "forged")
	assert.ErrorIs(t, err, common.ErrInvalidAssertion)
}

func TestUserService_GoogleLinkUnlink(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	env.verifier.identities["alice-token"] = &identity.Identity{Subject: "sub-alice", Email: "alice@gmail.com"}

	res, err := env.users.LinkGoogle(ctx, alice.User.ID, "alice-token")
	require.NoError(t, err)
	assert.Equal(t, "sub-alice", res.User.GoogleID)

	_, err = env.users.LinkGoogle(ctx, bob.User.ID, "alice-token")
	assert.ErrorIs(t, err, common.ErrConflict)

	res, err = env.users.UnlinkGoogle(ctx, alice.User.ID)
	require.NoError(t, err)
	assert.Empty(t, res.User.GoogleID)

	_, err = env.users.UnlinkGoogle(ctx, alice.User.ID)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUserService_UnlinkGoogle_OnlyFactor(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	env.verifier.identities["g"] = &identity.Identity{Subject: "sub-g", Email: "g@example.com", Name: "Gee User"}

	res, err := env.users.GoogleLogin(ctx, "g")
	require.NoError(t, err)

	_, err = env.users.UnlinkGoogle(ctx, res.User.ID)
	assert.ErrorIs(t, err, common.ErrValidation)

	// первый пароль для Google-only аккаунта без текущего
	_, err = env.users.ChangePassword(ctx, res.User.ID, api.ChangePasswordRequest{NewPassword: "brand-new-pass", ConfirmPassword: "brand-new-pass"})
	require.NoError(t, err)

	_, err = env.users.UnlinkGoogle(ctx, res.User.ID)
	assert.NoError(t, err)
}

func TestUserService_Profile(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	alice := env.register(t, "alice")
	env.register(t, "bob")

	profile, err := env.users.PublicProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.User.ID, profile.ID)

	byID, err := env.users.PseudoByID(ctx, alice.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Pseudo)

	_, err = env.users.PseudoByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = env.users.PublicProfile(ctx, "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = env.users.UpdateProfile(ctx, alice.User.ID, api.UpdateProfileRequest{Pseudo: strPtr("alice2")})
	assert.ErrorIs(t, err, common.ErrValidation, "current password required")

	_, err = env.users.UpdateProfile(ctx, alice.User.ID, api.UpdateProfileRequest{Pseudo: strPtr("bob"), CurrentPassword: "password-alice"})
	assert.ErrorIs(t, err, common.ErrConflict)

	res, err := env.users.UpdateProfile(ctx, alice.User.ID, api.UpdateProfileRequest{
		Pseudo:          strPtr("alice2"),
		Email:           strPtr("new@example.com"),
		CurrentPassword: "password-alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2", res.User.Pseudo)

	claims, err := env.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice2", claims.Pseudo)
	assert.Equal(t, "new@example.com", claims.Email)
}

func TestUserService_PasswordAndPIN(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	alice := env.register(t, "alice")
	id := alice.User.ID

	_, err := env.users.VerifyPIN(ctx, id, "1234")
	assert.ErrorIs(t, err, common.ErrValidation, "no PIN configured")

	_, err = env.users.SetPIN(ctx, id, api.SetPINRequest{PIN: "12a4", Password: "password-alice"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = env.users.SetPIN(ctx, id, api.SetPINRequest{PIN: "1234", Password: "wrong"})
	assert.ErrorIs(t, err, common.ErrValidation)

	res, err := env.users.SetPIN(ctx, id, api.SetPINRequest{PIN: "1234", Password: "password-alice"})
	require.NoError(t, err)
	assert.True(t, res.User.HasPin)

	ok, err := env.users.VerifyPIN(ctx, id, "1234")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = env.users.VerifyPIN(ctx, id, "4321")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.users.ChangePassword(ctx, id, api.ChangePasswordRequest{CurrentPassword: "password-alice", NewPassword: "newpassword", ConfirmPassword: "mismatch!"})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = env.users.ChangePassword(ctx, id, api.ChangePasswordRequest{CurrentPassword: "password-alice", NewPassword: "newpassword", ConfirmPassword: "newpassword"})
	require.NoError(t, err)

	ok, err = env.users.VerifyPassword(ctx, id, "newpassword")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = env.users.VerifyPassword(ctx, id, "password-alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserService_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	ownVault := env.createVault(t, alice.User.ID)
	el, err := env.elements.Create(ctx, alice.User.ID, ownVault, api.ElementRequest{Name: "x"})
	require.NoError(t, err)
	att, err := env.elements.AddAttachment(ctx, alice.User.ID, el.ID, "a.txt", "text/plain", strings.NewReader("data"))
	require.NoError(t, err)

	bobVault := env.createVault(t, bob.User.ID, api.MemberRequest{Pseudo: "alice", Permission: api.PermissionRead})

	_, err = env.users.DeleteAccount(ctx, alice.User.ID, "wrong")
	assert.ErrorIs(t, err, common.ErrValidation)

	report, err := env.users.DeleteAccount(ctx, alice.User.ID, "password-alice")
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeletedElements)
	assert.Equal(t, 1, report.DeletedBlobs)

	_, err = env.users.GetMe(ctx, alice.User.ID)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	_, err = env.blobs.Get(ctx, att.BlobRef)
	assert.Error(t, err)

	v, err := env.vaults.Get(ctx, bob.User.ID, bobVault)
	require.NoError(t, err)
	assert.Empty(t, v.Members)
	assert.False(t, v.IsShared())
}

func TestUserService_DeleteAccount_BlobFailure(t *testing.T) {
	ctx := context.Background()
	env := setupTestEnv(t)
	alice := env.register(t, "alice")

	vaultID := env.createVault(t, alice.User.ID)
	el, err := env.elements.Create(ctx, alice.User.ID, vaultID, api.ElementRequest{Name: "x"})
	require.NoError(t, err)
	att, err := env.elements.AddAttachment(ctx, alice.User.ID, el.ID, "a.txt", "text/plain", strings.NewReader("data"))
	require.NoError(t, err)

	env.blobs.failOn(att.BlobRef, errors.New("storage offline"))

	report, err := env.users.DeleteAccount(ctx, alice.User.ID, "password-alice")
	assert.ErrorIs(t, err, common.ErrPartialFailure)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.DeletedElements)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, att.ID, report.Failed[0].AttachmentID)

	// аккаунт и хранилища удалены несмотря на сбой blob
	_, err = env.users.GetMe(ctx, alice.User.ID)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)
	_, err = env.store.GetVault(ctx, vaultID)
	assert.ErrorIs(t, err, storage.ErrVaultNotFound)
}

func TestPseudoCandidate(t *testing.T) {
	assert.Equal(t, "alice", pseudoCandidate("alice", 1))
	assert.Equal(t, "alice_7", pseudoCandidate("alice", 7))

	long := "abcdefghijklmnopqrstuvwxyz012345"
	got := pseudoCandidate(long, 12)
	assert.Len(t, got, 32)
	assert.Equal(t, "abcdefghijklmnopqrstuvwxyz012_12", got)
}

func TestUserService_TokenExpiry(t *testing.T) {
	env := setupTestEnv(t)
	res := env.register(t, "alice")
	assert.WithinDuration(t, time.Now().Add(5*time.Hour), res.ExpiresAt, time.Minute)
}
