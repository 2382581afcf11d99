package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/crypto"
	"github.com/iudanet/supwarden/internal/models"
	"github.com/iudanet/supwarden/internal/server/identity"
	"github.com/iudanet/supwarden/internal/server/jwt"
	"github.com/iudanet/supwarden/internal/server/storage"
	"github.com/iudanet/supwarden/internal/validation"
	"github.com/iudanet/supwarden/pkg/api"
)

// maxPseudoAttempts ограничивает подбор свободного pseudo для Google аккаунта
const maxPseudoAttempts = 50

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", common.ErrUnauthenticated)

// AuthResult - выданный токен и актуальный профиль
type AuthResult struct {
	ExpiresAt time.Time
	User      *models.User
	Token     string
}

// UserService handles accounts and their factors
type UserService struct {
	users    storage.UserStorage
	vaults   *VaultService
	hasher   *crypto.Hasher
	tokens   *jwt.Service
	verifier identity.Verifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewUserService creates a new user service. verifier may be nil when
// Google sign-in is not configured.
func NewUserService(
	users storage.UserStorage,
	vaults *VaultService,
	hasher *crypto.Hasher,
	tokens *jwt.Service,
	verifier identity.Verifier,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		vaults:   vaults,
		hasher:   hasher,
		tokens:   tokens,
		verifier: verifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Register creates a password account and signs it in
func (s *UserService) Register(ctx context.Context, req api.RegisterRequest) (*AuthResult, error) {
	pseudo := strings.TrimSpace(req.Pseudo)
	email := normalizeEmail(req.Email)

	if err := validation.ValidatePseudo(pseudo); err != nil {
		return nil, validationErr(err)
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, validationErr(err)
	}
	if req.Password != req.ConfirmPassword {
		return nil, common.Validationf("passwords do not match")
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		return nil, validationErr(err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.New().String(),
		Pseudo:       pseudo,
		Email:        email,
		PasswordHash: hash,
		HasPassword:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, storageErr(err)
	}

	s.logger.InfoContext(ctx, "User registered",
		slog.String("user_id", user.ID),
		slog.String("pseudo", user.Pseudo))

	return s.issue(user)
}

// Login checks pseudo and password
func (s *UserService) Login(ctx context.Context, req api.LoginRequest) (*AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	user, err := s.users.GetUserByPseudo(ctx, strings.TrimSpace(req.Pseudo))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, storageErr(err)
	}

	if !user.HasPassword || !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.logger.WarnContext(ctx, "Failed login attempt", slog.String("user_id", user.ID))
		return nil, errInvalidCredentials
	}

	return s.issue(user)
}

// GoogleLogin signs in with a Google ID token, creating the account on first use
func (s *UserService) GoogleLogin(ctx context.Context, assertion string) (*AuthResult, error) {
	id, err := s.verify(ctx, assertion)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByGoogleID(ctx, id.Subject)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, storageErr(err)
	}

	email := normalizeEmail(id.Email)
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, common.Conflictf("email is already registered with another sign-in method")
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, storageErr(err)
	}

	user, err = s.createGoogleUser(ctx, id, email)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User registered with Google",
		slog.String("user_id", user.ID),
		slog.String("pseudo", user.Pseudo))

	return s.issue(user)
}

func (s *UserService) createGoogleUser(ctx context.Context, id *identity.Identity, email string) (*models.User, error) {
	base := validation.SanitizePseudo(id.Name)
	if base == "" {
		local, _, _ := strings.Cut(email, "@")
		base = validation.SanitizePseudo(local)
	}
	if base == "" {
		base = "user"
	}

	now := s.now()
	for attempt := 1; attempt <= maxPseudoAttempts; attempt++ {
		user := &models.User{
			ID:        uuid.New().String(),
			Pseudo:    pseudoCandidate(base, attempt),
			Email:     email,
			GoogleID:  id.Subject,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err := s.users.CreateUser(ctx, user)
		if err == nil {
			return user, nil
		}

		var dup *storage.DuplicateError
		if errors.As(err, &dup) && dup.Field == "pseudo" {
			continue
		}
		return nil, storageErr(err)
	}

	return nil, common.Conflictf("could not find a free pseudo for %q", base)
}

// pseudoCandidate: base, base_2, base_3... в пределах MaxPseudoLen
func pseudoCandidate(base string, attempt int) string {
	if attempt == 1 {
		return base
	}
	suffix := "_" + strconv.Itoa(attempt)
	if len(base)+len(suffix) > validation.MaxPseudoLen {
		base = base[:validation.MaxPseudoLen-len(suffix)]
	}
	return base + suffix
}

// LinkGoogle attaches a Google identity to the account
func (s *UserService) LinkGoogle(ctx context.Context, userID, assertion string) (*AuthResult, error) {
	id, err := s.verify(ctx, assertion)
	if err != nil {
		return nil, err
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	owner, err := s.users.GetUserByGoogleID(ctx, id.Subject)
	switch {
	case err == nil && owner.ID != userID:
		return nil, common.Conflictf("this Google account is linked to another user")
	case err == nil:
		return s.issue(user)
	case !errors.Is(err, storage.ErrUserNotFound):
		return nil, storageErr(err)
	}

	user.GoogleID = id.Subject
	return s.save(ctx, user)
}

// UnlinkGoogle removes the Google identity. Refused when it is the only factor.
func (s *UserService) UnlinkGoogle(ctx context.Context, userID string) (*AuthResult, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.GoogleID == "" {
		return nil, common.Validationf("no Google account linked")
	}
	if !user.HasPassword {
		return nil, common.Validationf("set a password before unlinking Google, otherwise the account is locked out")
	}

	user.GoogleID = ""
	return s.save(ctx, user)
}

// GetMe returns the caller's profile
func (s *UserService) GetMe(ctx context.Context, userID string) (*models.User, error) {
	return s.load(ctx, userID)
}

// PublicProfile looks a user up by pseudo
func (s *UserService) PublicProfile(ctx context.Context, pseudo string) (*models.PublicProfile, error) {
	user, err := s.users.GetUserByPseudo(ctx, strings.TrimSpace(pseudo))
	if err != nil {
		return nil, storageErr(err)
	}
	return &models.PublicProfile{ID: user.ID, Pseudo: user.Pseudo}, nil
}

// PseudoByID returns the public profile of userID
func (s *UserService) PseudoByID(ctx context.Context, userID string) (*models.PublicProfile, error) {
	if err := validation.ValidateID(userID); err != nil {
		return nil, validationErr(err)
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	return &models.PublicProfile{ID: user.ID, Pseudo: user.Pseudo}, nil
}

// UpdateProfile changes email and/or pseudo. Needs the current password if the account has one.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req api.UpdateProfileRequest) (*AuthResult, error) {
	if err := req.Validate(); err != nil {
		return nil, validationErr(err)
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPassword(user, req.CurrentPassword); err != nil {
		return nil, err
	}

	if req.Pseudo != nil {
		pseudo := strings.TrimSpace(*req.Pseudo)
		if err := validation.ValidatePseudo(pseudo); err != nil {
			return nil, validationErr(err)
		}
		user.Pseudo = pseudo
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if err := validation.ValidateEmail(email); err != nil {
			return nil, validationErr(err)
		}
		user.Email = email
	}

	return s.save(ctx, user)
}

// ChangePassword sets a new password. A Google-only account may set its
// first password without the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID string, req api.ChangePasswordRequest) (*AuthResult, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPassword(user, req.CurrentPassword); err != nil {
		return nil, err
	}

	if req.NewPassword != req.ConfirmPassword {
		return nil, common.Validationf("passwords do not match")
	}
	if err := validation.ValidatePassword(req.NewPassword); err != nil {
		return nil, validationErr(err)
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = hash
	user.HasPassword = true
	return s.save(ctx, user)
}

// SetPIN sets or replaces the PIN
func (s *UserService) SetPIN(ctx context.Context, userID string, req api.SetPINRequest) (*AuthResult, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPassword(user, req.Password); err != nil {
		return nil, err
	}
	if err := validation.ValidatePIN(req.PIN); err != nil {
		return nil, validationErr(err)
	}

	hash, err := s.hasher.Hash(req.PIN)
	if err != nil {
		return nil, fmt.Errorf("failed to hash PIN: %w", err)
	}

	user.PINHash = hash
	user.HasPin = true
	return s.save(ctx, user)
}

// VerifyPIN checks the PIN. There is no fallback to the password.
func (s *UserService) VerifyPIN(ctx context.Context, userID, pin string) (bool, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}
	if !user.HasPin || user.PINHash == "" {
		return false, common.Validationf("no PIN configured")
	}
	return s.hasher.Verify(pin, user.PINHash), nil
}

// VerifyPassword checks the password
func (s *UserService) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return false, err
	}
	if !user.HasPassword || user.PasswordHash == "" {
		return false, common.Validationf("no password configured")
	}
	return s.hasher.Verify(password, user.PasswordHash), nil
}

// DeleteAccount removes owned vaults (with their blobs), then the user.
// Memberships in other vaults go with the user row.
func (s *UserService) DeleteAccount(ctx context.Context, userID, password string) (*DeleteReport, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPassword(user, password); err != nil {
		return nil, err
	}

	report, err := s.vaults.DeleteOwnedVaults(ctx, userID)
	if err != nil {
		return report, err
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return report, storageErr(err)
	}

	s.logger.InfoContext(ctx, "Account deleted",
		slog.String("user_id", userID),
		slog.Int("elements", report.DeletedElements),
		slog.Int("failed_blobs", len(report.Failed)))

	return report, report.Err()
}

func (s *UserService) verify(ctx context.Context, assertion string) (*identity.Identity, error) {
	if s.verifier == nil {
		return nil, fmt.Errorf("%w: Google sign-in is not configured", common.ErrInvalidAssertion)
	}
	return s.verifier.Verify(ctx, assertion)
}

// checkPassword требует текущий пароль, только если он задан
func (s *UserService) checkPassword(user *models.User, password string) error {
	if !user.HasPassword {
		return nil
	}
	if password == "" {
		return common.Validationf("current password is required")
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return common.Validationf("incorrect password")
	}
	return nil
}

func (s *UserService) load(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", common.ErrUnauthenticated)
		}
		return nil, storageErr(err)
	}
	return user, nil
}

// save persists the user and issues a token with the new claims
func (s *UserService) save(ctx context.Context, user *models.User) (*AuthResult, error) {
	user.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, storageErr(err)
	}
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
