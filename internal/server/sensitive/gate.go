// Package sensitive implements the step-up check guarding sensitive elements.
package sensitive

import (
	"errors"

	"github.com/iudanet/supwarden/internal/models"
)

var (
	// ErrGateDenied - неверный PIN или пароль. Не уточняет, какой фактор проверялся.
	ErrGateDenied = errors.New("incorrect PIN/password")

	// ErrNoSecondFactor - у пользователя нет ни PIN, ни пароля
	ErrNoSecondFactor = errors.New("no PIN or password configured, set a PIN to view sensitive elements")
)

// State - состояние одной попытки доступа
type State string

const (
	StateRequested       State = "requested"
	StateChallengeIssued State = "challenge_issued"
	StateGranted         State = "granted"
	StateDenied          State = "denied"
)

// Factor - какой секрет требуется для подтверждения
type Factor string

const (
	FactorNone     Factor = "none"
	FactorPIN      Factor = "pin"
	FactorPassword Factor = "password"
)

// Decision - результат шага проверки
type Decision struct {
	State  State  `json:"state"`
	Factor Factor `json:"factor"`
}

// Required reports whether the caller still has to present a proof.
func (d Decision) Required() bool {
	return d.State == StateChallengeIssued
}

// SecretVerifier is satisfied by crypto.Hasher.
type SecretVerifier interface {
	Verify(secret, hashed string) bool
}

// Gate holds no per-user state; every reveal goes through Challenge/Verify again.
type Gate struct {
	verifier SecretVerifier
}

// NewGate creates a Gate.
func NewGate(verifier SecretVerifier) *Gate {
	return &Gate{verifier: verifier}
}

// Challenge moves an attempt out of Requested.
// user must be loaded from storage, not rebuilt from token claims.
func (g *Gate) Challenge(user *models.User, element *models.Element) (Decision, error) {
	if !element.IsSensitive {
		return Decision{State: StateGranted, Factor: FactorNone}, nil
	}

	switch factorFor(user) {
	case FactorPIN:
		return Decision{State: StateChallengeIssued, Factor: FactorPIN}, nil
	case FactorPassword:
		return Decision{State: StateChallengeIssued, Factor: FactorPassword}, nil
	default:
		return Decision{State: StateDenied, Factor: FactorNone}, ErrNoSecondFactor
	}
}

// Verify checks proof against the factor chosen by Challenge.
func (g *Gate) Verify(user *models.User, element *models.Element, proof string) (Decision, error) {
	decision, err := g.Challenge(user, element)
	if err != nil || !decision.Required() {
		return decision, err
	}

	hashed := user.PasswordHash
	if decision.Factor == FactorPIN {
		hashed = user.PINHash
	}

	if !g.verifier.Verify(proof, hashed) {
		return Decision{State: StateDenied, Factor: decision.Factor}, ErrGateDenied
	}

	return Decision{State: StateGranted, Factor: decision.Factor}, nil
}

func factorFor(user *models.User) Factor {
	switch {
	case user.HasPin && user.PINHash != "":
		return FactorPIN
	case user.HasPassword && user.PasswordHash != "":
		return FactorPassword
	default:
		return FactorNone
	}
}
