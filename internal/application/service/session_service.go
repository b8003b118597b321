package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sangkips/smartbill/internal/config"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/sangkips/smartbill/internal/domain/repository"
	"github.com/sangkips/smartbill/pkg/apperror"
	"github.com/sangkips/smartbill/pkg/utils"
	"github.com/sirupsen/logrus"
)

// AuthSetupKey is the local storage key of the owner/staff credential record
const AuthSetupKey = "authSetup"

// SessionService keeps the device's auth setup and issues session tokens
type SessionService struct {
	kv         repository.KVStore
	jwtManager *utils.JWTManager
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewSessionService(kv repository.KVStore, jwtManager *utils.JWTManager, log logrus.FieldLogger) *SessionService {
	return &SessionService{kv: kv, jwtManager: jwtManager, log: log, now: time.Now}
}

func (s *SessionService) loadSetup(ctx context.Context) (*entity.AuthSetup, error) {
	raw, ok, err := s.kv.Get(ctx, AuthSetupKey)
	if err != nil {
		return nil, apperror.NewLocalStorageError("read auth setup", err)
	}
	if !ok {
		return nil, nil
	}
	var setup entity.AuthSetup
	if err := json.Unmarshal([]byte(raw), &setup); err != nil {
		return nil, apperror.NewLocalStorageError("decode auth setup", err)
	}
	return &setup, nil
}

// SetupRequired reports whether no owner has been configured on this device
func (s *SessionService) SetupRequired(ctx context.Context) (bool, error) {
	setup, err := s.loadSetup(ctx)
	if err != nil {
		return false, err
	}
	return setup == nil, nil
}

// SetupInput represents the owner and staff credentials
type SetupInput struct {
	OwnerEmail    string
	OwnerPassword string
	StaffPIN      string
}

func (in SetupInput) validate() error {
	var fieldErrors []apperror.FieldError
	if !strings.Contains(in.OwnerEmail, "@") {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "owner_email", Message: "a valid email is required"})
	}
	if len(in.OwnerPassword) < 8 {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "owner_password", Message: "password must be at least 8 characters"})
	}
	if len(in.StaffPIN) < 4 {
		fieldErrors = append(fieldErrors, apperror.FieldError{Field: "staff_pin", Message: "PIN must be at least 4 digits"})
	}
	for _, r := range in.StaffPIN {
		if r < '0' || r > '9' {
			fieldErrors = append(fieldErrors, apperror.FieldError{Field: "staff_pin", Message: "PIN must be numeric"})
			break
		}
	}
	if len(fieldErrors) > 0 {
		return apperror.NewValidationError(fieldErrors)
	}
	return nil
}

// Setup stores the credentials. When overwrite is false it only succeeds on
// a device that has none yet.
func (s *SessionService) Setup(ctx context.Context, in SetupInput, overwrite bool) error {
	in.OwnerEmail = strings.ToLower(strings.TrimSpace(in.OwnerEmail))
	if err := in.validate(); err != nil {
		return err
	}

	if !overwrite {
		existing, err := s.loadSetup(ctx)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.ErrConflict
		}
	}

	passwordHash, err := utils.HashPassword(in.OwnerPassword)
	if err != nil {
		return err
	}
	pinHash, err := utils.HashPassword(in.StaffPIN)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(entity.AuthSetup{
		OwnerEmail:        in.OwnerEmail,
		OwnerPasswordHash: passwordHash,
		StaffPINHash:      pinHash,
		UpdatedAt:         s.now(),
	})
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, AuthSetupKey, string(raw)); err != nil {
		return apperror.NewLocalStorageError("write auth setup", err)
	}
	return nil
}

// Seed stores the configured owner credentials on first run. Incomplete
// configuration is skipped.
func (s *SessionService) Seed(ctx context.Context, owner config.OwnerConfig) error {
	if owner.Email == "" || owner.Password == "" || owner.StaffPIN == "" {
		return nil
	}
	required, err := s.SetupRequired(ctx)
	if err != nil || !required {
		return err
	}
	if err := s.Setup(ctx, SetupInput{OwnerEmail: owner.Email, OwnerPassword: owner.Password, StaffPIN: owner.StaffPIN}, false); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"module": "session", "owner": owner.Email}).Info("auth setup seeded from configuration")
	return nil
}

// LoginOutput represents the login output
type LoginOutput struct {
	Session     entity.Session `json:"session"`
	AccessToken string         `json:"access_token"`
}

// LoginOwner authenticates the owner by email and password
func (s *SessionService) LoginOwner(ctx context.Context, email, password string) (*LoginOutput, error) {
	setup, err := s.loadSetup(ctx)
	if err != nil {
		return nil, err
	}
	if setup == nil {
		return nil, apperror.ErrSetupRequired
	}
	if strings.ToLower(strings.TrimSpace(email)) != setup.OwnerEmail || !utils.CheckPasswordHash(password, setup.OwnerPasswordHash) {
		return nil, apperror.ErrInvalidCredentials
	}
	return s.issue(enum.RoleOwner, setup.OwnerEmail)
}

// LoginStaff authenticates a staff member with the shared PIN. staffName is
// recorded as the creator of the bills they capture.
func (s *SessionService) LoginStaff(ctx context.Context, staffName, pin string) (*LoginOutput, error) {
	staffName = strings.TrimSpace(staffName)
	if staffName == "" {
		return nil, apperror.NewFieldError("staff_name", "staff name is required")
	}
	setup, err := s.loadSetup(ctx)
	if err != nil {
		return nil, err
	}
	if setup == nil {
		return nil, apperror.ErrSetupRequired
	}
	if !utils.CheckPasswordHash(pin, setup.StaffPINHash) {
		return nil, apperror.ErrInvalidCredentials
	}
	return s.issue(enum.RoleStaff, staffName)
}

func (s *SessionService) issue(role enum.Role, staffID string) (*LoginOutput, error) {
	now := s.now()
	session := entity.Session{
		ID:        utils.NewSessionID(),
		Role:      string(role),
		StaffID:   staffID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.jwtManager.Expiry()),
	}
	token, err := s.jwtManager.GenerateToken(session.ID, session.Role, session.StaffID, now)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"module": "session", "role": role, "staff": staffID}).Info("session started")
	return &LoginOutput{Session: session, AccessToken: token}, nil
}

// Authenticate resolves a bearer token to its session
func (s *SessionService) Authenticate(token string) (*entity.Session, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, apperror.ErrInvalidToken
	}
	session := &entity.Session{
		ID:      claims.SessionID,
		Role:    claims.Role,
		StaffID: claims.StaffID,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}
