package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	pkgauth "github.com/gatsis/gatsishub-backend/pkg/auth"
	"github.com/gatsis/gatsishub-backend/pkg/auth/session"
	"github.com/gatsis/gatsishub-backend/pkg/config"
	pkgdb "github.com/gatsis/gatsishub-backend/pkg/db"
	"github.com/gatsis/gatsishub-backend/pkg/db/models"
	"github.com/gatsis/gatsishub-backend/pkg/enums"
	pkgerrors "github.com/gatsis/gatsishub-backend/pkg/errors"
	"github.com/gatsis/gatsishub-backend/pkg/logger"
	"github.com/gatsis/gatsishub-backend/pkg/security"
)

const (
	verificationCodeLength = 6
	verificationCodeTTL    = 10 * time.Minute

	uniqueCustomerEmailConstraint = "ux_customers_email"
	minPasswordLength             = 8
)

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type codeStore interface {
	StoreVerificationCode(ctx context.Context, actorKind, actorID, code string, ttl time.Duration) error
	GetVerificationCode(ctx context.Context, actorKind, actorID string) (string, error)
	ConsumeVerificationCode(ctx context.Context, actorKind, actorID string) error
}

// Session is an issued token pair plus the identity it belongs to.
type Session struct {
	AccessToken  string
	RefreshToken string
	ActorID      uuid.UUID
	ActorKind    enums.ActorKind
	Role         *enums.EmployeeRole
	TeamID       *uuid.UUID
}

// LoginResult is either a session or a prompt for the second factor.
type LoginResult struct {
	RequiresVerification bool
	Session              *Session
}

// SignupInput carries a customer registration.
type SignupInput struct {
	Email       string
	Password    string
	CompanyName string
	ContactName string
	Phone       *string
	Address     *string
	TaxID       *string
}

// Service defines credential and session operations.
type Service interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	VerifyLoginCode(ctx context.Context, email, code string) (*Session, error)
	Google(ctx context.Context, rawToken string) (*Session, error)
	Signup(ctx context.Context, input SignupInput) (*Session, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*Session, error)
	Logout(ctx context.Context, accessID string) error
	ChangePassword(ctx context.Context, customerID uuid.UUID, current, next string) error
	DeleteAccount(ctx context.Context, customerID uuid.UUID, accessID string) error
}

type service struct {
	repo     Repository
	sessions sessionManager
	codes    codeStore
	google   GoogleVerifier
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the auth dependencies.
func NewService(
	repo Repository,
	sessions sessionManager,
	codes codeStore,
	google GoogleVerifier,
	jwtCfg config.JWTConfig,
	pwCfg config.PasswordConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "auth repository required")
	}
	if sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "session manager required")
	}
	if codes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "verification code store required")
	}
	if google == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "google verifier required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo:     repo,
		sessions: sessions,
		codes:    codes,
		google:   google,
		jwtCfg:   jwtCfg,
		pwCfg:    pwCfg,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Login resolves the account kind server-side: customers first, then staff.
func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password required")
	}

	customer, err := s.repo.FindCustomerByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup customer")
	}
	if customer != nil {
		return s.loginCustomer(ctx, customer, password)
	}

	employee, err := s.repo.FindEmployeeByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCredentials()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup employee")
	}
	return s.loginEmployee(ctx, employee, password)
}

func (s *service) loginCustomer(ctx context.Context, customer *models.Customer, password string) (*LoginResult, error) {
	if !customer.IsActive {
		return nil, invalidCredentials()
	}
	if customer.PasswordHash == nil {
		return nil, invalidCredentials()
	}
	ok, err := security.VerifyPassword(password, *customer.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify password")
	}
	if !ok {
		return nil, invalidCredentials()
	}

	if customer.TwoFactorEnabled {
		code, err := security.GenerateVerificationCode(verificationCodeLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate verification code")
		}
		err = s.codes.StoreVerificationCode(ctx, string(enums.ActorKindCustomer), customer.ID.String(), code, verificationCodeTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store verification code")
		}
		logCtx := s.logg.WithFields(ctx, map[string]any{"customer_id": customer.ID.String()})
		s.logg.Info(logCtx, "auth.login.verification_required")
		return &LoginResult{RequiresVerification: true}, nil
	}

	sess, err := s.issueCustomerSession(ctx, customer)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: sess}, nil
}

func (s *service) loginEmployee(ctx context.Context, employee *models.Employee, password string) (*LoginResult, error) {
	if !employee.IsActive {
		return nil, invalidCredentials()
	}
	ok, err := security.VerifyPassword(password, employee.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify password")
	}
	if !ok {
		return nil, invalidCredentials()
	}

	sess, err := s.issueEmployeeSession(ctx, employee)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Session: sess}, nil
}

// VerifyLoginCode exchanges a stored second-factor code for a session. Codes
// are single-use.
func (s *service) VerifyLoginCode(ctx context.Context, email, code string) (*Session, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and code required")
	}

	customer, err := s.repo.FindCustomerByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCredentials()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup customer")
	}
	if !customer.IsActive {
		return nil, invalidCredentials()
	}

	stored, err := s.codes.GetVerificationCode(ctx, string(enums.ActorKindCustomer), customer.ID.String())
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "verification code expired or missing")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load verification code")
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "verification code mismatch")
	}
	if err := s.codes.ConsumeVerificationCode(ctx, string(enums.ActorKindCustomer), customer.ID.String()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume verification code")
	}

	return s.issueCustomerSession(ctx, customer)
}

// Google verifies the ID token and resolves the customer by google_subject,
// falling back to an email match which links the subject for next time.
func (s *service) Google(ctx context.Context, rawToken string) (*Session, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "id token required")
	}

	identity, err := s.google.Verify(ctx, rawToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "google token rejected")
	}

	customer, err := s.repo.FindCustomerByGoogleSubject(ctx, identity.Subject)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup customer by subject")
	}
	if customer == nil {
		customer, err = s.repo.FindCustomerByEmail(ctx, identity.Email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "no account for this google identity")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup customer by email")
		}
		if err := s.repo.LinkGoogleSubject(ctx, customer.ID, identity.Subject); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link google subject")
		}
	}
	if !customer.IsActive {
		return nil, invalidCredentials()
	}

	return s.issueCustomerSession(ctx, customer)
}

// Signup registers a customer with an Argon2id password hash.
func (s *service) Signup(ctx context.Context, input SignupInput) (*Session, error) {
	email := normalizeEmail(input.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid email required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if strings.TrimSpace(input.CompanyName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "company name required")
	}
	if strings.TrimSpace(input.ContactName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contact name required")
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "hash password")
	}

	customer := &models.Customer{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: &hash,
		CompanyName:  strings.TrimSpace(input.CompanyName),
		ContactName:  strings.TrimSpace(input.ContactName),
		Phone:        input.Phone,
		Address:      input.Address,
		TaxID:        input.TaxID,
		IsActive:     true,
	}
	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		if pkgdb.IsUniqueViolation(err, uniqueCustomerEmailConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"customer_id": customer.ID.String()})
	s.logg.Info(logCtx, "auth.signup.created")
	return s.issueCustomerSession(ctx, customer)
}

// Refresh rotates the refresh token and mints a fresh access token carrying
// the same identity.
func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "access and refresh tokens required")
	}

	claims, err := pkgauth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid access token")
	}
	if claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "access token missing session id")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "refresh token rejected")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	signed, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		ActorID:   claims.ActorID,
		ActorKind: claims.ActorKind,
		Role:      claims.Role,
		TeamID:    claims.TeamID,
		JTI:       newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mint access token")
	}

	return &Session{
		AccessToken:  signed,
		RefreshToken: newRefresh,
		ActorID:      claims.ActorID,
		ActorKind:    claims.ActorKind,
		Role:         claims.Role,
		TeamID:       claims.TeamID,
	}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) ChangePassword(ctx context.Context, customerID uuid.UUID, current, next string) error {
	if len(next) < minPasswordLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	customer, err := s.repo.FindCustomerByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	if customer.PasswordHash == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "account has no password login")
	}
	ok, err := security.VerifyPassword(current, *customer.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify password")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "current password mismatch")
	}

	hash, err := security.HashPassword(next, s.pwCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "hash password")
	}
	if _, err := s.repo.UpdateCustomerPassword(ctx, customerID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}
	return nil
}

// DeleteAccount soft-deactivates the customer and revokes the live session.
func (s *service) DeleteAccount(ctx context.Context, customerID uuid.UUID, accessID string) error {
	affected, err := s.repo.DeactivateCustomer(ctx, customerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate account")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
	}
	if accessID != "" {
		if err := s.sessions.Revoke(ctx, accessID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
		}
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"customer_id": customerID.String()})
	s.logg.Info(logCtx, "auth.account.deactivated")
	return nil
}

func (s *service) issueCustomerSession(ctx context.Context, customer *models.Customer) (*Session, error) {
	accessID := session.NewAccessID()
	refresh, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session")
	}
	signed, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		ActorID:   customer.ID,
		ActorKind: enums.ActorKindCustomer,
		JTI:       accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mint access token")
	}
	if err := s.repo.TouchCustomerLogin(ctx, customer.ID, s.now().UTC()); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "auth.login.touch_failed")
	}
	return &Session{
		AccessToken:  signed,
		RefreshToken: refresh,
		ActorID:      customer.ID,
		ActorKind:    enums.ActorKindCustomer,
	}, nil
}

func (s *service) issueEmployeeSession(ctx context.Context, employee *models.Employee) (*Session, error) {
	accessID := session.NewAccessID()
	refresh, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session")
	}
	role := employee.Role
	signed, err := pkgauth.MintAccessToken(s.jwtCfg, s.now(), pkgauth.AccessTokenPayload{
		ActorID:   employee.ID,
		ActorKind: enums.ActorKindStaff,
		Role:      &role,
		TeamID:    employee.TeamID,
		JTI:       accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mint access token")
	}
	if err := s.repo.TouchEmployeeLogin(ctx, employee.ID, s.now().UTC()); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "auth.login.touch_failed")
	}
	return &Session{
		AccessToken:  signed,
		RefreshToken: refresh,
		ActorID:      employee.ID,
		ActorKind:    enums.ActorKindStaff,
		Role:         &role,
		TeamID:       employee.TeamID,
	}, nil
}

func invalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
