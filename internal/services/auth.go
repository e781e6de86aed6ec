package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"eventmanager/internal/domain"
)

const (
	minPasswordLen = 8
	defaultRole    = domain.RoleAttendee
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type authService struct {
	userRepo     domain.UserRepository
	roleRepo     domain.RoleRepository
	hasher       domain.PasswordHasher
	tokenIssuer  domain.TokenIssuer
	tokenExpiry  time.Duration
	emailService domain.EmailService
	hashSlots    *semaphore.Weighted
	logger       *slog.Logger
}

// NewAuthService creates an AuthService. At most hashConcurrency password
// derivations or verifications run at once; callers beyond that wait or give
// up when their context ends. emailService may be nil.
func NewAuthService(userRepo domain.UserRepository, roleRepo domain.RoleRepository, hasher domain.PasswordHasher, tokenIssuer domain.TokenIssuer, tokenExpiry time.Duration, emailService domain.EmailService, hashConcurrency int, logger *slog.Logger) domain.AuthService {
	if hashConcurrency < 1 {
		hashConcurrency = 1
	}
	return &authService{
		userRepo:     userRepo,
		roleRepo:     roleRepo,
		hasher:       hasher,
		tokenIssuer:  tokenIssuer,
		tokenExpiry:  tokenExpiry,
		emailService: emailService,
		hashSlots:    semaphore.NewWeighted(int64(hashConcurrency)),
		logger:       logger,
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func normalizeRole(role string) string {
	role = strings.TrimSpace(strings.ToLower(role))
	if role != domain.RoleAdmin && role != domain.RoleAttendee {
		return defaultRole
	}
	return role
}

// withHashSlot runs fn while holding one of the hashing slots.
func (s *authService) withHashSlot(ctx context.Context, fn func() error) error {
	if err := s.hashSlots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for password hashing slot: %w", err)
	}
	defer s.hashSlots.Release(1)
	return fn()
}

func (s *authService) SignUp(ctx context.Context, email, password, name, role string) (*domain.User, error) {
	email = normalizeEmail(email)
	if !emailRegexp.MatchString(email) {
		return nil, domain.ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: must be at least %d characters", domain.ErrPasswordTooShort, minPasswordLen)
	}
	roleCode := normalizeRole(role)
	roleRecord, err := s.roleRepo.GetByCode(ctx, roleCode)
	if err != nil {
		return nil, fmt.Errorf("failed to get role %q: %w", roleCode, err)
	}

	var cred domain.Credential
	err = s.withHashSlot(ctx, func() error {
		var derr error
		cred, derr = s.hasher.Derive(password)
		return derr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := domain.NewUser(email, strings.TrimSpace(name), "", cred, now, now)
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if err := s.userRepo.AssignRole(ctx, user.ID, roleRecord.ID); err != nil {
		return nil, fmt.Errorf("failed to assign role: %w", err)
	}

	if s.emailService != nil {
		data := &domain.WelcomeMessageEmailData{Email: user.Email, FirstName: user.Name, UserID: user.ID}
		if err := s.emailService.SendWelcomeMessage(ctx, data); err != nil {
			s.logger.Warn("welcome email not sent", "user_id", user.ID, "error", err)
		}
	}
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.Credential.IsZero() {
		return "", nil, domain.ErrInvalidCredentials
	}

	var (
		ok       bool
		rehash   domain.Credential
		rehashed bool
	)
	err = s.withHashSlot(ctx, func() error {
		var verr error
		ok, verr = s.hasher.Verify(password, user.Credential)
		if verr != nil || !ok || !s.hasher.NeedsRehash(user.Credential) {
			return verr
		}
		fresh, derr := s.hasher.Derive(password)
		if derr != nil {
			s.logger.Warn("credential rehash skipped", "user_id", user.ID, "error", derr)
			return nil
		}
		rehash, rehashed = fresh, true
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return "", nil, domain.ErrInvalidCredentials
	}

	if rehashed {
		if err := s.userRepo.UpdateCredential(ctx, user.ID, rehash); err != nil {
			s.logger.Warn("credential rehash not stored", "user_id", user.ID, "error", err)
		} else {
			s.logger.Info("credential rehashed", "user_id", user.ID, "from", user.Credential.Scheme, "to", rehash.Scheme)
			user.Credential = rehash
		}
	}

	roles, err := s.roleRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load roles: %w", err)
	}
	roleCodes := make([]string, len(roles))
	for i, r := range roles {
		roleCodes[i] = r.Code
	}
	token, err := s.tokenIssuer.Issue(user.ID, user.Email, roleCodes, s.tokenExpiry)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, user, nil
}
