package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/mail"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/idx"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// UserSummary is a row of the admin user list.
type UserSummary struct {
	domain.Profile
	IsActive  bool
	TwoFactor domain.TwoFactorState
	CreatedAt time.Time
}

// CreatedUser is returned once when an administrator adds an account.
type CreatedUser struct {
	domain.Profile
	TemporaryPassword string
}

// AdminService covers first-run setup and user and settings administration.
type AdminService struct {
	Store     store.Store
	Settings  *SettingsCache
	Mailer    mail.Mailer
	Audit     Auditor
	PublicURL string
	Now       func() time.Time

	sends sync.WaitGroup
}

// Setup creates the first superadmin. It only works on an empty database.
func (s *AdminService) Setup(ctx context.Context, email, name, password string, client ClientInfo) (domain.Profile, error) {
	l := slogx.FromContext(ctx)

	email, name, err := validateIdentity(email, name)
	if err != nil {
		return domain.Profile{}, err
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return domain.Profile{}, err
	}
	if err := ValidatePassword(settings.PasswordPolicy, password).Err("password"); err != nil {
		return domain.Profile{}, err
	}

	passHash, err := cryptox.HashPassword(password)
	if err != nil {
		l.Error("failed to hash admin password", slog.Any("error", err))
		return domain.Profile{}, err
	}

	now := s.now()
	user := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		Name:         name,
		PasswordHash: passHash,
		Role:         domain.RoleSuperAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		empty, err := tx.Users().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrAlreadyConfigured
		}
		return tx.Users().CreateUser(ctx, user)
	})
	if errors.Is(err, ErrAlreadyConfigured) {
		l.Warn("attempted setup on an already configured system", slog.String("ip", client.IP))
		return domain.Profile{}, err
	}
	if err != nil {
		l.Error("failed to create first admin", slog.Any("error", err))
		return domain.Profile{}, err
	}

	l.Info("first admin created", slog.String("user_id", user.ID))
	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditUserCreated,
		UserID:  user.ID,
		IP:      client.IP,
		Details: map[string]string{"role": string(user.Role), "flow": "setup"},
	})
	return user.Profile(), nil
}

// IsConfigured reports whether the first admin exists.
func (s *AdminService) IsConfigured(ctx context.Context) (bool, error) {
	empty, err := s.Store.Users().IsEmpty(ctx)
	return !empty, err
}

// CreateUser adds an account with a generated temporary password that must
// be changed at first sign-in. Actors cannot create accounts above their
// own role.
func (s *AdminService) CreateUser(ctx context.Context, actorID, email, name string, role domain.Role, client ClientInfo) (CreatedUser, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return CreatedUser{}, err
	}
	email, name, err = validateIdentity(email, name)
	if err != nil {
		return CreatedUser{}, err
	}
	if !role.Valid() {
		return CreatedUser{}, newValidationError("role", fmt.Sprintf("unknown role %q", role))
	}
	if role.Rank() > actor.Role.Rank() {
		return CreatedUser{}, newValidationError("role", "cannot grant a role above your own")
	}

	temp, err := cryptox.GeneratePassword()
	if err != nil {
		return CreatedUser{}, err
	}
	hash, err := cryptox.HashPassword(temp)
	if err != nil {
		return CreatedUser{}, err
	}

	now := s.now()
	user := domain.User{
		ID:                 idx.NewAt(now).String(),
		Email:              email,
		Name:               name,
		PasswordHash:       hash,
		Role:               role,
		IsActive:           true,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	err = s.Store.Users().CreateUser(ctx, user)
	if errors.Is(err, store.ErrAlreadyExists) {
		return CreatedUser{}, newValidationError("email", "an account with this email already exists")
	}
	if err != nil {
		return CreatedUser{}, err
	}

	msg := mail.WelcomeMessage(user.Email, user.Name, temp, strings.TrimRight(s.PublicURL, "/")+"/login")
	bg := context.WithoutCancel(ctx)
	s.sends.Add(1)
	go func() {
		defer s.sends.Done()
		deliver(bg, s.Mailer, msg)
	}()

	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditUserCreated,
		UserID:  actor.ID,
		IP:      client.IP,
		Details: map[string]string{"target_user_id": user.ID, "role": string(role)},
	})
	return CreatedUser{Profile: user.Profile(), TemporaryPassword: temp}, nil
}

// SetUserActive activates or deactivates an account. Admins cannot change
// their own account or one that outranks them.
func (s *AdminService) SetUserActive(ctx context.Context, actorID, userID string, active bool, client ClientInfo) error {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.ID == userID {
		return newValidationError("id", "cannot change your own account status")
	}

	target, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if target.Role.Rank() > actor.Role.Rank() {
		return newValidationError("id", "cannot change an account above your own role")
	}

	if err := s.Store.Users().SetActive(ctx, target.ID, active); err != nil {
		return err
	}
	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditUserActivation,
		UserID:  actor.ID,
		IP:      client.IP,
		Details: map[string]string{"target_user_id": target.ID, "active": fmt.Sprint(active)},
	})
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context) ([]UserSummary, error) {
	users, err := s.Store.Users().ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{
			Profile:   u.Profile(),
			IsActive:  u.IsActive,
			TwoFactor: domain.EffectiveTwoFactor(u),
			CreatedAt: u.CreatedAt,
		})
	}
	return out, nil
}

func (s *AdminService) GetSecuritySettings(ctx context.Context) (domain.SecuritySettings, error) {
	return s.Store.Settings().GetSecuritySettings(ctx)
}

func (s *AdminService) UpdateSecuritySettings(ctx context.Context, actorID string, settings domain.SecuritySettings, client ClientInfo) error {
	if errs := settings.Validate(); len(errs) > 0 {
		ve := &ValidationError{}
		for field, msg := range errs {
			ve.Fields = append(ve.Fields, FieldError{Field: field, Message: msg})
		}
		sortFieldErrors(ve.Fields)
		return ve
	}

	if err := s.Store.Settings().SaveSecuritySettings(ctx, settings, actorID); err != nil {
		return err
	}
	s.Settings.Invalidate()

	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditSettingsUpdated,
		UserID:  actorID,
		IP:      client.IP,
		Details: map[string]string{"two_factor_enforcement": string(settings.TwoFactorEnforcement)},
	})
	return nil
}

func (s *AdminService) ListAuditEvents(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	return s.Store.Audit().ListEvents(ctx, limit)
}

// Wait blocks until queued welcome emails have been handed to the mailer.
func (s *AdminService) Wait() {
	s.sends.Wait()
}

func (s *AdminService) actor(ctx context.Context, actorID string) (domain.User, error) {
	actor, err := s.Store.Users().GetUserByID(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	if !actor.IsActive {
		return domain.User{}, ErrAccountDeactivated
	}
	return actor, nil
}

func (s *AdminService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func validateIdentity(email, name string) (string, string, error) {
	ve := &ValidationError{}

	email = normalizeEmail(email)
	if addr, err := netmail.ParseAddress(email); err != nil || addr.Address != email {
		ve.Fields = append(ve.Fields, FieldError{Field: "email", Message: "must be a valid email address"})
	}
	name = strings.TrimSpace(name)
	if name == "" {
		ve.Fields = append(ve.Fields, FieldError{Field: "name", Message: "is required"})
	} else if len(name) > 200 {
		ve.Fields = append(ve.Fields, FieldError{Field: "name", Message: "must be at most 200 characters"})
	}

	if len(ve.Fields) > 0 {
		return "", "", ve
	}
	return email, name, nil
}

func sortFieldErrors(fields []FieldError) {
	slices.SortFunc(fields, func(a, b FieldError) int { return strings.Compare(a.Field, b.Field) })
}
