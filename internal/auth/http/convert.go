package http

import (
	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/service"
	"github.com/aussiebroadwan/hostdesk/pkg/authsdk"
)

func toUser(p domain.Profile) authsdk.User {
	return authsdk.User{
		ID:                 p.ID,
		Email:              p.Email,
		Name:               p.Name,
		Role:               string(p.Role),
		MustChangePassword: p.MustChangePassword,
	}
}

func toTwoFactor(s domain.TwoFactorState) authsdk.TwoFactorStatus {
	return authsdk.TwoFactorStatus{
		Enabled:      s.AnyEnabled,
		EmailEnabled: s.EmailEnabled,
		TOTPEnabled:  s.TOTPEnabled,
	}
}

func toLoginResponse(res service.LoginResult) authsdk.LoginResponse {
	switch {
	case res.RequiresTwoFactor:
		return authsdk.LoginResponse{
			Requires2FA:      true,
			Method:           string(res.Method),
			SessionToken:     res.SessionToken,
			HasEmailFallback: res.HasEmailFallback,
		}
	case res.RequiresSetup:
		methods := make([]string, 0, len(res.AvailableMethods))
		for _, m := range res.AvailableMethods {
			methods = append(methods, string(m))
		}
		return authsdk.LoginResponse{
			Requires2FASetup: true,
			SetupToken:       res.SetupToken,
			AvailableMethods: methods,
		}
	default:
		user := toUser(res.User)
		return authsdk.LoginResponse{
			Token:       res.Token,
			User:        &user,
			BackupCodes: res.BackupCodes,
		}
	}
}

func toSettings(s domain.SecuritySettings) authsdk.SecuritySettings {
	methods := make([]string, 0, len(s.TwoFactorMethods))
	for _, m := range s.TwoFactorMethods {
		methods = append(methods, string(m))
	}
	return authsdk.SecuritySettings{
		TwoFactorEnforcement: string(s.TwoFactorEnforcement),
		TwoFactorMethods:     methods,
		PasswordPolicy:       authsdk.PasswordPolicy(s.PasswordPolicy),
		Lockout:              authsdk.LockoutPolicy(s.Lockout),
	}
}

func fromSettings(s authsdk.SecuritySettings) domain.SecuritySettings {
	methods := make([]domain.Method, 0, len(s.TwoFactorMethods))
	for _, m := range s.TwoFactorMethods {
		methods = append(methods, domain.Method(m))
	}
	return domain.SecuritySettings{
		TwoFactorEnforcement: domain.Enforcement(s.TwoFactorEnforcement),
		TwoFactorMethods:     methods,
		PasswordPolicy:       domain.PasswordPolicy(s.PasswordPolicy),
		Lockout:              domain.LockoutPolicy(s.Lockout),
	}
}

func toAuditEvent(e domain.AuditEvent) authsdk.AuditEvent {
	return authsdk.AuditEvent{
		ID:        e.ID,
		Action:    string(e.Action),
		UserID:    e.UserID,
		IP:        e.IP,
		Details:   e.Details,
		CreatedAt: e.CreatedAt,
	}
}
