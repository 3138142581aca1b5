package domain

import "time"

// AuditAction names a security-relevant event.
type AuditAction string

const (
	AuditLogin                 AuditAction = "auth.login"
	AuditLoginFailed           AuditAction = "auth.login_failed"
	AuditLoginBlocked          AuditAction = "auth.login_blocked"
	AuditLogout                AuditAction = "auth.logout"
	AuditTwoFactorFailed       AuditAction = "auth.2fa_failed"
	AuditTwoFactorEnabled      AuditAction = "auth.2fa_enabled"
	AuditTwoFactorDisabled     AuditAction = "auth.2fa_disabled"
	AuditBackupCodeUsed        AuditAction = "auth.backup_code_used"
	AuditBackupCodesRegenerate AuditAction = "auth.backup_codes_regenerated"
	AuditPasswordResetRequest  AuditAction = "auth.password_reset_requested"
	AuditPasswordReset         AuditAction = "auth.password_reset"
	AuditPasswordChanged       AuditAction = "auth.password_changed"
	AuditUserCreated           AuditAction = "admin.user_created"
	AuditUserActivation        AuditAction = "admin.user_activation_changed"
	AuditSettingsUpdated       AuditAction = "admin.security_settings_updated"
)

type AuditEvent struct {
	ID        string            `json:"id"`
	Action    AuditAction       `json:"action"`
	UserID    string            `json:"userId,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
