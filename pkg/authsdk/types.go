package authsdk

import "time"

// ============================================================================
// Shared Types
// ============================================================================

// User is the profile returned after a successful login and by /me.
type User struct {
	ID                 string `json:"id"                 example:"01HZX3J5Q8V6T4N2M1K0P9R7S5"`
	Email              string `json:"email"              example:"ops@example.com"`
	Name               string `json:"name"               example:"Ops Admin"`
	Role               string `json:"role"               example:"admin"`
	MustChangePassword bool   `json:"mustChangePassword" example:"false"`
}

// TwoFactorStatus is the effective second-factor configuration of a user.
type TwoFactorStatus struct {
	Enabled      bool `json:"enabled"`
	EmailEnabled bool `json:"emailEnabled"`
	TOTPEnabled  bool `json:"totpEnabled"`
}

// MessageResponse carries a human readable confirmation.
type MessageResponse struct {
	Message string `json:"message" example:"A new code has been sent to your email."`
}

// ============================================================================
// Login Types
// ============================================================================

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"    example:"ops@example.com"`
	Password string `json:"password" example:"CorrectHorse1"`
}

// LoginResponse is returned by every login step. Exactly one of three shapes
// is populated:
//   - Token and User when the login is complete
//   - Requires2FA with SessionToken when a second factor must be verified
//   - Requires2FASetup with SetupToken when a second factor must be enrolled
type LoginResponse struct {
	Token string `json:"token,omitempty"`
	User  *User  `json:"user,omitempty"`

	Requires2FA      bool   `json:"requires2FA,omitempty"`
	Method           string `json:"method,omitempty"           example:"totp"`
	SessionToken     string `json:"sessionToken,omitempty"`
	HasEmailFallback bool   `json:"hasEmailFallback,omitempty"`

	Requires2FASetup bool     `json:"requires2FASetup,omitempty"`
	SetupToken       string   `json:"setupToken,omitempty"`
	AvailableMethods []string `json:"availableMethods,omitempty"`

	// BackupCodes is only set when authenticator setup completes.
	BackupCodes []string `json:"backupCodes,omitempty"`
}

// VerifyTwoFactorRequest is the body of POST /login/verify-2fa.
type VerifyTwoFactorRequest struct {
	SessionToken  string `json:"sessionToken"`
	Code          string `json:"code"                    example:"123456"`
	UseBackupCode bool   `json:"useBackupCode,omitempty"`
	// Method selects "email" when a TOTP user fell back to an emailed code.
	Method string `json:"method,omitempty" example:"email"`
}

// SessionTokenRequest is the body of the resend and email fallback endpoints.
type SessionTokenRequest struct {
	SessionToken string `json:"sessionToken"`
}

// SetupTwoFactorRequest is the body of POST /login/setup-2fa.
type SetupTwoFactorRequest struct {
	SetupToken string `json:"setupToken"`
	Method     string `json:"method"     example:"totp"`
}

// SetupTwoFactorResponse is returned by POST /login/setup-2fa. Secret,
// QRCode and OTPAuthURL are only set for the totp method.
type SetupTwoFactorResponse struct {
	Message    string `json:"message,omitempty"`
	Secret     string `json:"secret,omitempty"     example:"JBSWY3DPEHPK3PXP"`
	QRCode     string `json:"qrCode,omitempty"`
	OTPAuthURL string `json:"otpauthUrl,omitempty"`
}

// VerifySetupRequest is the body of POST /login/verify-2fa-setup.
type VerifySetupRequest struct {
	SetupToken string `json:"setupToken"`
	Code       string `json:"code"       example:"123456"`
	Method     string `json:"method"     example:"totp"`
}

// ============================================================================
// Password Reset Types
// ============================================================================

// ForgotPasswordRequest is the body of POST /forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" example:"ops@example.com"`
}

// ResetPasswordRequest is the body of POST /reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ============================================================================
// Setup Types
// ============================================================================

// SetupRequest creates the first superadmin on an empty installation.
type SetupRequest struct {
	Email    string `json:"email"    example:"owner@example.com"`
	Name     string `json:"name"     example:"Owner"`
	Password string `json:"password"`
}

// ============================================================================
// Account Types
// ============================================================================

// AccountResponse is returned by GET /me.
type AccountResponse struct {
	User                 User            `json:"user"`
	TwoFactor            TwoFactorStatus `json:"twoFactor"`
	BackupCodesRemaining int             `json:"backupCodesRemaining"`
}

// ChangePasswordRequest is the body of POST /account/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// TOTPEnrollResponse starts authenticator enrolment for a signed-in user.
type TOTPEnrollResponse struct {
	EnrollToken string `json:"enrollToken"`
	Secret      string `json:"secret"      example:"JBSWY3DPEHPK3PXP"`
	QRCode      string `json:"qrCode"`
	OTPAuthURL  string `json:"otpauthUrl"`
}

// TOTPConfirmRequest finishes authenticator enrolment.
type TOTPConfirmRequest struct {
	EnrollToken string `json:"enrollToken"`
	Code        string `json:"code"        example:"123456"`
}

// PasswordConfirmRequest re-authenticates a sensitive account change.
type PasswordConfirmRequest struct {
	Password string `json:"password"`
}

// EmailTwoFactorRequest toggles emailed login codes.
type EmailTwoFactorRequest struct {
	Enabled  bool   `json:"enabled"`
	Password string `json:"password"`
}

// BackupCodesResponse carries a freshly generated set of backup codes. They
// are shown once and cannot be retrieved again.
type BackupCodesResponse struct {
	BackupCodes []string `json:"backupCodes"`
}

// ============================================================================
// Admin Types
// ============================================================================

// AdminUser is one row of GET /admin/users.
type AdminUser struct {
	User
	IsActive  bool            `json:"isActive"`
	TwoFactor TwoFactorStatus `json:"twoFactor"`
	CreatedAt time.Time       `json:"createdAt"`
}

// UserListResponse is returned by GET /admin/users.
type UserListResponse struct {
	Users []AdminUser `json:"users"`
}

// CreateUserRequest is the body of POST /admin/users.
type CreateUserRequest struct {
	Email string `json:"email" example:"agent@example.com"`
	Name  string `json:"name"  example:"Support Agent"`
	Role  string `json:"role"  example:"user"`
}

// CreateUserResponse returns the new user and their one-time temporary password.
type CreateUserResponse struct {
	User              User   `json:"user"`
	TemporaryPassword string `json:"temporaryPassword"`
}

// SetActiveRequest is the body of POST /admin/users/{id}/active.
type SetActiveRequest struct {
	Active bool `json:"active"`
}

// PasswordPolicy mirrors the administrator-editable password rules.
type PasswordPolicy struct {
	MinLength     int  `json:"minLength"     example:"10"`
	MaxLength     int  `json:"maxLength"     example:"128"`
	RequireUpper  bool `json:"requireUpper"`
	RequireLower  bool `json:"requireLower"`
	RequireDigit  bool `json:"requireDigit"`
	RequireSymbol bool `json:"requireSymbol"`
}

// LockoutPolicy mirrors the brute-force guard thresholds.
type LockoutPolicy struct {
	MaxFailures   int `json:"maxFailures"   example:"5"`
	WindowMinutes int `json:"windowMinutes" example:"15"`
	BlockMinutes  int `json:"blockMinutes"  example:"15"`
}

// SecuritySettings is the body of GET and PUT /admin/security-settings.
type SecuritySettings struct {
	TwoFactorEnforcement string         `json:"twoFactorEnforcement" example:"required_admins"`
	TwoFactorMethods     []string       `json:"twoFactorMethods"`
	PasswordPolicy       PasswordPolicy `json:"passwordPolicy"`
	Lockout              LockoutPolicy  `json:"lockout"`
}

// AuditEvent is one security-relevant event.
type AuditEvent struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"            example:"auth.login"`
	UserID    string            `json:"userId,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// AuditListResponse is returned by GET /admin/audit.
type AuditListResponse struct {
	Events []AuditEvent `json:"events"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	Database       string `json:"database"`
	Signer         string `json:"signer"`
	PendingSession string `json:"pendingSessions"`
}
