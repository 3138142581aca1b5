package service

import (
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
)

// TokenService mints the session tokens handed out after a completed login.
type TokenService struct {
	Signer jwtx.Signer
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// Issue signs a session token for u. amr records the factors used.
func (s *TokenService) Issue(u domain.User, amr ...string) (string, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	claims := jwtx.NewSessionClaims(u.ID, u.Email, u.Name, string(u.Role), amr, ttl, s.Issuer, now)
	return s.Signer.Sign(claims)
}

// amrFor lists the authentication methods for a login completed with m.
func amrFor(m domain.Method) []string {
	switch m {
	case domain.MethodTOTP:
		return []string{jwtx.AMRPassword, jwtx.AMROTP, jwtx.AMRMFA}
	case domain.MethodEmail:
		return []string{jwtx.AMRPassword, jwtx.AMREmail, jwtx.AMRMFA}
	case domain.MethodBackup:
		return []string{jwtx.AMRPassword, jwtx.AMRBackup, jwtx.AMRMFA}
	default:
		return []string{jwtx.AMRPassword}
	}
}
