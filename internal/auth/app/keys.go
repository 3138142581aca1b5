package app

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
)

// InitSigningKey loads the Ed25519 session signing key from cfg.SigningKeyFile,
// creating it on first start. The key id is derived from the public key so it
// stays stable across restarts.
func InitSigningKey(cfg Config, logger *slog.Logger) (*jwtx.EdDSASigner, *jwtx.EdDSAVerifier, error) {
	pemKey, err := cryptox.LoadOrCreateEd25519Key(cfg.SigningKeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	// Parse once to learn the public key, then again under its key id.
	probe, err := jwtx.NewSignerEdDSA("", pemKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	kid := keyID(probe)

	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse signing key: %w", err)
	}
	verifier := jwtx.NewVerifierEdDSA(kid, signer.PublicKey(), cfg.Issuer)

	logger.Info("session signing key loaded",
		"kid", kid,
		"path", cfg.SigningKeyFile,
		"issuer", cfg.Issuer,
	)
	return signer, verifier, nil
}

func keyID(s *jwtx.EdDSASigner) string {
	sum := sha256.Sum256(s.PublicKey())
	return base64.RawURLEncoding.EncodeToString(sum[:8])
}
