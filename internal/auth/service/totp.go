package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 1 // accept the previous and next step
	qrSize     = 256
)

// TOTPKey is a freshly generated authenticator secret ready to be shown.
type TOTPKey struct {
	Secret string
	URL    string // otpauth:// provisioning URI
	QRCode string // PNG data URL of URL
}

// TOTP wraps pquerna/otp with the panel's parameters.
type TOTP struct {
	Issuer string
}

// GenerateSecret creates a new secret for account and renders its QR code.
func (t TOTP) GenerateSecret(account string) (TOTPKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: account,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return TOTPKey{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return TOTPKey{}, fmt.Errorf("failed to render TOTP QR code: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return TOTPKey{}, fmt.Errorf("failed to encode TOTP QR code: %w", err)
	}

	return TOTPKey{
		Secret: key.Secret(),
		URL:    key.URL(),
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// Validate checks code against secret at now, allowing one step of drift.
func (t TOTP) Validate(code, secret string, now time.Time) bool {
	code = strings.TrimSpace(code)
	if code == "" || secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, now.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
