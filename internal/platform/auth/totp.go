package auth

import (
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpPeriod is the code rotation interval in seconds.
const totpPeriod = 30

// DefaultTOTPTolerance is how many 30-second steps either side of now
// a submitted code may come from. Two steps absorbs clock drift of up
// to a minute between the server and the authenticator app.
const DefaultTOTPTolerance = 2

// TOTP generates enrollment secrets and verifies six-digit codes.
// Verification is stateless: the same code verifies as many times as
// it is submitted within its window, so single-use enforcement belongs
// to the caller.
type TOTP struct {
	issuer    string
	tolerance uint
	now       func() time.Time
}

// NewTOTP creates a verifier that stamps provisioning URIs with the
// given issuer name and accepts codes within DefaultTOTPTolerance
// steps of the current time.
func NewTOTP(issuer string) *TOTP {
	return &TOTP{
		issuer:    issuer,
		tolerance: DefaultTOTPTolerance,
		now:       time.Now,
	}
}

// GenerateSecret creates a fresh base32 secret for the account and the
// otpauth:// provisioning URI an authenticator app enrolls from.
func (t *TOTP) GenerateSecret(accountEmail string) (secret, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: accountEmail,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return key.Secret(), key.String(), nil
}

// Verify reports whether code is valid for secret at the current time,
// allowing the configured step tolerance. A malformed secret or code
// verifies as false.
func (t *TOTP) Verify(code, secret string) bool {
	valid, err := totp.ValidateCustom(code, secret, t.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      t.tolerance,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}
