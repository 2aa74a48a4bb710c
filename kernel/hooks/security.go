package hooks

import (
	"crypto/sha256"
	"errors"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"

	kerrors "github.com/flowforge/kernel/infrastructure/errors"
)

// securityClaims is the JWT claim set a SecurityContext signs over: exactly
// the fields §4.3 step 2 requires a distributed dispatch to verify.
type securityClaims struct {
	TrustedAgents     []string    `json:"trusted_agents"`
	AllowedHookPoints []HookPoint `json:"allowed_hook_points"`
	AllowedIPs        []string    `json:"allowed_ips"`
	Nonce             string      `json:"nonce"`
	jwt.RegisteredClaims
}

// deriveSigningKey stretches authToken into a 32-byte HMAC key via
// HKDF-SHA256, so the raw bearer token never doubles as the literal signing
// secret.
func deriveSigningKey(authToken string) ([]byte, error) {
	key := make([]byte, 32)
	kdf := hkdf.New(sha256.New, []byte(authToken), nil, []byte("flowforge/kernel/hooks/security-context"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Sign computes and stores s.Signature: an HS256 JWT over the context's
// trust/authorization fields, keyed off AuthToken.
func (s *SecurityContext) Sign() error {
	key, err := deriveSigningKey(s.AuthToken)
	if err != nil {
		return kerrors.Wrap(kerrors.KindFatal, "derive security context signing key", err)
	}

	claims := securityClaims{
		TrustedAgents:     s.TrustedAgents,
		AllowedHookPoints: s.AllowedHookPoints,
		AllowedIPs:        s.AllowedIPs,
		Nonce:             s.Nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(s.Timestamp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return kerrors.Wrap(kerrors.KindFatal, "sign security context", err)
	}
	s.Signature = []byte(signed)
	return nil
}

// Verify checks s.Signature against a key re-derived from AuthToken and
// confirms the signed claims match the context's current trust/
// authorization fields exactly — any mismatch means the context was
// tampered with, or forged, after signing.
func (s SecurityContext) Verify() error {
	if len(s.Signature) == 0 {
		return kerrors.Validation("signature", "security context is unsigned")
	}
	key, err := deriveSigningKey(s.AuthToken)
	if err != nil {
		return kerrors.Wrap(kerrors.KindFatal, "derive security context signing key", err)
	}

	var claims securityClaims
	_, err = jwt.ParseWithClaims(string(s.Signature), &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected security context signing method")
		}
		return key, nil
	})
	if err != nil {
		return kerrors.Wrap(kerrors.KindValidation, "security context signature invalid", err)
	}

	if !stringSliceEqual(claims.TrustedAgents, s.TrustedAgents) ||
		!stringSliceEqual(claims.AllowedIPs, s.AllowedIPs) ||
		!hookPointSliceEqual(claims.AllowedHookPoints, s.AllowedHookPoints) ||
		claims.Nonce != s.Nonce {
		return kerrors.Validation("signature", "security context fields do not match signed claims")
	}
	return nil
}

func stringSliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func hookPointSliceEqual(a, b []HookPoint) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
