package ingest

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/rewind/internal/platform/errors"
)

// Environment variables configuring grant verification.
const (
	EnvGrantIssuer    = "REWIND_INGEST_GRANT_ISSUER"
	EnvGrantAudience  = "REWIND_INGEST_GRANT_AUDIENCE"
	EnvGrantPublicKey = "REWIND_INGEST_GRANT_PUBLIC_KEY"
)

// ScopeIngest is the scope claim every write surface requires.
const ScopeIngest = "ingest"

// grantEnv holds raw env values before post-parse validation.
type grantEnv struct {
	Issuer    string `env:"REWIND_INGEST_GRANT_ISSUER"`
	Audience  string `env:"REWIND_INGEST_GRANT_AUDIENCE"`
	PublicKey string `env:"REWIND_INGEST_GRANT_PUBLIC_KEY"`
}

// GrantConfig defines how ingest grants are verified.
type GrantConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// GrantClaims captures validated ingest grant claims.
type GrantClaims struct {
	Issuer    string
	Audience  []string
	Subject   string
	Scope     string
	ExpiresAt time.Time
	NotBefore time.Time
	IssuedAt  time.Time
	JWTID     string
}

// grantClaims is the internal claims type used for JWT parsing.
type grantClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// LoadGrantConfigFromEnv reads ingest grant verification configuration.
func LoadGrantConfigFromEnv(now func() time.Time) (GrantConfig, error) {
	var raw grantEnv
	if err := env.Parse(&raw); err != nil {
		return GrantConfig{}, fmt.Errorf("parse ingest grant env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return GrantConfig{}, fmt.Errorf("%s is required", EnvGrantIssuer)
	}
	if audience == "" {
		return GrantConfig{}, fmt.Errorf("%s is required", EnvGrantAudience)
	}
	if publicKey == "" {
		return GrantConfig{}, fmt.Errorf("%s is required", EnvGrantPublicKey)
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return GrantConfig{}, fmt.Errorf("decode ingest grant public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return GrantConfig{}, fmt.Errorf("ingest grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return GrantConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// ValidateGrant verifies an ingest grant token and checks its claims against
// the configured issuer, audience, and the ingest scope.
func ValidateGrant(grant string, cfg GrantConfig) (GrantClaims, error) {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return GrantClaims{}, apperrors.New(apperrors.CodeIngestGrantInvalid, "ingest grant is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return GrantClaims{}, errors.New("ingest grant verifier is not configured")
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return GrantClaims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return GrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeIngestGrantInvalid,
			"ingest grant issuer mismatch",
			map[string]string{"field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return GrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeIngestGrantInvalid,
			"ingest grant audience mismatch",
			map[string]string{"field": "audience"},
		)
	}

	if parsed.ID == "" {
		return GrantClaims{}, apperrors.New(apperrors.CodeIngestGrantInvalid, "ingest grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return GrantClaims{}, apperrors.New(apperrors.CodeIngestGrantInvalid, "ingest grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return GrantClaims{}, apperrors.New(apperrors.CodeIngestGrantExpired, "ingest grant is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return GrantClaims{}, apperrors.New(apperrors.CodeIngestGrantInvalid, "ingest grant not active yet")
		}
	}

	if !scopeContains(parsed.Scope, ScopeIngest) {
		return GrantClaims{}, apperrors.WithMetadata(
			apperrors.CodeIngestGrantScope,
			"ingest grant lacks the ingest scope",
			map[string]string{"scope": parsed.Scope},
		)
	}

	claims := GrantClaims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		Subject:   parsed.Subject,
		Scope:     parsed.Scope,
		ExpiresAt: exp,
		JWTID:     parsed.ID,
	}
	if parsed.NotBefore != nil {
		claims.NotBefore = parsed.NotBefore.Time.UTC()
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeIngestGrantInvalid, "ingest grant signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeIngestGrantInvalid, "ingest grant alg is invalid")
	}
	return apperrors.New(apperrors.CodeIngestGrantInvalid, "ingest grant is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

// scopeContains reports whether a space-separated scope list contains the
// given scope.
func scopeContains(scopes, value string) bool {
	for _, item := range strings.Fields(scopes) {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
