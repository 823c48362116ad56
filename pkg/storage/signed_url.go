package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const exportAudience = "report-export"

var (
	// ErrInvalidToken covers malformed, tampered and wrongly scoped download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned once a download link is past its expiry.
	ErrTokenExpired = errors.New("download token expired")
)

type exportClaims struct {
	Path string `json:"path"`
	jwt.RegisteredClaims
}

// SignedURLSigner issues HS256 tokens that authorize one export download
// without a session.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer. A non-positive ttl means one day.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs a token binding jobID to the stored file path.
func (s *SignedURLSigner) Generate(jobID, relPath string) (string, time.Time, error) {
	if jobID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("jobID and relPath required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl).Truncate(time.Second)
	claims := exportClaims{
		Path: relPath,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   jobID,
			Audience:  jwt.ClaimStrings{exportAudience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies a token and returns its job, path and expiry. allowExpired
// skips the expiry check so cleanup can still resolve stale links.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else {
		opts = append(opts, jwt.WithAudience(exportAudience), jwt.WithExpirationRequired())
	}

	var claims exportClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", time.Time{}, ErrTokenExpired
		}
		return "", "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Path == "" || claims.ExpiresAt == nil {
		return "", "", time.Time{}, ErrInvalidToken
	}
	return claims.Subject, claims.Path, claims.ExpiresAt.Time, nil
}
