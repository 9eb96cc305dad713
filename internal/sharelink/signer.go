package sharelink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/patentgate/internal/config"
	"github.com/phrazzld/patentgate/internal/platform/logger"
	"github.com/skip2/go-qrcode"
)

const (
	tokenType     = "download"
	minSecretLen  = 32
	qrSize        = 256
	downloadRoute = "/download/"
)

// Link is an issued download link.
type Link struct {
	Token     string
	URL       string
	ExpiresAt time.Time
}

type linkClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Signer issues and verifies download links using HMAC-SHA256.
type Signer struct {
	signingKey []byte
	baseURL    string
	lifetime   time.Duration
	timeFunc   func() time.Time // Injectable for testing
	clockSkew  time.Duration
}

// NewSigner creates a Signer. Links point at baseURL + "/download/<token>".
func NewSigner(cfg config.ShareConfig, baseURL string) (*Signer, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("share secret must be at least %d characters", minSecretLen)
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid public base url: %w", err)
	}
	return &Signer{
		signingKey: []byte(cfg.Secret),
		baseURL:    strings.TrimRight(baseURL, "/"),
		lifetime:   cfg.LinkTTL(),
		timeFunc:   time.Now,
		clockSkew:  30 * time.Second,
	}, nil
}

// Issue signs a link for the artifact name.
func (s *Signer) Issue(ctx context.Context, name string) (Link, error) {
	log := logger.FromContext(ctx)
	now := s.timeFunc()
	expiresAt := now.Add(s.lifetime)

	claims := linkClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		log.Error("failed to sign download link",
			"error", err,
			"artifact", name)
		return Link{}, fmt.Errorf("failed to sign download link: %w", err)
	}

	return Link{
		Token:     signed,
		URL:       s.baseURL + downloadRoute + signed,
		ExpiresAt: expiresAt.UTC().Truncate(time.Second),
	}, nil
}

// Verify checks token and returns the artifact name it grants access to.
func (s *Signer) Verify(ctx context.Context, token string) (string, error) {
	log := logger.FromContext(ctx)
	now := s.timeFunc()

	parsed, err := jwt.ParseWithClaims(
		token,
		&linkClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.signingKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithLeeway(s.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			log.Debug("download link expired", "error", err)
			return "", ErrExpiredLink
		}
		log.Debug("download link rejected", "error", err)
		return "", ErrInvalidLink
	}

	claims, ok := parsed.Claims.(*linkClaims)
	if !ok || !parsed.Valid || claims.TokenType != tokenType || claims.Subject == "" {
		return "", ErrInvalidLink
	}
	return claims.Subject, nil
}

// QRCode renders content as a PNG QR code.
func QRCode(content string) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("failed to render qr code: %w", err)
	}
	return png, nil
}
