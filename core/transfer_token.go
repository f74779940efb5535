package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTransferTokenTTL = 10 * time.Minute

// TransferGrant is the verified payload of a transfer token. It pins the
// external account and both sides of the hand-off; nothing else rides in the
// token, so a leaked one exposes no account data.
type TransferGrant struct {
	Provider          Provider
	ProviderAccountID string
	RequestingUserID  string
	ExistingOwnerID   string
	IssuedAt          time.Time
	ExpiresAt         time.Time
}

func (g TransferGrant) Validate() error {
	if err := g.Provider.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(g.ProviderAccountID) == "" {
		return fmt.Errorf("core: transfer grant provider account id is required")
	}
	if strings.TrimSpace(g.RequestingUserID) == "" {
		return fmt.Errorf("core: transfer grant requesting user id is required")
	}
	if strings.TrimSpace(g.ExistingOwnerID) == "" {
		return fmt.Errorf("core: transfer grant existing owner id is required")
	}
	return nil
}

type transferClaims struct {
	Provider          string `json:"prv"`
	ProviderAccountID string `json:"pid"`
	RequestingUserID  string `json:"req"`
	ExistingOwnerID   string `json:"own"`
	jwt.RegisteredClaims
}

// HS256TransferSigner mints and verifies transfer tokens as HMAC-signed JWTs.
type HS256TransferSigner struct {
	secret []byte
	keyID  string
	ttl    time.Duration
	now    func() time.Time
}

func NewHS256TransferSigner(secret []byte, keyID string, ttl time.Duration) (*HS256TransferSigner, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("core: transfer signing secret is required")
	}
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		keyID = "transfer-key"
	}
	if ttl <= 0 {
		ttl = defaultTransferTokenTTL
	}
	return &HS256TransferSigner{
		secret: append([]byte(nil), secret...),
		keyID:  keyID,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *HS256TransferSigner) TTL() time.Duration {
	if s == nil {
		return 0
	}
	return s.ttl
}

func (s *HS256TransferSigner) Mint(grant TransferGrant) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: transfer signer is not configured")
	}
	if err := grant.Validate(); err != nil {
		return "", err
	}

	issuedAt := grant.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = s.now()
	}
	expiresAt := grant.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = issuedAt.Add(s.ttl)
	}

	claims := transferClaims{
		Provider:          string(grant.Provider),
		ProviderAccountID: strings.TrimSpace(grant.ProviderAccountID),
		RequestingUserID:  strings.TrimSpace(grant.RequestingUserID),
		ExistingOwnerID:   strings.TrimSpace(grant.ExistingOwnerID),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("core: sign transfer token: %w", err)
	}
	return signed, nil
}

func (s *HS256TransferSigner) Verify(tokenString string) (TransferGrant, error) {
	if s == nil {
		return TransferGrant{}, fmt.Errorf("core: transfer signer is not configured")
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return TransferGrant{}, fmt.Errorf("%w: empty token", ErrTransferTokenInvalid)
	}

	claims := &transferClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", token.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TransferGrant{}, fmt.Errorf("%w: %v", ErrTransferTokenExpired, err)
		}
		return TransferGrant{}, fmt.Errorf("%w: %v", ErrTransferTokenInvalid, err)
	}
	if !parsed.Valid {
		return TransferGrant{}, fmt.Errorf("%w: signature check failed", ErrTransferTokenInvalid)
	}

	grant := TransferGrant{
		Provider:          Provider(strings.TrimSpace(claims.Provider)),
		ProviderAccountID: strings.TrimSpace(claims.ProviderAccountID),
		RequestingUserID:  strings.TrimSpace(claims.RequestingUserID),
		ExistingOwnerID:   strings.TrimSpace(claims.ExistingOwnerID),
	}
	if claims.IssuedAt != nil {
		grant.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		grant.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	if err := grant.Validate(); err != nil {
		return TransferGrant{}, fmt.Errorf("%w: %v", ErrTransferTokenInvalid, err)
	}
	return grant, nil
}

