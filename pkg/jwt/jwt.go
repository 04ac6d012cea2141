// Package jwt проверяет access токены внешнего identity provider (RS256).
// Маркетплейс токены не выпускает: ему нужен только публичный ключ,
// а доверенная пара (callerId, role) берется из claims.
package jwt

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Роли, которые выдает identity provider.
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

var (
	// ErrTokenRevoked - токен отозван (jti в blacklist или массовый отзыв пользователя).
	ErrTokenRevoked = errors.New("токен отозван")
	// ErrUnknownRole - в токене роль, которую маркетплейс не знает.
	ErrUnknownRole = errors.New("неизвестная роль в токене")
)

// Claims - claims access токена.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// Identity - проверенная личность вызывающего.
type Identity struct {
	UserID string
	Role   string
	Name   string
	Phone  string
}

// Verifier проверяет подпись, issuer, срок жизни и blacklist.
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
	blacklist *Blacklist
}

// NewVerifier загружает публичный ключ из PEM файла.
func NewVerifier(publicKeyPath, issuer string) (*Verifier, error) {
	key, err := LoadPublicKey(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки публичного ключа: %w", err)
	}
	return NewVerifierWithKey(key, issuer), nil
}

// NewVerifierWithKey создаёт Verifier из уже загруженного ключа.
func NewVerifierWithKey(key *rsa.PublicKey, issuer string) *Verifier {
	return &Verifier{publicKey: key, issuer: issuer}
}

// SetBlacklist подключает проверку отозванных токенов.
func (v *Verifier) SetBlacklist(bl *Blacklist) {
	v.blacklist = bl
}

// Verify разбирает токен и возвращает личность вызывающего.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка валидации токена: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("невалидные claims токена")
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, errors.New("в токене нет идентификатора пользователя")
	}

	switch claims.Role {
	case RoleCustomer, RoleVendor, RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, claims.Role)
	}

	if err := v.checkRevoked(ctx, userID, claims); err != nil {
		return nil, err
	}

	return &Identity{UserID: userID, Role: claims.Role, Name: claims.Name, Phone: claims.Phone}, nil
}

func (v *Verifier) checkRevoked(ctx context.Context, userID string, claims *Claims) error {
	if v.blacklist == nil {
		return nil
	}

	if claims.ID != "" {
		revoked, err := v.blacklist.Check(ctx, claims.ID)
		if err != nil {
			return err
		}
		if revoked {
			return ErrTokenRevoked
		}
	}

	if claims.IssuedAt != nil {
		invalidated, err := v.blacklist.IsUserInvalidated(ctx, userID, claims.IssuedAt.Time)
		if err != nil {
			return err
		}
		if invalidated {
			return ErrTokenRevoked
		}
	}
	return nil
}

// LoadPublicKey загружает RSA публичный ключ из PEM файла (PKIX или PKCS#1).
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("не удалось декодировать PEM блок из %s", path)
	}

	if block.Type == "RSA PUBLIC KEY" {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга публичного ключа: %w", err)
	}
	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("ключ не является RSA публичным ключом")
	}
	return rsaKey, nil
}
