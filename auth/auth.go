// Package auth gestisce password e token di accesso del backend
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"cyoa-editor/story"
)

// MinPasswordLength lunghezza minima accettata in registrazione
const MinPasswordLength = 6

var (
	ErrInvalidCredentials = fmt.Errorf("%w: incorrect email or password", story.ErrAuthentication)
	ErrTokenExpired       = fmt.Errorf("%w: token expired", story.ErrAuthentication)
	ErrTokenInvalid       = fmt.Errorf("%w: could not validate credentials", story.ErrAuthentication)
)

// HashPassword calcola l'hash bcrypt di una password
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", &story.ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword confronta una password con il suo hash
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Claims contenuto del token: il subject è l'email dell'utente
type Claims struct {
	UserID int64 `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer firma e verifica token HS256
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer crea un issuer. Il segreto non può essere vuoto.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("JWT secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue crea un token di accesso per l'utente
func (i *TokenIssuer) Issue(userID int64, email string) (story.Token, error) {
	now := i.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return story.Token{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return story.Token{AccessToken: signed, TokenType: "bearer"}, nil
}

// Verify controlla firma e scadenza e restituisce le claims
func (i *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
