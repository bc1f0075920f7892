// Package auth выпускает и проверяет bearer-токены и хеширует пароли.
package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/washwise/internal/model"
)

var (
	// ErrInvalidToken возвращается для неподписанного, просроченного или повреждённого токена.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidCredentials возвращается при несовпадении пароля.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Claims описывает содержимое bearer-токена.
type Claims struct {
	UserID   string     `json:"uid"`
	Username string     `json:"sub_name"`
	Role     model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issuer подписывает и проверяет токены HMAC-SHA256.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer создаёт Issuer. При пустом секрете генерируется случайный ключ.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			key = []byte("default-secret-key")
		}
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Issuer{secret: key, ttl: ttl, now: time.Now}
}

// Issue выпускает токен для пользователя.
func (i *Issuer) Issue(u *model.User) (string, error) {
	now := i.now()
	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse проверяет подпись и срок действия токена.
func (i *Issuer) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword хеширует пароль bcrypt.
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// VerifyPassword сравнивает пароль с хешем.
func VerifyPassword(hash []byte, password string) error {
	if len(hash) == 0 {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// NewResetToken генерирует URL-безопасный токен сброса пароля.
func NewResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
