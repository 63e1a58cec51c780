package jwt

import (
	"errors"
	"fmt"
	"time"

	"clubmedia/internal/domain/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidTokenClaims = errors.New("invalid token claims")
)

// NewToken выпускает токен действующего пользователя. Сами токены выдает внешний сервис
// аутентификации, здесь функция нужна для локального запуска и тестов.
func NewToken(user models.UserRef, secret string, duration time.Duration) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["uid"] = user.ID.String()
	claims["name"] = user.Name
	claims["iat"] = time.Now().Unix()
	claims["exp"] = time.Now().Add(duration).Unix()

	return token.SignedString([]byte(secret))
}

// ParseToken проверяет подпись и срок действия и возвращает пользователя из claims
func ParseToken(tokenString, secret string) (models.UserRef, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.UserRef{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.UserRef{}, ErrInvalidTokenClaims
	}

	uid, ok := claims["uid"].(string)
	if !ok {
		return models.UserRef{}, ErrInvalidTokenClaims
	}
	id, err := uuid.Parse(uid)
	if err != nil {
		return models.UserRef{}, ErrInvalidTokenClaims
	}

	name, _ := claims["name"].(string)

	return models.UserRef{ID: id, Name: name}, nil
}
