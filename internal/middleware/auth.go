package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"clubmedia/internal/domain/models"
	"clubmedia/internal/lib/jwt"
	"clubmedia/internal/lib/logger/sl"
	"clubmedia/internal/transport/http/dto/response"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const userContextKey = "user"

// BearerAuth проверяет токен из заголовка Authorization и кладет пользователя в контекст запроса
func BearerAuth(log *slog.Logger, secret string) echo.MiddlewareFunc {
	const op = "middleware.BearerAuth"

	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  userContextKey,
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			user, err := jwt.ParseToken(auth, secret)
			if err != nil {
				log.Warn("invalid bearer token", slog.String("op", op), sl.Err(err))
				return nil, err
			}
			return user, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if errors.Is(err, echojwt.ErrJWTMissing) {
				return c.JSON(http.StatusUnauthorized, response.ErrAuthenticationRequired)
			}
			return c.JSON(http.StatusUnauthorized, response.ErrInvalidToken)
		},
	})
}

// UserFromContext возвращает пользователя, сохраненный BearerAuth
func UserFromContext(c echo.Context) (models.UserRef, bool) {
	user, ok := c.Get(userContextKey).(models.UserRef)
	return user, ok
}
