package echoapi

import (
	"net/http"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/trezcool/evalix/core/auth"
)

const contextTokenKey = "userToken"

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

func newJWTConfig(secretKey string) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(secretKey),
		SigningMethod: auth.SigningMethod,
		ContextKey:    contextTokenKey,
		Claims:        new(auth.Claims),
	}
}

func getContextClaims(ctx echo.Context) (auth.Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*auth.Claims); ok {
			return *claims, nil
		}
	}
	return auth.Claims{}, errUnauthorized
}
