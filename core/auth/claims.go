package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/evalix/core"
)

// SigningMethod of API tokens.
const SigningMethod = "HS256"

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Username  string `json:"username,omitempty"`
	IsTeacher bool   `json:"is_teacher,omitempty"`
	IsAdmin   bool   `json:"is_admin,omitempty"`
}

// NewClaims returns the claims of a teacher; admins may also delete sheets.
func NewClaims(conf *core.Config, username string, isAdmin bool) *Claims {
	now := time.Now()
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   username,
			Audience:  "Evalix",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username:  username,
		IsTeacher: true,
		IsAdmin:   isAdmin,
	}
}

func (c Claims) Person() core.Person {
	return core.Person{ID: c.Subject, Username: c.Username}
}

// GenerateToken generates a signed JWT token string representing the Claims.
func GenerateToken(claims *Claims, secretKey string) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod(SigningMethod), claims)
	ss, err := token.SignedString([]byte(secretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// ParseToken verifies a signed token and returns its Claims.
func ParseToken(tokenStr, secretKey string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != SigningMethod {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}
	return claims, nil
}
