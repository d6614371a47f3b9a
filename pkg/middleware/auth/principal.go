package middleware

import (
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/storefront/pkg/tokens"
)

const ctxPrincipal = "principal"

// Principal is the caller identity, resolved once from a validated access token.
type Principal struct {
	UserID uint
	Email  string
	Role   string
}

func (p Principal) IsAdmin() bool { return p.Role == tokens.RoleAdmin }

func PrincipalFromClaims(claims *tokens.AccessClaims) (Principal, error) {
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return Principal{}, errors.New("token has no valid subject")
	}
	return Principal{UserID: uint(id), Email: claims.Email, Role: claims.Role}, nil
}

func SetPrincipal(c echo.Context, p Principal) {
	c.Set(ctxPrincipal, p)
}

func PrincipalFrom(c echo.Context) (Principal, bool) {
	p, ok := c.Get(ctxPrincipal).(Principal)
	return p, ok
}
