package echoapi

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/user"
)

const (
	contextClaimsKey = "claims"
	contextUserKey   = "user"
	tokenCookieName  = "access_token"
)

var signingMethod = jwt.SigningMethodHS256

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role,omitempty"` // -> portal
	Username     string `json:"username,omitempty"`
}

func (c Claims) Identity() *access.Identity {
	return &access.Identity{UserID: c.Subject, Name: c.Name, Role: c.Role}
}

// NewClaims returns the claims of a token for usr, expiring after conf.Server.JWTExpirationDelta.
// origIat is the issue time of the first token of a refresh chain.
func NewClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Name:         usr.FullName(),
		Role:         usr.Role,
		Username:     usr.Username,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(signingMethod, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func parseToken(conf *core.Config, tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != signingMethod.Alg() {
			return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(conf.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// extractToken reads the bearer token of the Authorization header, falling back to the access_token cookie.
func extractToken(ctx echo.Context) string {
	if auth := ctx.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		const prefix = "bearer "
		if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
			return strings.TrimSpace(auth[len(prefix):])
		}
		return ""
	}
	if cookie, err := ctx.Cookie(tokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// authenticateRequest verifies the request token and stores its claims in the context.
// It returns errMissingToken or errInvalidToken when the request is not authenticated.
func (s *server) authenticateRequest(ctx echo.Context) (*Claims, error) {
	tokenStr := extractToken(ctx)
	if tokenStr == "" {
		return nil, errMissingToken
	}
	claims, err := parseToken(s.Conf, tokenStr)
	if err != nil {
		return nil, errInvalidToken
	}
	revoked, err := s.Tokens.IsRevoked(ctx.Request().Context(), claims.ID)
	if err != nil {
		return nil, errors.Wrap(err, "checking token revocation")
	}
	if revoked {
		return nil, errInvalidToken
	}
	ctx.Set(contextClaimsKey, claims)
	return claims, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(*Claims); ok {
		return *claims, nil
	}
	return Claims{}, core.ErrUnauthenticated
}

func getContextIdentity(ctx echo.Context) *access.Identity {
	if claims, err := getContextClaims(ctx); err == nil {
		return claims.Identity()
	}
	return nil
}

func getContextUser(ctx echo.Context, svc user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, core.ErrUnauthenticated
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// issueToken returns a signed token for usr.
func (s *server) issueToken(usr user.User, origIat ...int64) (string, *Claims, error) {
	claims := NewClaims(s.Conf, usr, origIat...)
	token, err := GenerateToken(s.Conf, claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

func (s *server) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := getContextUser(ctx, s.UserSvc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.IsActive {
		return "", user.ErrAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(s.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	token, _, err := s.issueToken(usr, claims.OrigIssuedAt)
	if err != nil {
		return "", errors.Wrap(err, "generating token")
	}
	if err = s.revokeToken(ctx, claims); err != nil {
		return "", err
	}
	return token, nil
}

// revokeToken revokes the token of claims until it expires.
func (s *server) revokeToken(ctx echo.Context, claims Claims) error {
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	if err := s.Tokens.Revoke(ctx.Request().Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		return errors.Wrap(err, "revoking token")
	}
	return nil
}
