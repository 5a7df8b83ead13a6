package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"

	"github.com/fatflowers/subpanel/pkg/logctx"
	"github.com/fatflowers/subpanel/pkg/response"
)

const ginClaimsKey = "claims"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrNotAdmin     = errors.New("admin privileges required")
)

// Claims are carried by the HS256 tokens issued to panel users.
type Claims struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
	jwt.StandardClaims
}

// SignToken issues a token for claims valid for ttl.
func SignToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = now.Unix()
	if ttl > 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString([]byte(secret))
}

// ParseToken verifies raw against secret and returns its claims.
func ParseToken(secret, raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user_id")
	}
	return claims, nil
}

func bearerToken(c *gin.Context) (string, error) {
	h := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// AuthMiddleware requires a valid bearer token, and admin claims when admin
// is set. The claims are available through ClaimsFrom.
func AuthMiddleware(secret string, admin bool, base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, err.Error()))
			return
		}
		claims, err := ParseToken(secret, raw)
		if err != nil {
			logctx.FromGin(c, base).Infow("auth_token_rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeUnauthorized, "invalid token"))
			return
		}
		if admin && !claims.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, response.ErrorT[any](response.APIResponseCodeForbidden, ErrNotAdmin.Error()))
			return
		}

		c.Set(ginClaimsKey, claims)
		c.Request = c.Request.WithContext(logctx.WithUserID(c.Request.Context(), claims.UserID))
		setLogger(c, logctx.FromGin(c, base).With("user_id", claims.UserID))
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by AuthMiddleware, or nil.
func ClaimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get(ginClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
