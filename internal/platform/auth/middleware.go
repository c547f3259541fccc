package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": msg}})
}

// RequireAuth: Authorization: Bearer <token> を検証して context に Principal を詰める
func RequireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "missing Authorization header")
			return
		}

		parts := strings.SplitN(h, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid Authorization header")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "empty token")
			return
		}

		p, err := ParseToken(secret, tokenStr)
		if err != nil {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid token")
			return
		}

		WithPrincipal(c, p)
		c.Set("user_id", p.UserID)
		c.Next()
	}
}

// ParseToken は HS256 固定で署名と exp を検証し Principal を返す。
func ParseToken(secret []byte, tokenStr string) (Principal, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || token == nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Principal{}, ErrInvalidToken
	}
	role := Role(claims.Role)
	if !role.Valid() {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: claims.Subject, Role: role, LibraryID: claims.LibraryID}, nil
}

// RequireRole: 例) admin のみ許可したい時に追加
func RequireRole(roles ...Role) gin.HandlerFunc {
	roleSet := make(map[Role]struct{})
	for _, r := range roles {
		if r == "" {
			continue
		}
		roleSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		p, ok := PrincipalFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHENTICATED", "authentication required")
			return
		}
		if _, allowed := roleSet[p.Role]; !allowed {
			abort(c, http.StatusForbidden, "FORBIDDEN", "forbidden")
			return
		}
		c.Next()
	}
}
