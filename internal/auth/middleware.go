package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bdpipeline/internal/opportunity"
)

const claimsKey = "auth.claims"

// AnonymousUserID is the actor used when authentication is disabled.
const AnonymousUserID uint64 = 1

// Middleware rejects requests without a valid bearer token. With disabled
// set every request runs as AnonymousUserID.
func Middleware(j JWT, disabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if disabled {
			c.Set(claimsKey, Claims{UserID: AnonymousUserID, Role: "admin"})
			c.Next()
			return
		}
		tok := bearerToken(c.GetHeader("Authorization"))
		if tok == "" {
			abort(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := j.Verify(tok)
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole must run after Middleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromGin(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "missing claims")
			return
		}
		for _, role := range roles {
			if strings.EqualFold(claims.Role, role) {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "forbidden")
	}
}

func ClaimsFromGin(c *gin.Context) (Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return Claims{}, false
	}
	claims, ok := v.(Claims)
	return claims, ok
}

// ActorFromGin maps the verified claims to the actor of a write operation.
func ActorFromGin(c *gin.Context) (opportunity.Actor, bool) {
	claims, ok := ClaimsFromGin(c)
	if !ok {
		return opportunity.Actor{}, false
	}
	return opportunity.Actor{UserID: claims.UserID, TeamID: claims.TeamID}, true
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message})
}

func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
