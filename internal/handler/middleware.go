package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xenking/shopsim/internal/auth"
	"github.com/xenking/shopsim/internal/domain/user"
)

const claimsKey = "shop.claims"

// authenticate rejects requests without a valid bearer token and stores the
// caller's claims in the gin context.
func (h *Handler) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		fail(c, http.StatusUnauthorized, "missing bearer token")
		return
	}
	claims, err := h.tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		fail(c, http.StatusUnauthorized, "invalid or expired token")
		return
	}
	c.Set(claimsKey, claims)
	c.Next()
}

func requireRole(role user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claimsFrom(c).Role != string(role) {
			fail(c, http.StatusForbidden, "insufficient permissions")
			return
		}
		c.Next()
	}
}

// claimsFrom returns the authenticated caller. It is only valid behind
// authenticate.
func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return &auth.Claims{}
	}
	claims, _ := v.(*auth.Claims)
	if claims == nil {
		return &auth.Claims{}
	}
	return claims
}

func isAdmin(c *gin.Context) bool {
	return claimsFrom(c).Role == string(user.RoleAdmin)
}
