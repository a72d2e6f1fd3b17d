package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/pianova/piano-adm-api/internal/middleware"
	"github.com/pianova/piano-adm-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func scopeFromContext(c *gin.Context) models.Scope {
	return models.ScopeFor(claimsFromContext(c))
}
