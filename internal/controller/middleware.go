package controller

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/model"
)

const APIKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests whose X-API-Key header does not match key.
// An empty key locks the route entirely.
func RequireAPIKey(key string) gin.HandlerFunc {
	if key == "" {
		log.Warn().Msg("API_KEY is not set, protected routes will reject every request")
	}
	return func(ctx *gin.Context) {
		got := ctx.GetHeader(APIKeyHeader)
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, model.NewResponse("Invalid or missing API key", nil))
			return
		}
		ctx.Next()
	}
}
