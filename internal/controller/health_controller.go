package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"soc-log-pipeline/internal/model"
)

func RegisterHealthRoutes(router *gin.Engine) {
	router.GET("/", Health)
}

// Health godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  model.Response
// @Router       / [get]
func Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, model.NewResponse("SOC log pipeline is running", nil))
}
