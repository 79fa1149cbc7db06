package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/dto"
	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/service"
)

type IncidentController struct {
	incidentQueryService service.IncidentQueryService
}

func NewIncidentController(incidentQueryService service.IncidentQueryService) *IncidentController {
	return &IncidentController{
		incidentQueryService: incidentQueryService,
	}
}

func RegisterIncidentRoutes(router *gin.Engine, controller *IncidentController, apiKey string) {
	api := router.Group("/api", RequireAPIKey(apiKey))
	{
		api.GET("/incidents", controller.GetIncidents)
	}
}

// GetIncidents godoc
// @Summary      List recent incidents
// @Description  Returns the newest suspicious events, decrypted, with their enrichment results and an integrity check. Records that cannot be decrypted are counted in skipped.
// @Tags         incidents
// @Produce      json
// @Param        limit  query     int  false  "Number of incidents (default: 50, max: 500)" minimum(1)
// @Success      200    {object}  dto.IncidentListResponse
// @Failure      400    {object}  model.Response "Invalid limit"
// @Failure      401    {object}  model.Response "Invalid or missing API key"
// @Failure      500    {object}  model.Response "Internal server error"
// @Security     ApiKeyAuth
// @Router       /api/incidents [get]
func (c *IncidentController) GetIncidents(ctx *gin.Context) {
	limit := service.DefaultIncidentLimit
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ctx.JSON(http.StatusBadRequest, model.NewResponse("limit must be a positive integer", nil))
			return
		}
		limit = n
	}

	result, err := c.incidentQueryService.ListIncidents(ctx.Request.Context(), dto.IncidentListRequest{Limit: limit})
	if err != nil {
		log.Error().Err(err).Msg("Error listing incidents")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("Failed to list incidents", nil))
		return
	}
	ctx.JSON(http.StatusOK, result)
}
