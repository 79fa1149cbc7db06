package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"soc-log-pipeline/internal/dto"
	"soc-log-pipeline/internal/model"
	"soc-log-pipeline/internal/service"
	"soc-log-pipeline/internal/util"
)

type StatsController struct {
	statsQueryService service.StatsQueryService
	now               func() time.Time
}

func NewStatsController(statsQueryService service.StatsQueryService) *StatsController {
	return &StatsController{
		statsQueryService: statsQueryService,
		now:               time.Now,
	}
}

func RegisterStatsRoutes(router *gin.Engine, controller *StatsController, apiKey string) {
	api := router.Group("/api", RequireAPIKey(apiKey))
	{
		api.GET("/stats", controller.GetStats)
	}
}

// GetStats godoc
// @Summary      Pipeline classification counters
// @Description  Counts processed events by classification and keyword category between since and until. Defaults to the last 24 hours.
// @Tags         stats
// @Produce      json
// @Param        since  query     string  false  "Start time in ISO 8601 format or epoch milliseconds"
// @Param        until  query     string  false  "End time in ISO 8601 format or epoch milliseconds"
// @Success      200    {object}  dto.StatsResponse
// @Failure      400    {object}  model.Response "Invalid time range"
// @Failure      401    {object}  model.Response "Invalid or missing API key"
// @Failure      503    {object}  model.Response "Metrics store not configured"
// @Failure      500    {object}  model.Response "Internal server error"
// @Security     ApiKeyAuth
// @Router       /api/stats [get]
func (c *StatsController) GetStats(ctx *gin.Context) {
	until := c.now().UTC()
	since := until.Add(-24 * time.Hour)
	var err error
	if raw := ctx.Query("since"); raw != "" {
		if since, err = util.ParseTimeFlexible(raw); err != nil {
			ctx.JSON(http.StatusBadRequest, model.NewResponse("invalid since. Use ISO 8601 or epoch milliseconds", nil))
			return
		}
	}
	if raw := ctx.Query("until"); raw != "" {
		if until, err = util.ParseTimeFlexible(raw); err != nil {
			ctx.JSON(http.StatusBadRequest, model.NewResponse("invalid until. Use ISO 8601 or epoch milliseconds", nil))
			return
		}
	}
	if until.Before(since) {
		ctx.JSON(http.StatusBadRequest, model.NewResponse("until cannot be before since", nil))
		return
	}

	result, err := c.statsQueryService.GetSummary(ctx.Request.Context(), dto.StatsRequest{StartTime: since, EndTime: until})
	if err != nil {
		if errors.Is(err, service.ErrStatsDisabled) {
			ctx.JSON(http.StatusServiceUnavailable, model.NewResponse(err.Error(), nil))
			return
		}
		log.Error().Err(err).Msg("Error getting pipeline stats")
		ctx.JSON(http.StatusInternalServerError, model.NewResponse("Failed to get stats", nil))
		return
	}
	ctx.JSON(http.StatusOK, result)
}
