package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/coursemart/internal/server/http/dto"
)

// ScheduleHandler triggers payment schedule passes.
type ScheduleHandler struct {
	facade ScheduleFacade
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(facade ScheduleFacade) *ScheduleHandler {
	return &ScheduleHandler{facade: facade}
}

// Run handles POST /api/schedule/run.
func (h *ScheduleHandler) Run(c *gin.Context) {
	report, err := h.facade.RunSchedule(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ScheduleReportResponse{
		Orders:      report.Orders,
		Charged:     report.Charged,
		Refused:     report.Refused,
		Settled:     report.Settled,
		Skipped:     report.Skipped,
		Unavailable: report.Unavailable,
		Failed:      report.Failed,
		Transitions: report.Transitions,
	})
}
