package server

import (
	"net/http"
	"strconv"
	"strings"

	exportdomain "github.com/finopslab/costlens/internal/billingexport/domain"
	costdomain "github.com/finopslab/costlens/internal/costanalysis/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) getCostAnalysis(c *gin.Context) {
	customerID := c.Param("customer_id")

	period, err := parsePeriod(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	analysis, err := s.analysisSvc.Analyze(c.Request.Context(), customerID, period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, analysis)
}

func parsePeriod(c *gin.Context) (exportdomain.Period, error) {
	kind := strings.ToLower(strings.TrimSpace(c.Query("period")))

	switch kind {
	case "", "month_to_date", "mtd":
		return exportdomain.Period{Kind: exportdomain.PeriodMonthToDate}, nil
	case "last_month":
		return exportdomain.Period{Kind: exportdomain.PeriodLastMonth}, nil
	case "last_n_days":
		raw := strings.TrimSpace(c.Query("days"))
		if raw == "" {
			return exportdomain.Period{Kind: exportdomain.PeriodLastNDays, Days: 30}, nil
		}
		days, err := strconv.Atoi(raw)
		if err != nil {
			return exportdomain.Period{}, costdomain.ErrInvalidPeriod
		}
		period := exportdomain.Period{Kind: exportdomain.PeriodLastNDays, Days: days}
		return period, period.Validate()
	default:
		return exportdomain.Period{}, costdomain.ErrInvalidPeriod
	}
}
