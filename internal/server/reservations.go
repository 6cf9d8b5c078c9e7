package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

func (s *Server) getReservations(c *gin.Context) {
	customerID := c.Param("customer_id")

	cache, err := s.refreshSvc.Get(c.Request.Context(), customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"customer_id":              cache.CustomerID,
		"status":                   cache.Status,
		"last_refreshed":           cache.LastRefreshed,
		"summary":                  blob(cache.Summary, "null"),
		"reservations":             blob(cache.Reservations, "[]"),
		"insights":                 blob(cache.Insights, "[]"),
		"purchase_recommendations": blob(cache.PurchaseRecommendations, "[]"),
		"errors":                   blob(cache.Errors, "[]"),
		"error_message":            cache.ErrorMessage,
	})
}

func (s *Server) triggerRefresh(c *gin.Context) {
	customerID := c.Param("customer_id")

	jobID, err := s.refreshSvc.Trigger(c.Request.Context(), customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id": jobID,
		"status": "accepted",
	})
}

func blob(data datatypes.JSON, fallback string) json.RawMessage {
	if len(data) == 0 {
		return json.RawMessage(fallback)
	}
	return json.RawMessage(data)
}
