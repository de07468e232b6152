package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	customerdomain "github.com/retainly/retainly/internal/customer/domain"
)

func parseCustomerID(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, customerdomain.ErrInvalidID
	}
	return id, nil
}

func (s *Server) ListCustomers(c *gin.Context) {
	resp, err := s.customerSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	id, err := parseCustomerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.customerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// GetCustomerFeatures serves the latest stored feature record. as_of narrows
// the lookup to records at or before the given date.
func (s *Server) GetCustomerFeatures(c *gin.Context) {
	id, err := parseCustomerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	asOf := time.Now().UTC()
	if raw := strings.TrimSpace(c.Query("as_of")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			parsed, err = time.Parse("2006-01-02", raw)
		}
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		asOf = parsed
	}

	rec, err := s.featureStore.Latest(c.Request.Context(), id, asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if rec == nil {
		AbortWithError(c, customerdomain.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rec})
}

func (s *Server) GetCustomerFeatureHistory(c *gin.Context) {
	id, err := parseCustomerID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, -3, 0)
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		to = parsed
	}

	records, err := s.featureStore.History(c.Request.Context(), id, from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}
