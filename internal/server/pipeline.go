package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type runETLRequest struct {
	Full bool `json:"full"`
}

func (s *Server) RunETL(c *gin.Context) {
	var req runETLRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	report, err := s.orchestrator.RunETL(c.Request.Context(), req.Full)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "completed",
		"records_processed": report.Processed,
		"data":              report,
	})
}

func (s *Server) RunTraining(c *gin.Context) {
	report, err := s.orchestrator.RunTraining(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

func (s *Server) ListModels(c *gin.Context) {
	artifacts, err := s.registry.ListArtifacts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": artifacts})
}
