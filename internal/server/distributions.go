package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	distributiondomain "github.com/smallbiznis/floorquote/internal/distribution/domain"
)

func (s *Server) DistributeLead(c *gin.Context) {
	report, err := s.distributionSvc.Distribute(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, report)
}

func (s *Server) ListLeadDistributions(c *gin.Context) {
	items, err := s.distributionSvc.ListByLead(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, items)
}

func (s *Server) ListRetailerDistributions(c *gin.Context) {
	pageSize, err := parsePageSize(c.Query("page_size"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.distributionSvc.ListByRetailer(c.Request.Context(), distributiondomain.ListByRetailerRequest{
		RetailerID: c.Param("id"),
		PageToken:  c.Query("page_token"),
		PageSize:   pageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func isDistributionValidationError(err error) bool {
	switch {
	case errors.Is(err, distributiondomain.ErrInvalidLead),
		errors.Is(err, distributiondomain.ErrInvalidRetailer):
		return true
	default:
		return false
	}
}
