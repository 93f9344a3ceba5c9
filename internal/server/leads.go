package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	leaddomain "github.com/smallbiznis/floorquote/internal/lead/domain"
)

type createLeadRequest struct {
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone"`
	PostalCode    string         `json:"postal_code"`
	City          string         `json:"city"`
	Brand         string         `json:"brand"`
	SquareFootage int            `json:"square_footage"`
	SizeLabel     string         `json:"size_label"`
	Installation  bool           `json:"installation"`
	Timeline      string         `json:"timeline"`
	Notes         string         `json:"notes"`
	Metadata      map[string]any `json:"metadata"`
}

type sendCodeRequest struct {
	Channel string `json:"channel"`
}

type verifyLeadRequest struct {
	Code string `json:"code"`
}

func (s *Server) CreateLead(c *gin.Context) {
	var req createLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	metadata := map[string]any{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if ua := strings.TrimSpace(c.Request.UserAgent()); ua != "" {
		metadata["user_agent"] = ua
	}
	if ip := strings.TrimSpace(c.ClientIP()); ip != "" {
		metadata["client_ip"] = ip
	}

	lead, err := s.leadSvc.Create(c.Request.Context(), leaddomain.CreateLeadRequest{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Phone:         req.Phone,
		PostalCode:    req.PostalCode,
		City:          req.City,
		Brand:         req.Brand,
		SquareFootage: req.SquareFootage,
		SizeLabel:     req.SizeLabel,
		Installation:  req.Installation,
		Timeline:      req.Timeline,
		Notes:         req.Notes,
		Metadata:      metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, lead)
}

func (s *Server) GetLead(c *gin.Context) {
	lead, err := s.leadSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, lead)
}

func (s *Server) SendVerificationCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leadSvc.SendCode(c.Request.Context(), leaddomain.SendCodeRequest{
		LeadID:  c.Param("id"),
		Channel: leaddomain.Channel(strings.ToLower(strings.TrimSpace(req.Channel))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) VerifyLead(c *gin.Context) {
	var req verifyLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.leadSvc.Verify(c.Request.Context(), leaddomain.VerifyRequest{
		LeadID: c.Param("id"),
		Code:   req.Code,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, resp)
}

func (s *Server) CancelLead(c *gin.Context) {
	lead, err := s.leadSvc.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, lead)
}

func isLeadValidationError(err error) bool {
	switch {
	case errors.Is(err, leaddomain.ErrInvalidID),
		errors.Is(err, leaddomain.ErrInvalidName),
		errors.Is(err, leaddomain.ErrInvalidEmail),
		errors.Is(err, leaddomain.ErrInvalidPhone),
		errors.Is(err, leaddomain.ErrInvalidPostalCode),
		errors.Is(err, leaddomain.ErrInvalidBrand),
		errors.Is(err, leaddomain.ErrInvalidSquareFootage),
		errors.Is(err, leaddomain.ErrInvalidTimeline),
		errors.Is(err, leaddomain.ErrInvalidChannel),
		errors.Is(err, leaddomain.ErrInvalidCode),
		errors.Is(err, leaddomain.ErrCodeMismatch):
		return true
	default:
		return false
	}
}
