package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
)

type createRetailerRequest struct {
	BusinessName           string   `json:"business_name"`
	ContactName            string   `json:"contact_name"`
	Email                  string   `json:"email"`
	Phone                  string   `json:"phone"`
	PostalPrefixes         []string `json:"postal_prefixes"`
	InstallationPreference string   `json:"installation_preference"`
	UrgencyPreference      string   `json:"urgency_preference"`
	Status                 string   `json:"status"`
}

type updateRetailerRequest struct {
	ContactName            *string   `json:"contact_name"`
	Phone                  *string   `json:"phone"`
	PostalPrefixes         *[]string `json:"postal_prefixes"`
	InstallationPreference *string   `json:"installation_preference"`
	UrgencyPreference      *string   `json:"urgency_preference"`
	Status                 *string   `json:"status"`
}

type createSubscriptionRequest struct {
	Brand   string `json:"brand"`
	SqftMin int    `json:"sqft_min"`
	SqftMax *int   `json:"sqft_max"`
}

func (s *Server) CreateRetailer(c *gin.Context) {
	var req createRetailerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	retailer, err := s.retailerSvc.Create(c.Request.Context(), retailerdomain.CreateRetailerRequest{
		BusinessName:           req.BusinessName,
		ContactName:            req.ContactName,
		Email:                  req.Email,
		Phone:                  req.Phone,
		PostalPrefixes:         req.PostalPrefixes,
		InstallationPreference: retailerdomain.InstallationPreference(req.InstallationPreference),
		UrgencyPreference:      retailerdomain.UrgencyPreference(req.UrgencyPreference),
		Status:                 retailerdomain.Status(req.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, retailer)
}

func (s *Server) GetRetailer(c *gin.Context) {
	retailer, err := s.retailerSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, retailer)
}

func (s *Server) UpdateRetailer(c *gin.Context) {
	var req updateRetailerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := retailerdomain.UpdateRetailerRequest{
		ID:             c.Param("id"),
		ContactName:    req.ContactName,
		Phone:          req.Phone,
		PostalPrefixes: req.PostalPrefixes,
	}
	if req.InstallationPreference != nil {
		pref := retailerdomain.InstallationPreference(*req.InstallationPreference)
		update.InstallationPreference = &pref
	}
	if req.UrgencyPreference != nil {
		pref := retailerdomain.UrgencyPreference(*req.UrgencyPreference)
		update.UrgencyPreference = &pref
	}
	if req.Status != nil {
		status := retailerdomain.Status(*req.Status)
		update.Status = &status
	}

	retailer, err := s.retailerSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, retailer)
}

func (s *Server) AddSubscription(c *gin.Context) {
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := s.retailerSvc.AddSubscription(c.Request.Context(), retailerdomain.CreateSubscriptionRequest{
		RetailerID: c.Param("id"),
		Brand:      req.Brand,
		SqftMin:    req.SqftMin,
		SqftMax:    req.SqftMax,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusCreated, sub)
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	subs, err := s.retailerSvc.ListSubscriptions(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, subs)
}

func (s *Server) DeactivateSubscription(c *gin.Context) {
	if err := s.retailerSvc.DeactivateSubscription(c.Request.Context(), c.Param("id"), c.Param("subID")); err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{"id": c.Param("subID"), "active": false})
}

func isRetailerValidationError(err error) bool {
	switch {
	case errors.Is(err, retailerdomain.ErrInvalidID),
		errors.Is(err, retailerdomain.ErrInvalidName),
		errors.Is(err, retailerdomain.ErrInvalidEmail),
		errors.Is(err, retailerdomain.ErrInvalidPrefix),
		errors.Is(err, retailerdomain.ErrInvalidInstallation),
		errors.Is(err, retailerdomain.ErrInvalidUrgency),
		errors.Is(err, retailerdomain.ErrInvalidStatus),
		errors.Is(err, retailerdomain.ErrInvalidBrand),
		errors.Is(err, retailerdomain.ErrInvalidTier):
		return true
	default:
		return false
	}
}
