package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/smallbiznis/floorquote/internal/credit/domain"
)

type checkoutRequest struct {
	PackCode string `json:"pack_code"`
}

func (s *Server) GetCreditBalance(c *gin.Context) {
	balance, err := s.creditSvc.GetBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, balance)
}

func (s *Server) CreateCreditCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	session, err := s.creditSvc.CreateCheckout(c.Request.Context(), creditdomain.CheckoutRequest{
		RetailerID: c.Param("id"),
		PackCode:   req.PackCode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, session)
}

func (s *Server) ListCreditTransactions(c *gin.Context) {
	pageSize, err := parsePageSize(c.Query("page_size"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.creditSvc.ListTransactions(c.Request.Context(), creditdomain.ListTransactionsRequest{
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

func isCreditValidationError(err error) bool {
	switch {
	case errors.Is(err, creditdomain.ErrInvalidRetailer),
		errors.Is(err, creditdomain.ErrInvalidPack),
		errors.Is(err, creditdomain.ErrInvalidCredits):
		return true
	default:
		return false
	}
}
