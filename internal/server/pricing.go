package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	leaddomain "github.com/smallbiznis/floorquote/internal/lead/domain"
)

type priceQuote struct {
	SquareFootage int    `json:"square_footage"`
	PriceCents    int64  `json:"price_cents"`
	Currency      string `json:"currency"`
}

type creditPackView struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Credits    int    `json:"credits"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
}

// QuoteLeadPrice accepts either a number or a size label such as "500-1000".
func (s *Server) QuoteLeadPrice(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("sqft"))
	if raw == "" {
		AbortWithError(c, newValidationError("sqft", "required", "sqft is required"))
		return
	}
	sqft, err := leaddomain.ParseSquareFootage(raw)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pricing := s.pricing.Get()
	respond(c, http.StatusOK, priceQuote{
		SquareFootage: sqft,
		PriceCents:    pricing.LeadTiers.PriceFor(sqft),
		Currency:      pricing.Currency,
	})
}

func (s *Server) ListCreditPacks(c *gin.Context) {
	pricing := s.pricing.Get()
	packs := make([]creditPackView, 0, len(pricing.CreditPacks))
	for _, pack := range pricing.CreditPacks {
		packs = append(packs, creditPackView{
			Code:       pack.Code,
			Name:       pack.Name,
			Credits:    pack.Credits,
			PriceCents: pack.PriceCents,
			Currency:   pricing.Currency,
		})
	}

	respond(c, http.StatusOK, packs)
}
