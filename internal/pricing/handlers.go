package pricing

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves pricing estimates.
type Handler struct {
	creditPriceUSD float64
}

// NewHandler creates a pricing handler. creditPriceUSD may be zero when no
// monetary pricing is configured.
func NewHandler(creditPriceUSD float64) *Handler {
	return &Handler{creditPriceUSD: creditPriceUSD}
}

// RegisterRoutes sets up the pricing routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/pricing", h.ListPricing)
	r.GET("/pricing/:tier", h.GetPricing)
}

// ListPricing handles GET /v1/pricing
func (h *Handler) ListPricing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tiers": All(h.creditPriceUSD)})
}

// GetPricing handles GET /v1/pricing/:tier
func (h *Handler) GetPricing(c *gin.Context) {
	c.JSON(http.StatusOK, ForTier(c.Param("tier"), h.creditPriceUSD))
}
