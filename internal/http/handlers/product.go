package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/http/response"
	"github.com/yungbote/outfitmatch-backend/internal/platform/apierr"
)

const (
	defaultMatchLimit = 5
	maxMatchLimit     = 20
)

type ProductReader interface {
	Product(ctx context.Context, id string) (fashion.Product, error)
	Complementary(ctx context.Context, productID string, limit int) ([]fashion.ProductHit, error)
}

type ProductHandler struct {
	products ProductReader
}

func NewProductHandler(products ProductReader) *ProductHandler {
	return &ProductHandler{products: products}
}

type productDTO struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Brand          string   `json:"brand"`
	Price          float64  `json:"price"`
	PredictedStyle []string `json:"predicted_style"`
	ImageURL       string   `json:"imageUrl"`
	OriginalPrice  float64  `json:"original_price,omitempty"`
	SharedStyles   int      `json:"shared_styles,omitempty"`
}

func hitDTO(h fashion.ProductHit) productDTO {
	return productDTO{
		ID:             h.ID,
		Name:           h.Name,
		Description:    h.Description,
		Category:       string(h.Category),
		Brand:          h.Brand,
		Price:          h.Price,
		PredictedStyle: h.Styles.Strings(),
		ImageURL:       h.ImageURL,
	}
}

// GET /api/products/:id
func (h *ProductHandler) GetProduct(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	p, err := h.products.Product(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, mapLookupError(err))
		return
	}
	dto := hitDTO(fashion.HitFromProduct(p, 0))
	dto.OriginalPrice = p.OriginalPrice
	response.RespondOK(c, gin.H{"product": dto})
}

// GET /api/products/:id/matches?limit=N
func (h *ProductHandler) ListMatches(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	limit := defaultMatchLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxMatchLimit {
			response.RespondAPIError(c, apierr.BadRequest("invalid_limit", fmt.Errorf("limit must be between 1 and %d", maxMatchLimit)))
			return
		}
		limit = n
	}
	hits, err := h.products.Complementary(c.Request.Context(), id, limit)
	if err != nil {
		response.RespondAPIError(c, mapLookupError(err))
		return
	}
	out := make([]productDTO, 0, len(hits))
	for _, hit := range hits {
		dto := hitDTO(hit)
		dto.SharedStyles = hit.SharedStyles
		out = append(out, dto)
	}
	response.RespondOK(c, gin.H{"product_id": id, "products": out})
}

func mapLookupError(err error) error {
	switch {
	case errors.Is(err, fashion.ErrNotFound):
		return apierr.NotFound("product_not_found", err)
	case errors.Is(err, fashion.ErrInput):
		return apierr.BadRequest("invalid_request", err)
	default:
		return apierr.Internal(err)
	}
}
