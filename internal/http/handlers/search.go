package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/outfitmatch-backend/internal/domain/fashion"
	"github.com/yungbote/outfitmatch-backend/internal/http/response"
	"github.com/yungbote/outfitmatch-backend/internal/modules/matcher"
	"github.com/yungbote/outfitmatch-backend/internal/modules/vision"
	"github.com/yungbote/outfitmatch-backend/internal/platform/apierr"
)

type Searcher interface {
	Search(ctx context.Context, q matcher.Query) (fashion.SearchResult, error)
}

type SearchHandler struct {
	search Searcher
}

func NewSearchHandler(search Searcher) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchRequest struct {
	QueryText   string `json:"query_text"`
	ImageBase64 string `json:"image_base64"`
}

type searchResponse struct {
	Text           string       `json:"text"`
	Products       []productDTO `json:"products"`
	DetectedStyles []string     `json:"detected_styles"`
}

// POST /api/search
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondError(c, http.StatusRequestEntityTooLarge, "body_too_large", fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		response.RespondError(c, http.StatusBadRequest, "invalid_body", fmt.Errorf("invalid JSON body: %w", err))
		return
	}
	req.QueryText = strings.TrimSpace(req.QueryText)
	if req.QueryText == "" || strings.TrimSpace(req.ImageBase64) == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_fields", errors.New("query_text and image_base64 are required"))
		return
	}
	img, err := vision.DecodeBase64(req.ImageBase64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_image", err)
		return
	}

	res, err := h.search.Search(c.Request.Context(), matcher.Query{Text: req.QueryText, Image: img})
	if err != nil {
		if errors.Is(err, fashion.ErrInput) {
			response.RespondAPIError(c, apierr.BadRequest("invalid_query", err))
			return
		}
		response.RespondAPIError(c, apierr.Internal(err))
		return
	}

	out := searchResponse{
		Text:           res.Text,
		Products:       make([]productDTO, 0, len(res.Products)),
		DetectedStyles: res.DetectedStyles.Strings(),
	}
	for _, hit := range res.Products {
		out.Products = append(out.Products, hitDTO(hit))
	}
	response.RespondOK(c, out)
}
