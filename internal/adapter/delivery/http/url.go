package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type urlUseCase interface {
	ShortenURL(ctx context.Context, url entity.NewURL) (*entity.URL, error)
	ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	ModifyURL(ctx context.Context, shortCode string, upd entity.URLUpdate) (*entity.URL, error)
	DeactivateURL(ctx context.Context, shortCode string) error
	GetURLStats(ctx context.Context, shortCode string) (*entity.URL, error)
	SearchURLs(ctx context.Context, s entity.URLSearch) ([]*entity.URL, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate) *urlHandler {
	return &urlHandler{
		useCase:  useCase,
		validate: validate,
	}
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeValidationErrors(w, r, getValidationErrors(err))
		return
	}

	user := userFromContext(r.Context())

	url, err := h.useCase.ShortenURL(r.Context(), req.toEntity(user.ID))
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toURLResponse(url))
}

// resolveShortCode records a visit and answers with the URL record when the
// client asks for JSON, and with a redirect otherwise.
func (h *urlHandler) resolveShortCode(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	url, err := h.useCase.ResolveShortCode(r.Context(), shortCode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if render.GetAcceptedContentType(r) == render.ContentTypeJSON {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, toURLResponse(url))
		return
	}

	http.Redirect(w, r, url.OriginalURL, http.StatusFound)
}

func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	url, err := h.useCase.ResolveShortCode(r.Context(), shortCode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.Redirect(w, r, url.OriginalURL, http.StatusFound)
}

func (h *urlHandler) replaceURL(w http.ResponseWriter, r *http.Request) {
	var req replaceURLRequest

	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeValidationErrors(w, r, getValidationErrors(err))
		return
	}

	h.modifyURL(w, r, req.toEntity())
}

func (h *urlHandler) patchURL(w http.ResponseWriter, r *http.Request) {
	var req patchURLRequest

	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := req.validate(h.validate); len(errs) > 0 {
		writeValidationErrors(w, r, errs)
		return
	}

	h.modifyURL(w, r, req.toEntity())
}

func (h *urlHandler) modifyURL(w http.ResponseWriter, r *http.Request, upd entity.URLUpdate) {
	shortCode := chi.URLParam(r, "shortCode")

	url, err := h.useCase.ModifyURL(r.Context(), shortCode, upd)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLResponse(url))
}

func (h *urlHandler) deactivateURL(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	if err := h.useCase.DeactivateURL(r.Context(), shortCode); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *urlHandler) getURLStats(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	url, err := h.useCase.GetURLStats(r.Context(), shortCode)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLStatsResponse(url))
}

func (h *urlHandler) searchURLs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	s := entity.URLSearch{Query: query.Get("q")}

	var err error
	if v := query.Get("limit"); v != "" {
		if s.Limit, err = strconv.Atoi(v); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, invalidQueryResponse)
			return
		}
	}
	if v := query.Get("offset"); v != "" {
		if s.Offset, err = strconv.Atoi(v); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, invalidQueryResponse)
			return
		}
	}

	urls, err := h.useCase.SearchURLs(r.Context(), s)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLListResponse(urls))
}
