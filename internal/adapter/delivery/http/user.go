package http

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
)

type authUseCase interface {
	Register(ctx context.Context, email, username, password string) (*entity.User, error)
	Login(ctx context.Context, login, password string) (*entity.Token, error)
	Authenticate(ctx context.Context, token string) (*entity.User, error)
	Logout(ctx context.Context, token string) error
	UpdateProfile(ctx context.Context, user *entity.User, upd usecase.ProfileUpdate) (*entity.User, error)
}

type userHandler struct {
	useCase  authUseCase
	validate *validator.Validate
}

func newUserHandler(useCase authUseCase, validate *validator.Validate) *userHandler {
	return &userHandler{
		useCase:  useCase,
		validate: validate,
	}
}

func (h *userHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest

	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeValidationErrors(w, r, getValidationErrors(err))
		return
	}

	user, err := h.useCase.Register(r.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toUserResponse(user))
}

func (h *userHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest

	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeValidationErrors(w, r, getValidationErrors(err))
		return
	}

	tok, err := h.useCase.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toTokenResponse(tok))
}

func (h *userHandler) me(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, toUserResponse(userFromContext(r.Context())))
}

func (h *userHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest

	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := req.validate(h.validate); len(errs) > 0 {
		writeValidationErrors(w, r, errs)
		return
	}

	user, err := h.useCase.UpdateProfile(r.Context(), userFromContext(r.Context()), req.toUseCase())
	if err != nil {
		writeError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toUserResponse(user))
}

// logout revokes the token the request was authenticated with.
func (h *userHandler) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := bearerToken(r)

	if err := h.useCase.Logout(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
