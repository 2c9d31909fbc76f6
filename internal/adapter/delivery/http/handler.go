package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/pkg/password"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

func newValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// bcrypt limits passwords by bytes, not runes.
	_ = validate.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= password.MaxBytes
	})
	return validate
}

// decodeJSON reads the request body into v and writes a 400 response on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		render.Status(r, http.StatusBadRequest)
		if errors.Is(err, io.EOF) {
			render.JSON(w, r, emptyRequestBodyResponse)
		} else {
			render.JSON(w, r, invalidRequestBodyResponse)
		}
		return false
	}

	return true
}

func writeValidationErrors(w http.ResponseWriter, r *http.Request, errs []validationError) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, validationErrorResponse(errs))
}

// writeError maps err onto a status code and a response body. Unknown errors are logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := http.StatusInternalServerError, serverErrorResponse

	switch {
	case errors.Is(err, entity.ErrURLNotFound):
		status, resp = http.StatusNotFound, urlNotFoundResponse
	case errors.Is(err, entity.ErrURLExpired):
		status, resp = http.StatusGone, urlExpiredResponse
	case errors.Is(err, entity.ErrExpiryInPast):
		status, resp = http.StatusBadRequest, expiryInPastResponse
	case errors.Is(err, entity.ErrShortCodeExists):
		status, resp = http.StatusConflict, shortCodeExistsResponse
	case errors.Is(err, entity.ErrEmailExists):
		status, resp = http.StatusConflict, emailExistsResponse
	case errors.Is(err, entity.ErrUsernameExists):
		status, resp = http.StatusConflict, usernameExistsResponse
	case errors.Is(err, entity.ErrInvalidCredentials), errors.Is(err, entity.ErrUserNotFound):
		status, resp = http.StatusUnauthorized, invalidCredentialsResponse
	case errors.Is(err, entity.ErrInactiveUser):
		status, resp = http.StatusForbidden, inactiveUserResponse
	case errors.Is(err, password.ErrTooLong):
		status, resp = http.StatusBadRequest, passwordTooLongResponse
	default:
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}

type userCtxKey struct{}

func withUser(ctx context.Context, user *entity.User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, user)
}

func userFromContext(ctx context.Context) *entity.User {
	user, _ := ctx.Value(userCtxKey{}).(*entity.User)
	return user
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}

// authenticate rejects requests without a valid bearer token of an active
// user and stores the user in the request context.
func authenticate(useCase authUseCase) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, missingTokenResponse)
				return
			}

			user, err := useCase.Authenticate(r.Context(), token)
			if err != nil {
				writeError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
		})
	}
}
