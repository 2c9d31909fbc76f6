package http

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
)

const statusError = "error"

// shortenRequest represents the structure for a request to shorten a URL.
type shortenRequest struct {
	OriginalURL string     `json:"original_url" validate:"required,url"`
	CustomAlias string     `json:"custom_alias" validate:"omitempty,alphanum,min=3,max=32"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (req shortenRequest) toEntity(userID int64) entity.NewURL {
	return entity.NewURL{
		ShortCode:   req.CustomAlias,
		OriginalURL: req.OriginalURL,
		ExpiresAt:   req.ExpiresAt,
		UserID:      &userID,
	}
}

// replaceURLRequest represents a full replacement of a URL's mutable fields.
// An absent expires_at clears the expiry.
type replaceURLRequest struct {
	OriginalURL string     `json:"original_url" validate:"required,url"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (req replaceURLRequest) toEntity() entity.URLUpdate {
	return entity.URLUpdate{
		OriginalURL: entity.Some(req.OriginalURL),
		ExpiresAt:   entity.Some(req.ExpiresAt),
	}
}

// patchURLRequest carries only the fields the client sent.
type patchURLRequest struct {
	OriginalURL entity.Optional[string]     `json:"original_url"`
	ExpiresAt   entity.Optional[*time.Time] `json:"expires_at"`
}

func (req patchURLRequest) validate(v *validator.Validate) []validationError {
	if originalURL, ok := req.OriginalURL.Get(); ok {
		return varErrors("original_url", v.Var(originalURL, "required,url"))
	}

	return nil
}

func (req patchURLRequest) toEntity() entity.URLUpdate {
	return entity.URLUpdate{
		OriginalURL: req.OriginalURL,
		ExpiresAt:   req.ExpiresAt,
	}
}

// urlResponse represents the structure for a response containing shortened URL information.
type urlResponse struct {
	ID          int64      `json:"id"`
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toURLResponse(url *entity.URL) urlResponse {
	return urlResponse{
		ID:          url.ID,
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		ExpiresAt:   url.ExpiresAt,
		CreatedAt:   url.CreatedAt,
		UpdatedAt:   url.UpdatedAt,
	}
}

func toURLListResponse(urls []*entity.URL) []urlResponse {
	resp := make([]urlResponse, 0, len(urls))
	for _, url := range urls {
		resp = append(resp, toURLResponse(url))
	}
	return resp
}

// urlStatsResponse represents the structure for a response containing URL statistics.
type urlStatsResponse struct {
	urlResponse
	Stats urlStats `json:"stats"`
}

type urlStats struct {
	Visits        int64      `json:"visits"`
	LastVisitedAt *time.Time `json:"last_visited_at"`
}

func toURLStatsResponse(url *entity.URL) urlStatsResponse {
	return urlStatsResponse{
		urlResponse: toURLResponse(url),
		Stats: urlStats{
			Visits:        url.Visits,
			LastVisitedAt: url.LastVisitedAt,
		},
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72,maxbytes"`
}

// loginRequest accepts either an email or a username as login.
type loginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Password entity.Optional[string] `json:"password"`
	IsActive entity.Optional[*bool]  `json:"is_active"`
}

func (req profileRequest) validate(v *validator.Validate) []validationError {
	var errs []validationError

	if password, ok := req.Password.Get(); ok {
		errs = append(errs, varErrors("password", v.Var(password, "required,min=8,max=72,maxbytes"))...)
	}
	if isActive, ok := req.IsActive.Get(); ok && isActive == nil {
		errs = append(errs, validationError{Field: "is_active", Message: messageForTag("required")})
	}

	return errs
}

func (req profileRequest) toUseCase() usecase.ProfileUpdate {
	upd := usecase.ProfileUpdate{Password: req.Password}
	if isActive, ok := req.IsActive.Get(); ok && isActive != nil {
		upd.IsActive = entity.Some(*isActive)
	}
	return upd
}

type userResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(user *entity.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func toTokenResponse(tok *entity.Token) tokenResponse {
	return tokenResponse{
		AccessToken: tok.Value,
		TokenType:   "Bearer",
		ExpiresAt:   tok.ExpiresAt,
	}
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Errors  []validationError `json:"errors,omitempty"`
}

func newErrorResponse(message string) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: message,
	}
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse   = newErrorResponse("empty request body")
	invalidRequestBodyResponse = newErrorResponse("invalid request body")
	invalidQueryResponse       = newErrorResponse("invalid query parameters")
	missingTokenResponse       = newErrorResponse("missing bearer token")
	urlNotFoundResponse        = newErrorResponse("url not found")
	urlExpiredResponse         = newErrorResponse("url expired")
	expiryInPastResponse       = newErrorResponse("expiry is in the past")
	shortCodeExistsResponse    = newErrorResponse("short code already exists")
	emailExistsResponse        = newErrorResponse("email already registered")
	usernameExistsResponse     = newErrorResponse("username already taken")
	invalidCredentialsResponse = newErrorResponse("invalid credentials")
	inactiveUserResponse       = newErrorResponse("user is inactive")
	passwordTooLongResponse    = newErrorResponse("password is too long")
	serverErrorResponse        = newErrorResponse("server error occurred")
)

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	case "email":
		return "invalid email"
	case "alphanum":
		return "only letters and digits are allowed"
	case "min":
		return "value is too short"
	case "max", "maxbytes":
		return "value is too long"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// varErrors names the errors of a single-variable validation after field.
func varErrors(field string, err error) []validationError {
	errs := getValidationErrors(err)
	for i := range errs {
		errs[i].Field = field
	}
	return errs
}

func validationErrorResponse(errs []validationError) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: "validation error",
		Errors:  errs,
	}
}
