package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/aiwallpaper/internal/common"
	"github.com/go-playground/validator/v10"
)

const maxJSONBody = 1 << 20

type registerRequest struct {
	UserName        string `json:"username" validate:"required,min=3,max=50"`
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

func (r *registerRequest) normalize() { r.UserName = strings.TrimSpace(r.UserName) }

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  int    `json:"code" validate:"required,min=100000,max=999999"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=128"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type resetPasswordRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Code            int    `json:"code" validate:"required,min=100000,max=999999"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type googleRequest struct {
	IDToken string `json:"id_token" validate:"required"`
	Name    string `json:"name" validate:"max=100"`
	Picture string `json:"picture" validate:"omitempty,url,startswith=https://"`
}

type updateProfileRequest struct {
	UserName    *string `json:"username" validate:"omitempty,min=3,max=50"`
	FirstName   *string `json:"first_name" validate:"omitempty,max=100"`
	LastName    *string `json:"last_name" validate:"omitempty,max=100"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=32"`
}

func (r *updateProfileRequest) normalize() {
	if r.UserName != nil {
		name := strings.TrimSpace(*r.UserName)
		r.UserName = &name
	}
}

type changePasswordRequest struct {
	OldPassword     string `json:"old_password" validate:"required"`
	Password        string `json:"password" validate:"required,password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type wallpaperRequest struct {
	Prompt string `json:"prompt" validate:"required,max=255"`
	Size   string `json:"size" validate:"required"`
	Style  string `json:"style"`
}

type suggestRequest struct {
	Prompt string `json:"prompt" validate:"required,max=255"`
}

// newValidate returns a validator that reports json field names and knows
// the "password" rule: at least 8 characters with a letter and a digit.
func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
	return v
}

func strongPassword(p string) bool {
	if len([]rune(p)) < 8 {
		return false
	}
	var letter, digit bool
	for _, r := range p {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// decode reads a JSON body into dst and validates it. Every failure wraps
// common.ErrorValidation.
func (h *handler) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrorValidation)
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	return h.check(dst)
}

// normalizer is implemented by requests whose fields are trimmed before
// validation.
type normalizer interface {
	normalize()
}

func (h *handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}
	return fmt.Errorf("%w: %s", common.ErrorValidation, describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "password":
		return fe.Field() + " must be at least 8 characters and contain a letter and a number"
	case "eqfield":
		return "passwords do not match"
	case "min", "max":
		return fmt.Sprintf("%s violates %s=%s", fe.Field(), fe.Tag(), fe.Param())
	case "url":
		return fe.Field() + " must be a URL"
	case "startswith":
		return fe.Field() + " must start with " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
