package catalog

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError carries a message that is safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// AsValidation extracts the user-facing message of a validation error.
func AsValidation(err error) (string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message, true
	}
	return "", false
}

// ToolInput is the user-submitted part of a tool.
type ToolInput struct {
	Name          string `json:"name" validate:"required,min=2,max=150"`
	URL           string `json:"url" validate:"required,url,max=500"`
	LogoURL       string `json:"logo_url" validate:"required,url,max=500"`
	AppImageURL   string `json:"app_image_url" validate:"omitempty,url,max=500"`
	Category      string `json:"category" validate:"omitempty,max=100"`
	Description   string `json:"description" validate:"omitempty,max=5000"`
	PromoCode     string `json:"promo_code" validate:"omitempty,max=50"`
	PromoDiscount *int   `json:"promo_discount"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// describe turns the first validator failure into a readable message.
func describe(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return invalid("Invalid input")
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return invalid("%s is required", fe.Field())
	case "url":
		return invalid("%s must be a valid URL", fe.Field())
	case "max":
		return invalid("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return invalid("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		return invalid("%s is invalid", fe.Field())
	}
}

// ExtractDomain returns the lowercase host of rawURL without a leading
// "www.". Input without a host is lowercased as-is.
func ExtractDomain(rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(raw)
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// FormatPromoCode uppercases a promo code and strips whitespace.
func FormatPromoCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

// ValidatePromoPair requires promo code and discount to be given together
// and the discount to be a percentage between 1 and 100.
func ValidatePromoPair(code string, discount *int) error {
	hasCode := strings.TrimSpace(code) != ""
	hasDiscount := discount != nil
	switch {
	case hasCode && !hasDiscount:
		return invalid("Discount percentage is required when promo code is provided")
	case !hasCode && hasDiscount:
		return invalid("Promo code is required when discount percentage is provided")
	case hasDiscount && (*discount < 1 || *discount > 100):
		return invalid("Discount percentage must be between 1 and 100")
	}
	return nil
}
