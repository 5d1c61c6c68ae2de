package wizard

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Form field names, as used in API payloads and error maps.
const (
	FieldFullName          = "fullName"
	FieldEmail             = "email"
	FieldPassword          = "password"
	FieldConfirmPassword   = "confirmPassword"
	FieldExperienceLevelID = "experienceLevelId"
	FieldCategoryIDs       = "categoryIds"
	FieldCountryID         = "countryId"
)

// FieldErrors maps a form field to its validation message. Empty means valid.
type FieldErrors map[string]string

var (
	validate = newValidator()

	hasUpper  = regexp.MustCompile(`[A-Z]`)
	hasLower  = regexp.MustCompile(`[a-z]`)
	hasNumber = regexp.MustCompile(`[0-9]`)
	hasSymbol = regexp.MustCompile(`[\W_]`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("password_strength", func(fl validator.FieldLevel) bool {
		return VerifyPasswordComplexity(fl.Field().String()) == nil
	})
	return v
}

// VerifyPasswordComplexity checks that the password meets complexity requirements.
func VerifyPasswordComplexity(pw string) error {
	switch {
	case len(pw) < 8:
		return fmt.Errorf("password must be at least 8 characters long")
	case !hasUpper.MatchString(pw):
		return fmt.Errorf("password must include at least one uppercase letter")
	case !hasLower.MatchString(pw):
		return fmt.Errorf("password must include at least one lowercase letter")
	case !hasNumber.MatchString(pw):
		return fmt.Errorf("password must include at least one number")
	case !hasSymbol.MatchString(pw):
		return fmt.Errorf("password must include at least one symbol")
	}
	return nil
}

type fullNameInput struct {
	FullName string `json:"fullName" validate:"required"`
}

type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordInput struct {
	Password        string `json:"password" validate:"required,password_strength"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// ValidateFullName rejects a blank name.
func ValidateFullName(fullName string) FieldErrors {
	return run(fullNameInput{FullName: strings.TrimSpace(fullName)}, nil)
}

// ValidateEmail rejects empty and malformed addresses.
func ValidateEmail(email string) FieldErrors {
	return run(emailInput{Email: strings.TrimSpace(email)}, nil)
}

// ValidatePassword applies the strength policy and requires the confirmation to match.
func ValidatePassword(password, confirmPassword string) FieldErrors {
	return run(passwordInput{Password: password, ConfirmPassword: confirmPassword}, map[string]string{
		FieldPassword: passwordMessage(password),
	})
}

func passwordMessage(pw string) string {
	if err := VerifyPasswordComplexity(pw); err != nil {
		msg := err.Error()
		return strings.ToUpper(msg[:1]) + msg[1:]
	}
	return ""
}

// run validates input and renders one message per failing field. custom overrides the
// generic message for a field's non-required failures.
func run(input interface{}, custom map[string]string) FieldErrors {
	errs := FieldErrors{}
	err := validate.Struct(input)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["_"] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := errs[field]; seen {
			continue
		}
		if msg, ok := custom[field]; ok && msg != "" && fe.Tag() != "required" {
			errs[field] = msg
			continue
		}
		errs[field] = message(field, fe.Tag())
	}
	return errs
}

func message(field, tag string) string {
	switch {
	case tag == "required" && field == FieldFullName:
		return "Full name is required"
	case tag == "required" && field == FieldEmail:
		return "Email is required"
	case tag == "required" && field == FieldPassword:
		return "Password is required"
	case tag == "required" && field == FieldConfirmPassword:
		return "Please confirm your password"
	case tag == "email":
		return "Enter a valid email address"
	case tag == "eqfield":
		return "Passwords do not match"
	default:
		return "Invalid value"
	}
}

// Visible returns the errors of touched fields only.
func (e FieldErrors) Visible(touched map[string]bool) FieldErrors {
	out := FieldErrors{}
	for field, msg := range e {
		if touched[field] {
			out[field] = msg
		}
	}
	return out
}
