package dto

import (
	"errors"
	"regexp"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hongminglow/all-in-dash/internal/models"
)

// ValidationError reports bad user input. It is raised before any request is sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	validate      = validator.New()
	letterSpaceRe = regexp.MustCompile(`^[a-zA-Z\s]+$`)
)

func init() {
	_ = validate.RegisterValidation("letterspace", func(fl validator.FieldLevel) bool {
		return letterSpaceRe.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("investortype", catalog(models.InvestorTypes))
	_ = validate.RegisterValidation("contenttype", catalog(models.ContentTypes))
	_ = validate.RegisterValidation("targettype", catalog(models.TargetTypes))
}

func catalog(values []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return slices.Contains(values, fl.Field().String())
	}
}

// messages maps "Field.tag" to the text shown to the user. Slice elements use "Field[].tag".
var messages = map[string]string{
	"Name.required":              "Name must be at least 2 characters long",
	"Name.min":                   "Name must be at least 2 characters long",
	"Name.letterspace":           "Name must contain only English letters and spaces",
	"Email.required":             "Email is required",
	"Email.email":                "Email address is invalid",
	"Password.required":          "Password is required",
	"InvestorType.required":      "Please select your investor type",
	"InvestorType.investortype":  "Unknown investor type",
	"ContentTypes.min":           "Please select at least one content type",
	"ContentTypes[].contenttype": "Unknown content type",
	"Assets[].required":          "Asset names must not be empty",
	"TargetType.required":        "Vote target type is required",
	"TargetType.targettype":      "Unknown vote target type",
	"TargetID.required":          "Vote target id is required",
	"Vote.oneof":                 "Vote must be 1 or -1",
}

// Validate checks v against its validate tags and returns the first failure
// as a *ValidationError.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	field, key := fe.StructField(), fe.StructField()
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
		key = field + "[]"
	}
	msg, ok := messages[key+"."+fe.Tag()]
	if !ok {
		msg = fe.Error()
	}
	return &ValidationError{Field: field, Message: msg}
}
