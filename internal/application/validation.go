package application

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/pharmatrace/trace-engine/internal/gs1"
	apperrors "github.com/pharmatrace/trace-engine/pkg/errors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once

	batchPrefixRegex = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
)

// Validator returns the shared command validator with the GS1 rules registered
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("gs1_prefix", func(fl validator.FieldLevel) bool {
			return gs1.ValidatePrefixFormat(fl.Field().String())
		})
		_ = validate.RegisterValidation("gln", func(fl validator.FieldLevel) bool {
			return gs1.ValidateGLN(fl.Field().String())
		})
		_ = validate.RegisterValidation("batch_prefix", func(fl validator.FieldLevel) bool {
			return batchPrefixRegex.MatchString(fl.Field().String())
		})
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// validateCommand returns a VALIDATION_ERROR listing each failing field
func validateCommand(cmd any) error {
	err := Validator().Struct(cmd)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.ErrValidation(err.Error())
	}
	appErr := apperrors.ErrValidation("command validation failed")
	for _, fe := range verrs {
		appErr.WithDetail(fe.Field(), fe.Tag())
	}
	return appErr
}
