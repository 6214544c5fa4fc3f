package config

import (
	"reflect"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"

	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	logLevels = map[string]struct{}{
		"debug": {}, "info": {}, "warning": {}, "warn": {}, "error": {}, "critical": {},
	}
)

// validatorInstance configures and returns the shared validator instance used across the config package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		// Report yaml keys rather than Go field names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		_ = v.RegisterValidation("semver", func(fl validator.FieldLevel) bool {
			_, err := semver.NewVersion(fl.Field().String())
			return err == nil
		})

		_ = v.RegisterValidation("ccstate", func(fl validator.FieldLevel) bool {
			_, err := reconcile.ParseState(fl.Field().String())
			return err == nil
		})

		_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
			_, ok := logLevels[strings.ToLower(fl.Field().String())]
			return ok
		})

		validateInst = v
	})

	return validateInst
}

// GetValidator returns a configured validator instance for use outside the config package.
func GetValidator() *validator.Validate {
	return validatorInstance()
}
