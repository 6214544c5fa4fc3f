package schema

import (
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	sitePathPattern = regexp.MustCompile(`(?i)^global(/[^/]+)*$`)
	wireKeyPattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// validatorInstance configures and returns the shared validator used for
// per-field semantic tags.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		// site_path accepts controller hierarchy names such as Global/USA/SJC.
		// The root matches in any case, like the rest of the path.
		_ = v.RegisterValidation("site_path", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if strings.Contains(s, "//") || strings.HasSuffix(s, "/") {
				return false
			}
			return sitePathPattern.MatchString(s)
		})

		_ = v.RegisterValidation("asn", func(fl validator.FieldLevel) bool {
			n := fl.Field().Int()
			return n >= 1 && n <= 4294967295
		})

		_ = v.RegisterValidation("wire_key", func(fl validator.FieldLevel) bool {
			return wireKeyPattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// Validator returns the shared validator instance so other packages can
// check values with the same tag set.
func Validator() *validator.Validate {
	return validatorInstance()
}
