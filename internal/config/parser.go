package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	apperrors "github.com/alexisbeaulieu97/ccreconcile/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// ParseArgs loads an argument file from disk, applies defaults, and validates it.
func ParseArgs(path string) (*ModuleArgs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewParseError(path, 0, err)
	}
	return ParseArgsBytes(path, data)
}

// ParseArgsBytes decodes an argument document. name labels parse errors.
func ParseArgsBytes(name string, data []byte) (*ModuleArgs, error) {
	args := Defaults()
	if err := yaml.Unmarshal(data, &args); err != nil {
		return nil, apperrors.NewParseError(name, extractLine(err), err)
	}
	if err := ValidateArgs(&args); err != nil {
		return nil, err
	}
	return &args, nil
}

// ValidateArgs checks the record and reports every offending key.
func ValidateArgs(args *ModuleArgs) error {
	if args == nil {
		return apperrors.NewValidationError("args", "argument record is nil", nil)
	}
	if err := validatorInstance().Struct(args); err != nil {
		return convertValidationError(err)
	}
	return nil
}

func convertValidationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return apperrors.NewValidationError("args", err.Error(), err)
	}

	violations := make([]apperrors.Violation, 0, len(ves))
	for _, fe := range ves {
		violations = append(violations, apperrors.Violation{
			Index:   -1,
			Path:    fe.Field(),
			Message: describeFieldError(fe),
		})
	}
	return apperrors.NewViolationsError(violations)
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "ccstate":
		return fmt.Sprintf("value %q is not one of merged, deleted, present, absent", fe.Value())
	case "loglevel":
		return fmt.Sprintf("value %q is not one of debug, info, warning, error, critical", fe.Value())
	case "ltefield":
		return "must not exceed task_timeout"
	}
	if fe.Param() != "" {
		return fmt.Sprintf("value %v failed validation for tag '%s=%s'", fe.Value(), fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("value %v failed validation for tag '%s'", fe.Value(), fe.Tag())
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	_, scanErr := fmt.Sscanf(matches[1], "%d", &line)
	if scanErr != nil {
		return 0
	}

	return line
}
