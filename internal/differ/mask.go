package differ

import (
	"regexp"
	"strings"
)

var templatePlaceholder = regexp.MustCompile(`^\{\{\s*[A-Za-z_][A-Za-z0-9_.]*\s*\}\}$`)

// IsMasked reports whether value is a redaction placeholder such as
// "********" or "{{ device_password }}". Masked values never cause a diff.
func IsMasked(value any) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	if len(s) >= 3 && strings.Trim(s, "*") == "" {
		return true
	}
	return templatePlaceholder.MatchString(s)
}
