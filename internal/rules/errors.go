package rules

import (
	"errors"
	"fmt"
)

// InvalidRuleError reports bad condition or action grammar. Rules fail
// at registration time, never at evaluation time, so a bad rule cannot
// stall playback.
type InvalidRuleError struct {
	RuleID  string
	Field   string
	Message string
}

func (e *InvalidRuleError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("invalid rule %q: %s: %s", e.RuleID, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid rule: %s: %s", e.Field, e.Message)
}

// IsInvalidRule reports whether err is an InvalidRuleError.
// Uses errors.As to handle wrapped errors.
func IsInvalidRule(err error) bool {
	var e *InvalidRuleError
	return errors.As(err, &e)
}
