package errors

import (
	goerrors "errors"
	"reflect"
	"strings"
)

// Classify returns a snake_case type name for the innermost error in chain,
// suitable for log attributes and metric tags. Joined errors follow their first member.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			errs := joined.Unwrap()
			if len(errs) == 0 {
				break
			}
			err = errs[0]
			continue
		}
		next := goerrors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ReplaceAll(strings.ToLower(t.String()), ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
