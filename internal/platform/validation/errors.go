package validation

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorBody is the 400 payload for rejected requests. Fields is keyed by the
// JSON path of the offending value, e.g. "channels[1]" or "audience.scope",
// and lists the failed rules with their parameter ("oneof=low medium").
type ErrorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
}

// ErrorResponse converts a validator error into an ErrorBody. Other errors,
// such as bind failures, keep their message.
func ErrorResponse(err error) ErrorBody {
	fields := map[string][]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			path := fieldPath(fe.Namespace())
			fields[path] = append(fields[path], rule(fe))
		}
	}
	if len(fields) == 0 {
		return ErrorBody{Error: err.Error(), Fields: fields}
	}
	return ErrorBody{Error: "validation_failed", Fields: fields}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func rule(fe validator.FieldError) string {
	if p := fe.Param(); p != "" {
		return fe.Tag() + "=" + p
	}
	return fe.Tag()
}
