package service

import (
	"errors"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/sakif/wish-board/internal/apperror"
)

// fromValidation converts an ozzo-validation result into an
// apperror.ValidationFailed for the first failing field (alphabetical, so the
// reported field is stable). Internal rule errors are returned as-is.
func fromValidation(err error) error {
	if err == nil {
		return nil
	}

	var errs validation.Errors
	if !errors.As(err, &errs) {
		var ie validation.InternalError
		if errors.As(err, &ie) {
			return err
		}
		return apperror.ValidationFailed("", err.Error())
	}

	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	field := fields[0]
	return apperror.ValidationFailed(field, field+": "+errs[field].Error())
}
