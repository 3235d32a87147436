package dbaas

import (
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/dbaas/internal/transport"
)

var validate = validator.New()

var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9_-]{0,62}$`)

func init() {
	validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return nameRegex.MatchString(fl.Field().String())
	})
}

// preflight validates a request struct locally. Failures never reach the
// wire; they surface as ValidationError.
func preflight(v any) error {
	if err := validate.Struct(v); err != nil {
		return transport.NewError(transport.KindValidationError, "%v", err)
	}
	return nil
}

// requireID guards against an empty id turning an item URL into a
// collection URL.
func requireID(id, what string) error {
	if id == "" {
		return transport.NewError(transport.KindValidationError, "missing required %s", what)
	}
	return nil
}
