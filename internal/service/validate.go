package service

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is shared by every service's Create path. Struct-tag rules
// live on the request DTOs in internal/models; anything a tag cannot
// express (cron grammar, token-policy derivation) stays in the service
// that owns it.
var validate = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(req any) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
