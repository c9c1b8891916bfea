package outreach

import "github.com/go-playground/validator/v10"

// validate is the package-level validator instance for request types.
var validate = validator.New(validator.WithRequiredStructEnabled())

func validateStruct(v any) error { return validate.Struct(v) }
