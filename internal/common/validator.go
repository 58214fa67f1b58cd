package common

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

type GenericEchoValidator struct {
	Validator *validator.Validate
}

// NewGenericEchoValidator returns a validator that knows the given custom
// tags in addition to the built-in ones.
func NewGenericEchoValidator(custom map[string]validator.Func) (*GenericEchoValidator, error) {
	v := validator.New()
	for tag, fn := range custom {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("failed to register validation %q: %w", tag, err)
		}
	}
	return &GenericEchoValidator{Validator: v}, nil
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	if gv.Validator == nil {
		gv.Validator = validator.New()
	}
	if err := gv.Validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("received invalid request body: %v", err))
	}
	return nil
}
