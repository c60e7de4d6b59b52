package exchange

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	onceValidate sync.Once
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	onceValidate.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateOrder rejects specs missing a symbol, side or amount, with a
// non-positive amount, or limit orders without a positive price.
func ValidateOrder(spec OrderSpec) error {
	if err := Validator().Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, e := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed on '%s'", e.Field(), e.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidOrder, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	if spec.Type == Limit && spec.Price <= 0 {
		return fmt.Errorf("%w: limit orders require a positive price", ErrInvalidOrder)
	}
	return nil
}
