// Package validator wraps go-playground/validator with the custody specific
// tags and a standardized error format.
//
// Besides the stock tags, two are registered:
//   - solana_address: a base58 string decoding to a 32-byte public key.
//   - positive_amount: a decimal string strictly greater than zero.
package validator

import (
	"errors"
	"fmt"

	"github.com/gabapcia/solcustody/internal/pkg/sol"

	gvalidator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrValidationFailed is returned as the first error in a multi-error chain when validation fails.
var ErrValidationFailed = errors.New("struct validation failed")

// validator is the package singleton, built on import.
var validator *gvalidator.Validate

// errStringFormat describes one field violation.
//
// Example: "'Address': value 'abc' does not meet the requirements for the 'solana_address' validation"
const errStringFormat = "'%s': value '%v' does not meet the requirements for the '%s' validation"

func init() {
	validator = gvalidator.New(gvalidator.WithRequiredStructEnabled())

	// Registration only fails on an empty tag or a nil func.
	_ = validator.RegisterValidation("solana_address", isSolanaAddress)
	_ = validator.RegisterValidation("positive_amount", isPositiveAmount)
}

func isSolanaAddress(fl gvalidator.FieldLevel) bool {
	_, err := sol.ParsePublicKey(fl.Field().String())
	return err == nil
}

func isPositiveAmount(fl gvalidator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.IsPositive()
}

// formatError turns validator field errors into a joined error rooted at
// ErrValidationFailed. Other errors are returned unchanged.
func formatError(err error) error {
	var validationErrors gvalidator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := []error{ErrValidationFailed}
	for _, validationErr := range validationErrors {
		err := fmt.Errorf(errStringFormat,
			validationErr.Field(),
			validationErr.Value(),
			validationErr.Tag(),
		)

		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Validate checks v against its validation tags.
//
// Example usage:
//
//	type Withdrawal struct {
//	    To     string `validate:"required,solana_address"`
//	    Amount string `validate:"required,positive_amount"`
//	}
//
//	if err := validator.Validate(w); errors.Is(err, validator.ErrValidationFailed) {
//	    // Handle validation failure
//	}
func Validate(v any) error {
	if err := validator.Struct(v); err != nil {
		return formatError(err)
	}

	return nil
}
