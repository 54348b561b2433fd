// Package validation проверяет форму входящих запросов.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/ticket-booking/internal/apperror"
	"github.com/mmeshcher/ticket-booking/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return model.PaymentMethod(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("payment_status", func(fl validator.FieldLevel) bool {
		return model.PaymentStatus(fl.Field().String()).Valid()
	})

	return v
}

// Struct проверяет структуру по тегам validate.
// Ошибка сопоставляется с apperror.ErrValidation через errors.Is и перечисляет поля.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", apperror.ErrValidation, err)
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field()+" "+fe.Tag())
	}
	return fmt.Errorf("%w: %s", apperror.ErrValidation, strings.Join(fields, ", "))
}

// ID проверяет, что id является UUID.
func ID(id string) error {
	if err := validate.Var(id, "required,uuid"); err != nil {
		return fmt.Errorf("%w: id must be uuid", apperror.ErrValidation)
	}
	return nil
}
