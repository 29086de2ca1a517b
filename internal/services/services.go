package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"expo-booking/internal/services/gateway"
	"expo-booking/internal/services/notify"
	"expo-booking/internal/status"
)

// PaymentGateway is the subset of the gateway client the flows depend on.
type PaymentGateway interface {
	KeyID() string
	CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error)
	Refund(ctx context.Context, paymentID string, req gateway.RefundRequest) (*gateway.Refund, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// Notifier schedules a confirmation for a freshly paid record.
type Notifier interface {
	Notify(ctx context.Context, c notify.Confirmation) error
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if alias := f.Tag.Get("alias"); alias != "" {
			return name + " (or " + alias + ")"
		}
		return name
	})
	return v
}

// validateStruct turns validator failures into a ValidationError naming
// the offending JSON fields.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return status.Wrap(status.ErrValidation, "invalid request", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return status.Errorf(status.ErrValidation, "%s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Field() == "quantity" {
		return "quantity must be between 1 and 10"
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
