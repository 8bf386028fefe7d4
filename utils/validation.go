package utils

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"example.com/backstage/services/fleet/domain"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)
	registerCustomValidations()
}

// ValidateStruct validates a struct using validation tags. Failures are
// reported as a domain validation error naming every offending field.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.Validation("invalid input: %v", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return domain.Validation("invalid input: %s", strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", fe.Field())
	case "uuid":
		return fmt.Sprintf("%s must be a valid id", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "delivery_status", "delivery_type", "priority", "container_action",
		"container_type", "container_status", "incident_status", "maintenance_type",
		"inspection_type", "inspection_result":
		return fmt.Sprintf("%s has unknown value %v", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return fld.Name
	}
	return name
}

// registerCustomValidations registers the enum tags of the fleet domain
func registerCustomValidations() {
	enums := map[string]func(string) bool{
		"delivery_status":   func(v string) bool { return domain.DeliveryStatus(v).IsValid() },
		"delivery_type":     func(v string) bool { return domain.DeliveryType(v).IsValid() },
		"priority":          func(v string) bool { return domain.Priority(v).IsValid() },
		"container_action":  func(v string) bool { return domain.ContainerAction(v).IsValid() },
		"container_type":    func(v string) bool { return domain.ContainerType(v).IsValid() },
		"container_status":  func(v string) bool { return domain.ContainerStatus(v).IsValid() },
		"incident_status":   func(v string) bool { return domain.IncidentStatus(v).IsValid() },
		"maintenance_type":  func(v string) bool { return domain.MaintenanceType(v).IsValid() },
		"inspection_type":   func(v string) bool { return domain.InspectionType(v).IsValid() },
		"inspection_result": func(v string) bool { return domain.InspectionResult(v).IsValid() },
	}
	for tag, valid := range enums {
		valid := valid
		validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return valid(fl.Field().String())
		})
	}
}
