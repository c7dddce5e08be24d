package binder

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/iancoleman/strcase"
	"github.com/segmentio/encoding/json"
)

const (
	date            = "date"
	email           = "email"
	gt              = "gt"
	gte             = "gte"
	length          = "len"
	mx              = "max"
	mn              = "min"
	ne              = "ne"
	numeric         = "numeric"
	oneof           = "oneof"
	phone           = "phone"
	required        = "required"
	requiredWithout = "required_without"
)

var timeType = reflect.TypeOf(time.Time{})

// fixedMessages holds the tags whose message only depends on the field name.
var fixedMessages = map[string]string{
	date:     "%q should be in the format of YYYY-MM-DD",
	email:    "%q is not a valid email",
	numeric:  "%q must only contain digits",
	phone:    "%q must be at most 10 digits",
	required: "%q is required",
}

func formatUnmarshalTypeError(err *json.UnmarshalTypeError) string {
	return fmt.Sprintf("%q should be of type %s", strings.Trim(err.Field, "."), err.Type)
}

func formatSchemaConversionError(err schema.ConversionError) string {
	return fmt.Sprintf("%q should be of type %s", err.Key, err.Type)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()
	param := err.Param()

	if tmpl, ok := fixedMessages[err.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}

	switch err.Tag() {
	case gt, gte:
		if param == "" && err.Type() == timeType {
			param = "now"
		}
		cmp := "greater than"
		if err.Tag() == gte {
			cmp += " or equal to"
		}
		return fmt.Sprintf("%q must be %s %s", field, cmp, param)
	case mx:
		return boundMessage(field, "less than or equal to", param, err.Kind())
	case mn:
		return boundMessage(field, "greater than or equal to", param, err.Kind())
	case length:
		return fmt.Sprintf("%q must be exactly %s", field, unitCount(param, err.Kind()))
	case ne:
		return fmt.Sprintf("%q can't be %q", field, param)
	case oneof:
		quoted := strings.Fields(param)
		for i, p := range quoted {
			quoted[i] = fmt.Sprintf("%q", p)
		}
		return fmt.Sprintf("%q must be one of the following: %s", field, strings.Join(quoted, ", "))
	case requiredWithout:
		return fmt.Sprintf("%q is required when %s is missing", field, strcase.ToSnake(param))
	default:
		return fmt.Sprintf("%q is invalid", field)
	}
}

func isNumber(k reflect.Kind) bool {
	switch k { //nolint:exhaustive
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func boundMessage(field, cmp, param string, k reflect.Kind) string {
	if isNumber(k) {
		return fmt.Sprintf("%q must be %s %s", field, cmp, param)
	}
	return fmt.Sprintf("%q length must be %s %s", field, cmp, unitCount(param, k))
}

// unitCount renders "5 elements" for slices and "1 character" for strings.
func unitCount(param string, k reflect.Kind) string {
	unit := "character"
	if k == reflect.Slice {
		unit = "element"
	}
	if param != "1" {
		unit += "s"
	}
	return param + " " + unit
}
