package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerTagNames sync.Once

// useJSONNames makes validation errors report fields by their JSON, query
// or path name.
func useJSONNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, key := range []string{"json", "form", "uri"} {
				name, _, _ := strings.Cut(f.Tag.Get(key), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return ""
		})
	})
}

var fieldErrorFormatters = map[string]func(field, param string) string{
	"required": func(field, _ string) string {
		return field + " is required"
	},
	"gt": func(field, param string) string {
		return fmt.Sprintf("%s must be greater than %s", field, param)
	},
	"min": func(field, param string) string {
		return fmt.Sprintf("%s must have at least %s entries", field, param)
	},
	"unique": func(field, _ string) string {
		return field + " must not repeat a ship"
	},
}

// bindJSON decodes the body into req and answers 400 when it is malformed or
// fails its binding rules.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		badRequest(c, bindingMessage(err, "invalid request body"))
		return false
	}
	return true
}

// bindingMessage describes the first failed rule, or returns fallback when
// the input could not be decoded at all.
func bindingMessage(err error, fallback string) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return fallback
	}
	fe := errs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	if format, ok := fieldErrorFormatters[fe.Tag()]; ok {
		return format(field, fe.Param())
	}
	return field + " is invalid"
}
