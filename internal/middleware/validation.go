package middleware

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/reminders/pkg/model"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by request bodies:
//
//	clock   - a 24h "HH:MM" time of day
//	channel - a known delivery channel
//
// Validation errors name fields by their json tag. Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		if err := v.RegisterValidation("clock", validateClock); err != nil {
			panic(err)
		}
		if err := v.RegisterValidation("channel", validateChannel); err != nil {
			panic(err)
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
}

func validateClock(fl validator.FieldLevel) bool {
	_, err := model.ParseClockTime(fl.Field().String())
	return err == nil
}

func validateChannel(fl validator.FieldLevel) bool {
	return model.Channel(fl.Field().String()).Valid()
}
