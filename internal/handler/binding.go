package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/bloodlink/bloodlink-api/internal/model"
)

// bloodgroup validates request fields against the canonical ABO/Rh groups,
// keeping the binding tags in sync with the compatibility table.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("bloodgroup", func(fl validator.FieldLevel) bool {
			return model.BloodType(fl.Field().String()).Valid()
		})
	}
}
