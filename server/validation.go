package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// movieRequest is the payload for POST /api/movies
type movieRequest struct {
	Title       string `json:"title" validate:"required"`
	ReleaseDate string `json:"release_date" validate:"required,releasedate"`
	ImdbID      string `json:"imdb_id" validate:"required,startswith=tt"`
}

// showRequest is the payload for POST /api/shows
type showRequest struct {
	Title       string `json:"title" validate:"required"`
	ReleaseDate string `json:"release_date" validate:"required,releasedate"`
	TvdbID      string `json:"tvdb_id" validate:"required,numeric"`
	Poster      string `json:"poster,omitempty" validate:"omitempty,url"`
	Seasons     []int  `json:"seasons,omitempty" validate:"dive,min=0"`
}

// newValidator returns a validator with the release date rule registered
func newValidator() *validatorv10.Validate {
	v := validatorv10.New()
	_ = v.RegisterValidation("releasedate", validateReleaseDate)
	return v
}

// validateReleaseDate accepts YYYY-MM-DD or a bare YYYY
func validateReleaseDate(fl validatorv10.FieldLevel) bool {
	value := fl.Field().String()
	for _, layout := range []string{"2006-01-02", "2006"} {
		if _, err := time.Parse(layout, value); err == nil {
			return true
		}
	}
	return false
}

// bindAndValidate binds the JSON body into out and validates it. On failure
// it writes a 400 and returns the error so the handler can stop.
func bindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_request_body",
			"msg":   err.Error(),
		})
		return err
	}

	if err := v.Struct(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation_failed",
			"fields": validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Error()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
