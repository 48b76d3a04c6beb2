package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrInvalidRequest wraps every request body validation failure.
var ErrInvalidRequest = errors.New("invalid request")

// SelectCityRequest is the body of POST /api/dashboard/city.
type SelectCityRequest struct {
	Name string `json:"name" validate:"required,max=50"`
}

// ViewRequest is the body of POST /api/dashboard/view.
type ViewRequest struct {
	View string `json:"view" validate:"required,oneof=all favorites"`
}

// LocateRequest is the body of POST /api/dashboard/locate: either a position
// or a denial. An empty body falls back to the configured home position.
type LocateRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required_with=Longitude,omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"required_with=Latitude,omitempty,longitude"`
	Denied    bool     `json:"denied"`
}

// HasPosition reports whether both coordinates were supplied.
func (r LocateRequest) HasPosition() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// Struct validates v against its validate tags. Failures wrap
// ErrInvalidRequest and name the offending fields.
func Struct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}
