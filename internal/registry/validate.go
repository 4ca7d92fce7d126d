package registry

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/hamed0406/servermonitor/internal/domain"
)

const maxNameLength = 128

type targetInput struct {
	Name string
	URL  string
}

func (in targetInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, maxNameLength)),
		validation.Field(&in.URL, validation.Required, validation.By(validateHTTPURL)),
	)
}

func validateHTTPURL(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if !domain.IsHTTPURL(s) {
		return validation.NewError("validation_invalid_url", "must be an http or https URL with a host")
	}
	return nil
}

// normalizeInput trims and normalizes user input, then validates it.
func normalizeInput(name, rawURL string) (targetInput, error) {
	in := targetInput{
		Name: strings.TrimSpace(name),
		URL:  domain.NormalizeURL(rawURL),
	}
	if err := in.Validate(); err != nil {
		return targetInput{}, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return in, nil
}
