package auth

import (
	"circle-hub/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// HandshakeRequest is what a client presents before the websocket upgrade.
type HandshakeRequest struct {
	UserID string `validate:"required,max=128"`
	Token  string `validate:"required"`
}

func ValidateHandshake(req HandshakeRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrAuthenticationFailed, err)
	}
	return nil
}
