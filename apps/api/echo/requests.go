package echoapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"` // or email
	Password string `json:"password" form:"password" validate:"required"`
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

type LoginResponse struct {
	Token string `json:"token"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

type SuccessResponse struct {
	Success string `json:"success"`
}

type DestroyMultipleRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

func (dr *DestroyMultipleRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(dr)
}

type UnreadCountResponse struct {
	Unread int `json:"unread"`
}
