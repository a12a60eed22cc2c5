package validator

import "errors"

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidUserID   = errors.New("invalid user id")
)

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}

func ValidateUserID(id int64) error {
	if id <= 0 {
		return ErrInvalidUserID
	}
	return nil
}
