package controllers

type CustomError struct {
	Message string
}

func (e *CustomError) Error() string {
	return e.Message
}

var (
	ErrNameTooShort   = &CustomError{"Display name must be at least 3 characters"}
	ErrInvalidReason  = &CustomError{"Invalid end reason"}
	ErrInvalidMinutes = &CustomError{"Minutes must be greater than zero"}
)
