package domain

import "errors"

// Domain errors
var (
	ErrValidation          = errors.New("invalid input")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrSessionNotFound     = errors.New("session not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrAchievementNotFound = errors.New("achievement not found")
	ErrChallengeNotFound   = errors.New("challenge not found")
	ErrConflict            = errors.New("concurrent write conflict")
	ErrVerificationFailed  = errors.New("verification scan did not complete")
	ErrUnauthorized        = errors.New("authentication required")
	ErrForbidden           = errors.New("administrative access required")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInternalError       = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrPlayerNotFound) ||
		errors.Is(err, ErrAchievementNotFound) ||
		errors.Is(err, ErrChallengeNotFound)
}

// IsValidationError checks if an error is a rejected-input error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
