package domain

import (
	"errors"
	"fmt"
)

// Reason is the stable machine-readable code attached to every rejection.
type Reason string

const (
	ReasonUserNotFound           Reason = "USER_NOT_FOUND"
	ReasonAccountBlocked         Reason = "ACCOUNT_BLOCKED"
	ReasonInvalidCredentials     Reason = "INVALID_CREDENTIALS"
	ReasonTooManyAttempts        Reason = "TOO_MANY_ATTEMPTS"
	ReasonMissingAmount          Reason = "MISSING_AMOUNT"
	ReasonInvalidAmount          Reason = "INVALID_AMOUNT"
	ReasonInsufficientFunds      Reason = "INSUFFICIENT_FUNDS"
	ReasonMissingConcept         Reason = "MISSING_CONCEPT"
	ReasonMissingDestination     Reason = "MISSING_DESTINATION"
	ReasonDestinationNotFound    Reason = "DESTINATION_NOT_FOUND"
	ReasonSelfTransferNotAllowed Reason = "SELF_TRANSFER_NOT_ALLOWED"
	ReasonAccountNotFound        Reason = "ACCOUNT_NOT_FOUND"
	ReasonAccountNotActive       Reason = "ACCOUNT_NOT_ACTIVE"
	ReasonTransferFailed         Reason = "TRANSFER_FAILED"
	ReasonStoreUnavailable       Reason = "STORE_UNAVAILABLE"
)

// Rejection is the error type returned by the login guard, the authorizer and the executor.
// Two rejections with the same Reason match under errors.Is, so callers compare against the
// package-level sentinels below.
type Rejection struct {
	Reason       Reason
	Message      string
	AttemptsLeft *int
	// RetryAfter is set in seconds on TooManyAttempts.
	RetryAfter int
	cause      error
}

func (r *Rejection) Error() string {
	if r.cause != nil {
		return fmt.Sprintf("%s: %s: %v", r.Reason, r.Message, r.cause)
	}
	return fmt.Sprintf("%s: %s", r.Reason, r.Message)
}

func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

func (r *Rejection) Unwrap() error {
	return r.cause
}

// Wrap returns a copy of the rejection that carries the underlying cause for logging.
func (r *Rejection) Wrap(cause error) *Rejection {
	clone := *r
	clone.cause = cause
	return &clone
}

var (
	ErrUserNotFound           = &Rejection{Reason: ReasonUserNotFound, Message: "Usuario no encontrado"}
	ErrAccountBlocked         = &Rejection{Reason: ReasonAccountBlocked, Message: "Usuario bloqueado por demasiados intentos fallidos"}
	ErrInvalidCredentials     = &Rejection{Reason: ReasonInvalidCredentials, Message: "Contraseña incorrecta"}
	ErrTooManyAttempts        = &Rejection{Reason: ReasonTooManyAttempts, Message: "Demasiados intentos, espere e inténtelo de nuevo"}
	ErrMissingAmount          = &Rejection{Reason: ReasonMissingAmount, Message: "Ingrese un monto a transferir"}
	ErrInvalidAmount          = &Rejection{Reason: ReasonInvalidAmount, Message: "Ingrese un monto válido"}
	ErrInsufficientFunds      = &Rejection{Reason: ReasonInsufficientFunds, Message: "Fondos insuficientes para realizar la transferencia"}
	ErrMissingConcept         = &Rejection{Reason: ReasonMissingConcept, Message: "Por favor, ingrese un concepto"}
	ErrMissingDestination     = &Rejection{Reason: ReasonMissingDestination, Message: "Ingrese la cuenta destino"}
	ErrDestinationNotFound    = &Rejection{Reason: ReasonDestinationNotFound, Message: "La cuenta destino no existe"}
	ErrSelfTransferNotAllowed = &Rejection{Reason: ReasonSelfTransferNotAllowed, Message: "No puede transferir a su propia cuenta"}
	ErrAccountNotFound        = &Rejection{Reason: ReasonAccountNotFound, Message: "Cuenta no encontrada"}
	ErrAccountNotActive       = &Rejection{Reason: ReasonAccountNotActive, Message: "La cuenta no está activa"}
	ErrTransferFailed         = &Rejection{Reason: ReasonTransferFailed, Message: "Error inesperado en el sistema, inténtelo de nuevo más tarde"}
	ErrStoreUnavailable       = &Rejection{Reason: ReasonStoreUnavailable, Message: "Servicio no disponible, inténtelo de nuevo más tarde"}
)

// InvalidCredentials builds the only rejection that carries structured data.
func InvalidCredentials(attemptsLeft int) *Rejection {
	if attemptsLeft < 0 {
		attemptsLeft = 0
	}
	rejection := *ErrInvalidCredentials
	rejection.AttemptsLeft = &attemptsLeft
	return &rejection
}

// TooManyAttempts is returned by the login rate limiter.
func TooManyAttempts(retryAfterSeconds int) *Rejection {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	rejection := *ErrTooManyAttempts
	rejection.RetryAfter = retryAfterSeconds
	return &rejection
}

// AsRejection extracts the rejection from an error chain.
func AsRejection(err error) (*Rejection, bool) {
	var rejection *Rejection
	if errors.As(err, &rejection) {
		return rejection, true
	}
	return nil, false
}
