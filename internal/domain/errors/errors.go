package errors

import (
	"errors"
	"fmt"
)

// ValidationError representa un campo ausente o malformado. No es un error
// para el usuario: se resuelve con otra pregunta de seguimiento.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.Message)
}

// NewValidationError crea un nuevo error de validación
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ExternalServiceError representa una falla transitoria de un servicio
// externo (extracción, store, cola, git, API de hosting). Se recupera por
// redelivery de la cola.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("error del servicio '%s' en '%s': %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// NewExternalServiceError crea un nuevo error de servicio externo
func NewExternalServiceError(service, op string, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Op: op, Err: err}
}

// AuthError indica una credencial inválida o vencida. Es fatal para la
// corrida actual del job; queda para reconciliación manual.
type AuthError struct {
	Service string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("credencial inválida para '%s': %v", e.Service, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError crea un nuevo error de autenticación
func NewAuthError(service string, err error) *AuthError {
	return &AuthError{Service: service, Err: err}
}

// ConflictError indica que la branch o el pull request ya existen para este
// pedido. No es un error: el paso ya se hizo y el pipeline avanza.
type ConflictError struct {
	Resource string
	Name     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("el recurso '%s' ya existe: %s", e.Resource, e.Name)
}

// NewConflictError crea un nuevo error de conflicto
func NewConflictError(resource, name string) *ConflictError {
	return &ConflictError{Resource: resource, Name: name}
}

// IsValidation reporta si err es un error de validación.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsAuth reporta si err es un error de credenciales.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsConflict reporta si err es un "ya existe".
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsRetryable reporta si la falla es transitoria y elegible para redelivery.
// Todo lo que no sea validación, credenciales o conflicto se trata como
// transitorio.
func IsRetryable(err error) bool {
	return err != nil && !IsValidation(err) && !IsAuth(err) && !IsConflict(err)
}
