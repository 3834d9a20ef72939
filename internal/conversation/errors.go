package conversation

import "errors"

var (
	// ErrNotFound indica una conversazione inesistente o di un altro utente
	ErrNotFound = errors.New("conversation not found")
	// ErrBusy indica che un altro messaggio è in elaborazione sulla stessa conversazione
	ErrBusy = errors.New("conversation is busy")
	// ErrInvalidInput è il sentinel degli errori di validazione
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError è un errore di input con messaggio destinato al client
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is permette errors.Is(err, ErrInvalidInput)
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}
