package providers

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownProvider indica un nome fuori dall'insieme chiuso
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrMissingCredential indica che non è disponibile alcuna credenziale
	ErrMissingCredential = errors.New("missing credential")
	// ErrTransient indica un fallimento recuperabile provando il candidato successivo
	ErrTransient = errors.New("transient upstream failure")
	// ErrTerminal indica un errore applicativo restituito dal provider
	ErrTerminal = errors.New("terminal upstream failure")
	// ErrAllCandidatesExhausted indica che ogni modello candidato è fallito in modo transitorio
	ErrAllCandidatesExhausted = errors.New("all candidates failed")
)

// ErrorKind classifica un errore di provider
type ErrorKind int

const (
	KindTransient ErrorKind = iota
	KindTerminal
	KindExhausted
	KindUnknownProvider
	KindMissingCredential
)

// String restituisce la rappresentazione string del kind
func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindTerminal:
		return "terminal"
	case KindExhausted:
		return "exhausted"
	case KindUnknownProvider:
		return "unknown_provider"
	case KindMissingCredential:
		return "missing_credential"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTransient:
		return ErrTransient
	case KindTerminal:
		return ErrTerminal
	case KindExhausted:
		return ErrAllCandidatesExhausted
	case KindUnknownProvider:
		return ErrUnknownProvider
	case KindMissingCredential:
		return ErrMissingCredential
	default:
		return nil
	}
}

// Error è l'errore tipizzato prodotto da client, resolver e router
type Error struct {
	Kind       ErrorKind
	Provider   Name
	Model      string
	StatusCode int
	// Message è il messaggio dell'upstream, riportato verbatim quando presente
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if s := e.Kind.sentinel(); s != nil {
		return s.Error()
	}
	return "provider error"
}

// Unwrap espone la causa sottostante (errore di trasporto, parsing JSON, ...)
func (e *Error) Unwrap() error {
	return e.Err
}

// Is permette errors.Is contro i sentinel del package
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Detail restituisce una descrizione estesa per i log
func (e *Error) Detail() string {
	return fmt.Sprintf("provider=%s model=%s kind=%s status=%d: %s", e.Provider, e.Model, e.Kind, e.StatusCode, e.Error())
}

// Transient costruisce un errore transitorio
func Transient(provider Name, model string, status int, message string, cause error) *Error {
	return &Error{Kind: KindTransient, Provider: provider, Model: model, StatusCode: status, Message: message, Err: cause}
}

// Terminal costruisce un errore terminale
func Terminal(provider Name, model string, status int, message string, cause error) *Error {
	return &Error{Kind: KindTerminal, Provider: provider, Model: model, StatusCode: status, Message: message, Err: cause}
}

// IsTransient verifica se err deve far passare al candidato successivo
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == KindTransient
	}
	return false
}
