package orchestrator

import (
	"errors"
	"fmt"

	"github.com/biodoia/multiorch/internal/providers"
)

var (
	// ErrInvalidBinding indica un mode o un binding di provider non validi
	ErrInvalidBinding = errors.New("invalid provider binding")
	// ErrEmptyPrompt indica un prompt utente vuoto
	ErrEmptyPrompt = errors.New("prompt is empty")
)

// Kind classifica un fallimento di orchestrazione
type Kind string

const (
	KindInvalidBinding      Kind = "invalid_binding"
	KindMissingCredential   Kind = "missing_credential"
	KindTerminalUpstream    Kind = "terminal_upstream"
	KindCandidatesExhausted Kind = "all_candidates_exhausted"
)

// Stage identifica la fase della pipeline
type Stage string

const (
	StageValidation    Stage = "validation"
	StageSingle        Stage = "single"
	StageDecomposition Stage = "decomposition"
	StageDispatch      Stage = "dispatch"
	StageSynthesis     Stage = "synthesis"
)

// Error è l'errore restituito da Engine.Orchestrate.
//
// Err conserva la causa originale (tipicamente *providers.Error), quindi
// errors.Is funziona sia con i sentinel di questo package sia con quelli
// di providers.
type Error struct {
	Kind     Kind
	Stage    Stage
	Role     Role
	Provider providers.Name
	Err      error
	// Calls sono le chiamate eseguite prima del fallimento
	Calls []Call
}

func (e *Error) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("%s failed at %s (%s/%s): %s", e.Kind, e.Stage, e.Role, e.Provider, e.Message())
	}
	return fmt.Sprintf("%s failed at %s: %s", e.Kind, e.Stage, e.Message())
}

// Message restituisce il messaggio della causa, verbatim.
// Per un errore terminale è il messaggio dell'upstream.
func (e *Error) Message() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is permette errors.Is(err, ErrInvalidBinding)
func (e *Error) Is(target error) bool {
	return target == ErrInvalidBinding && e.Kind == KindInvalidBinding
}

// classify converte un errore del resolver nell'errore di orchestrazione
func classify(stage Stage, role Role, provider providers.Name, err error) *Error {
	kind := KindTerminalUpstream

	var pe *providers.Error
	if errors.As(err, &pe) {
		switch pe.Kind {
		case providers.KindExhausted:
			kind = KindCandidatesExhausted
		case providers.KindMissingCredential:
			kind = KindMissingCredential
		case providers.KindUnknownProvider:
			kind = KindInvalidBinding
		}
	}

	return &Error{Kind: kind, Stage: stage, Role: role, Provider: provider, Err: err}
}
