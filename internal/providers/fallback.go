package providers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Attempt descrive un singolo tentativo su un modello candidato
type Attempt struct {
	Provider Name
	Model    string
	Index    int
	Duration time.Duration
	Err      error
}

// AttemptObserver riceve ogni tentativo (metriche, run log)
type AttemptObserver func(Attempt)

// Resolver prova i modelli candidati di un provider in ordine fino al primo
// successo o al primo errore terminale.
type Resolver struct {
	observer AttemptObserver
}

// NewResolver crea un nuovo Resolver. observer può essere nil.
func NewResolver(observer AttemptObserver) *Resolver {
	return &Resolver{observer: observer}
}

// Invoke esegue prompt sul binding provando i candidati in ordine dichiarato.
//
// Un errore transitorio (JSON non valido, errore di trasporto, overload)
// fa passare al candidato successivo; un errore terminale interrompe subito.
// Esauriti i candidati restituisce ErrAllCandidatesExhausted.
func (r *Resolver) Invoke(ctx context.Context, b Binding, prompt, credential string) (*Completion, error) {
	if credential == "" {
		return nil, &Error{Kind: KindMissingCredential, Provider: b.Name, Message: string(b.Name) + " credential missing"}
	}
	if len(b.Candidates) == 0 {
		return nil, &Error{Kind: KindExhausted, Provider: b.Name, Message: "no model candidates configured for " + string(b.Name)}
	}

	var lastErr error
	for i, model := range b.Candidates {
		if err := ctx.Err(); err != nil {
			return nil, Terminal(b.Name, model, 0, "", err)
		}

		start := time.Now()
		text, err := b.Client.Complete(ctx, model, prompt, credential)
		attempt := Attempt{Provider: b.Name, Model: model, Index: i, Duration: time.Since(start), Err: err}
		if r.observer != nil {
			r.observer(attempt)
		}

		if err == nil {
			log.Debug().
				Str("provider", string(b.Name)).
				Str("model", model).
				Int("attempt", i+1).
				Dur("duration", attempt.Duration).
				Msg("Upstream call succeeded")

			return &Completion{Provider: b.Name, Model: model, Text: text, Attempts: i + 1}, nil
		}

		if !IsTransient(err) {
			return nil, asTerminal(b.Name, model, err)
		}

		log.Warn().
			Err(err).
			Str("provider", string(b.Name)).
			Str("model", model).
			Int("attempt", i+1).
			Msg("Model candidate unavailable, trying next")

		lastErr = err
	}

	return nil, &Error{
		Kind:     KindExhausted,
		Provider: b.Name,
		Message:  "All " + displayName(b.Name) + " models failed",
		Err:      lastErr,
	}
}

// asTerminal garantisce che un errore non transitorio esca come *Error terminale
func asTerminal(name Name, model string, err error) error {
	if pe, ok := err.(*Error); ok {
		if pe.Provider == "" {
			pe.Provider = name
		}
		if pe.Model == "" {
			pe.Model = model
		}
		return pe
	}
	return Terminal(name, model, 0, "", err)
}

func displayName(n Name) string {
	switch n {
	case ChatGPT:
		return "OpenAI"
	case Gemini:
		return "Gemini"
	case Perplexity:
		return "Perplexity"
	default:
		return string(n)
	}
}
