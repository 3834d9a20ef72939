package providers

import (
	"context"
	"strings"
)

// Name identifica un provider upstream. L'insieme è chiuso.
type Name string

const (
	ChatGPT    Name = "chatgpt"
	Gemini     Name = "gemini"
	Perplexity Name = "perplexity"
)

// All restituisce l'insieme chiuso dei provider supportati, in ordine stabile
func All() []Name {
	return []Name{ChatGPT, Gemini, Perplexity}
}

// Normalize ripulisce un nome di provider (trim + lower-case) e lo valida
// contro l'insieme chiuso. Un input vuoto o sconosciuto restituisce
// ErrUnknownProvider.
func Normalize(raw string) (Name, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", &Error{Kind: KindUnknownProvider, Message: "provider name is empty"}
	}

	for _, n := range All() {
		if string(n) == key {
			return n, nil
		}
	}

	return "", &Error{Kind: KindUnknownProvider, Provider: Name(key), Message: "unsupported provider: " + raw}
}

// Client invia una singola richiesta di completion a un provider/modello.
//
// Un errore restituito è sempre un *Error con Kind valorizzato: il Resolver
// usa il Kind per decidere se passare al candidato successivo.
type Client interface {
	Complete(ctx context.Context, model, prompt, credential string) (string, error)
}

// ClientFunc adatta una funzione all'interfaccia Client
type ClientFunc func(ctx context.Context, model, prompt, credential string) (string, error)

// Complete implementa Client
func (f ClientFunc) Complete(ctx context.Context, model, prompt, credential string) (string, error) {
	return f(ctx, model, prompt, credential)
}

// Completion è il risultato normalizzato di una chiamata riuscita
type Completion struct {
	Provider Name   `json:"provider"`
	Model    string `json:"model"`
	Text     string `json:"text"`
	Attempts int    `json:"attempts"`
}
