package openai

// Tipi del formato chat completions, condiviso da OpenAI e Perplexity

// ChatCompletionRequest rappresenta una richiesta chat completions
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

// ChatMessage rappresenta un messaggio nella conversazione
type ChatMessage struct {
	Role    string      `json:"role"`    // system, user, assistant
	Content interface{} `json:"content"` // string o ContentPart[]
}

// ContentPart rappresenta una parte di contenuto multimodale
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ChatCompletionResponse rappresenta la risposta; Error è valorizzato
// quando l'upstream restituisce un payload di errore
type ChatCompletionResponse struct {
	ID      string    `json:"id"`
	Object  string    `json:"object"`
	Created int64     `json:"created"`
	Model   string    `json:"model"`
	Choices []Choice  `json:"choices"`
	Usage   *Usage    `json:"usage,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice rappresenta una scelta nella risposta
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage rappresenta le statistiche di utilizzo
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// APIError rappresenta il payload di errore.
// Code può essere stringa, numero o null a seconda del provider.
type APIError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"`
}

// text estrae il testo della prima scelta
func (r *ChatCompletionResponse) text() string {
	if len(r.Choices) == 0 {
		return ""
	}

	switch content := r.Choices[0].Message.Content.(type) {
	case string:
		return content
	case []interface{}:
		var out string
		for _, part := range content {
			if m, ok := part.(map[string]interface{}); ok {
				if t, ok := m["text"].(string); ok {
					out += t
				}
			}
		}
		return out
	default:
		return ""
	}
}
