package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopClient() Client {
	return ClientFunc(func(ctx context.Context, model, prompt, credential string) (string, error) {
		return "", nil
	})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw     string
		want    Name
		wantErr bool
	}{
		{"chatgpt", ChatGPT, false},
		{"  Gemini ", Gemini, false},
		{"PERPLEXITY", Perplexity, false},
		{"", "", true},
		{"   ", "", true},
		{"claude", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnknownProvider))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouter_RegisterAndResolve(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Register(Gemini, noopClient(), []string{"pro", "flash"}))

	b, err := r.Resolve(" GEMINI")
	require.NoError(t, err)
	assert.Equal(t, Gemini, b.Name)
	assert.Equal(t, []string{"pro", "flash"}, b.Candidates)

	// Resolve returns a copy
	b.Candidates[0] = "mutated"
	again, err := r.Resolve("gemini")
	require.NoError(t, err)
	assert.Equal(t, "pro", again.Candidates[0])
}

func TestRouter_Errors(t *testing.T) {
	r := NewRouter()

	assert.Error(t, r.Register("claude", noopClient(), []string{"x"}))
	assert.Error(t, r.Register(ChatGPT, nil, []string{"x"}))

	_, err := r.Resolve("chatgpt")
	assert.True(t, errors.Is(err, ErrUnknownProvider), "known name but not registered")

	_, err = r.Resolve("mistral")
	assert.True(t, errors.Is(err, ErrUnknownProvider))
}

func TestRouter_List(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Register(Perplexity, noopClient(), nil))
	require.NoError(t, r.Register(ChatGPT, noopClient(), nil))

	assert.Equal(t, []Name{ChatGPT, Perplexity}, r.List())
}

func TestStaticCredentials(t *testing.T) {
	creds := StaticCredentials{ChatGPT: " sk-config "}

	v, err := creds.Credential(context.Background(), ChatGPT)
	require.NoError(t, err)
	assert.Equal(t, "sk-config", v)

	ctx := WithCredential(context.Background(), ChatGPT, "sk-request")
	v, err = creds.Credential(ctx, ChatGPT)
	require.NoError(t, err)
	assert.Equal(t, "sk-request", v)

	_, err = creds.Credential(context.Background(), Perplexity)
	assert.True(t, errors.Is(err, ErrMissingCredential))
	assert.Equal(t, "Perplexity token missing", err.Error())
}
