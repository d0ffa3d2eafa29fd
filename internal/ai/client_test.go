package ai

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copyforge/internal/apperr"
)

type fakeCounter struct{ n int }

func (f fakeCounter) Count(string) int { return f.n }

type observation struct {
	provider, outcome string
	tokens            int
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingObserver) ObserveGeneration(provider, outcome string, _ time.Duration, tokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{provider, outcome, tokens})
}

func transportErr() error {
	return &url.Error{Op: "Post", URL: "https://provider.test", Err: errors.New("connection refused")}
}

func newTestClient(p Provider, cfg ClientConfig, opts ...Option) *Client {
	reg := NewRegistry(p.Name(), nil)
	reg.Register(p.Name(), p)
	return NewClient(reg, cfg, nil, opts...)
}

func TestClientGenerateNormalizes(t *testing.T) {
	mock := &mockProvider{name: "mock", responses: []string{"Hello world"}}
	c := newTestClient(mock, ClientConfig{})

	got, err := c.Generate(context.Background(), "rendered prompt")
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello world</p>", got)
	assert.Equal(t, SystemPrompt, mock.lastSys)
	assert.Equal(t, "rendered prompt", mock.lastUser)
}

func TestClientErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		resp string
		want apperr.Kind
	}{
		{"transport failure", transportErr(), "", apperr.ProviderUnavailable},
		{"deadline", context.DeadlineExceeded, "", apperr.ProviderUnavailable},
		{"status error", &StatusError{Provider: "mock", StatusCode: 500, Message: "boom"}, "", apperr.Provider},
		{"opaque error", errors.New("model refused"), "", apperr.Provider},
		{"empty answer", nil, "   ", apperr.Provider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockProvider{name: "mock", responses: []string{tt.resp}, errs: []error{tt.err}}
			_, err := newTestClient(mock, ClientConfig{}).Generate(context.Background(), "p")
			require.Error(t, err)
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestClientRetriesOnlyUnavailable(t *testing.T) {
	t.Run("recovers after transport failures", func(t *testing.T) {
		mock := &mockProvider{
			name:      "mock",
			responses: []string{"", "", "<p>ok</p>"},
			errs:      []error{transportErr(), transportErr(), nil},
		}
		c := newTestClient(mock, ClientConfig{MaxAttempts: 3, Backoff: time.Millisecond})

		got, err := c.Generate(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "<p>ok</p>", got)
		assert.Equal(t, 3, mock.callCount())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		mock := &mockProvider{name: "mock", errs: []error{transportErr()}}
		c := newTestClient(mock, ClientConfig{MaxAttempts: 2})

		_, err := c.Generate(context.Background(), "p")
		assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(err))
		assert.Equal(t, 2, mock.callCount())
	})

	t.Run("provider errors are not retried", func(t *testing.T) {
		mock := &mockProvider{name: "mock", errs: []error{&StatusError{Provider: "mock", StatusCode: 400}}}
		c := newTestClient(mock, ClientConfig{MaxAttempts: 5})

		_, err := c.Generate(context.Background(), "p")
		assert.Equal(t, apperr.Provider, apperr.KindOf(err))
		assert.Equal(t, 1, mock.callCount())
	})
}

// blockingProvider waits for the context to end.
type blockingProvider struct{}

func (blockingProvider) Name() string { return "slow" }

func (blockingProvider) Generate(ctx context.Context, _, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestClientTimeout(t *testing.T) {
	c := newTestClient(blockingProvider{}, ClientConfig{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := c.Generate(context.Background(), "p")
	assert.Equal(t, apperr.ProviderUnavailable, apperr.KindOf(err))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientPromptBudget(t *testing.T) {
	mock := &mockProvider{name: "mock", responses: []string{"x"}}
	c := newTestClient(mock, ClientConfig{MaxPromptTokens: 10}, WithTokenCounter(fakeCounter{n: 11}))

	_, err := c.Generate(context.Background(), "p")
	assert.Equal(t, apperr.Validation, apperr.KindOf(err))
	assert.Zero(t, mock.callCount())
}

func TestClientObserver(t *testing.T) {
	obs := &recordingObserver{}
	mock := &mockProvider{
		name:      "mock",
		responses: []string{"", "fine"},
		errs:      []error{transportErr(), nil},
	}
	c := newTestClient(mock, ClientConfig{MaxAttempts: 2},
		WithObserver(obs), WithTokenCounter(fakeCounter{n: 7}))

	_, err := c.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, []observation{
		{"mock", string(apperr.ProviderUnavailable), 7},
		{"mock", "success", 7},
	}, obs.obs)
}

func TestClientNoActiveProvider(t *testing.T) {
	c := NewClient(NewRegistry("openai", nil), ClientConfig{}, nil)
	_, err := c.Generate(context.Background(), "p")
	assert.Equal(t, apperr.Provider, apperr.KindOf(err))
}
