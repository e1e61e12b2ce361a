package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSender_Send(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewHTTPSender(time.Second, zerolog.Nop())
	code, err := sender.Send(context.Background(), srv.URL, []byte(`{"PaymentId":"p1"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"PaymentId":"p1"}`, string(received))
}

func TestHTTPSender_Non2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sender := NewHTTPSender(time.Second, zerolog.Nop())
	code, err := sender.Send(context.Background(), srv.URL, []byte(`{}`))
	require.NoError(t, err, "status handling is the dispatcher's job")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestHTTPSender_TransportError(t *testing.T) {
	sender := NewHTTPSender(100*time.Millisecond, zerolog.Nop())
	_, err := sender.Send(context.Background(), "http://127.0.0.1:1", []byte(`{}`))
	assert.Error(t, err)
}
