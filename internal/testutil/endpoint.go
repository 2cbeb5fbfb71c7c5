package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/selfmon/selfmon/internal/clock"
	"github.com/selfmon/selfmon/internal/endpoint"
	"github.com/selfmon/selfmon/internal/monitor"
)

// StartTestServer starts a server of the endpoints for m.
// The server is closed when the test finished.
func StartTestServer(t testing.TB, m *monitor.Monitor, c clock.Clock, opts endpoint.Options) *httptest.Server {
	t.Helper()

	opts.Clock = c
	opts.Logger = zerolog.Nop()

	srv := httptest.NewServer(endpoint.New(m, opts))
	t.Cleanup(srv.Close)

	return srv
}
