package copernicus

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/lst-ingest/internal/domain"
	"github.com/couchcryptid/lst-ingest/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeIdentity serves password and refresh grants and counts each.
type fakeIdentity struct {
	passwordGrants atomic.Int64
	refreshGrants  atomic.Int64
	tokenSeq       atomic.Int64
	failPassword   bool
	failRefresh    bool
}

func (f *fakeIdentity) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		switch r.PostFormValue("grant_type") {
		case "password":
			f.passwordGrants.Add(1)
			if f.failPassword {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
		case "refresh_token":
			f.refreshGrants.Add(1)
			if f.failRefresh {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
		default:
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n := f.tokenSeq.Add(1)
		fmt.Fprintf(w, `{"access_token":"tok-%d","refresh_token":"ref-%d","expires_in":600}`, n, n)
	}
}

func newTestSession(identityURL string) *Session {
	return NewSession(identityURL, "cdse-public", "user@example.com", "secret", 5*time.Second, testLogger(), observability.NewMetricsForTesting())
}

func TestSessionAuthenticate(t *testing.T) {
	t.Run("password grant stores token pair", func(t *testing.T) {
		identity := &fakeIdentity{}
		srv := httptest.NewServer(identity.handler())
		defer srv.Close()

		s := newTestSession(srv.URL)
		require.NoError(t, s.Authenticate(context.Background()))

		assert.Equal(t, int64(1), identity.passwordGrants.Load())
		assert.Equal(t, "tok-1", s.accessToken)
		assert.Equal(t, "ref-1", s.refreshToken)
		assert.Equal(t, stateAuthenticated, s.state)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		identity := &fakeIdentity{failPassword: true}
		srv := httptest.NewServer(identity.handler())
		defer srv.Close()

		s := newTestSession(srv.URL)
		err := s.Authenticate(context.Background())

		var authErr *domain.AuthenticationError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	})
}

func TestSessionDo(t *testing.T) {
	t.Run("lazy authentication and bearer header", func(t *testing.T) {
		identity := &fakeIdentity{}
		idSrv := httptest.NewServer(identity.handler())
		defer idSrv.Close()

		var gotAuth string
		apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
		}))
		defer apiSrv.Close()

		s := newTestSession(idSrv.URL)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, apiSrv.URL, nil)
		require.NoError(t, err)

		resp, err := s.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, int64(1), identity.passwordGrants.Load())
		assert.Equal(t, "Bearer tok-1", gotAuth)
	})

	t.Run("expired token refreshes once and retries", func(t *testing.T) {
		identity := &fakeIdentity{}
		idSrv := httptest.NewServer(identity.handler())
		defer idSrv.Close()

		var calls atomic.Int64
		apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		}))
		defer apiSrv.Close()

		s := newTestSession(idSrv.URL)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, apiSrv.URL, nil)
		require.NoError(t, err)

		resp, err := s.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(1), identity.refreshGrants.Load())
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("second 401 is fatal", func(t *testing.T) {
		identity := &fakeIdentity{}
		idSrv := httptest.NewServer(identity.handler())
		defer idSrv.Close()

		apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer apiSrv.Close()

		s := newTestSession(idSrv.URL)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, apiSrv.URL, nil)
		require.NoError(t, err)

		_, err = s.Do(req)

		var authErr *domain.AuthenticationError
		assert.ErrorAs(t, err, &authErr)
	})

	t.Run("failed refresh falls back to password grant", func(t *testing.T) {
		identity := &fakeIdentity{failRefresh: true}
		idSrv := httptest.NewServer(identity.handler())
		defer idSrv.Close()

		var calls atomic.Int64
		apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
			}
		}))
		defer apiSrv.Close()

		s := newTestSession(idSrv.URL)
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, apiSrv.URL, nil)
		require.NoError(t, err)

		resp, err := s.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, int64(1), identity.refreshGrants.Load())
		assert.Equal(t, int64(2), identity.passwordGrants.Load())
	})
}
