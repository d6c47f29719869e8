package offersapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchAccessToken(ctx context.Context, refreshToken string) (string, error) {
	args := m.Called(ctx, refreshToken)
	return args.String(0), args.Error(1)
}

func TestSession_NoErrorNoRefresh(t *testing.T) {
	f := new(mockFetcher)
	s := NewSession(f, testRefreshToken, "old", nil)

	calls := 0
	err := s.Do(t.Context(), func(ctx context.Context, token string) error {
		calls++
		assert.Equal(t, "old", token)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	f.AssertNotCalled(t, "FetchAccessToken", mock.Anything, mock.Anything)
}

func TestSession_GenericErrorNotRetried(t *testing.T) {
	f := new(mockFetcher)
	s := NewSession(f, testRefreshToken, "old", nil)

	calls := 0
	err := s.Do(t.Context(), func(ctx context.Context, token string) error {
		calls++
		return &APIError{Op: "get offers", Status: http.StatusInternalServerError}
	})

	assert.ErrorIs(t, err, ErrGeneric)
	assert.Equal(t, 1, calls)
	f.AssertNotCalled(t, "FetchAccessToken", mock.Anything, mock.Anything)
}

func TestSession_RefreshAndRetryOnce(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchAccessToken", mock.Anything, testRefreshToken).Return("new", nil).Once()
	s := NewSession(f, testRefreshToken, "old", nil)

	var seen []string
	err := s.Do(t.Context(), func(ctx context.Context, token string) error {
		seen = append(seen, token)
		if token == "old" {
			return &APIError{Op: "get offers", Status: http.StatusUnauthorized}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, seen)
	assert.Equal(t, "new", s.AccessToken())
	f.AssertNumberOfCalls(t, "FetchAccessToken", 1)
}

func TestSession_RefreshFailureReturnedWithoutRetry(t *testing.T) {
	refreshErr := &APIError{Op: "fetch access token", Status: http.StatusUnauthorized}
	f := new(mockFetcher)
	f.On("FetchAccessToken", mock.Anything, testRefreshToken).Return("", refreshErr).Once()
	s := NewSession(f, testRefreshToken, "old", nil)

	calls := 0
	err := s.Do(t.Context(), func(ctx context.Context, token string) error {
		calls++
		return &APIError{Op: "get offers", Status: http.StatusUnauthorized}
	})

	assert.Same(t, refreshErr, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "old", s.AccessToken())
}

func TestSession_SecondAuthFailureIsFinal(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchAccessToken", mock.Anything, testRefreshToken).Return("new", nil).Once()
	s := NewSession(f, testRefreshToken, "old", nil)

	calls := 0
	err := s.Do(t.Context(), func(ctx context.Context, token string) error {
		calls++
		return &APIError{Op: "get offers", Status: http.StatusUnauthorized}
	})

	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 2, calls)
	f.AssertNumberOfCalls(t, "FetchAccessToken", 1)
}

func TestCall_ReturnsValueOfRetry(t *testing.T) {
	f := new(mockFetcher)
	f.On("FetchAccessToken", mock.Anything, testRefreshToken).Return("new", nil).Once()
	s := NewSession(f, testRefreshToken, "old", nil)

	got, err := Call(t.Context(), s, func(ctx context.Context, token string) (int, error) {
		if token == "old" {
			return 0, &APIError{Status: http.StatusUnauthorized}
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

// offersServer emulates the remote service: it accepts only the access token
// it last issued.
type offersServer struct {
	issued      atomic.Value
	authCalls   atomic.Int32
	offersCalls atomic.Int32
	refreshOK   bool
}

func (s *offersServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/v1/auth":
		s.authCalls.Add(1)
		if !s.refreshOK || r.Header.Get("Bearer") != testRefreshToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		s.issued.Store("fresh-token")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"access_token":"fresh-token"}`)
	case "/api/v1/products/a/offers":
		s.offersCalls.Add(1)
		if tok, _ := s.issued.Load().(string); tok == "" || r.Header.Get("Bearer") != tok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `[{"id":"1","price":100,"items_in_stock":10}]`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestService_GetOffersRenewsExpiredToken(t *testing.T) {
	remote := &offersServer{refreshOK: true}
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	client := NewClient(NewHTTPClient(time.Second), srv.URL, nil)
	session := NewSession(client, testRefreshToken, "expired", nil)
	svc := NewService(client, session)

	offers, err := svc.GetOffers(t.Context(), "a")
	require.NoError(t, err)
	assert.Equal(t, []Offer{{ID: "1", Price: 100, ItemsInStock: 10}}, offers)
	assert.Equal(t, "fresh-token", session.AccessToken())
	assert.EqualValues(t, 1, remote.authCalls.Load())
	assert.EqualValues(t, 2, remote.offersCalls.Load())

	// the renewed token is reused without another refresh
	_, err = svc.GetOffers(t.Context(), "a")
	require.NoError(t, err)
	assert.EqualValues(t, 1, remote.authCalls.Load())
	assert.EqualValues(t, 3, remote.offersCalls.Load())
}

func TestService_RefreshRejected(t *testing.T) {
	remote := &offersServer{refreshOK: false}
	srv := httptest.NewServer(remote)
	t.Cleanup(srv.Close)

	client := NewClient(NewHTTPClient(time.Second), srv.URL, nil)
	svc := NewService(client, NewSession(client, testRefreshToken, "expired", nil))

	offers, err := svc.GetOffers(t.Context(), "a")
	assert.ErrorIs(t, err, ErrAuth)
	assert.Nil(t, offers)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "fetch access token", apiErr.Op)
	assert.EqualValues(t, 1, remote.offersCalls.Load())
}
