package offersapi

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

type TokenFetcher interface {
	FetchAccessToken(ctx context.Context, refreshToken string) (string, error)
}

// Session owns the process wide access token and renews it with the refresh
// token whenever the offers service answers 401.
type Session struct {
	fetcher      TokenFetcher
	refreshToken string
	log          *zap.Logger

	mu          sync.RWMutex
	accessToken string
}

func NewSession(fetcher TokenFetcher, refreshToken, accessToken string, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		fetcher:      fetcher,
		refreshToken: refreshToken,
		accessToken:  accessToken,
		log:          log.Named("session"),
	}
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) setAccessToken(token string) {
	s.mu.Lock()
	s.accessToken = token
	s.mu.Unlock()
}

// Do runs op with the current access token. If op fails with ErrAuth the
// token is renewed and op runs exactly once more with the new token. A failed
// renewal is returned as is and op is not retried.
func (s *Session) Do(ctx context.Context, op func(ctx context.Context, accessToken string) error) error {
	err := op(ctx, s.AccessToken())
	if !errors.Is(err, ErrAuth) {
		return err
	}

	s.log.Info("access token rejected, refreshing")
	token, err := s.fetcher.FetchAccessToken(ctx, s.refreshToken)
	if err != nil {
		s.log.Warn("access token refresh failed", zap.Error(err))
		return err
	}
	s.setAccessToken(token)

	return op(ctx, token)
}

// Call is Do for operations that produce a value.
func Call[T any](ctx context.Context, s *Session, op func(ctx context.Context, accessToken string) (T, error)) (T, error) {
	var out T
	err := s.Do(ctx, func(ctx context.Context, accessToken string) error {
		v, err := op(ctx, accessToken)
		out = v
		return err
	})
	return out, err
}

// Service binds a Client to a Session so callers never handle tokens.
type Service struct {
	client  *Client
	session *Session
}

func NewService(client *Client, session *Session) *Service {
	return &Service{client: client, session: session}
}

func (s *Service) RegisterProduct(ctx context.Context, productID, name, description string) error {
	return s.session.Do(ctx, func(ctx context.Context, token string) error {
		return s.client.RegisterProduct(ctx, token, productID, name, description)
	})
}

func (s *Service) GetOffers(ctx context.Context, productID string) ([]Offer, error) {
	return Call(ctx, s.session, func(ctx context.Context, token string) ([]Offer, error) {
		return s.client.GetOffers(ctx, token, productID)
	})
}
