package offersapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

const (
	authPath     = "/api/v1/auth"
	registerPath = "/api/v1/products/register"

	// bearerHeader is the header name the offers service reads tokens from.
	bearerHeader = "Bearer"
)

// OfferID accepts both string and numeric ids from the wire.
type OfferID string

func (id *OfferID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = OfferID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("offer id: %w", err)
	}
	*id = OfferID(n.String())
	return nil
}

type Offer struct {
	ID           OfferID `json:"id"`
	Price        float64 `json:"price"`
	ItemsInStock int     `json:"items_in_stock"`
}

type registerRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Client speaks the offers service wire protocol. It keeps no state besides
// its configuration.
type Client struct {
	doer    Doer
	baseURL string
	log     *zap.Logger
}

func NewClient(doer Doer, baseURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		doer:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.Named("offersapi"),
	}
}

func (c *Client) newReq(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("%w: base url is empty", ErrGeneric)
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneric, err)
	}
	req.Header.Set(bearerHeader, token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.doer.Do(req)
	if err != nil {
		c.log.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err),
		)
		return 0, nil, fmt.Errorf("%w: %s %s: %v", ErrGeneric, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	c.log.Info("request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
		zap.Int("status", resp.StatusCode),
	)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read body: %v", ErrGeneric, err)
	}
	return resp.StatusCode, b, nil
}

// FetchAccessToken exchanges the refresh token for a new access token.
func (c *Client) FetchAccessToken(ctx context.Context, refreshToken string) (string, error) {
	req, err := c.newReq(ctx, http.MethodPost, authPath, refreshToken, nil)
	if err != nil {
		return "", err
	}

	status, b, err := c.do(req)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", statusError("fetch access token", status, b)
	}

	var out tokenResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return "", fmt.Errorf("%w: fetch access token: bad json: %v", ErrGeneric, err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("%w: fetch access token: empty access_token", ErrGeneric)
	}
	return out.AccessToken, nil
}

func (c *Client) RegisterProduct(ctx context.Context, accessToken, productID, name, description string) error {
	req, err := c.newReq(ctx, http.MethodPost, registerPath, accessToken, registerRequest{
		ID:          productID,
		Name:        name,
		Description: description,
	})
	if err != nil {
		return err
	}

	status, b, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return statusError("register product", status, b)
	}
	return nil
}

func (c *Client) GetOffers(ctx context.Context, accessToken, productID string) ([]Offer, error) {
	path := "/api/v1/products/" + url.PathEscape(productID) + "/offers"
	req, err := c.newReq(ctx, http.MethodGet, path, accessToken, nil)
	if err != nil {
		return nil, err
	}

	status, b, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusError("get offers", status, b)
	}

	out := []Offer{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: get offers: bad json: %v", ErrGeneric, err)
	}
	return out, nil
}
