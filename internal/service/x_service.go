package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maheshrc27/xscheduler/internal/oauth1"
	"github.com/maheshrc27/xscheduler/internal/transfer"
)

const (
	xTweetsPath = "/2/tweets"
	xMePath     = "/2/users/me"

	maxBody = 1 << 20
)

// XService talks to the X API v2 with OAuth 1.0a user context. It never
// retries; callers bound each call with the context deadline.
type XService interface {
	Publish(ctx context.Context, creds oauth1.Credentials, text string) (string, error)
	Verify(ctx context.Context, creds oauth1.Credentials) (*transfer.XUser, error)
}

type xService struct {
	baseURL string
	client  *http.Client
	signer  *oauth1.Signer
}

func NewXService(baseURL string, client *http.Client, signer *oauth1.Signer) XService {
	if client == nil {
		client = &http.Client{}
	}
	if signer == nil {
		signer = oauth1.NewSigner()
	}
	return &xService{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		signer:  signer,
	}
}

func (s *xService) Publish(ctx context.Context, creds oauth1.Credentials, text string) (string, error) {
	body, err := json.Marshal(transfer.TweetRequest{Text: text})
	if err != nil {
		return "", err
	}

	var result transfer.TweetResponse
	status, err := s.do(ctx, http.MethodPost, s.baseURL+xTweetsPath, body, creds, &result)
	if err != nil {
		return "", err
	}
	if result.Data.ID == "" {
		slog.Warn("X API accepted a tweet without returning its id", "status", status)
		return "", &RemoteError{StatusCode: status, Body: []byte(`{"detail":"response did not include a tweet id"}`)}
	}

	return result.Data.ID, nil
}

func (s *xService) Verify(ctx context.Context, creds oauth1.Credentials) (*transfer.XUser, error) {
	var result transfer.XUserResponse
	if _, err := s.do(ctx, http.MethodGet, s.baseURL+xMePath, nil, creds, &result); err != nil {
		return nil, err
	}
	return &result.Data, nil
}

// do signs and sends one request and decodes a 2xx body into out.
func (s *xService) do(ctx context.Context, method, url string, body []byte, creds oauth1.Credentials, out any) (int, error) {
	// JSON bodies do not take part in the signature.
	authHeader, err := s.signer.AuthorizationHeader(method, url, nil, creds)
	if err != nil {
		return 0, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Info("X API request failed", "method", method, "url", url, "error", err)
		return 0, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		slog.Info("X API response body could not be read", "status", resp.StatusCode, "error", err)
		// A 2xx may already have created the tweet.
		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			return resp.StatusCode, &RemoteError{StatusCode: resp.StatusCode, Body: payload}
		}
		return resp.StatusCode, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Info("X API returned an error", "method", method, "url", url, "status", resp.StatusCode)
		return resp.StatusCode, &RemoteError{StatusCode: resp.StatusCode, Body: payload}
	}

	// A 2xx we cannot decode may still have created the tweet, so it is not
	// reported as retriable.
	if err := json.Unmarshal(payload, out); err != nil {
		slog.Info("X API response is not valid JSON", "status", resp.StatusCode, "error", err)
		return resp.StatusCode, &RemoteError{StatusCode: resp.StatusCode, Body: payload}
	}
	return resp.StatusCode, nil
}
