// Package oauth1 signs outbound X API requests with OAuth 1.0a (HMAC-SHA1).
//
// Everything here is a pure function of its inputs plus fresh randomness, so a
// single Signer can be shared by any number of goroutines.
package oauth1

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureMethod = "HMAC-SHA1"
	Version         = "1.0"

	nonceBytes = 16
)

var ErrSigning = errors.New("oauth1: signing failed")

// Credentials are the four values a user-context OAuth 1.0a call needs.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Request is the ephemeral context of one signed call. Params holds the query
// or form parameters that take part in signing; it is empty for JSON bodies.
type Request struct {
	Method    string
	URL       string
	Params    map[string]string
	Nonce     string
	Timestamp time.Time
}

// Signer builds Authorization headers. The zero value uses the wall clock and
// crypto/rand.
type Signer struct {
	Now   func() time.Time
	Nonce func() (string, error)
}

func NewSigner() *Signer {
	return &Signer{}
}

// RandomNonce returns 16 bytes from crypto/rand, hex encoded.
func RandomNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *Signer) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Signer) nonce() (string, error) {
	if s != nil && s.Nonce != nil {
		return s.Nonce()
	}
	return RandomNonce()
}

// NewRequest stamps a request with a fresh nonce and the current time.
func (s *Signer) NewRequest(method, url string, params map[string]string) (*Request, error) {
	nonce, err := s.nonce()
	if err != nil {
		return nil, fmt.Errorf("%w: nonce: %v", ErrSigning, err)
	}
	return &Request{
		Method:    method,
		URL:       url,
		Params:    params,
		Nonce:     nonce,
		Timestamp: s.now(),
	}, nil
}

// AuthorizationHeader returns the value for the Authorization header of a
// single request. Every call draws a new nonce and timestamp.
func (s *Signer) AuthorizationHeader(method, url string, params map[string]string, creds Credentials) (string, error) {
	req, err := s.NewRequest(method, url, params)
	if err != nil {
		return "", err
	}
	return Header(req, creds), nil
}

// OAuthParams returns the protocol parameters of req, without the signature.
func OAuthParams(req *Request, creds Credentials) map[string]string {
	return map[string]string{
		"oauth_consumer_key":     creds.ConsumerKey,
		"oauth_nonce":            req.Nonce,
		"oauth_signature_method": SignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(req.Timestamp.Unix(), 10),
		"oauth_token":            creds.Token,
		"oauth_version":          Version,
	}
}

// Header signs req and serializes the OAuth parameters. Request parameters
// are signed but never serialized; they cannot override an oauth_ field.
func Header(req *Request, creds Credentials) string {
	oauth := OAuthParams(req, creds)

	all := make(map[string]string, len(oauth)+len(req.Params))
	for k, v := range req.Params {
		all[k] = v
	}
	for k, v := range oauth {
		all[k] = v
	}

	oauth["oauth_signature"] = Sign(req.Method, req.URL, all, creds.ConsumerSecret, creds.TokenSecret)
	return serialize(oauth)
}

func serialize(oauth map[string]string) string {
	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = PercentEncode(k) + `="` + PercentEncode(oauth[k]) + `"`
	}
	return "OAuth " + strings.Join(parts, ", ")
}
