package oauth1

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"sort"
	"strings"
)

type pair struct {
	key   string
	value string
}

// encodedPairs percent-encodes every key and value and orders them by encoded
// key, then by encoded value.
func encodedPairs(params map[string]string) []pair {
	pairs := make([]pair, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, pair{key: PercentEncode(k), value: PercentEncode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})
	return pairs
}

// ParameterString joins the normalized parameters as k=v pairs separated by '&'.
func ParameterString(params map[string]string) string {
	pairs := encodedPairs(params)
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.key + "=" + p.value
	}
	return strings.Join(parts, "&")
}

// BaseString builds the signature base string. baseURL must not carry a query
// string; query parameters belong in params.
func BaseString(method, baseURL string, params map[string]string) string {
	return strings.ToUpper(method) + "&" + PercentEncode(baseURL) + "&" + PercentEncode(ParameterString(params))
}

// SigningKey is the HMAC key. The '&' is present even when tokenSecret is empty.
func SigningKey(consumerSecret, tokenSecret string) string {
	return PercentEncode(consumerSecret) + "&" + PercentEncode(tokenSecret)
}

// Sign returns the base64 HMAC-SHA1 signature of the request described by
// method, baseURL and params.
func Sign(method, baseURL string, params map[string]string, consumerSecret, tokenSecret string) string {
	mac := hmac.New(sha1.New, []byte(SigningKey(consumerSecret, tokenSecret)))
	mac.Write([]byte(BaseString(method, baseURL, params)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
