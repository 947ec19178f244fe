package transfer

import "github.com/golang-jwt/jwt/v5"

type SettingsUpdate struct {
	ApiKey            string `json:"api_key"`
	ApiKeySecret      string `json:"api_key_secret"`
	AccessToken       string `json:"access_token"`
	AccessTokenSecret string `json:"access_token_secret"`
	BearerToken       string `json:"bearer_token"`
}

// SettingsView is what the dashboard sees: secrets are masked.
type SettingsView struct {
	ApiKey            string `json:"api_key"`
	ApiKeySecret      string `json:"api_key_secret"`
	AccessToken       string `json:"access_token"`
	AccessTokenSecret string `json:"access_token_secret"`
	HasBearerToken    bool   `json:"has_bearer_token"`
	IsConnected       bool   `json:"is_connected"`
}

type GoogleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
