package auth

import "time"

// token payload returned by the token endpoint. older payloads only
// carried a `code` value, those are still accepted as valid.
type Token struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Code         string `json:"code,omitempty"`
}

// a stored token is only usable when it carries at least one credential
func (t Token) Valid() bool {
	return t.AccessToken != "" || t.RefreshToken != "" || t.Code != ""
}

// the one-time code obtained from the oauth redirect, recorded with the
// time it was captured. superseded by the next login attempt.
type LoginCode struct {
	LoginCode string    `json:"loginCode"`
	CreatedAt time.Time `json:"createdAt"`
}
