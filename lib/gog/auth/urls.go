package auth

import "net/url"

// OAuth constants from GOG's public api docs:
// https://gogapidocs.readthedocs.io/en/latest/auth.html
const (
	DefaultAuthBaseUrl = "https://auth.gog.com"

	clientId     = "46899977096215655"
	clientSecret = "9d85c43b1482497dbbce61f6e4aa173a433796eeae2ca8c5f6129f2dc4de46d9"
	redirectUri  = "https://embed.gog.com/on_login_success?origin=client"

	grantTypeNewLogin = "authorization_code"
	grantTypeRefresh  = "refresh_token"
)

// the url users should open in a browser to authenticate
func LoginUrl() string {
	endpoint, _ := url.Parse(DefaultAuthBaseUrl + "/auth")
	values := endpoint.Query()
	values.Set("client_id", clientId)
	values.Set("redirect_uri", redirectUri)
	values.Set("response_type", "code")
	values.Set("layout", "client2")
	endpoint.RawQuery = values.Encode()
	return endpoint.String()
}

func newTokenUrl(baseUrl, loginCode string) (string, error) {
	endpoint, err := url.Parse(baseUrl + "/token")
	if err != nil {
		return "", err
	}
	values := endpoint.Query()
	values.Set("client_id", clientId)
	values.Set("client_secret", clientSecret)
	values.Set("grant_type", grantTypeNewLogin)
	values.Set("code", loginCode)
	values.Set("redirect_uri", redirectUri)
	endpoint.RawQuery = values.Encode()
	return endpoint.String(), nil
}

func refreshTokenUrl(baseUrl, refreshToken string) (string, error) {
	endpoint, err := url.Parse(baseUrl + "/token")
	if err != nil {
		return "", err
	}
	values := endpoint.Query()
	values.Set("client_id", clientId)
	values.Set("client_secret", clientSecret)
	values.Set("grant_type", grantTypeRefresh)
	values.Set("refresh_token", refreshToken)
	endpoint.RawQuery = values.Encode()
	return endpoint.String(), nil
}
