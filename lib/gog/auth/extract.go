package auth

import (
	"errors"
	"net/url"
	"strings"
)

var (
	ErrNoLoginCode    = errors.New("no login code or url provided")
	ErrUrlWithoutCode = errors.New("the url does not contain a login code")
)

// pulls the login code out of either a raw code string or the full
// redirect url pasted from the browser's address bar
func ExtractLoginCode(codeOrUrl string) (string, error) {
	input := strings.TrimSpace(codeOrUrl)
	if input == "" {
		return "", ErrNoLoginCode
	}

	parsed, err := url.Parse(input)
	if err == nil && parsed.Scheme != "" && parsed.Host != "" {
		code := parsed.Query().Get("code")
		if code == "" {
			return "", ErrUrlWithoutCode
		}
		return code, nil
	}

	// not a url, assume the input itself is the code
	return input, nil
}
