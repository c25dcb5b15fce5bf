package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Exchange is the part of the oauth flow the lifecycle chain depends on,
// split out so tests can count calls per chain step.
type Exchange interface {
	ExchangeCode(ctx context.Context, loginCode string) (Token, error)
	Refresh(ctx context.Context, refreshToken string) (Token, error)
}

// Flow resolves a usable token through an ordered fallback chain:
// refresh the stored token, exchange a stored login code, exchange a
// caller-provided code/url, and finally prompt the operator. the first
// step that yields a token wins, every newly obtained token is persisted.
type Flow struct {
	Store    Store
	Exchange Exchange
	// operator input for the interactive step, defaults to stdin
	Input io.Reader
	// operator-facing instructions, defaults to stdout
	Output io.Writer
}

func NewFlow(store Store) *Flow {
	return &Flow{
		Store:    store,
		Exchange: NewExchanger(ExchangerOptions{}),
		Input:    os.Stdin,
		Output:   os.Stdout,
	}
}

// `provided` is an optional raw code or callback url for this run, pass
// "" to fall back on stored credentials or the interactive prompt.
func (f *Flow) Acquire(ctx context.Context, provided string) (Token, error) {
	ctx, span := tracer.Start(ctx, "flow:Acquire")
	defer span.End()

	token, handled, err := f.refreshStoredToken(ctx)
	if err != nil {
		return Token{}, err
	}
	if handled {
		slog.InfoContext(ctx, "session restored from refreshed token")
		return token, nil
	}

	if provided == "" {
		token, handled, err = f.exchangeStoredLoginCode(ctx)
		if err != nil {
			return Token{}, err
		}
		if handled {
			slog.InfoContext(ctx, "session restored from saved login code")
			return token, nil
		}
	}

	if provided != "" {
		return f.exchangeProvided(ctx, provided)
	}

	input, err := f.promptForLoginCode()
	if err != nil {
		return Token{}, err
	}
	return f.exchangeProvided(ctx, input)
}

// attempts to refresh an existing stored session. exchange failures are
// not fatal, the chain falls through to the next step. a failure to
// persist the refreshed token is.
func (f *Flow) refreshStoredToken(ctx context.Context) (Token, bool, error) {
	existing, ok := f.Store.ReadToken()
	if !ok || existing.RefreshToken == "" {
		return Token{}, false, nil
	}

	refreshed, err := f.Exchange.Refresh(ctx, existing.RefreshToken)
	if err != nil {
		slog.InfoContext(ctx, "previous session expired, starting fresh login", "err", err)
		return Token{}, false, nil
	}
	if !refreshed.Valid() {
		slog.InfoContext(ctx, "refresh response carried no credentials, starting fresh login")
		return Token{}, false, nil
	}

	path, err := f.Store.WriteToken(refreshed)
	if err != nil {
		return Token{}, false, err
	}
	slog.DebugContext(ctx, "refreshed token saved", "path", path)
	return refreshed, true, nil
}

func (f *Flow) exchangeStoredLoginCode(ctx context.Context) (Token, bool, error) {
	stored, ok := f.Store.ReadLoginCode()
	if !ok {
		return Token{}, false, nil
	}

	token, err := f.Exchange.ExchangeCode(ctx, stored.LoginCode)
	if err != nil {
		slog.InfoContext(ctx, "saved login code no longer valid", "err", err)
		return Token{}, false, nil
	}
	if !token.Valid() {
		slog.InfoContext(ctx, "saved login code yielded no credentials")
		return Token{}, false, nil
	}

	path, err := f.Store.WriteToken(token)
	if err != nil {
		return Token{}, false, err
	}
	slog.DebugContext(ctx, "token saved", "path", path)
	return token, true, nil
}

// the end of the chain, failures here surface to the caller
func (f *Flow) exchangeProvided(ctx context.Context, codeOrUrl string) (Token, error) {
	code, err := ExtractLoginCode(codeOrUrl)
	if err != nil {
		return Token{}, err
	}

	path, err := f.Store.WriteLoginCode(code)
	if err != nil {
		return Token{}, err
	}
	slog.DebugContext(ctx, "login code saved", "path", path)

	token, err := f.Exchange.ExchangeCode(ctx, code)
	if err != nil {
		return Token{}, err
	}

	path, err = f.Store.WriteToken(token)
	if err != nil {
		return Token{}, err
	}
	slog.InfoContext(ctx, "login successful, token saved", "path", path)
	return token, nil
}

func (f *Flow) promptForLoginCode() (string, error) {
	fmt.Fprintf(f.Output, `
To connect your GOG account, please follow these steps:

1. Open this link in your browser: %s
2. Log in to your account.
3. After logging in, you will see a blank page. Copy the url from the address bar.
4. Paste that url here.

URL: `, LoginUrl())

	scanner := bufio.NewScanner(f.Input)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", ErrNoLoginCode
	}
	return scanner.Text(), nil
}
