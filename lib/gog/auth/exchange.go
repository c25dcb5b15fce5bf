package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gog-receipts/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("gog-receipts.lib.gog.auth")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// the token endpoint rejected an exchange or refresh
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token endpoint returned status %d: %s", e.StatusCode, e.Body)
}

// Exchanger performs the two token round trips of the oauth flow.
type Exchanger struct {
	baseUrl string
	http    *resty.Client
}

type ExchangerOptions struct {
	// defaults to DefaultAuthBaseUrl
	BaseUrl string
}

func NewExchanger(opts ExchangerOptions) *Exchanger {
	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultAuthBaseUrl
	}

	client := resty.New()
	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(time.Second * 30)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	telemetry.InstrumentResty(client, "gog/auth/http")

	return &Exchanger{
		baseUrl: baseUrl,
		http:    client,
	}
}

// exchanges a one-time login code for a token using the
// authorization_code grant
func (e *Exchanger) ExchangeCode(ctx context.Context, loginCode string) (Token, error) {
	ctx, span := tracer.Start(ctx, "exchanger:ExchangeCode")
	defer span.End()

	endpoint, err := newTokenUrl(e.baseUrl, loginCode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build token url")
		return Token{}, err
	}
	return e.fetchToken(ctx, endpoint)
}

// obtains a fresh token from a refresh_token value without
// re-authentication
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	ctx, span := tracer.Start(ctx, "exchanger:Refresh")
	defer span.End()

	endpoint, err := refreshTokenUrl(e.baseUrl, refreshToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to build refresh url")
		return Token{}, err
	}
	return e.fetchToken(ctx, endpoint)
}

func (e *Exchanger) fetchToken(ctx context.Context, endpoint string) (Token, error) {
	res, err := e.http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		return Token{}, err
	}
	if res.IsError() {
		return Token{}, &ExchangeError{
			StatusCode: res.StatusCode(),
			Body:       res.String(),
		}
	}

	var token Token
	err = json.Unmarshal(res.Body(), &token)
	if err != nil {
		return Token{}, fmt.Errorf("token endpoint returned an unparseable body: %w", err)
	}
	return token, nil
}
