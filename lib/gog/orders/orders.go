package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gog-receipts/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("gog-receipts.lib.gog.orders")

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// EpochSeconds decodes the loose date field on the orders endpoint: any
// json number is truncated to whole seconds, anything else reads as zero
// (absent).
type EpochSeconds int64

func (e *EpochSeconds) UnmarshalJSON(data []byte) error {
	var n json.Number
	if json.Unmarshal(data, &n) != nil {
		*e = 0
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		*e = 0
		return nil
	}
	*e = EpochSeconds(f)
	return nil
}

// one purchase as reported by the orders endpoint. Date is seconds since
// epoch, zero when the api did not supply a usable one.
type Order struct {
	ReceiptLink string       `json:"receiptLink"`
	Date        EpochSeconds `json:"date"`
}

type ordersPage struct {
	Orders     []Order `json:"orders"`
	TotalPages int     `json:"totalPages"`
}

// a non-success status while paging the orders endpoint. partial results
// are never returned.
type CatalogError struct {
	Page       int
	StatusCode int
	Body       string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("orders endpoint returned status %d on page %d", e.StatusCode, e.Page)
}

type Client struct {
	http *resty.Client
}

type ClientOptions struct {
	// defaults to https://www.gog.com
	BaseUrl     string
	AccessToken string
}

func NewClient(opts ClientOptions) *Client {
	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = "https://www.gog.com"
	}

	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetHeader("user-agent", userAgent)
	client.SetAuthToken(opts.AccessToken)
	client.SetTimeout(time.Second * 30)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	telemetry.InstrumentResty(client, "gog/orders/http")

	return &Client{http: client}
}

// fetches every page of the purchase history, in increasing page order,
// and returns the orders flattened in page order. any failing page fails
// the whole operation.
func (c *Client) FetchAll(ctx context.Context) ([]Order, error) {
	ctx, span := tracer.Start(ctx, "client:FetchAll")
	defer span.End()

	first, err := c.fetchPage(ctx, 1)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch first page")
		return nil, err
	}

	totalPages := first.TotalPages
	if totalPages < 1 {
		totalPages = 1
	}
	span.SetAttributes(attribute.Int("total_pages", totalPages))

	all := append([]Order{}, first.Orders...)

	// pages are fetched one at a time, the vendor api has no documented
	// concurrency budget
	for page := 2; page <= totalPages; page++ {
		next, err := c.fetchPage(ctx, page)
		if err != nil {
			span.SetStatus(codes.Error, "failed to fetch page")
			return nil, err
		}
		all = append(all, next.Orders...)
	}

	slog.InfoContext(ctx, "fetched order history", "orders", len(all), "pages", totalPages)
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, page int) (ordersPage, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"canceled":  "0",
			"completed": "1",
			"page":      strconv.Itoa(page),
		}).
		Get("/account/settings/orders/data")
	if err != nil {
		return ordersPage{}, err
	}
	if res.IsError() {
		return ordersPage{}, &CatalogError{
			Page:       page,
			StatusCode: res.StatusCode(),
			Body:       res.String(),
		}
	}

	var parsed ordersPage
	err = json.Unmarshal(res.Body(), &parsed)
	if err != nil {
		return ordersPage{}, fmt.Errorf("orders endpoint page %d returned an unparseable body: %w", page, err)
	}
	return parsed, nil
}
