package orders

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gog-receipts/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestFetchAllAggregatesPagesInOrder(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "gog/orders")
	defer cleanup()

	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/account/settings/orders/data", r.URL.Path)
		require.Equal(t, "Bearer TOKEN", r.Header.Get("Authorization"))
		require.Equal(t, "0", r.URL.Query().Get("canceled"))
		require.Equal(t, "1", r.URL.Query().Get("completed"))

		page := r.URL.Query().Get("page")
		requested = append(requested, page)
		switch page {
		case "1":
			fmt.Fprint(w, `{"orders":[{"receiptLink":"/a","date":100},{"receiptLink":"/b"}],"totalPages":2}`)
		case "2":
			fmt.Fprint(w, `{"orders":[{"receiptLink":"/c","date":300}]}`)
		default:
			t.Errorf("unexpected page %q", page)
		}
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseUrl: server.URL, AccessToken: "TOKEN"})
	all, err := client.FetchAll(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"1", "2"}, requested)
	require.Equal(t, []Order{
		{ReceiptLink: "/a", Date: 100},
		{ReceiptLink: "/b"},
		{ReceiptLink: "/c", Date: 300},
	}, all)
}

func TestFetchAllClampsTotalPages(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"orders":[{"receiptLink":"/a"}],"totalPages":0}`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseUrl: server.URL})
	all, err := client.FetchAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, requests)
	require.Len(t, all, 1)
}

func TestFetchAllFailingPageIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `{"orders":[{"receiptLink":"/a"}],"totalPages":3}`)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseUrl: server.URL})
	all, err := client.FetchAll(context.Background())

	// partial results are discarded, not returned
	require.Nil(t, all)
	var catalogErr *CatalogError
	require.ErrorAs(t, err, &catalogErr)
	require.Equal(t, 2, catalogErr.Page)
	require.Equal(t, http.StatusBadGateway, catalogErr.StatusCode)
}

func TestFetchAllToleratesLooseDates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"orders":[
			{"receiptLink":"/a","date":1700000000.5},
			{"receiptLink":"/b","date":"2023-11-14"},
			{"receiptLink":"/c","date":null},
			{"receiptLink":"/d"}
		],"totalPages":1}`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseUrl: server.URL})
	all, err := client.FetchAll(context.Background())
	require.NoError(t, err)

	// fractional dates truncate to whole seconds, anything that is not a
	// number reads as absent
	require.Equal(t, []Order{
		{ReceiptLink: "/a", Date: 1700000000},
		{ReceiptLink: "/b"},
		{ReceiptLink: "/c"},
		{ReceiptLink: "/d"},
	}, all)
}

func TestFetchAllUnparseableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>login page</html>`)
	}))
	defer server.Close()

	client := NewClient(ClientOptions{BaseUrl: server.URL})
	_, err := client.FetchAll(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "unparseable")
}
