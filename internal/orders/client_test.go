package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/internal/cart"
	"github.com/angelmondragon/storefront-client/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/rest"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	restClient, err := rest.New(config.BackendConfig{BaseURL: server.URL, Timeout: 2 * time.Second},
		nil, logger.New(logger.Options{ServiceName: "test"}), nil)
	if err != nil {
		t.Fatalf("rest client: %v", err)
	}
	client, err := New(restClient)
	if err != nil {
		t.Fatalf("orders client: %v", err)
	}
	return client
}

func validInput() SubmitPaymentInput {
	return SubmitPaymentInput{
		TransactionID: "TX-1",
		TotalAmount:   decimal.RequireFromString("12.50"),
		Items: []PaymentItem{
			{ProductID: "p1", ProductName: "Mug", ProductPrice: cart.PriceFromString("12.50"), Quantity: 1},
		},
	}
}

func TestSubmitPaymentValidatesLocally(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should reach the server for invalid input")
	}))

	cases := []struct {
		name   string
		mutate func(*SubmitPaymentInput)
	}{
		{"blank reference", func(in *SubmitPaymentInput) { in.TransactionID = "  " }},
		{"zero total", func(in *SubmitPaymentInput) { in.TotalAmount = decimal.Zero }},
		{"no items", func(in *SubmitPaymentInput) { in.Items = nil }},
	}
	for _, tc := range cases {
		input := validInput()
		tc.mutate(&input)
		err := client.SubmitPayment(context.Background(), input)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Errorf("%s: expected validation code, got %v", tc.name, err)
		}
	}
}

func TestSubmitPaymentSendsTotalAsString(t *testing.T) {
	t.Parallel()

	var payload map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/payments/submit/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message": "Payment submitted for verification."}`))
	}))

	input := validInput()
	input.TransactionID = " TX-1 "
	if err := client.SubmitPayment(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["total_amount"] != "12.5" {
		t.Fatalf("expected the total as a decimal string, got %v", payload["total_amount"])
	}
	if payload["transaction_id"] != "TX-1" {
		t.Fatalf("expected a trimmed reference, got %v", payload["transaction_id"])
	}
}

func TestAllOrdersParsesListing(t *testing.T) {
	t.Parallel()

	body := `[
		{"id": 7, "username": "carol", "total_amount": "51.50", "status": "pending",
		 "transaction_id": "TX-7", "item_count": 3, "created_at": "Aug 31, 2026 at 11:00 AM"}
	]`
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders/all/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(body))
	}))

	all, err := client.AllOrders(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 || all[0].Username != "carol" || all[0].ItemCount != 3 {
		t.Fatalf("unexpected listing %+v", all)
	}
}

func TestAllPaymentsForbiddenForNonStaff(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error": "Forbidden"}`))
	}))

	_, err := client.AllPayments(context.Background())
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden code, got %v", err)
	}
}

func TestHistoryParsesOrders(t *testing.T) {
	t.Parallel()

	body := `[
		{"id": 2, "status": "pending", "total_amount": "12.50", "transaction_id": "TX-2",
		 "created_at": "Aug 30, 2026 at 10:15 AM",
		 "items": [{"product_name": "Mug", "product_price": "12.50", "quantity": 1}]},
		{"id": 1, "status": "verified", "total_amount": "39.00", "transaction_id": "TX-1",
		 "created_at": "Aug 29, 2026 at 09:00 AM", "items": []}
	]`
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(body))
	}))

	orders, err := client.History(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].TransactionID != "TX-2" || orders[0].Status != "pending" {
		t.Fatalf("unexpected first order %+v", orders[0])
	}
	if len(orders[0].Items) != 1 || orders[0].Items[0].ProductName != "Mug" {
		t.Fatalf("unexpected items %+v", orders[0].Items)
	}
}
