// Package orders covers checkout by manual transaction reference and
// the visitor's order history.
package orders

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/rest"
)

var errRestClientRequired = errors.New("orders rest client is required")

// PaymentItem is one purchased line submitted with a payment.
type PaymentItem struct {
	ProductID    cart.ID    `json:"product_id"`
	ProductName  string     `json:"product_name"`
	ProductPrice cart.Price `json:"product_price"`
	Quantity     int        `json:"quantity"`
}

// SubmitPaymentInput carries the manual transaction reference the
// visitor entered plus the purchased lines.
type SubmitPaymentInput struct {
	TransactionID string
	TotalAmount   decimal.Decimal
	Items         []PaymentItem
}

// Order is one entry in the visitor's order history.
type Order struct {
	ID            cart.ID     `json:"id"`
	Status        string      `json:"status"`
	TotalAmount   cart.Price  `json:"total_amount"`
	TransactionID string      `json:"transaction_id"`
	CreatedAt     string      `json:"created_at"`
	Items         []OrderItem `json:"items"`
}

// OrderItem is a line within a past order.
type OrderItem struct {
	ProductName  string     `json:"product_name"`
	ProductPrice cart.Price `json:"product_price"`
	Quantity     int        `json:"quantity"`
}

type Client struct {
	rest *rest.Client
}

func New(restClient *rest.Client) (*Client, error) {
	if restClient == nil {
		return nil, errRestClientRequired
	}
	return &Client{rest: restClient}, nil
}

// SubmitPayment records the checkout. Validation problems (blank or
// reused transaction reference, empty cart) come back as recoverable
// coded errors.
func (c *Client) SubmitPayment(ctx context.Context, input SubmitPaymentInput) error {
	if strings.TrimSpace(input.TransactionID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}
	if !input.TotalAmount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	payload := struct {
		TransactionID string        `json:"transaction_id"`
		TotalAmount   string        `json:"total_amount"`
		Items         []PaymentItem `json:"items"`
	}{
		TransactionID: strings.TrimSpace(input.TransactionID),
		TotalAmount:   input.TotalAmount.String(),
		Items:         input.Items,
	}
	return c.rest.Do(ctx, "payments.submit", http.MethodPost, "/api/payments/submit/", payload, nil)
}

// History fetches the visitor's past orders, newest first.
func (c *Client) History(ctx context.Context) ([]Order, error) {
	var orders []Order
	if err := c.rest.Get(ctx, "orders.history", "/api/orders/", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// AdminOrder is a back-office row covering every user's orders.
type AdminOrder struct {
	ID            cart.ID    `json:"id"`
	Username      string     `json:"username"`
	TotalAmount   cart.Price `json:"total_amount"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id"`
	ItemCount     int        `json:"item_count"`
	CreatedAt     string     `json:"created_at"`
}

// AdminPayment is a back-office row covering every user's payments.
type AdminPayment struct {
	ID            cart.ID    `json:"id"`
	Username      string     `json:"username"`
	TransactionID string     `json:"transaction_id"`
	TotalAmount   cart.Price `json:"total_amount"`
	Status        string     `json:"status"`
	CreatedAt     string     `json:"created_at"`
}

// AllOrders lists every user's orders. The endpoint is staff-only;
// non-staff credentials come back with the forbidden code.
func (c *Client) AllOrders(ctx context.Context) ([]AdminOrder, error) {
	var all []AdminOrder
	if err := c.rest.Get(ctx, "orders.all", "/api/orders/all/", &all); err != nil {
		return nil, err
	}
	return all, nil
}

// AllPayments lists every user's payments, staff-only.
func (c *Client) AllPayments(ctx context.Context) ([]AdminPayment, error) {
	var all []AdminPayment
	if err := c.rest.Get(ctx, "payments.all", "/api/payments/all/", &all); err != nil {
		return nil, err
	}
	return all, nil
}
