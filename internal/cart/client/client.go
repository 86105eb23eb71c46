// Package client is the thin, always-fresh view over the server's
// cart for an authenticated session. Local state is never treated as
// authoritative: every mutation round-trips and either trusts the
// server's reply or re-fetches.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/angelmondragon/storefront-client/internal/cart"
	"github.com/angelmondragon/storefront-client/pkg/rest"
)

var errRestClientRequired = errors.New("cart rest client is required")

// MergeItem is one (product, quantity) pair handed to the server's
// merge endpoint. The server owns line-matching and consolidation.
type MergeItem struct {
	ProductID cart.ID `json:"product_id"`
	Quantity  int     `json:"quantity"`
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

// FetchSnapshot queries the server for the current cart. A rejected
// credential surfaces as an unauthorized-coded error, never as an
// empty cart.
func (c *Client) FetchSnapshot(ctx context.Context) (*cart.Cart, error) {
	var snapshot cart.Cart
	if err := c.rest.Get(ctx, "cart.view", "/api/cart/view/", &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// AddLine adds quantity of the product to the server cart and
// returns the server's updated item count.
func (c *Client) AddLine(ctx context.Context, productID cart.ID, qty int) (int, error) {
	payload := struct {
		ProductID cart.ID `json:"product_id"`
		Quantity  int     `json:"quantity"`
	}{ProductID: productID, Quantity: qty}

	var reply struct {
		CartCount int `json:"cart_count"`
	}
	if err := c.rest.Do(ctx, "cart.add", http.MethodPost, "/api/cart/add/", payload, &reply); err != nil {
		return 0, err
	}
	return reply.CartCount, nil
}

// UpdateQuantity sets the line's quantity server-side.
func (c *Client) UpdateQuantity(ctx context.Context, lineID cart.ID, qty int) error {
	payload := struct {
		Quantity int `json:"quantity"`
	}{Quantity: qty}
	path := fmt.Sprintf("/api/cart/item/%s/update/", lineID)
	return c.rest.Do(ctx, "cart.update", http.MethodPatch, path, payload, nil)
}

// RemoveLine deletes the line server-side.
func (c *Client) RemoveLine(ctx context.Context, lineID cart.ID) error {
	path := fmt.Sprintf("/api/cart/item/%s/delete/", lineID)
	return c.rest.Do(ctx, "cart.remove", http.MethodDelete, path, nil, nil)
}

// Clear empties the server cart.
func (c *Client) Clear(ctx context.Context) error {
	return c.rest.Do(ctx, "cart.clear", http.MethodPost, "/api/cart/clear/", nil, nil)
}

// Merge hands a guest cart snapshot to the server under the freshly
// obtained credential. The response body is ignored beyond its
// status; consolidation semantics live server-side.
func (c *Client) Merge(ctx context.Context, items []MergeItem) error {
	payload := struct {
		Items []MergeItem `json:"items"`
	}{Items: items}
	return c.rest.Do(ctx, "cart.merge", http.MethodPost, "/api/cart/merge/", payload, nil)
}
