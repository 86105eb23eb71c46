// Package catalog covers product queries, the staff-only product
// maintenance endpoints, and product ratings.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/angelmondragon/storefront-client/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/rest"
)

var errRestClientRequired = errors.New("catalog rest client is required")

// Product mirrors the catalog wire shape.
type Product struct {
	ID          cart.ID    `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Price       cart.Price `json:"price"`
	Image       string     `json:"image,omitempty"`
	Category    string     `json:"category,omitempty"`
}

// ListParams narrows a product listing.
type ListParams struct {
	Search   string
	Category string
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

// List fetches the product listing, optionally filtered.
func (c *Client) List(ctx context.Context, params ListParams) ([]Product, error) {
	path := "/api/products/"
	query := url.Values{}
	if s := strings.TrimSpace(params.Search); s != "" {
		query.Set("search", s)
	}
	if cat := strings.TrimSpace(params.Category); cat != "" && !strings.EqualFold(cat, "all") {
		query.Set("category", cat)
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var products []Product
	if err := c.rest.Get(ctx, "products.list", path, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// Get fetches one product's detail.
func (c *Client) Get(ctx context.Context, id cart.ID) (*Product, error) {
	var product Product
	path := fmt.Sprintf("/api/products/%s/", id)
	if err := c.rest.Get(ctx, "products.detail", path, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// ProductInput carries the editable product fields for the staff-only
// create and update endpoints.
type ProductInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Price       cart.Price `json:"price"`
	Image       string     `json:"image,omitempty"`
	Category    string     `json:"category,omitempty"`
}

// CreateProduct adds a catalog entry. Staff-only; the server assigns
// the id.
func (c *Client) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	var product Product
	if err := c.rest.Do(ctx, "products.create", http.MethodPost, "/api/products/create/", input, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct replaces a catalog entry's fields, staff-only.
func (c *Client) UpdateProduct(ctx context.Context, id cart.ID, input ProductInput) (*Product, error) {
	var product Product
	path := fmt.Sprintf("/api/products/update/%s/", id)
	if err := c.rest.Do(ctx, "products.update", http.MethodPut, path, input, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a catalog entry, staff-only.
func (c *Client) DeleteProduct(ctx context.Context, id cart.ID) error {
	path := fmt.Sprintf("/api/products/delete/%s/", id)
	return c.rest.Do(ctx, "products.delete", http.MethodDelete, path, nil, nil)
}

// Rating is one user's review of a product.
type Rating struct {
	ID        cart.ID `json:"id"`
	Username  string  `json:"username"`
	Score     int     `json:"score"`
	Review    string  `json:"review"`
	CreatedAt string  `json:"created_at"`
}

// RatingSummary is the public rating view for a product.
type RatingSummary struct {
	Average float64  `json:"average"`
	Count   int      `json:"count"`
	Ratings []Rating `json:"ratings"`
}

// RatingEntry is the score/review pair of a single rating.
type RatingEntry struct {
	Score  int    `json:"score"`
	Review string `json:"review"`
}

// OwnRating reports the signed-in user's rating for a product and
// whether they are eligible to rate it (buyers only).
type OwnRating struct {
	HasPurchased bool         `json:"has_purchased"`
	Rating       *RatingEntry `json:"my_rating"`
}

// RatingResult is the server's reply to a submitted rating.
type RatingResult struct {
	Message    string  `json:"message"`
	Score      int     `json:"score"`
	Review     string  `json:"review"`
	NewAverage float64 `json:"new_average"`
}

// Ratings fetches the public rating summary for a product.
func (c *Client) Ratings(ctx context.Context, productID cart.ID) (*RatingSummary, error) {
	var summary RatingSummary
	path := fmt.Sprintf("/api/ratings/%s/", productID)
	if err := c.rest.Get(ctx, "ratings.list", path, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// MyRating fetches the signed-in user's rating and eligibility.
func (c *Client) MyRating(ctx context.Context, productID cart.ID) (*OwnRating, error) {
	var own OwnRating
	path := fmt.Sprintf("/api/ratings/%s/mine/", productID)
	if err := c.rest.Get(ctx, "ratings.mine", path, &own); err != nil {
		return nil, err
	}
	return &own, nil
}

// SubmitRating creates or replaces the signed-in user's rating. Only
// buyers may rate; the server enforces eligibility.
func (c *Client) SubmitRating(ctx context.Context, productID cart.ID, score int, review string) (*RatingResult, error) {
	if score < 1 || score > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "score must be between 1 and 5")
	}
	payload := struct {
		Score  int    `json:"score"`
		Review string `json:"review"`
	}{Score: score, Review: strings.TrimSpace(review)}

	var result RatingResult
	path := fmt.Sprintf("/api/ratings/%s/submit/", productID)
	if err := c.rest.Do(ctx, "ratings.submit", http.MethodPost, path, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteRating removes the signed-in user's rating.
func (c *Client) DeleteRating(ctx context.Context, productID cart.ID) error {
	path := fmt.Sprintf("/api/ratings/%s/delete/", productID)
	return c.rest.Do(ctx, "ratings.delete", http.MethodDelete, path, nil, nil)
}
