// Package shopify is a minimal Shopify Admin API client covering what the
// audit engine needs: a customer's full order history.
package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cratecrew/boxops/internal/config"
	"github.com/cratecrew/boxops/internal/domain"
	"github.com/cratecrew/boxops/internal/pkg/httpretry"
)

// ErrCustomerNotFound is returned when Shopify has no customer for the given
// identifier.
var ErrCustomerNotFound = errors.New("shopify: customer not found")

// Client is a Shopify Admin API client scoped to one shop's credentials.
type Client struct {
	baseURL    string
	token      string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a Shopify client. 429s are retried with Retry-After
// inside the retry client, so callers only ever see a final failure.
func NewClient(cfg config.ShopifyConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// FetchOrders returns every order for the given customer, oldest first as
// Shopify reports them. Line items are classified from catalog metadata so
// the normalizer can drop addons and ignored items.
func (c *Client) FetchOrders(ctx context.Context, customerID string) ([]domain.Order, error) {
	params := url.Values{}
	params.Set("status", "any")
	params.Set("limit", "250")

	body, err := c.doRequest(ctx, http.MethodGet, "/customers/"+url.PathEscape(customerID)+"/orders.json", params)
	if err != nil {
		return nil, err
	}

	var resp ordersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(resp.Orders))
	for _, o := range resp.Orders {
		order := domain.Order{
			OrderID:   strconv.FormatInt(o.ID, 10),
			CreatedAt: o.CreatedAt,
		}
		for _, li := range o.LineItems {
			order.LineItems = append(order.LineItems, domain.LineItem{
				SKU:          li.SKU,
				ProductName:  li.Title,
				VariantTitle: li.VariantTitle,
				Quantity:     li.Quantity,
				Class:        classifyLineItem(li),
			})
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// doRequest makes an HTTP request to the Shopify Admin API.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrCustomerNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
