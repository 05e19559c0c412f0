// Package recharge is a minimal Recharge API client covering what the portal
// needs: the population of subscription customers to audit.
package recharge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cratecrew/boxops/internal/config"
	"github.com/cratecrew/boxops/internal/pkg/httpretry"
)

// Customer is one Recharge subscription customer.
type Customer struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	ShopifyCustomerID string `json:"shopify_customer_id"`
	Status            string `json:"status"`
}

type customersResponse struct {
	Customers []customerPayload `json:"customers"`
}

type customerPayload struct {
	ID                int64  `json:"id"`
	Email             string `json:"email"`
	ShopifyCustomerID string `json:"shopify_customer_id"`
	Status            string `json:"status"`
}

// Client is a Recharge API client scoped to one store's token.
type Client struct {
	baseURL    string
	token      string
	httpClient httpretry.HTTPDoer
}

// NewClient creates a Recharge API client.
func NewClient(cfg config.RechargeConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.APIToken,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout(),
		}, 3),
	}
}

// ListActiveCustomers pages through active subscription customers. page is
// 1-based; a short result means the last page.
func (c *Client) ListActiveCustomers(ctx context.Context, page, limit int) ([]Customer, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 250 {
		limit = 250
	}
	params := url.Values{}
	params.Set("status", "ACTIVE")
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doRequest(ctx, http.MethodGet, "/customers", params)
	if err != nil {
		return nil, err
	}

	var resp customersResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing customers: %w", err)
	}

	out := make([]Customer, 0, len(resp.Customers))
	for _, cu := range resp.Customers {
		out = append(out, Customer{
			ID:                strconv.FormatInt(cu.ID, 10),
			Email:             cu.Email,
			ShopifyCustomerID: cu.ShopifyCustomerID,
			Status:            cu.Status,
		})
	}
	return out, nil
}

// doRequest makes an HTTP request to the Recharge API.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("X-Recharge-Access-Token", c.token)
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

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}
