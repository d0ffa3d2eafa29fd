// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storefront is the boundary to the merchant's Shopify store: the
// Admin REST calls that read products and publish descriptions, the OAuth
// install flow, and webhook signature checks.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"copyforge/internal/apperr"
	"copyforge/internal/models"
)

// pageSize is the largest page the Admin API returns.
const pageSize = 250

// RemoteProduct is a product as the storefront reports it.
type RemoteProduct struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	BodyHTML    string `json:"body_html"`
	Vendor      string `json:"vendor"`
	ProductType string `json:"product_type"`
	Handle      string `json:"handle"`
}

// ExternalID is the product id as stored on models.Product.
func (p RemoteProduct) ExternalID() string { return strconv.FormatInt(p.ID, 10) }

// ShopInfo is the subset of shop.json the install flow needs.
type ShopInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Client calls the Shopify Admin REST API on behalf of a shop.
type Client struct {
	http   *http.Client
	scheme string
}

// Option customises a Client or OAuth.
type Option func(*options)

type options struct {
	httpClient *http.Client
	scheme     string
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithScheme sets the URL scheme used to reach shops ("https" unless a
// test server is in play).
func WithScheme(scheme string) Option {
	return func(o *options) { o.scheme = scheme }
}

func buildOptions(opts []Option) options {
	o := options{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		scheme:     "https",
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewClient creates a storefront Client.
func NewClient(opts ...Option) *Client {
	o := buildOptions(opts)
	return &Client{http: o.httpClient, scheme: o.scheme}
}

func (c *Client) adminURL(shop *models.Shop, path string) string {
	return fmt.Sprintf("%s://%s/admin/api/%s/%s", c.scheme, shop.Domain, shop.Version(), path)
}

// UpdateDescription publishes html as the body of the storefront product
// externalID.
func (c *Client) UpdateDescription(ctx context.Context, shop *models.Shop, externalID, html string) error {
	const op = "storefront.UpdateDescription"
	id, err := strconv.ParseInt(externalID, 10, 64)
	if err != nil {
		return apperr.Errorf(apperr.Validation, op, "invalid storefront product id %q", externalID)
	}

	payload, err := json.Marshal(map[string]any{
		"product": map[string]any{"id": id, "body_html": html},
	})
	if err != nil {
		return fmt.Errorf("marshal product update: %w", err)
	}

	resp, err := c.do(ctx, shop, http.MethodPut, c.adminURL(shop, "products/"+externalID+".json"), payload)
	if err != nil {
		return apperr.E(apperr.Storefront, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError(op, resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// ListProducts returns every product in the shop, following the cursor
// pagination in the Link header.
func (c *Client) ListProducts(ctx context.Context, shop *models.Shop) ([]RemoteProduct, error) {
	const op = "storefront.ListProducts"
	next := c.adminURL(shop, "products.json?limit="+strconv.Itoa(pageSize))

	var all []RemoteProduct
	for next != "" {
		resp, err := c.do(ctx, shop, http.MethodGet, next, nil)
		if err != nil {
			return nil, apperr.E(apperr.Storefront, op, err)
		}
		if resp.StatusCode != http.StatusOK {
			err := statusError(op, resp)
			resp.Body.Close()
			return nil, err
		}

		var page struct {
			Products []RemoteProduct `json:"products"`
		}
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, apperr.E(apperr.Storefront, op, fmt.Errorf("decode products: %w", err))
		}
		all = append(all, page.Products...)
		next = nextLink(resp.Header.Get("Link"))
	}
	return all, nil
}

// ShopInfo fetches the shop's id and display name.
func (c *Client) ShopInfo(ctx context.Context, shop *models.Shop) (*ShopInfo, error) {
	const op = "storefront.ShopInfo"
	resp, err := c.do(ctx, shop, http.MethodGet, c.adminURL(shop, "shop.json"), nil)
	if err != nil {
		return nil, apperr.E(apperr.Storefront, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(op, resp)
	}

	var body struct {
		Shop ShopInfo `json:"shop"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, apperr.E(apperr.Storefront, op, fmt.Errorf("decode shop: %w", err))
	}
	return &body.Shop, nil
}

func (c *Client) do(ctx context.Context, shop *models.Shop, method, url string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", shop.AccessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

// statusError reads a short excerpt of a failed response. Rejected
// credentials map to NotAuthenticated.
func statusError(op string, resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	kind := apperr.Storefront
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		kind = apperr.NotAuthenticated
	}
	return apperr.Errorf(kind, op, "storefront returned %d: %s",
		resp.StatusCode, strings.TrimSpace(string(excerpt)))
}

var linkNext = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// nextLink extracts the rel="next" URL from a Link header.
func nextLink(header string) string {
	if m := linkNext.FindStringSubmatch(header); m != nil {
		return m[1]
	}
	return ""
}
