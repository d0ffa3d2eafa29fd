// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storefront

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"copyforge/internal/apperr"
)

// OAuthConfig holds the app credentials registered with Shopify.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	RedirectURL  string
}

// OAuth runs the authorization-code install flow against a shop domain.
type OAuth struct {
	cfg  OAuthConfig
	opts options
}

// NewOAuth creates the install flow helper.
func NewOAuth(cfg OAuthConfig, opts ...Option) *OAuth {
	return &OAuth{cfg: cfg, opts: buildOptions(opts)}
}

func (o *OAuth) config(domain string) *oauth2.Config {
	base := o.opts.scheme + "://" + domain
	return &oauth2.Config{
		ClientID:     o.cfg.ClientID,
		ClientSecret: o.cfg.ClientSecret,
		RedirectURL:  o.cfg.RedirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   base + "/admin/oauth/authorize",
			TokenURL:  base + "/admin/oauth/access_token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthURL is where the merchant is sent to approve the app. Shopify
// expects comma-separated scopes rather than the OAuth2 space form.
func (o *OAuth) AuthURL(domain, state string) string {
	return o.config(domain).AuthCodeURL(state,
		oauth2.SetAuthURLParam("scope", strings.Join(o.cfg.Scopes, ",")))
}

// Exchange trades an authorization code for a permanent access token and
// returns it along with the granted scopes.
func (o *OAuth) Exchange(ctx context.Context, domain, code string) (token, scopes string, err error) {
	const op = "storefront.Exchange"
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.opts.httpClient)

	tok, err := o.config(domain).Exchange(ctx, code)
	if err != nil {
		return "", "", apperr.E(apperr.Storefront, op, err)
	}
	if s, ok := tok.Extra("scope").(string); ok {
		scopes = s
	}
	return tok.AccessToken, scopes, nil
}

// NewState returns a random value for the OAuth state parameter.
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// NormalizeDomain reduces user input such as "https://Shop.myshopify.com/"
// to a bare lowercase host.
func NormalizeDomain(raw string) (string, error) {
	const op = "storefront.NormalizeDomain"
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return "", apperr.Errorf(apperr.Validation, op, "missing required field: domain")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" || strings.Trim(u.Path, "/") != "" {
		return "", apperr.Errorf(apperr.Validation, op, "invalid shop domain %q", raw)
	}
	return u.Host, nil
}
