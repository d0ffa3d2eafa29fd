// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package storefront

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// HMACHeader carries the webhook signature.
const HMACHeader = "X-Shopify-Hmac-Sha256"

// VerifyWebhook reports whether signature is the base64 HMAC-SHA256 of
// body under secret. The comparison is constant time.
func VerifyWebhook(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ParseProductWebhook decodes a products/update payload.
func ParseProductWebhook(body []byte) (*RemoteProduct, error) {
	var p RemoteProduct
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode product webhook: %w", err)
	}
	if p.ID == 0 {
		return nil, fmt.Errorf("decode product webhook: missing id")
	}
	return &p, nil
}
