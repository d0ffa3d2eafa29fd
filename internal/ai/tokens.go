// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package ai

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many tokens a prompt will consume.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a BPE encoding. It is an estimate
// for non-OpenAI providers, which is enough for budgeting and metrics.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding, e.g. "cl100k_base". The
// first load fetches the BPE ranks unless TIKTOKEN_CACHE_DIR holds them.
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}
