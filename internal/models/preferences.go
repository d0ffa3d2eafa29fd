// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// BrandVoice describes how the brand should sound.
type BrandVoice struct {
	Personality string `json:"personality"`
	Emotion     string `json:"emotion"`
	Formality   string `json:"formality"`
}

// IndustrySpecific narrows copy to an industry and expertise level.
type IndustrySpecific struct {
	Industry        string   `json:"industry"`
	Specializations []string `json:"specializations"`
	TechnicalLevel  string   `json:"technical_level"`
}

// Preferences is the fully resolved set of content-generation settings.
// Every field holds a value; see prefs.Resolve for the defaults.
type Preferences struct {
	Tone                string           `json:"tone"`
	TargetAudience      string           `json:"target_audience"`
	WritingStyle        string           `json:"writing_style"`
	SEOKeywordsFocus    string           `json:"seo_keywords_focus"`
	DescriptionLength   string           `json:"description_length"`
	KeyFeatures         []string         `json:"key_features"`
	BrandVoice          BrandVoice       `json:"brand_voice"`
	IndustrySpecific    IndustrySpecific `json:"industry_specific"`
	CustomInstructions  string           `json:"custom_instructions"`
	ExampleDescription  string           `json:"example_description"`
	AvoidWords          []string         `json:"avoid_words"`
	MustIncludeElements []string         `json:"must_include_elements"`
	TemplateSections    []string         `json:"template_sections"`
}

// BrandVoicePatch is a partial BrandVoice. Nil fields are unset.
type BrandVoicePatch struct {
	Personality *string `json:"personality,omitempty"`
	Emotion     *string `json:"emotion,omitempty"`
	Formality   *string `json:"formality,omitempty"`
}

// IndustryPatch is a partial IndustrySpecific. A nil Specializations is
// unset; an empty non-nil slice explicitly clears the list.
type IndustryPatch struct {
	Industry        *string  `json:"industry,omitempty"`
	Specializations []string `json:"specializations,omitzero"`
	TechnicalLevel  *string  `json:"technical_level,omitempty"`
}

// PreferencesPatch is a partial Preferences: what a shop has stored, or
// what a request overrides. Nil scalars and nil slices are unset.
type PreferencesPatch struct {
	Tone                *string          `json:"tone,omitempty"`
	TargetAudience      *string          `json:"target_audience,omitempty"`
	WritingStyle        *string          `json:"writing_style,omitempty"`
	SEOKeywordsFocus    *string          `json:"seo_keywords_focus,omitempty"`
	DescriptionLength   *string          `json:"description_length,omitempty"`
	KeyFeatures         []string         `json:"key_features,omitzero"`
	BrandVoice          *BrandVoicePatch `json:"brand_voice,omitempty"`
	IndustrySpecific    *IndustryPatch   `json:"industry_specific,omitempty"`
	CustomInstructions  *string          `json:"custom_instructions,omitempty"`
	ExampleDescription  *string          `json:"example_description,omitempty"`
	AvoidWords          []string         `json:"avoid_words,omitzero"`
	MustIncludeElements []string         `json:"must_include_elements,omitzero"`
	TemplateSections    []string         `json:"template_sections,omitzero"`
}

// Value stores the patch as JSONB.
func (p PreferencesPatch) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal preferences: %w", err)
	}
	return b, nil
}

// Scan reads a JSONB column. NULL yields an empty patch.
func (p *PreferencesPatch) Scan(src any) error {
	*p = PreferencesPatch{}
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan preferences: unsupported type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, p)
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T { return &v }
