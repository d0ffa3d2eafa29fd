// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package prefs resolves a shop's stored content-generation preferences
// and request overrides into one total Preferences value, and applies
// preference updates with field-by-field merging of nested objects.
package prefs

import (
	"copyforge/internal/apperr"
	"copyforge/internal/models"
)

// Defaults applied by Resolve when neither stored preferences nor the
// override set a field.
const (
	DefaultTone              = "professional"
	DefaultTargetAudience    = "general"
	DefaultWritingStyle      = "descriptive"
	DefaultSEOKeywordsFocus  = "balanced"
	DefaultDescriptionLength = "medium"
	DefaultPersonality       = "professional"
	DefaultEmotion           = "neutral"
	DefaultFormality         = "formal"
	DefaultTechnicalLevel    = "moderate"
)

// DefaultTemplateSections is the section outline used when none is set.
var DefaultTemplateSections = []string{
	"introduction", "key_features", "benefits", "specifications", "call_to_action",
}

// Defaults returns a Preferences value holding only defaults.
func Defaults() models.Preferences {
	return models.Preferences{
		Tone:              DefaultTone,
		TargetAudience:    DefaultTargetAudience,
		WritingStyle:      DefaultWritingStyle,
		SEOKeywordsFocus:  DefaultSEOKeywordsFocus,
		DescriptionLength: DefaultDescriptionLength,
		KeyFeatures:       []string{},
		BrandVoice: models.BrandVoice{
			Personality: DefaultPersonality,
			Emotion:     DefaultEmotion,
			Formality:   DefaultFormality,
		},
		IndustrySpecific: models.IndustrySpecific{
			Specializations: []string{},
			TechnicalLevel:  DefaultTechnicalLevel,
		},
		AvoidWords:          []string{},
		MustIncludeElements: []string{},
		TemplateSections:    append([]string(nil), DefaultTemplateSections...),
	}
}

// Resolve merges stored preferences with an optional override into a
// total Preferences value. Scalars and lists in the override replace the
// stored value; brand_voice and industry_specific merge key by key.
// Empty strings count as unset so a blank stored value never hides a
// default.
func Resolve(stored models.PreferencesPatch, override *models.PreferencesPatch) models.Preferences {
	effective := stored
	if override != nil {
		effective = Merge(stored, *override)
	}

	p := Defaults()
	setString(&p.Tone, effective.Tone)
	setString(&p.TargetAudience, effective.TargetAudience)
	setString(&p.WritingStyle, effective.WritingStyle)
	setString(&p.SEOKeywordsFocus, effective.SEOKeywordsFocus)
	setString(&p.DescriptionLength, effective.DescriptionLength)
	setString(&p.CustomInstructions, effective.CustomInstructions)
	setString(&p.ExampleDescription, effective.ExampleDescription)
	setList(&p.KeyFeatures, effective.KeyFeatures, false)
	setList(&p.AvoidWords, effective.AvoidWords, true)
	setList(&p.MustIncludeElements, effective.MustIncludeElements, true)
	setList(&p.TemplateSections, effective.TemplateSections, false)

	if bv := effective.BrandVoice; bv != nil {
		setString(&p.BrandVoice.Personality, bv.Personality)
		setString(&p.BrandVoice.Emotion, bv.Emotion)
		setString(&p.BrandVoice.Formality, bv.Formality)
	}
	if is := effective.IndustrySpecific; is != nil {
		setString(&p.IndustrySpecific.Industry, is.Industry)
		setString(&p.IndustrySpecific.TechnicalLevel, is.TechnicalLevel)
		setList(&p.IndustrySpecific.Specializations, is.Specializations, false)
	}
	return p
}

// Merge applies update on top of base and returns the result; neither
// argument is modified. Set fields in update replace those in base,
// except brand_voice and industry_specific whose keys merge one by one,
// so an update carrying only brand_voice.emotion keeps the stored
// personality and formality.
func Merge(base, update models.PreferencesPatch) models.PreferencesPatch {
	out := clonePatch(base)

	mergeString(&out.Tone, update.Tone)
	mergeString(&out.TargetAudience, update.TargetAudience)
	mergeString(&out.WritingStyle, update.WritingStyle)
	mergeString(&out.SEOKeywordsFocus, update.SEOKeywordsFocus)
	mergeString(&out.DescriptionLength, update.DescriptionLength)
	mergeString(&out.CustomInstructions, update.CustomInstructions)
	mergeString(&out.ExampleDescription, update.ExampleDescription)
	mergeList(&out.KeyFeatures, update.KeyFeatures)
	mergeList(&out.AvoidWords, update.AvoidWords)
	mergeList(&out.MustIncludeElements, update.MustIncludeElements)
	mergeList(&out.TemplateSections, update.TemplateSections)

	if update.BrandVoice != nil {
		if out.BrandVoice == nil {
			out.BrandVoice = &models.BrandVoicePatch{}
		}
		mergeString(&out.BrandVoice.Personality, update.BrandVoice.Personality)
		mergeString(&out.BrandVoice.Emotion, update.BrandVoice.Emotion)
		mergeString(&out.BrandVoice.Formality, update.BrandVoice.Formality)
	}
	if update.IndustrySpecific != nil {
		if out.IndustrySpecific == nil {
			out.IndustrySpecific = &models.IndustryPatch{}
		}
		mergeString(&out.IndustrySpecific.Industry, update.IndustrySpecific.Industry)
		mergeString(&out.IndustrySpecific.TechnicalLevel, update.IndustrySpecific.TechnicalLevel)
		mergeList(&out.IndustrySpecific.Specializations, update.IndustrySpecific.Specializations)
	}
	return out
}

// ValidateUpdate checks that an explicit preference update carries the
// fields every shop must define.
func ValidateUpdate(update models.PreferencesPatch) error {
	required := []struct {
		name  string
		value *string
	}{
		{"tone", update.Tone},
		{"target_audience", update.TargetAudience},
		{"writing_style", update.WritingStyle},
	}
	for _, f := range required {
		if f.value == nil || *f.value == "" {
			return apperr.Errorf(apperr.Validation, "prefs.ValidateUpdate", "missing required field: %s", f.name)
		}
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}

// setList replaces dst with a copy of v when v is set. Set-valued fields
// are deduplicated keeping first occurrence order.
func setList(dst *[]string, v []string, set bool) {
	if v == nil {
		return
	}
	if set {
		*dst = dedupe(v)
		return
	}
	*dst = append([]string{}, v...)
}

func mergeString(dst **string, v *string) {
	if v != nil {
		s := *v
		*dst = &s
	}
}

func mergeList(dst *[]string, v []string) {
	if v != nil {
		*dst = append([]string{}, v...)
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func clonePatch(p models.PreferencesPatch) models.PreferencesPatch {
	out := models.PreferencesPatch{}
	mergeString(&out.Tone, p.Tone)
	mergeString(&out.TargetAudience, p.TargetAudience)
	mergeString(&out.WritingStyle, p.WritingStyle)
	mergeString(&out.SEOKeywordsFocus, p.SEOKeywordsFocus)
	mergeString(&out.DescriptionLength, p.DescriptionLength)
	mergeString(&out.CustomInstructions, p.CustomInstructions)
	mergeString(&out.ExampleDescription, p.ExampleDescription)
	mergeList(&out.KeyFeatures, p.KeyFeatures)
	mergeList(&out.AvoidWords, p.AvoidWords)
	mergeList(&out.MustIncludeElements, p.MustIncludeElements)
	mergeList(&out.TemplateSections, p.TemplateSections)
	if p.BrandVoice != nil {
		out.BrandVoice = &models.BrandVoicePatch{}
		mergeString(&out.BrandVoice.Personality, p.BrandVoice.Personality)
		mergeString(&out.BrandVoice.Emotion, p.BrandVoice.Emotion)
		mergeString(&out.BrandVoice.Formality, p.BrandVoice.Formality)
	}
	if p.IndustrySpecific != nil {
		out.IndustrySpecific = &models.IndustryPatch{}
		mergeString(&out.IndustrySpecific.Industry, p.IndustrySpecific.Industry)
		mergeString(&out.IndustrySpecific.TechnicalLevel, p.IndustrySpecific.TechnicalLevel)
		mergeList(&out.IndustrySpecific.Specializations, p.IndustrySpecific.Specializations)
	}
	return out
}
