package prefs

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed options.yaml
var optionsYAML []byte

// BrandVoiceOptions lists the allowed brand voice values.
type BrandVoiceOptions struct {
	Personality []string `yaml:"personality" json:"personality"`
	Emotion     []string `yaml:"emotion" json:"emotion"`
	Formality   []string `yaml:"formality" json:"formality"`
}

// Options is the fixed vocabulary offered to merchants when they edit
// their preferences.
type Options struct {
	Tones              []string          `yaml:"tones" json:"tones"`
	TargetAudiences    []string          `yaml:"target_audiences" json:"target_audiences"`
	WritingStyles      []string          `yaml:"writing_styles" json:"writing_styles"`
	SEOKeywordsFocus   []string          `yaml:"seo_keywords_focus" json:"seo_keywords_focus"`
	DescriptionLengths []string          `yaml:"description_lengths" json:"description_lengths"`
	BrandVoice         BrandVoiceOptions `yaml:"brand_voice_options" json:"brand_voice_options"`
	TechnicalLevels    []string          `yaml:"technical_levels" json:"technical_levels"`
	TemplateSections   []string          `yaml:"template_sections" json:"template_sections"`
}

var (
	optionsOnce sync.Once
	options     Options
	optionsErr  error
)

// LoadOptions parses the embedded vocabulary once and returns it.
func LoadOptions() (Options, error) {
	optionsOnce.Do(func() {
		if err := yaml.Unmarshal(optionsYAML, &options); err != nil {
			optionsErr = fmt.Errorf("parse options: %w", err)
		}
	})
	return options, optionsErr
}

// Allows reports whether value is in the vocabulary list. Used to warn
// about, not reject, values outside the offered set.
func Allows(list []string, value string) bool {
	return slices.Contains(list, value)
}

// Vocabulary returns the values offered for a top-level preference field,
// or nil when the field has no fixed vocabulary.
func (o Options) Vocabulary(field string) []string {
	switch field {
	case "tone":
		return o.Tones
	case "target_audience":
		return o.TargetAudiences
	case "writing_style":
		return o.WritingStyles
	case "seo_keywords_focus":
		return o.SEOKeywordsFocus
	case "description_length":
		return o.DescriptionLengths
	}
	return nil
}
