// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package prompt renders prompt templates into the text sent to the
// generation provider. Templates use Go text/template syntax over a flat
// context keyed by snake_case preference names, e.g. {{.tone}} or
// {{if .key_features}}{{join ", " .key_features}}{{end}}.
//
// Rendering is tolerant of missing context: a variable that the template
// references but the context lacks renders as an empty string, and a
// conditional on it is skipped. Only unparseable bodies (TemplateSyntax)
// and runtime failures such as joining a non-list (TemplateRender) fail.
package prompt

import (
	"bytes"
	"fmt"
	"maps"
	"strings"
	"text/template"

	"copyforge/internal/apperr"
	"copyforge/internal/models"
)

// DefaultBody is the built-in prompt. It seeds each shop's first active
// template and is the fallback when a shop's own template fails to render.
const DefaultBody = `As an expert e-commerce copywriter and SEO specialist, optimize the following product description to be more engaging, SEO-friendly, and conversion-focused. Maintain the key product features while improving readability and search engine optimization.

Product Title: {{.item_title}}
Original Description: {{.item_original_text}}

Guidelines:
- Maintain a {{.tone}} tone
- Target {{.target_audience}} audience
- Use {{.writing_style}} writing style
- Focus on {{.seo_keywords_focus}} SEO optimization
- Aim for {{.description_length}} length
{{- if .key_features}}
- Highlight these key features: {{join ", " .key_features}}
{{- end}}
{{- if .brand_voice}}
- Brand Voice:
  * Personality: {{.brand_voice.personality}}
  * Emotion: {{.brand_voice.emotion}}
  * Formality: {{.brand_voice.formality}}
{{- end}}
{{- if .industry_specific.industry}}
- Industry Specifics:
  * Industry: {{.industry_specific.industry}}
  * Technical Level: {{.industry_specific.technical_level}}
{{- end}}
{{- if .custom_instructions}}
- Custom Instructions: {{.custom_instructions}}
{{- end}}
{{- if .avoid_words}}
- Avoid these words: {{join ", " .avoid_words}}
{{- end}}
{{- if .must_include_elements}}
- Must include: {{join ", " .must_include_elements}}
{{- end}}
{{- if .example_description}}

Example of the desired style:
{{.example_description}}
{{- end}}

Return only the optimized description as an HTML fragment.
`

// Context is the variable set a template renders against.
type Context map[string]any

// BuildContext flattens resolved preferences and the product being
// optimized into a render context. product_title and original_description
// alias item_title and item_original_text.
func BuildContext(p models.Preferences, product *models.Product) Context {
	ctx := Context{
		"tone":               p.Tone,
		"target_audience":    p.TargetAudience,
		"writing_style":      p.WritingStyle,
		"seo_keywords_focus": p.SEOKeywordsFocus,
		"description_length": p.DescriptionLength,
		"key_features":       cloneList(p.KeyFeatures),
		"brand_voice": map[string]any{
			"personality": p.BrandVoice.Personality,
			"emotion":     p.BrandVoice.Emotion,
			"formality":   p.BrandVoice.Formality,
		},
		"industry_specific": map[string]any{
			"industry":        p.IndustrySpecific.Industry,
			"specializations": cloneList(p.IndustrySpecific.Specializations),
			"technical_level": p.IndustrySpecific.TechnicalLevel,
		},
		"custom_instructions":   p.CustomInstructions,
		"example_description":   p.ExampleDescription,
		"avoid_words":           cloneList(p.AvoidWords),
		"must_include_elements": cloneList(p.MustIncludeElements),
		"template_sections":     cloneList(p.TemplateSections),
	}

	var title, text string
	if product != nil {
		title = product.Title
		text = product.SourceText()
	}
	ctx["item_title"] = title
	ctx["item_original_text"] = text
	ctx["product_title"] = title
	ctx["original_description"] = text
	return ctx
}

// Render parses body and executes it against ctx. It does not cache; use
// a Renderer on hot paths.
func Render(body string, ctx Context) (string, error) {
	tmpl, err := parseBody(body)
	if err != nil {
		return "", err
	}
	return execute(tmpl, ctx)
}

// Validate reports whether body parses, without rendering it.
func Validate(body string) error {
	_, err := parseBody(body)
	return err
}

func parseBody(body string) (*template.Template, error) {
	tmpl, err := template.New("prompt").Option("missingkey=zero").Funcs(funcs).Parse(body)
	if err != nil {
		return nil, apperr.E(apperr.TemplateSyntax, "prompt.parseBody", err)
	}
	return tmpl, nil
}

func execute(tmpl *template.Template, ctx Context) (string, error) {
	data := fillMissing(tmpl, ctx)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", apperr.E(apperr.TemplateRender, "prompt.execute", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

var funcs = template.FuncMap{
	"join":  join,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
}

// join concatenates a list with sep. An empty string counts as an empty
// list; anything else that is not a list is an error so a template
// misusing join surfaces as a render failure.
func join(sep string, items any) (string, error) {
	switch v := items.(type) {
	case []string:
		return strings.Join(v, sep), nil
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, sep), nil
	case nil:
		return "", nil
	case string:
		if v == "" {
			return "", nil
		}
	}
	return "", fmt.Errorf("join: expected a list, got %T", items)
	}
}

func cloneList(in []string) []string {
	return append([]string{}, in...)
}

// sampleContext is what Preview renders against before caller overrides.
func sampleContext() Context {
	ctx := BuildContext(models.Preferences{
		Tone:              "professional",
		TargetAudience:    "general",
		WritingStyle:      "descriptive",
		SEOKeywordsFocus:  "balanced",
		DescriptionLength: "medium",
		KeyFeatures:       []string{"Feature 1", "Feature 2"},
		BrandVoice: models.BrandVoice{
			Personality: "professional",
			Emotion:     "neutral",
			Formality:   "formal",
		},
		IndustrySpecific: models.IndustrySpecific{
			Industry:       "General",
			TechnicalLevel: "moderate",
		},
	}, &models.Product{
		Title:       "Sample Product",
		Description: "This is a sample product description.",
	})
	return ctx
}

// Preview renders body against sample data with overrides applied on top.
// Overrides replace top-level keys wholesale.
func Preview(body string, overrides Context) (string, error) {
	ctx := sampleContext()
	maps.Copy(ctx, overrides)
	return Render(body, ctx)
}
