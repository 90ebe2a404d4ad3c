package script

import (
	"context"
	"strings"

	"viralshorts/manager-go/internal/llm"
	"viralshorts/manager-go/internal/utils"
)

// BrollKeywords returns exactly one stock-footage search keyword per phrase.
func (g *Generator) BrollKeywords(ctx context.Context, phrases []string) []string {
	var keywords []string
	text, err := g.LLM.Call(ctx, llm.Request{
		Task:        "broll",
		Prompt:      brollPrompt(phrases),
		MaxTokens:   400,
		Temperature: 0.8,
	})
	if err == nil {
		err = llm.DecodeJSON(text, &keywords)
	}
	if err != nil {
		utils.Warn("broll keyword generation failed; using defaults", "err", err)
	}
	return fitKeywords(keywords, len(phrases))
}

func fitKeywords(keywords []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		if i < len(keywords) {
			out[i] = strings.TrimSpace(keywords[i])
		}
		if out[i] == "" {
			out[i] = defaultBrollKeyword
		}
	}
	return out
}

// GenerateMetadata produces the upload title, description and hashtags. It never fails;
// a broken LLM answer yields a title built from the topic.
func (g *Generator) GenerateMetadata(ctx context.Context, c Concept, s Script) Metadata {
	var raw struct {
		TitleVariants []TitleVariant `json:"title_variants"`
		Title         string         `json:"title"`
		Description   string         `json:"description"`
		Hashtags      []string       `json:"hashtags"`
	}
	value := ""
	if s.Evaluation != nil {
		value = string(s.Evaluation.FinalValueDelivered)
	}
	if value == "" {
		value = string(s.Content.SpecificValue)
	}
	text, err := g.LLM.Call(ctx, llm.Request{
		Task:        "metadata",
		Prompt:      metadataPrompt(c, s.Phrases, value),
		MaxTokens:   600,
		Temperature: 0.8,
		Critical:    true,
	})
	if err == nil {
		err = llm.DecodeJSON(text, &raw)
	}
	if err != nil {
		utils.Warn("metadata generation failed; using fallback", "err", err)
	}

	md := Metadata{Description: strings.TrimSpace(raw.Description)}
	var variants []TitleVariant
	for _, v := range raw.TitleVariants {
		if t := strings.TrimSpace(v.Title); t != "" {
			variants = append(variants, TitleVariant{Style: strings.TrimSpace(v.Style), Title: t})
		}
	}
	switch {
	case len(variants) > 0:
		chosen := g.chooseVariant(ctx, variants)
		md.Title, md.TitleStyle, md.TitleVariants = chosen.Title, chosen.Style, variants
	case strings.TrimSpace(raw.Title) != "":
		md.Title, md.TitleStyle = strings.TrimSpace(raw.Title), "single"
	default:
		md.Title, md.TitleStyle = titleCase(c.SpecificTopic), "fallback"
	}
	md.Title = truncateRunes(utils.CleanSpokenText(md.Title), maxTitleLength)
	if md.Description == "" {
		md.Description = md.Title
	}
	md.Hashtags = normalizeHashtags(raw.Hashtags, c.Category)
	return md
}

// TitleStyles are the title variant styles the metadata prompt asks for.
var TitleStyles = []string{"number_hook", "curiosity_gap", "result_focused"}

// chooseVariant weights learned best title styles 3:1; without learned styles the pick
// is uniform.
func (g *Generator) chooseVariant(ctx context.Context, variants []TitleVariant) TitleVariant {
	var best []string
	if g.Variety != nil {
		styles, err := g.Variety.BestTitleStyles(ctx)
		if err != nil {
			utils.Warn("title style history unavailable", "err", err)
		}
		best = styles
	}
	var pool []TitleVariant
	for _, v := range variants {
		pool = append(pool, v)
		if contains(best, v.Style) {
			pool = append(pool, v, v)
		}
	}
	return pool[g.intn(len(pool))]
}

func normalizeHashtags(tags []string, category string) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(tag string) {
		tag = strings.Join(strings.Fields(strings.TrimSpace(tag)), "")
		tag = strings.TrimLeft(tag, "#")
		if tag == "" {
			return
		}
		tag = "#" + tag
		key := strings.ToLower(tag)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, tag)
	}
	add("shorts")
	for _, t := range tags {
		add(t)
	}
	if len(out) == 1 && category != "" {
		add(strings.ReplaceAll(category, "_", ""))
	}
	return out
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
