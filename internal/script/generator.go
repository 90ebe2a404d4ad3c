package script

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"viralshorts/manager-go/internal/jsonstore"
	"viralshorts/manager-go/internal/llm"
	"viralshorts/manager-go/internal/quota"
	"viralshorts/manager-go/internal/state"
	"viralshorts/manager-go/internal/utils"
)

var phrasePrefix = regexp.MustCompile(`(?i)^\s*(improved\s+phrase\s*\d*\s*[:.]?\s*|improved\s*\d+\s*[:.]\s*|phrase\s*\d+\s*[:.]?\s*|\d+\s*[:.)]\s*)`)

// titleCase builds a fresh Caser per call; Casers are stateful.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// Generator runs the writing stages against an LLM. Quality and Variety are optional.
type Generator struct {
	LLM     llm.Completer
	Quality *quota.QualityHistory
	Variety *state.Variety

	backup *jsonstore.File
	now    func() time.Time
	intn   func(n int) int
}

// NewGenerator keeps a copy of the last good concept under stateDir for quota outages.
func NewGenerator(completer llm.Completer, quality *quota.QualityHistory, variety *state.Variety, stateDir string) *Generator {
	g := &Generator{
		LLM:     completer,
		Quality: quality,
		Variety: variety,
		now:     time.Now,
		intn:    rand.Intn,
	}
	if stateDir != "" {
		g.backup = jsonstore.Open(filepath.Join(stateDir, "concept_backup.json"))
	}
	return g
}

type ConceptInput struct {
	Categories        []string
	ExcludeCategories []string
	ExcludeTopics     []string
	Hint              string
}

// GenerateConcept asks for a concept. When the LLM fails it falls back to the last saved
// concept and then to a templated one, so it only errors on a cancelled context.
func (g *Generator) GenerateConcept(ctx context.Context, in ConceptInput) (Concept, error) {
	candidates := in.Categories
	if len(candidates) == 0 {
		candidates = DefaultCategories
	}
	available := without(candidates, in.ExcludeCategories)
	if len(available) == 0 {
		available = candidates
	}

	boost := g.boostPrompt(ctx)
	text, err := g.LLM.Call(ctx, llm.Request{
		Task:        "concept",
		Prompt:      conceptPrompt(available, in.ExcludeCategories, in.ExcludeTopics, in.Hint, boost, g.now()),
		MaxTokens:   800,
		Temperature: 0.98,
		Critical:    true,
	})
	if err == nil {
		var c Concept
		if err = llm.DecodeJSON(text, &c); err == nil && strings.TrimSpace(c.SpecificTopic) != "" {
			if c.Category == "" || contains(in.ExcludeCategories, c.Category) {
				forced := g.pickCategory(ctx, available)
				utils.Info("concept category forced for variety", "from", c.Category, "to", forced)
				c.Category = forced
			}
			c = normalizeConcept(c)
			g.saveBackup(ctx, c)
			return c, nil
		}
		if err == nil {
			err = fmt.Errorf("concept response missing topic")
		}
	}
	if ctx.Err() != nil {
		return Concept{}, ctx.Err()
	}
	utils.Warn("concept generation failed; using fallback", "err", err)

	if c, ok := g.loadBackup(ctx); ok && !contains(in.ExcludeTopics, c.SpecificTopic) {
		c.Fallback = true
		return c, nil
	}
	return g.fallbackConcept(ctx, available), nil
}

func (g *Generator) fallbackConcept(ctx context.Context, candidates []string) Concept {
	category := g.pickCategory(ctx, candidates)
	return normalizeConcept(Concept{
		Category:              category,
		SpecificTopic:         fmt.Sprintf("Shocking %s Fact Most People Miss", titleCase(strings.ReplaceAll(category, "_", " "))),
		PhraseCount:           DefaultPhrases,
		VoiceStyle:            defaultVoiceStyle,
		MusicMood:             defaultMusicMood,
		TargetDurationSeconds: defaultDuration,
		Fallback:              true,
	})
}

func (g *Generator) pickCategory(ctx context.Context, candidates []string) string {
	if g.Variety != nil {
		c, err := g.Variety.PickCategory(ctx, candidates)
		if err == nil {
			return c
		}
		utils.Warn("variety pick failed", "err", err)
	}
	if len(candidates) == 0 {
		candidates = state.FallbackCategories
	}
	return candidates[g.intn(len(candidates))]
}

func normalizeConcept(c Concept) Concept {
	c.Category = strings.TrimSpace(c.Category)
	c.SpecificTopic = strings.TrimSpace(c.SpecificTopic)
	switch {
	case c.PhraseCount == 0:
		c.PhraseCount = DefaultPhrases
	case c.PhraseCount < MinPhrases:
		c.PhraseCount = MinPhrases
	case c.PhraseCount > MaxPhrases:
		c.PhraseCount = MaxPhrases
	}
	c.VoiceStyle = strings.ToLower(strings.TrimSpace(c.VoiceStyle))
	if !contains(VoiceStyles, c.VoiceStyle) {
		c.VoiceStyle = defaultVoiceStyle
	}
	c.MusicMood = strings.ToLower(strings.TrimSpace(c.MusicMood))
	if !contains(MusicMoods, c.MusicMood) {
		c.MusicMood = defaultMusicMood
	}
	if c.TargetDurationSeconds <= 0 {
		c.TargetDurationSeconds = defaultDuration
	}
	return c
}

func (g *Generator) saveBackup(ctx context.Context, c Concept) {
	if g.backup == nil {
		return
	}
	var stored Concept
	if err := g.backup.Update(ctx, &stored, func(bool) error {
		stored = c
		return nil
	}); err != nil {
		utils.Warn("concept backup failed", "err", err)
	}
}

func (g *Generator) loadBackup(ctx context.Context) (Concept, bool) {
	if g.backup == nil {
		return Concept{}, false
	}
	var c Concept
	ok, err := g.backup.Load(ctx, &c)
	if err != nil || !ok || c.SpecificTopic == "" {
		return Concept{}, false
	}
	return c, true
}

func (g *Generator) boostPrompt(ctx context.Context) string {
	if g.Quality == nil {
		return ""
	}
	boost, err := g.Quality.BoostPrompt(ctx)
	if err != nil {
		utils.Warn("quality boost unavailable", "err", err)
		return ""
	}
	return boost
}

// GenerateContent writes the phrases. feedback is non-empty on a regeneration.
func (g *Generator) GenerateContent(ctx context.Context, c Concept, feedback string) (Content, error) {
	text, err := g.LLM.Call(ctx, llm.Request{
		Task:        "content",
		Prompt:      contentPrompt(c, feedback, g.boostPrompt(ctx)),
		MaxTokens:   1200,
		Temperature: 0.85,
	})
	if err != nil {
		return Content{}, fmt.Errorf("content: %w", err)
	}
	var out Content
	if err := llm.DecodeJSON(text, &out); err != nil {
		return Content{}, fmt.Errorf("content: %w", err)
	}
	out.Phrases = cleanPhrases(out.Phrases)
	if len(out.Phrases) == 0 {
		return Content{}, fmt.Errorf("content: no phrases returned")
	}
	return out, nil
}

func cleanPhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = phrasePrefix.ReplaceAllString(p, "")
		p = utils.CleanSpokenText(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (g *Generator) Evaluate(ctx context.Context, c Concept, content Content) (Evaluation, error) {
	text, err := g.LLM.Call(ctx, llm.Request{
		Task:        "evaluate",
		Prompt:      evaluatePrompt(c, content),
		MaxTokens:   1200,
		Temperature: 0.7,
		Critical:    true,
	})
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluate: %w", err)
	}
	var ev Evaluation
	if err := llm.DecodeJSON(text, &ev); err != nil {
		return Evaluation{}, fmt.Errorf("evaluate: %w", err)
	}
	ev.ImprovedPhrases = cleanPhrases(ev.ImprovedPhrases)
	ev.ImprovedHook = looseString(strings.TrimSpace(phrasePrefix.ReplaceAllString(string(ev.ImprovedHook), "")))
	return ev, nil
}

// neutralScore stands in when the reviewer call itself fails.
const neutralScore = 5.0

// WriteScript runs content generation and review, regenerating once when the first
// review scores below MinAcceptableScore. The regenerated version wins only when it
// scores higher.
func (g *Generator) WriteScript(ctx context.Context, c Concept) (Script, error) {
	content, err := g.GenerateContent(ctx, c, "")
	if err != nil {
		return Script{}, err
	}
	ev, score := g.review(ctx, c, content)
	regenerated := false

	if score < MinAcceptableScore {
		feedback := regenerationFeedback(score, ev)
		utils.Info("script below minimum; regenerating", "score", score, "topic", c.SpecificTopic)
		retry, err := g.GenerateContent(ctx, c, feedback)
		switch {
		case err != nil:
			utils.Warn("regeneration failed; keeping first attempt", "err", err)
		default:
			retryEv, retryScore := g.review(ctx, c, retry)
			if retryScore > score {
				content, ev, score = retry, retryEv, retryScore
				regenerated = true
			}
		}
	}

	phrases := append([]string(nil), content.Phrases...)
	if ev != nil {
		if len(ev.ImprovedPhrases) == len(phrases) {
			phrases = append([]string(nil), ev.ImprovedPhrases...)
		}
		if hook := string(ev.ImprovedHook); hook != "" && len(phrases) > 0 {
			phrases[0] = hook
		}
	}

	if promised, delivered, ok := CheckNumberedPromise(phrases); !ok && delivered > 0 {
		phrases[0] = FixBrokenPromise(phrases[0], delivered)
		utils.Warn("hook promised more than the script delivers; count rewritten", "promised", promised, "delivered", delivered, "hook", phrases[0])
	}
	s := Script{
		Phrases:        phrases,
		Content:        content,
		Evaluation:     ev,
		Score:          score,
		Regenerated:    regenerated,
		QualityWarning: score < MinAcceptableScore,
	}
	if g.Quality != nil && len(phrases) > 0 {
		if err := g.Quality.Record(ctx, int(score), c.Category, phrases[0], regenerated); err != nil {
			utils.Warn("quality history update failed", "err", err)
		}
	}
	return s, nil
}

func (g *Generator) review(ctx context.Context, c Concept, content Content) (*Evaluation, float64) {
	ev, err := g.Evaluate(ctx, c, content)
	if err != nil {
		utils.Warn("evaluation failed; using neutral score", "err", err)
		return nil, neutralScore
	}
	return &ev, float64(ev.Score)
}

func regenerationFeedback(score float64, ev *Evaluation) string {
	var issues []string
	if ev != nil {
		for _, qi := range ev.QualityIssues {
			if qi.Issue != "" {
				issues = append(issues, string(qi.Issue))
			}
		}
	}
	if len(issues) == 0 {
		issues = []string{"not engaging or specific enough"}
	}
	return fmt.Sprintf("Previous attempt scored %g/10 - UNACCEPTABLE. Issues: %s", score, strings.Join(issues, "; "))
}

func without(items, exclude []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !contains(exclude, it) {
			out = append(out, it)
		}
	}
	return out
}

func contains(items []string, item string) bool {
	for _, it := range items {
		if strings.EqualFold(it, item) {
			return true
		}
	}
	return false
}
