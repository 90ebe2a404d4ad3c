package script

import (
	"context"
	"errors"
	"strings"
	"testing"

	"viralshorts/manager-go/internal/llm"
	"viralshorts/manager-go/internal/quota"
	"viralshorts/manager-go/internal/state"
)

// scriptedLLM answers each task from a queue of canned responses.
type scriptedLLM struct {
	answers map[string][]string
	prompts map[string][]string
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{answers: map[string][]string{}, prompts: map[string][]string{}}
}

func (s *scriptedLLM) add(task string, answers ...string) { s.answers[task] = append(s.answers[task], answers...) }

func (s *scriptedLLM) Call(_ context.Context, req llm.Request) (string, error) {
	s.prompts[req.Task] = append(s.prompts[req.Task], req.Prompt)
	queue := s.answers[req.Task]
	if len(queue) == 0 {
		return "", llm.ErrAllProvidersFailed
	}
	s.answers[req.Task] = queue[1:]
	if queue[0] == "ERR" {
		return "", errors.New("provider down")
	}
	return queue[0], nil
}

func newTestGenerator(t *testing.T, fake *scriptedLLM) *Generator {
	t.Helper()
	dir := t.TempDir()
	g := NewGenerator(fake, quota.NewQualityHistory(dir), state.NewVariety(dir), dir)
	g.intn = func(int) int { return 0 }
	return g
}

func TestGenerateConceptNormalizesAndForcesVariety(t *testing.T) {
	fake := newScriptedLLM()
	fake.add("concept", "```json\n"+`{"category":"finance","specific_topic":"The 50/30/20 rule is broken","phrase_count":"12","voice_style":"Whispery","music_mood":"chill","target_duration_seconds":20}`+"\n```")
	g := newTestGenerator(t, fake)

	c, err := g.GenerateConcept(context.Background(), ConceptInput{
		Categories:        []string{"finance", "science"},
		ExcludeCategories: []string{"finance"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.Category != "science" {
		t.Fatalf("category = %s, want science (finance excluded)", c.Category)
	}
	if c.PhraseCount != MaxPhrases || c.VoiceStyle != defaultVoiceStyle || c.MusicMood != "chill" {
		t.Fatalf("concept not normalized: %+v", c)
	}
	if !strings.Contains(fake.prompts["concept"][0], "DO NOT USE these categories (recently used): finance") {
		t.Fatal("exclusions missing from prompt")
	}
}

func TestGenerateConceptFallbacks(t *testing.T) {
	fake := newScriptedLLM()
	g := newTestGenerator(t, fake)
	ctx := context.Background()

	c, err := g.GenerateConcept(ctx, ConceptInput{Categories: []string{"life_hacks"}})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Fallback || c.SpecificTopic != "Shocking Life Hacks Fact Most People Miss" || c.PhraseCount != 5 {
		t.Fatalf("fallback concept = %+v", c)
	}

	fake.add("concept", `{"category":"science","specific_topic":"Octopuses have three hearts","phrase_count":4}`)
	if _, err := g.GenerateConcept(ctx, ConceptInput{}); err != nil {
		t.Fatal(err)
	}
	c, err = g.GenerateConcept(ctx, ConceptInput{})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Fallback || c.SpecificTopic != "Octopuses have three hearts" {
		t.Fatalf("expected saved backup concept, got %+v", c)
	}
}

func TestWriteScriptRegeneratesLowScore(t *testing.T) {
	fake := newScriptedLLM()
	fake.add("content",
		`{"phrases":["Phrase 1: Money tip","2. Save more","Comment below"],"specific_value":"savings"}`,
		`{"phrases":["Stop wasting $500 a month","Cancel one subscription today","Move it to savings automatically","Would you try this?"]}`,
	)
	fake.add("evaluate",
		`{"evaluation_score":4,"quality_issues":[{"issue":"weak hook","fix":"sharper"}]}`,
		`{"evaluation_score":"9/10","improved_hook":"STOP wasting $500 every month","improved_phrases":["a","b"]}`,
	)
	g := newTestGenerator(t, fake)
	c := Concept{Category: "finance", SpecificTopic: "subscriptions", PhraseCount: 4}

	s, err := g.WriteScript(context.Background(), c)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Regenerated || s.Score != 9 || s.QualityWarning {
		t.Fatalf("script = %+v", s)
	}
	if len(s.Phrases) != 4 || s.Phrases[0] != "STOP wasting $500 every month" || s.Phrases[1] != "Cancel one subscription today" {
		t.Fatalf("phrases = %q", s.Phrases)
	}
	if !strings.Contains(fake.prompts["content"][1], "Previous attempt scored 4/10 - UNACCEPTABLE. Issues: weak hook") {
		t.Fatalf("regeneration feedback missing:\n%s", fake.prompts["content"][1])
	}
	stats, err := g.Quality.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalVideos != 1 || stats.RegenerationRate != 1 {
		t.Fatalf("quality stats = %+v", stats)
	}
}

func TestWriteScriptKeepsBetterFirstAttempt(t *testing.T) {
	fake := newScriptedLLM()
	fake.add("content", `{"phrases":["one","two","three"]}`, `{"phrases":["uno","dos","tres"]}`)
	fake.add("evaluate", `{"evaluation_score":6}`, `{"evaluation_score":5}`)
	g := newTestGenerator(t, fake)

	s, err := g.WriteScript(context.Background(), Concept{Category: "facts", SpecificTopic: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Regenerated || s.Score != 6 || !s.QualityWarning || s.Phrases[0] != "one" {
		t.Fatalf("script = %+v", s)
	}
}

func TestCleanPhrases(t *testing.T) {
	got := cleanPhrases([]string{"Phrase 1: Hello", "2. **World**", "  ", "Improved phrase 3: Again", "Improved sleep is real", "3 ways to win"})
	want := []string{"Hello", "World", "Again", "Improved sleep is real", "3 ways to win"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q", got)
	}
}

func TestCheckNumberedPromise(t *testing.T) {
	if _, _, ok := CheckNumberedPromise([]string{"5 habits of rich people", "one", "two", "cta"}); ok {
		t.Fatal("5 promised with 2 delivered should fail")
	}
	if p, d, ok := CheckNumberedPromise([]string{"Top 2 tricks", "one", "two", "cta"}); !ok || p != 2 || d != 2 {
		t.Fatalf("p=%d d=%d ok=%v", p, d, ok)
	}
	if _, _, ok := CheckNumberedPromise([]string{"Why cats purr", "x"}); !ok {
		t.Fatal("no promise should pass")
	}
}

func TestCheckNumberedPromiseCountsOrdinals(t *testing.T) {
	phrases := []string{"3 signs you are a genius", "First, you talk to yourself", "Second, you stay up late", "Also, you forget names"}
	if p, d, ok := CheckNumberedPromise(phrases); !ok || p != 3 || d != 3 {
		t.Fatalf("p=%d d=%d ok=%v", p, d, ok)
	}
}

func TestFixBrokenPromise(t *testing.T) {
	cases := map[string]string{
		"Here are 5 tips to sleep better": "Here are 3 tips to sleep better",
		"Top 7 secrets of pilots":         "Top 3 secrets of pilots",
		"These 10 habits ruin mornings":   "These 3 habits ruin mornings",
		"Why cats purr":                   "Why cats purr",
	}
	for hook, want := range cases {
		if got := FixBrokenPromise(hook, 3); got != want {
			t.Errorf("FixBrokenPromise(%q) = %q, want %q", hook, got, want)
		}
	}
}

func TestWriteScriptRewritesBrokenPromise(t *testing.T) {
	fake := newScriptedLLM()
	fake.add("content", `{"phrases":["Here are 5 tips to sleep better","Drink water","Sleep early","Walk daily","Follow for more"]}`)
	fake.add("evaluate", `{"evaluation_score":8}`)
	g := newTestGenerator(t, fake)

	s, err := g.WriteScript(context.Background(), Concept{Category: "health", SpecificTopic: "sleep"})
	if err != nil {
		t.Fatal(err)
	}
	if s.Phrases[0] != "Here are 3 tips to sleep better" {
		t.Fatalf("hook = %q", s.Phrases[0])
	}
	if len(s.Phrases) != 5 || s.Phrases[1] != "Drink water" {
		t.Fatalf("phrases = %q", s.Phrases)
	}
}

func TestBrollKeywordsPadded(t *testing.T) {
	fake := newScriptedLLM()
	fake.add("broll", `Here you go: ["city skyline at night", ""]`)
	g := newTestGenerator(t, fake)
	got := g.BrollKeywords(context.Background(), []string{"a", "b", "c"})
	want := []string{"city skyline at night", defaultBrollKeyword, defaultBrollKeyword}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("keywords = %q", got)
	}
	if got := g.BrollKeywords(context.Background(), []string{"a"}); got[0] != defaultBrollKeyword {
		t.Fatalf("fallback keywords = %q", got)
	}
}

func TestGenerateMetadata(t *testing.T) {
	fake := newScriptedLLM()
	fake.add("metadata", `{"title_variants":[{"style":"number_hook","title":"3 Money Rules"},{"style":"curiosity_gap","title":"Nobody Saves Like This"}],"description":"Try it.","hashtags":["money","#Shorts","#finance tips"]}`)
	g := newTestGenerator(t, fake)
	ctx := context.Background()
	c := Concept{Category: "finance", SpecificTopic: "the envelope method"}

	if err := g.Variety.SetBestTitleStyles(ctx, []string{"curiosity_gap"}); err != nil {
		t.Fatal(err)
	}
	// the learned style is listed three times after the number hook, so index 1 is curiosity_gap
	g.intn = func(int) int { return 1 }
	md := g.GenerateMetadata(ctx, c, Script{Phrases: []string{"x"}})
	if md.Title != "Nobody Saves Like This" || md.TitleStyle != "curiosity_gap" {
		t.Fatalf("metadata = %+v", md)
	}
	if strings.Join(md.Hashtags, " ") != "#shorts #money #financetips" {
		t.Fatalf("hashtags = %v", md.Hashtags)
	}

	md = g.GenerateMetadata(ctx, c, Script{})
	if md.Title != "The Envelope Method" || md.TitleStyle != "fallback" || md.Hashtags[0] != "#shorts" {
		t.Fatalf("fallback metadata = %+v", md)
	}
}
