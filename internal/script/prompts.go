package script

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

func conceptPrompt(available, excludeCategories, excludeTopics []string, hint, boost string, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are a viral content strategist for short-form vertical video (YouTube Shorts, TikTok).\n")
	b.WriteString("Decide what video to create that earns maximum views while delivering real value.\n\n")
	fmt.Fprintf(&b, "DATE: %s\n", now.Format("January 02, 2006, Monday"))
	if hint != "" {
		fmt.Fprintf(&b, "Hint: %s\n", hint)
	}
	if len(excludeCategories) > 0 {
		fmt.Fprintf(&b, "\nDO NOT USE these categories (recently used): %s\n", strings.Join(excludeCategories, ", "))
	}
	if len(excludeTopics) > 0 {
		fmt.Fprintf(&b, "DO NOT USE these topics (recently used): %s\n", strings.Join(firstN(excludeTopics, maxConceptExclusions), "; "))
	}
	fmt.Fprintf(&b, "\nAVAILABLE CATEGORIES (pick ONE): %s\n\n", strings.Join(available, ", "))
	if boost != "" {
		b.WriteString(boost)
		b.WriteString("\n")
	}
	b.WriteString(`Decide:
1. category from the available list
2. a specific, surprising, globally relevant topic (5-10 words)
3. phrase_count between 3 and 5 (15-25 second videos perform best)
4. voice_style: ` + strings.Join(VoiceStyles, ", ") + `
5. music_mood: ` + strings.Join(MusicMoods, ", ") + `
6. target_duration_seconds between 15 and 25

OUTPUT JSON:
{
  "category": "from the available list",
  "specific_topic": "the specific topic",
  "why_this_topic": "why this will be viral and valuable",
  "phrase_count": 4,
  "voice_style": "energetic",
  "music_mood": "upbeat",
  "target_duration_seconds": 20,
  "global_relevance": "why this works worldwide"
}
OUTPUT JSON ONLY.`)
	return b.String()
}

func contentPrompt(c Concept, feedback, boost string) string {
	var b strings.Builder
	b.WriteString("You are a viral content creator aiming for 10/10 short-form content.\n")
	b.WriteString("Every script needs a scroll-stopping hook, specific numbers, an emotional trigger, clear value by second 3, conversational voice, a payoff and a comment-driving CTA.\n\n")
	if feedback != "" {
		fmt.Fprintf(&b, "QUALITY IMPROVEMENT REQUIRED:\n%s\nMake it more specific, more surprising and more valuable. It must score 8+/10.\n\n", feedback)
	}
	fmt.Fprintf(&b, "Category: %s\nTopic: %s\n", c.Category, c.SpecificTopic)
	if c.WhyThisTopic != "" {
		fmt.Fprintf(&b, "Why viral: %s\n", c.WhyThisTopic)
	}
	fmt.Fprintf(&b, "Target duration: %d seconds\nPhrase count: %d phrases ONLY\n\n", c.TargetDurationSeconds, c.PhraseCount)
	if boost != "" && feedback == "" {
		b.WriteString(boost)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, `Rules:
- phrase 1 is the hook: a pattern interrupt that stops scrolling
- each phrase is 8-15 words; about 60 words in total
- specific beats vague ("save $500 in 30 days", not "save money")
- the last phrase delivers the payoff and asks a question that forces comments
- no "Phrase 1:" prefixes

OUTPUT JSON:
{
  "phrases": ["hook", "...", "payoff plus question"],
  "specific_value": "what the viewer gets",
  "hook_technique": "which hook pattern was used",
  "engagement_bait": "the exact closing question"
}
Exactly %d phrases. OUTPUT JSON ONLY.`, c.PhraseCount)
	return b.String()
}

func evaluatePrompt(c Concept, content Content) string {
	phrases, _ := json.MarshalIndent(content.Phrases, "", "  ")
	return fmt.Sprintf(`You are a skeptical quality reviewer for viral YouTube Shorts.

TOPIC: %s

PHRASES:
%s

Claimed value: %s

Score viral potential 1-10 (8 is our target minimum). Check the hook, specific and believable
numbers (round numbers like $500 or 80%%, never $3333 or 47.3%%), emotional trigger, value by
second 3, natural spoken language, promise-payoff (if the hook promises N items, deliver N)
and a closing CTA. Flag every issue and fix it in the improved version.

OUTPUT JSON:
{
  "evaluation_score": 8,
  "quality_issues": [{"issue": "problem", "fix": "how you fixed it"}],
  "believability_score": 8,
  "would_you_watch": true,
  "improvements_made": ["change"],
  "improved_hook": "the improved first phrase",
  "improved_phrases": ["every phrase, improved, same count"],
  "final_value_delivered": "what the viewer gets now"
}
No "Phrase 1:" prefixes. OUTPUT JSON ONLY.`, c.SpecificTopic, phrases, content.SpecificValue)
}

func brollPrompt(phrases []string) string {
	encoded, _ := json.MarshalIndent(phrases, "", "  ")
	return fmt.Sprintf(`You are a visual director for viral short videos. Pick the perfect stock B-roll search
keyword for EACH phrase.

PHRASES:
%s

Be specific ("close up of person stressed at desk" beats "stress"), match the emotion, prefer
people and movement.

Return exactly %d keywords as a JSON array. JSON ARRAY ONLY.`, encoded, len(phrases))
}

func metadataPrompt(c Concept, phrases []string, valueDelivered string) string {
	first := ""
	if len(phrases) > 0 {
		first = phrases[0]
	}
	return fmt.Sprintf(`Create viral upload metadata for this short with 3 TITLE VARIANTS.

Category: %s
Topic: %s
First phrase: %s
Value delivered: %s

Every title needs a specific benefit, a number and fewer than 50 characters.
Styles: number_hook (lead with a number), curiosity_gap (mystery plus benefit),
result_focused (state the outcome).

OUTPUT JSON:
{
  "title_variants": [
    {"style": "number_hook", "title": "..."},
    {"style": "curiosity_gap", "title": "..."},
    {"style": "result_focused", "title": "..."}
  ],
  "description": "2-3 sentences with a CTA",
  "hashtags": ["#shorts", "#viral", "5-8 relevant tags"]
}
JSON ONLY.`, c.Category, c.SpecificTopic, first, valueDelivered)
}

func firstN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
