package script

import (
	"regexp"
	"strconv"
)

var (
	countedNounPattern = regexp.MustCompile(`(?i)\b(\d+)(\s+)(tips?|ways?|tricks?|secrets?|habits?|things?|facts?|signs?|reasons?|steps?|methods?)\b`)
	leadInPattern      = regexp.MustCompile(`(?i)\b(top|best|here are|these)(\s+)(\d+)\b`)

	numberedItemPattern = regexp.MustCompile(`^\s*\d+[.):]`)
	ordinalPattern      = regexp.MustCompile(`(?i)\b(first|second|third|fourth|fifth|sixth|seventh|eighth|ninth|tenth)\b`)
	connectivePattern   = regexp.MustCompile(`(?i)\b(one is|another is|next is|also|finally)\b`)
)

func promisedCount(hook string) (int, bool) {
	var raw string
	if m := countedNounPattern.FindStringSubmatch(hook); m != nil {
		raw = m[1]
	} else if m := leadInPattern.FindStringSubmatch(hook); m != nil {
		raw = m[3]
	} else {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 1 || n > 20 {
		return 0, false
	}
	return n, true
}

// countItems counts phrases that read as list items. Every phrase between the hook and
// the closing call to action counts at minimum.
func countItems(body []string) int {
	items := 0
	for _, p := range body {
		if numberedItemPattern.MatchString(p) || ordinalPattern.MatchString(p) || connectivePattern.MatchString(p) {
			items++
		}
	}
	return max(items, len(body)-1)
}

// CheckNumberedPromise compares a count promised by the hook ("5 tips", "top 3") with
// the items that follow it. ok is false only when fewer items are delivered.
func CheckNumberedPromise(phrases []string) (promised, delivered int, ok bool) {
	if len(phrases) == 0 {
		return 0, 0, true
	}
	n, found := promisedCount(phrases[0])
	if !found {
		return 0, 0, true
	}
	delivered = countItems(phrases[1:])
	return n, delivered, delivered >= n
}

// FixBrokenPromise rewrites the promised count in hook to delivered.
func FixBrokenPromise(hook string, delivered int) string {
	d := strconv.Itoa(delivered)
	hook = countedNounPattern.ReplaceAllString(hook, d+"${2}${3}")
	return leadInPattern.ReplaceAllString(hook, "${1}${2}"+d)
}
