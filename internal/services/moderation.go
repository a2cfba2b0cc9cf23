package services

import (
	"sort"
	"strings"
	"unicode"

	"github.com/AnshRaj112/tandem-backend/internal/models"
)

// Base canonical words - the ONLY source of truth
var baseThreatWords = []string{
	"rape",
	"kill",
	"murder",
	"death",
	"die",
	"assault",
	"attack",
	"harm",
	"hurt",
	"destroy",
	"eliminate",
	"execute",
	"shoot",
	"stab",
	"strangle",
	"threat",
	"threatening",
	"revenge",
	"retaliate",
	"slaughter",
	"massacre",
	"annihilate",
}

var baseSelfHarmWords = []string{
	"suicide",
	"kill myself",
	"end my life",
	"take my life",
	"end it all",
	"self harm",
	"cut myself",
	"hurt myself",
	"harm myself",
	"want to die",
	"wish i was dead",
	"not worth living",
	"better off dead",
	"end myself",
	"unalive",
}

var obfuscation = strings.NewReplacer(
	"@", "a",
	"4", "a",
	"3", "e",
	"!", "i",
	"1", "i",
	"0", "o",
	"$", "s",
	"5", "s",
	"7", "t",
	"+", "t",
	"а", "a", // Cyrillic
	"е", "e", // Cyrillic
	"і", "i", // Cyrillic
	"о", "o", // Cyrillic
	"р", "p", // Cyrillic
)

// CleanText normalizes text to the canonical form the dictionaries are compared in:
// lowercase, de-obfuscated, letters only, repeated letters collapsed.
func CleanText(text string) string {
	cleaned := obfuscation.Replace(strings.ToLower(text))

	var b strings.Builder
	for _, r := range cleaned {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(collapseRepeats(b.String())), " ")
}

// collapseRepeats reduces runs of the same letter to one ("rrraaaapeee" -> "rape").
func collapseRepeats(text string) string {
	var b strings.Builder
	last := rune(0)
	lastWasLetter := false
	for _, r := range text {
		isLetter := unicode.IsLetter(r)
		if isLetter && lastWasLetter && r == last {
			continue
		}
		b.WriteRune(r)
		last = r
		lastWasLetter = isLetter
	}
	return b.String()
}

// ContainsConfirmedWord returns the dictionary entries present in cleanedText.
// Single words must match a whole word ("skill" does not match "kill"); phrases match as substrings.
func ContainsConfirmedWord(cleanedText string, baseWords []string) (bool, []string) {
	var confirmed []string
	words := strings.Fields(cleanedText)
	for _, base := range baseWords {
		canonical := collapseRepeats(base)
		if !strings.Contains(cleanedText, canonical) {
			continue
		}
		if len(strings.Fields(canonical)) > 1 {
			confirmed = append(confirmed, base)
			continue
		}
		for _, w := range words {
			if w == canonical {
				confirmed = append(confirmed, base)
				break
			}
		}
	}
	return len(confirmed) > 0, confirmed
}

// CheckContent reports threat and self-harm matches in message.
func CheckContent(message string) (hasThreat bool, hasSelfHarm bool, matchedKeywords []string) {
	cleaned := CleanText(message)

	if ok, words := ContainsConfirmedWord(cleaned, baseThreatWords); ok {
		hasThreat = true
		matchedKeywords = append(matchedKeywords, words...)
	}
	if ok, words := ContainsConfirmedWord(cleaned, baseSelfHarmWords); ok {
		hasSelfHarm = true
		matchedKeywords = append(matchedKeywords, words...)
	}
	return hasThreat, hasSelfHarm, matchedKeywords
}

// FlagTranscript scans text and captions of a transcript and returns the distinct
// matched keywords, sorted.
func FlagTranscript(entries []models.TranscriptEntry) []string {
	seen := make(map[string]struct{})
	for _, e := range entries {
		text := e.Caption
		if e.Kind == models.KindText {
			text = e.Content
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		_, _, words := CheckContent(text)
		for _, w := range words {
			seen[w] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
