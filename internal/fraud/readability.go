package fraud

import (
	"strings"
	"unicode"
)

// fleschReadingEase scores text on the Flesch reading-ease scale, higher is easier.
// ok is false when the text has no words.
func fleschReadingEase(text string) (score float64, ok bool) {
	words, syllables := 0, 0
	for _, field := range strings.Fields(text) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word == "" {
			continue
		}
		words++
		syllables += countSyllables(word)
	}
	if words == 0 {
		return 0, false
	}

	sentences := countSentences(text)
	return 206.835 - 1.015*(float64(words)/float64(sentences)) - 84.6*(float64(syllables)/float64(words)), true
}

// countSentences counts runs of terminal punctuation, at least one.
func countSentences(text string) int {
	n := 0
	inTerminator := false
	for _, r := range text {
		isTerm := r == '.' || r == '!' || r == '?'
		if isTerm && !inTerminator {
			n++
		}
		inTerminator = isTerm
	}
	return max(n, 1)
}

// countSyllables estimates syllables from vowel groups with a silent-e adjustment.
func countSyllables(word string) int {
	w := strings.ToLower(word)
	count := 0
	prevVowel := false
	letters := 0
	for _, r := range w {
		if !unicode.IsLetter(r) {
			prevVowel = false
			continue
		}
		letters++
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if letters == 0 {
		return 1
	}
	if count > 1 && strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") {
		count--
	}
	return max(count, 1)
}
