package history

import (
	"strings"
	"unicode"

	"legisum/internal/model"
)

// Category classifies one action record.
type Category string

const (
	CategoryOriginal   Category = "original"
	CategoryAmendment  Category = "amendment"
	CategoryVote       Category = "vote"
	CategoryProcedural Category = "procedural"
	CategoryOther      Category = "other"
)

// classificationRule maps keywords to a category. Rules are evaluated in
// slice order; the first match wins, which encodes the precedence
// AMENDMENT > VOTE > PROCEDURAL > OTHER.
type classificationRule struct {
	category Category
	keywords []string
}

// amendmentRule and proceduralRule are data, not code: extend the keyword
// lists without touching the classifier.
var (
	amendmentRule = classificationRule{CategoryAmendment, []string{
		"amend", "amended", "amendment", "substitute", "substituted",
		"revised", "modified", "changed",
	}}
	proceduralRule = classificationRule{CategoryProcedural, []string{
		"refer", "referred", "transmit", "transmitted", "retained",
	}}
)

func (r classificationRule) matches(words map[string]struct{}) bool {
	for _, kw := range r.keywords {
		if _, ok := words[kw]; ok {
			return true
		}
	}
	return false
}

// Classify categorizes an action record with fixed precedence
// AMENDMENT > VOTE > PROCEDURAL > OTHER. A record carrying the minimum
// version number is always ORIGINAL regardless of keywords; the caller
// handles that. Matching is whole-word and case-insensitive so that e.g.
// "unmodified" does not register as an amendment.
func Classify(rec model.ActionRecord) Category {
	words := fieldWords(rec.ActionText)
	if amendmentRule.matches(words) {
		return CategoryAmendment
	}
	if rec.Result == model.ResultPassed || rec.Result == model.ResultFailed {
		return CategoryVote
	}
	if proceduralRule.matches(words) {
		return CategoryProcedural
	}
	return CategoryOther
}

// fieldWords lowercases text and splits it into a word set on any
// non-letter, non-digit rune.
func fieldWords(text string) map[string]struct{} {
	words := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}
	return words
}
