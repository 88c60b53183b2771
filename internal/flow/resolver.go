package flow

import (
	"strconv"
	"strings"

	"github.com/hamavrikan/leadbot/internal/models"
)

// TriggerWords start a new conversation when an idle contact's message
// contains any of them.
var TriggerWords = []string{
	"ניקוי", "שלום", "היי", "הי", "בוקר טוב", "ערב טוב",
	"מחיר", "הצעת מחיר", "כמה עולה",
}

// Answer vocabularies for the item question chains, in menu order.
var (
	mattressTypes = []string{"יחיד", "זוגי", "קינג סייז"}
	yesNo         = []string{"כן", "לא"}
	sofaTypes     = []string{"ספה סטנדרטית", `שזלונג "ר"`, "מערכת ישיבה גדולה", "ספה מלבנית"}
	carpetTypes   = []string{"שטיח שאגי", "שטיח סינטתי", "שטיח וינטג׳ / מודרני", "שטיח עבודת יד (צמר / כותנה)", "שטיח מקיר לקיר"}
)

// Skip tokens accepted instead of a photo.
var skipTokens = []string{"0", "דלג"}

// ContainsTrigger reports whether the text contains a trigger word.
func ContainsTrigger(text string) bool {
	normalized := strings.TrimSpace(text)
	for _, word := range TriggerWords {
		if strings.Contains(normalized, word) {
			return true
		}
	}
	return false
}

// IsSkip reports whether the text is an explicit photo-skip token.
func IsSkip(text string) bool {
	trimmed := strings.TrimSpace(text)
	for _, token := range skipTokens {
		if trimmed == token {
			return true
		}
	}
	return false
}

// ResolveOption normalizes an answer against an ordered option vocabulary.
// An integer in [1, len(options)] selects by position; a substring match in
// either direction selects the matching option; anything else passes through
// as the trimmed raw text. Free-form answers are accepted on purpose.
func ResolveOption(text string, options []string) string {
	trimmed := strings.TrimSpace(text)
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	for _, option := range options {
		if strings.Contains(trimmed, option) || strings.Contains(option, trimmed) {
			return option
		}
	}
	return trimmed
}

// ParseItems extracts the selected item names from a multi-item answer.
// Digits 1/2/3 map to sofa/mattress/carpet and are deduplicated in order of
// first appearance; when no digits are present the item names themselves are
// matched as substrings. An empty result means nothing was recognized.
func ParseItems(text string) []string {
	trimmed := strings.TrimSpace(text)
	byDigit := map[rune]string{
		'1': models.ItemSofa,
		'2': models.ItemMattress,
		'3': models.ItemCarpet,
	}

	var items []string
	seen := make(map[string]bool)
	for _, r := range trimmed {
		item, ok := byDigit[r]
		if !ok || seen[item] {
			continue
		}
		seen[item] = true
		items = append(items, item)
	}
	if len(items) > 0 {
		return items
	}

	for _, item := range []string{models.ItemSofa, models.ItemMattress, models.ItemCarpet} {
		if strings.Contains(trimmed, item) {
			items = append(items, item)
		}
	}
	return items
}

// contextHint is the question/example pair attached to a context error.
type contextHint struct {
	question string
	example  string
}

// hintFor returns the context hint for a state, or nil when the state has
// no re-askable question.
func hintFor(state models.State) *contextHint {
	hints := map[models.State]contextHint{
		models.StateAwaitingLocation: {
			question: "מהיכן אתם?",
			example:  "לדוגמה: חיפה, קריות, עכו",
		},
		models.StateAwaitingItem: {
			question: "איזה פריט תרצו לנקות?",
			example:  "שלחו 1 לספה, 2 למזרן, 3 לשטיח, או 4 לכמה פריטים",
		},
		models.StateMattressType: {
			question: "איזה סוג מזרן?",
			example:  "שלחו 1 ליחיד, 2 לזוגי, 3 לקינג סייז",
		},
		models.StateMattressBothSides: {
			question: "האם ניקוי משני הצדדים?",
			example:  "שלחו 1 לכן, 2 ללא",
		},
		models.StateMattressStains: {
			question: "האם יש כתמים קשים?",
			example:  "שלחו 1 לכן, 2 ללא",
		},
		models.StateSofaType: {
			question: "איזה סוג ספה?",
			example:  "שלחו מספר 1-4",
		},
		models.StateCarpetType: {
			question: "איזה סוג שטיח?",
			example:  "שלחו מספר 1-5",
		},
		models.StateMultipleSelect: {
			question: "אילו פריטים?",
			example:  "שלחו מספרים מופרדים בפסיק, למשל: 1,2",
		},
	}
	if h, ok := hints[state]; ok {
		return &h
	}
	return nil
}
