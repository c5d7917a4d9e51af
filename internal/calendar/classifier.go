package calendar

import "strings"

// defaultFreeKeywords marks event summaries that announce availability
// rather than occupancy.  Owners use these words (in French or English,
// this is a bilingual clientele) to annotate open slots directly in
// their calendars.  The list is heuristic and locale-specific, so it is
// replaceable through configuration rather than baked into the
// availability logic.
var defaultFreeKeywords = []string{
	"libre",
	"disponible",
	"dispo",
	"available",
	"free",
	"ouvert",
	"open",
	"annulé",
	"annule",
}

// Classifier decides whether a remote calendar event blocks
// availability.  The default posture is conservative: any event with a
// start and an end blocks its time range unless its summary contains
// one of the configured "free" keywords.
type Classifier struct {
	freeKeywords []string
}

// NewClassifier builds a classifier with the given keyword list, or the
// built-in defaults when the list is empty.
func NewClassifier(freeKeywords []string) *Classifier {
	if len(freeKeywords) == 0 {
		freeKeywords = defaultFreeKeywords
	}
	lowered := make([]string, 0, len(freeKeywords))
	for _, k := range freeKeywords {
		if k = strings.TrimSpace(strings.ToLower(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Classifier{freeKeywords: lowered}
}

// Blocks reports whether the event occupies its time range.  Cancelled
// tombstones and events without usable endpoints never block.
func (c *Classifier) Blocks(ev Event) bool {
	if ev.Cancelled() || !ev.Usable() {
		return false
	}
	summary := strings.ToLower(ev.Summary)
	for _, k := range c.freeKeywords {
		if strings.Contains(summary, k) {
			return false
		}
	}
	return true
}
