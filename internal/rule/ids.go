package rule

import (
	"errors"
	"fmt"
)

// ErrDuplicateRuleID is returned when two rules of one module share an ID.
// Guard caches and plan bookkeeping are keyed by rule ID.
var ErrDuplicateRuleID = errors.New("duplicate rule id")

var idPrefix = map[Kind]string{
	KindEvent:  "pc",
	KindGoal:   "pg",
	KindRepair: "pr",
	KindUpdate: "bu",
}

// AssignIDs checks that the explicit IDs of rules are unique and names the
// rest "<prefix><n>", n being the declaration position within the kind,
// moved up past any name already in use.
func AssignIDs(rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		id := r.Info().ID
		if id == "" {
			continue
		}
		if seen[id] {
			return fmt.Errorf("%w: %s", ErrDuplicateRuleID, id)
		}
		seen[id] = true
	}
	fillIDs(rules)
	return nil
}

func fillIDs(rules []Rule) {
	taken := make(map[string]bool, len(rules))
	for _, r := range rules {
		if id := r.Info().ID; id != "" {
			taken[id] = true
		}
	}
	counts := make(map[Kind]int)
	for _, r := range rules {
		counts[r.Kind()]++
		m := r.Info()
		if m.ID != "" {
			continue
		}
		n := counts[r.Kind()]
		id := fmt.Sprintf("%s%d", idPrefix[r.Kind()], n)
		for taken[id] {
			n++
			id = fmt.Sprintf("%s%d", idPrefix[r.Kind()], n)
		}
		m.ID = id
		taken[id] = true
	}
}
