package actions

import (
	"sort"
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/aretw0/fieldwatch/pkg/core"
)

// Match is a ranked picker candidate.
type Match struct {
	Action core.ActionInfo
	Score  int
	// Positions are the rune offsets of matched characters in the name.
	Positions []int
}

// Rank orders candidates by fuzzy similarity of their name to query.
// Non-matching candidates are dropped. An empty query keeps every candidate
// in its original order with a zero score. Ties keep the original order.
func Rank(query string, candidates []core.ActionInfo) []Match {
	pattern := []rune(strings.ToLower(strings.TrimSpace(query)))
	if len(pattern) == 0 {
		out := make([]Match, len(candidates))
		for i, c := range candidates {
			out[i] = Match{Action: c}
		}
		return out
	}

	slab := util.MakeSlab(100*1024, 2048)
	var out []Match
	for _, c := range candidates {
		text := c.Name
		if text == "" {
			text = c.ID
		}

		chars := util.ToChars([]byte(strings.ToLower(text)))
		result, positions := algo.FuzzyMatchV2(false, true, true, &chars, pattern, true, slab)
		if result.Start < 0 || result.Score <= 0 {
			continue
		}

		m := Match{Action: c, Score: result.Score}
		if positions != nil {
			m.Positions = append([]int(nil), (*positions)...)
			sort.Ints(m.Positions)
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}
