package streamable

import (
	"cmp"
	"slices"
)

// Quality is the user's stream quality preference.
type Quality string

const (
	QualityDefault Quality = ""
	QualityHighest Quality = "highest"
	QualityMedium  Quality = "medium"
	QualityLowest  Quality = "lowest"
)

// ParseQuality maps a config value to a Quality. Unknown values map to the default.
func ParseQuality(s string) Quality {
	switch Quality(s) {
	case QualityHighest, QualityMedium, QualityLowest:
		return Quality(s)
	default:
		return QualityDefault
	}
}

// Select picks one candidate according to the preference and returns it with
// its index in list. It returns false when list is empty.
//
//   - highest: maximum rank
//   - lowest: minimum rank
//   - medium: element at len/2 after an ascending sort
//   - default: first element
func Select(list []Streamable, q Quality) (Streamable, int, bool) {
	if len(list) == 0 {
		return Streamable{}, -1, false
	}

	idx := make([]int, len(list))
	for i := range idx {
		idx[i] = i
	}
	byRank := func(a, b int) int { return cmp.Compare(list[a].Quality, list[b].Quality) }

	var pick int
	switch q {
	case QualityHighest:
		pick = slices.MaxFunc(idx, byRank)
	case QualityLowest:
		pick = slices.MinFunc(idx, byRank)
	case QualityMedium:
		slices.SortStableFunc(idx, byRank)
		pick = idx[len(idx)/2]
	default:
		pick = 0
	}
	return list[pick], pick, true
}
