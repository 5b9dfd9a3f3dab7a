package simple

import (
	"sort"
	"strconv"

	"github.com/cognicore/faultdx/pkg/faultdx/inference"
)

// Evaluate tests a pattern against a view with existence semantics.
// On success it also returns the supporting fact ids: the lowest-id match of
// every positive leaf that contributed. Negated subpatterns contribute nothing.
// Evaluate never mutates the view and nothing is cached between calls, so a
// Not that held earlier is re-checked against the current facts every time.
func Evaluate(p inference.Pattern, v inference.View) (bool, []inference.FactID) {
	switch n := p.(type) {
	case inference.Leaf:
		ids := v.Match(n)
		if len(ids) == 0 {
			return false, nil
		}
		return true, ids[:1:1]

	case inference.And:
		var support []inference.FactID
		for _, c := range n.Children {
			ok, s := Evaluate(c, v)
			if !ok {
				return false, nil
			}
			support = append(support, s...)
		}
		return true, support

	case inference.Or:
		for _, c := range n.Children {
			if ok, s := Evaluate(c, v); ok {
				return true, s
			}
		}
		return false, nil

	case inference.Not:
		ok, _ := Evaluate(n.Child, v)
		return !ok, nil
	}

	return false, nil
}

// activationKey identifies a rule firing for refraction: the rule plus its
// sorted, de-duplicated supporting fact ids.
func activationKey(ruleID string, support []inference.FactID) string {
	ids := append([]inference.FactID(nil), support...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	key := make([]byte, 0, len(ruleID)+8*len(ids))
	key = append(key, ruleID...)
	key = append(key, '|')
	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}
		if i > 0 {
			key = append(key, ',')
		}
		key = strconv.AppendInt(key, int64(id), 10)
	}
	return string(key)
}
