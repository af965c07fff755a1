package mapslicehelp

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/exp/constraints"
)

// Unique drops repeated elements, keeping the first occurrence in place
func Unique[T constraints.Ordered](elements []T) []T {
	seen := make(map[T]any, len(elements))
	result := make([]T, 0, len(elements))
	for _, element := range elements {
		if _, ok := seen[element]; ok {
			continue
		}
		seen[element] = struct{}{}
		result = append(result, element)
	}
	return result
}

func OrderedMapKeys[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []K {
	l := make([]K, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Key
		i++
	}
	return l
}

func CountFunc[K comparable, V any](m *orderedmap.OrderedMap[K, V], f func(V) bool) int {
	n := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		if f(p.Value) {
			n++
		}
	}
	return n
}
