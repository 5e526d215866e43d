package state

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// toggle removes v when present and appends it otherwise. It always returns a
// new slice.
func toggle[T comparable](list []T, v T) []T {
	out := make([]T, 0, len(list)+1)
	found := false
	for _, item := range list {
		if item == v {
			found = true
			continue
		}
		out = append(out, item)
	}
	if !found {
		out = append(out, v)
	}
	return out
}

// setMembership makes v present or absent without duplicating it.
func setMembership[T comparable](list []T, v T, present bool) []T {
	if contains(list, v) == present {
		return list
	}
	return toggle(list, v)
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
