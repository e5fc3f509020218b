package session

import "time"

// Prune returns the descriptors whose LastActive is within maxAge of now,
// preserving order, plus the number removed. The input slice is not modified.
func Prune(list []Descriptor, now time.Time, maxAge time.Duration) ([]Descriptor, int) {
	out := make([]Descriptor, 0, len(list)+1)
	cutoff := now.Add(-maxAge)
	for _, d := range list {
		if d.LastActive.Before(cutoff) {
			continue
		}
		out = append(out, d)
	}
	return out, len(list) - len(out)
}

// Append adds d at the end and evicts from the front until at most max
// descriptors remain. It returns the new list and the number evicted.
func Append(list []Descriptor, d Descriptor, max int) ([]Descriptor, int) {
	out := make([]Descriptor, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, d)

	evicted := 0
	if max > 0 && len(out) > max {
		evicted = len(out) - max
		out = out[evicted:]
	}
	return out, evicted
}

// RetainOnly keeps the descriptor with the given id, or nothing when the id
// is unknown.
func RetainOnly(list []Descriptor, id string) []Descriptor {
	for _, d := range list {
		if id != "" && d.ID == id {
			return []Descriptor{d}
		}
	}
	return []Descriptor{}
}

// Contains reports whether id is present in list.
func Contains(list []Descriptor, id string) bool {
	if id == "" {
		return false
	}
	for _, d := range list {
		if d.ID == id {
			return true
		}
	}
	return false
}
