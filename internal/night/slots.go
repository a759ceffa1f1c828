package night

import "fmt"

var (
	slots     = buildSlots()
	slotIndex = indexSlots(slots)
)

// evening hours 15-23, then the post-midnight hours 0-6
func buildSlots() []string {
	out := make([]string, 0, 32)
	for h := 15; h < 24; h++ {
		out = append(out, fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:30", h))
	}
	for h := 0; h <= 6; h++ {
		out = append(out, fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:30", h))
	}
	return out
}

func indexSlots(labels []string) map[string]int {
	idx := make(map[string]int, len(labels))
	for i, s := range labels {
		idx[s] = i
	}
	return idx
}

// Slots returns the half-hour labels in night order, 15:00 through 06:30.
func Slots() []string {
	out := make([]string, len(slots))
	copy(out, slots)
	return out
}

// ValidSlot reports whether s is one of the enumerated slot labels.
func ValidSlot(s string) bool {
	_, ok := slotIndex[s]
	return ok
}

// SlotIndex returns the position of s within the night.
func SlotIndex(s string) (int, bool) {
	i, ok := slotIndex[s]
	return i, ok
}
