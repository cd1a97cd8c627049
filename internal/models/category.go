package models

import (
	"strings"
)

// CategorySet is the ordered list of labels the annotator may assign.
// The fallback label is always implicitly part of the set.
type CategorySet struct {
	labels []string
	index  map[string]string
}

// NewCategorySet builds a set from the configured labels, dropping blanks and
// duplicates while keeping the configured order.
func NewCategorySet(labels []string) CategorySet {
	set := CategorySet{index: make(map[string]string, len(labels)+1)}
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		key := strings.ToLower(label)
		if _, exists := set.index[key]; exists {
			continue
		}
		set.index[key] = label
		set.labels = append(set.labels, label)
	}
	if _, exists := set.index[FallbackCategory]; !exists {
		set.index[FallbackCategory] = FallbackCategory
	}
	return set
}

// Labels returns the configured labels in order, without the fallback.
func (s CategorySet) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// Len returns the number of configured labels.
func (s CategorySet) Len() int {
	return len(s.labels)
}

// Match resolves a free-text answer to a configured label. An exact match
// wins over a case-insensitive one.
func (s CategorySet) Match(answer string) (string, bool) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", false
	}
	for _, label := range s.labels {
		if label == answer {
			return label, true
		}
	}
	if answer == FallbackCategory {
		return FallbackCategory, true
	}
	label, ok := s.index[strings.ToLower(answer)]
	return label, ok
}
