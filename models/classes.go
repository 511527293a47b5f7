package models

import (
	"fmt"
	"sort"
)

// LabelMap maps a dataset label to the model class indices that count as a correct prediction.
//
// It lets a head trained on one label space (e.g. ImageNet-1k) be scored on a dataset with
// another (e.g. CIFAR-10). Labels absent from the map, and an empty map, match identically.
type LabelMap map[int][]int

// Accepts reports whether predicting class pred for a sample labeled label is correct.
func (m LabelMap) Accepts(label, pred int) bool {
	classes, ok := m[label]
	if !ok {
		return label == pred
	}
	for _, c := range classes {
		if c == pred {
			return true
		}
	}
	return false
}

// Validate checks that every mapped label has at least one non-negative class index.
func (m LabelMap) Validate() error {
	labels := make([]int, 0, len(m))
	for label := range m {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	for _, label := range labels {
		classes := m[label]
		if len(classes) == 0 {
			return fmt.Errorf("label %d maps to no classes", label)
		}
		for _, c := range classes {
			if c < 0 {
				return fmt.Errorf("label %d maps to negative class %d", label, c)
			}
		}
	}
	return nil
}
