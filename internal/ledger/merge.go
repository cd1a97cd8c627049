// Package ledger merges normalized batches and persists them as the canonical
// CSV checkpoint that the later stages (and humans) read and edit.
package ledger

import (
	"sort"

	"fjacquet/ledgerflow/internal/models"
)

// Merge concatenates batches in the given order and stable-sorts the result
// by timestamp. Equal timestamps keep batch order, then row order.
func Merge(batches ...[]models.Transaction) []models.Transaction {
	total := 0
	for _, b := range batches {
		total += len(b)
	}

	merged := make([]models.Transaction, 0, total)
	for _, b := range batches {
		merged = append(merged, b...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged
}
