// Package fingerprint derives the advisory duplicate-detection key of a
// transaction.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"budgetapp/internal/core"
)

// Of hashes "YYYY-MM-DD|amount|description" where amount has two fractional
// digits and description is trimmed and lowercased. The result is 64 hex chars.
func Of(date core.Date, amount core.Money, description string) string {
	key := date.ISO() + "|" + amount.String() + "|" + Normalize(description)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Normalize is the description form that takes part in the hash.
func Normalize(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}

// Stamp sets t.Fingerprint from the transaction's own fields.
func Stamp(t *core.Transaction) {
	t.Fingerprint = Of(t.Date, t.Amount, t.Description)
}

// Duplicates groups transaction IDs sharing a fingerprint. Only groups with
// more than one member are returned.
func Duplicates(txs []core.Transaction) map[string][]int64 {
	groups := make(map[string][]int64)
	for _, t := range txs {
		if t.Deleted {
			continue
		}
		fp := t.Fingerprint
		if fp == "" {
			fp = Of(t.Date, t.Amount, t.Description)
		}
		groups[fp] = append(groups[fp], t.ID)
	}
	for fp, ids := range groups {
		if len(ids) < 2 {
			delete(groups, fp)
		}
	}
	return groups
}
