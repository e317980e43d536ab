// Package dictionary classifies WaniKani subjects and converts them into
// dictionary bank rows.
package dictionary

import (
	"github.com/Sternrassler/wanikani-dict/pkg/client"
)

// Kind is a target record kind of the dictionary archive.
type Kind struct {
	// Bank is the entry name prefix ("kanji" → kanji_bank_<n>.json).
	Bank string

	// Object is the WaniKani subject type that feeds this bank.
	Object string
}

var (
	// KindKanji collects kanji subjects into kanji banks.
	KindKanji = Kind{Bank: "kanji", Object: "kanji"}

	// KindTerm collects vocabulary subjects into term banks.
	KindTerm = Kind{Bank: "term", Object: "vocabulary"}
)

// DefaultKinds returns the kinds produced by a standard build, in entry order.
func DefaultKinds() []Kind {
	return []Kind{KindKanji, KindTerm}
}

// Objects returns the subject types requested for the given kinds,
// without duplicates.
func Objects(kinds []Kind) []string {
	seen := make(map[string]bool, len(kinds))
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		if seen[k.Object] {
			continue
		}
		seen[k.Object] = true
		out = append(out, k.Object)
	}
	return out
}

// Matches reports whether a subject belongs to this kind: its type tag is
// the kind's object and it has at least one meaning.
func (k Kind) Matches(s client.Subject) bool {
	return s.Object == k.Object && len(s.Data.Meanings) > 0
}

// Convert builds the row for a subject. Meanings are copied verbatim.
func Convert(s client.Subject) Row {
	return Row{
		Identifier: s.Data.Slug,
		Meanings:   s.MeaningTexts(),
	}
}

// Bank is the set of rows one page contributed to one kind.
type Bank struct {
	Kind Kind
	Rows []Row
}

// Partition splits one page of subjects by kind. Banks come back in the
// order of kinds; kinds without matching subjects are left out.
func Partition(subjects []client.Subject, kinds []Kind) []Bank {
	var banks []Bank
	for _, k := range kinds {
		var rows []Row
		for _, s := range subjects {
			if k.Matches(s) {
				rows = append(rows, Convert(s))
			}
		}
		if len(rows) > 0 {
			banks = append(banks, Bank{Kind: k, Rows: rows})
		}
	}
	return banks
}
