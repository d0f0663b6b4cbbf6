package assemble

import (
	"testing"

	"drug-crossref/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record() common.DrugRecord {
	return common.DrugRecord{
		Sheet:        "2024",
		Row:          3,
		ApprovalDate: "2024/3/26",
		TradeName:    "スリンダ錠28",
		Company:      "あすか製薬㈱",
		Ingredient:   "ドロスピレノン",
	}
}

func TestRowsPerMatchedEntry(t *testing.T) {
	entries := []common.RegistryEntry{
		{Ingredient: "Drospirenone", ProductName: "A", LicenseNumber: "1"},
		{Ingredient: "Drospirenone", ProductName: "B", LicenseNumber: "2"},
		{Ingredient: "Drospirenone", ProductName: "C", LicenseNumber: "3"},
	}
	item := Item{
		Record:     record(),
		Ingredient: common.ResolvedName{RawText: "ドロスピレノン", ResolvedText: "Drospirenone", Source: common.SourceDictionary},
		TradeName:  common.Unresolved("スリンダ錠28"),
		Match:      common.MatchResult{QueryIngredient: "Drospirenone", Matched: true, RegistryEntries: entries, Method: common.MatchExact},
	}

	rows := Rows(item)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, "スリンダ錠28", row.TradeName)
		assert.Equal(t, "あすか製薬㈱", row.Company)
		assert.Equal(t, "Drospirenone", row.IngredientEN)
		assert.Equal(t, StatusMarketed, row.TWStatus)
		assert.Equal(t, entries[i].LicenseNumber, row.TWLicenseNumber)
		assert.Nil(t, row.SimilarityScore)
	}
}

func TestSentinelRowWhenUnmatched(t *testing.T) {
	score := 42.0
	item := Item{
		Record:     record(),
		Ingredient: common.Unresolved("ドロスピレノン"),
		Match:      common.MatchResult{QueryIngredient: "ドロスピレノン", SimilarityScore: &score, Method: common.MatchNone},
	}

	rows := Rows(item)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, NotMarketed, row.TWStatus)
	assert.Equal(t, NotMarketed, row.TWIngredient)
	assert.Equal(t, NotMarketed, row.TWLicenseNumber)
	assert.Equal(t, "unresolved", row.NameSource)
	assert.Equal(t, "42.0", Values(row)[16])
}

func TestAssembleAndValues(t *testing.T) {
	matched := Item{Record: record(), Match: common.MatchResult{Matched: true, Method: common.MatchExact,
		RegistryEntries: []common.RegistryEntry{{Ingredient: "X"}, {Ingredient: "X"}}}}
	unmatched := Item{Record: record(), Match: common.MatchResult{Method: common.MatchNone}}

	rows := Assemble([]Item{matched, unmatched})
	assert.Len(t, rows, 3)

	values := Values(rows[0])
	assert.Len(t, values, len(Columns))
	assert.Equal(t, "2024", values[0])
	assert.Equal(t, "3", values[1])
	assert.Equal(t, "", values[16])
}

func TestAssembleEmpty(t *testing.T) {
	rows := Assemble(nil)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}
