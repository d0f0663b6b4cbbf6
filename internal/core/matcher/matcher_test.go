package matcher

import (
	"fmt"
	"testing"

	"drug-crossref/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(ingredient, license string) common.RegistryEntry {
	return common.RegistryEntry{
		Ingredient:    ingredient,
		ProductName:   "品名 " + license,
		DosageForm:    "錠劑",
		Manufacturer:  "製造廠",
		LicenseNumber: license,
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "drospirenone", Normalize("  Drospirenone "))
	assert.Equal(t, "iptacopan hcl", Normalize("Ｉｐｔａｃｏｐａｎ　 HCl"))
	assert.Equal(t, "", Normalize(" \t "))
}

func TestExactMatchAfterNormalization(t *testing.T) {
	reg := NewRegistry([]common.RegistryEntry{
		entry("drospirenone ", "衛部藥輸字第000001號"),
		entry("Ethinylestradiol", "衛部藥輸字第000002號"),
	})
	m := New(reg, DefaultThreshold, nil)

	got := m.Match("Drospirenone")
	require.True(t, got.Matched)
	assert.Equal(t, common.MatchExact, got.Method)
	assert.Nil(t, got.SimilarityScore)
	require.Len(t, got.RegistryEntries, 1)
	assert.Equal(t, "衛部藥輸字第000001號", got.RegistryEntries[0].LicenseNumber)
	assert.Equal(t, "drospirenone ", got.MatchedIngredient)
}

func TestExactMatchReturnsAllEntriesInOrder(t *testing.T) {
	reg := NewRegistry([]common.RegistryEntry{
		entry("Faricimab", "A"),
		entry("Other", "B"),
		entry("FARICIMAB", "C"),
		entry("faricimab", "D"),
	})
	got := New(reg, DefaultThreshold, nil).Match("Faricimab")
	require.True(t, got.Matched)
	var licenses []string
	for _, e := range got.RegistryEntries {
		licenses = append(licenses, e.LicenseNumber)
	}
	assert.Equal(t, []string{"A", "C", "D"}, licenses)
}

func TestFuzzyThreshold(t *testing.T) {
	reg := NewRegistry([]common.RegistryEntry{
		entry("Iptacopan Hydrochloride", "X1"),
		entry("Iptacopan Hydrochloride", "X2"),
		entry("Sotorasib", "Y1"),
	})
	scorer := func(a, b string) float64 {
		if a == "iptacopan hcl" && b == "iptacopan hydrochloride" {
			return 82
		}
		return 10
	}

	m := New(reg, 80, scorer)
	got := m.Match("Iptacopan HCl")
	require.True(t, got.Matched)
	assert.Equal(t, common.MatchFuzzy, got.Method)
	require.NotNil(t, got.SimilarityScore)
	assert.Equal(t, 82.0, *got.SimilarityScore)
	assert.Len(t, got.RegistryEntries, 2)

	got = m.MatchWithThreshold("Iptacopan HCl", 85)
	assert.False(t, got.Matched)
	assert.Empty(t, got.RegistryEntries)
	assert.Equal(t, common.MatchNone, got.Method)
	require.NotNil(t, got.SimilarityScore)
	assert.Equal(t, 82.0, *got.SimilarityScore)
}

func TestFuzzyTieBreakPrefersSmallestKey(t *testing.T) {
	reg := NewRegistry([]common.RegistryEntry{
		entry("zeta", "Z"),
		entry("alpha", "A"),
		entry("mid", "M"),
	})
	m := New(reg, 50, func(a, b string) float64 {
		if b == "mid" {
			return 40
		}
		return 90
	})

	got := m.Match("query")
	require.True(t, got.Matched)
	assert.Equal(t, "alpha", got.MatchedIngredient)
}

func TestNoFuzzyWhenExactExists(t *testing.T) {
	calls := 0
	reg := NewRegistry([]common.RegistryEntry{entry("Drospirenone", "A"), entry("Drospirenona", "B")})
	m := New(reg, 80, func(a, b string) float64 {
		calls++
		return 100
	})

	got := m.Match("drospirenone")
	assert.Equal(t, common.MatchExact, got.Method)
	assert.Zero(t, calls)
}

func TestExactMatchProperty(t *testing.T) {
	var entries []common.RegistryEntry
	for i := 0; i < 30; i++ {
		entries = append(entries, entry(fmt.Sprintf("  Ingredient   %c%d ", 'A'+rune(i%26), i), fmt.Sprint(i)))
	}
	m := New(NewRegistry(entries), DefaultThreshold, nil)

	for _, e := range entries {
		query := Normalize(e.Ingredient)
		got := m.Match(query)
		require.True(t, got.Matched, query)
		assert.Nil(t, got.SimilarityScore)
		assert.Contains(t, got.RegistryEntries, e)
	}
}

func TestEmptyInputs(t *testing.T) {
	m := New(nil, DefaultThreshold, nil)
	got := m.Match("Drospirenone")
	assert.False(t, got.Matched)
	assert.Nil(t, got.SimilarityScore)

	m = New(NewRegistry([]common.RegistryEntry{entry("A", "1")}), DefaultThreshold, nil)
	got = m.Match("   ")
	assert.False(t, got.Matched)
	assert.Equal(t, common.MatchNone, got.Method)
}

func TestLevenshteinRatio(t *testing.T) {
	assert.Equal(t, 100.0, LevenshteinRatio("abc", "abc"))
	assert.Equal(t, 0.0, LevenshteinRatio("abc", "xyz"))
	assert.InDelta(t, 75.0, LevenshteinRatio("abcd", "abce"), 0.001)
	// 以字元而非位元組計算
	assert.InDelta(t, 50.0, LevenshteinRatio("成分", "成名"), 0.001)
}
