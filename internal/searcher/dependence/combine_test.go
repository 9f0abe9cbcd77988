package dependence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		fn   QTWFunc
		a, b float64
		want float64
	}{
		{QTWAverage, 1, 3, 2},
		{QTWProduct, 2, 3, 6},
		{QTWMin, 2, 3, 2},
		{QTWMax, 2, 3, 3},
		{QTWFunc(0), 2, 3, 1},
		{QTWFunc(7), 2, 3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.fn.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Combine(tt.a, tt.b, tt.fn))
		})
	}
}

func TestCombineIsCommutative(t *testing.T) {
	pairs := [][2]float64{{0, 1}, {0.25, 4}, {1.5, 1.5}, {3, 0.1}, {10, 7}}
	for _, fn := range []QTWFunc{QTWAverage, QTWProduct, QTWMin, QTWMax} {
		for _, p := range pairs {
			assert.Equal(t, Combine(p[0], p[1], fn), Combine(p[1], p[0], fn), "%s(%v, %v)", fn, p[0], p[1])
		}
	}
}

func TestQTWFuncValid(t *testing.T) {
	assert.True(t, QTWAverage.Valid())
	assert.True(t, QTWMax.Valid())
	assert.False(t, QTWFunc(0).Valid())
	assert.False(t, QTWFunc(5).Valid())
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeSequential, ParseMode("SD"))
	assert.Equal(t, ModeSequential, ParseMode("sequential"))
	assert.Equal(t, ModeFull, ParseMode("fd"))
	assert.Equal(t, ModeFull, ParseMode(" Full "))
	assert.Equal(t, ModeUnset, ParseMode(""))
	assert.Equal(t, Mode("XD"), ParseMode("XD"))
	assert.False(t, ParseMode("XD").Valid())
	assert.False(t, ModeUnset.Valid())
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 2, s.NgramLength)
	assert.Equal(t, QTWAverage, s.QTW)
	assert.Equal(t, 1.0, s.WeightUnigram)
	assert.Equal(t, 1.0, s.WeightOrdered)
	assert.Equal(t, 1.0, s.WeightUnordered)
	assert.Equal(t, ModeUnset, s.Mode)
	assert.True(t, s.SplitSynonyms)
}

func TestSettingsNormalized(t *testing.T) {
	s := DefaultSettings()
	s.NgramLength = 0
	assert.Equal(t, DefaultNgramLength, s.normalized().NgramLength)
	s.NgramLength = 5
	assert.Equal(t, 5, s.normalized().NgramLength)
}

func TestSettingsHolder(t *testing.T) {
	h := NewSettingsHolder(DefaultSettings())
	assert.Equal(t, ModeUnset, h.Settings().Mode)

	next := DefaultSettings()
	next.Mode = ModeFull
	h.Store(next)
	assert.Equal(t, ModeFull, h.Settings().Mode)
}

func TestSettingsFromConfig(t *testing.T) {
	s := SettingsFromConfig(config.ProximityConfig{
		DependencyType: "fd",
		NgramLength:    5,
		WT:             0.8,
		WO:             0.1,
		WU:             0.2,
		QTWFnID:        3,
		SplitSynonyms:  false,
	})
	assert.Equal(t, Settings{
		Mode:            ModeFull,
		NgramLength:     5,
		QTW:             QTWMin,
		WeightUnigram:   0.8,
		WeightOrdered:   0.1,
		WeightUnordered: 0.2,
	}, s)
}

func TestSettingsFingerprint(t *testing.T) {
	a := DefaultSettings()
	b := DefaultSettings()
	b.NgramLength = 0
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "normalised settings share a fingerprint")

	b.Mode = ModeFull
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, ":2:1:1:1:1:true", a.Fingerprint())
}
