package dependence

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/proximity-search/pkg/config"
)

// Mode selects which term pairs contribute proximity evidence.
type Mode string

const (
	ModeUnset Mode = ""
	// ModeSequential scores adjacent query terms, in query order.
	ModeSequential Mode = "SD"
	// ModeFull scores every pair of query terms, in any order.
	ModeFull Mode = "FD"
)

// ParseMode maps configuration values onto a Mode. Unknown values are kept
// verbatim so they can be reported as invalid.
func ParseMode(s string) Mode {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return ModeUnset
	case "SD", "SEQUENTIAL":
		return ModeSequential
	case "FD", "FULL":
		return ModeFull
	default:
		return Mode(s)
	}
}

func (m Mode) Valid() bool {
	return m == ModeSequential || m == ModeFull
}

const (
	DefaultNgramLength = 2
	DefaultWeight      = 1.0
)

// Settings is the per-call snapshot of proximity configuration.
type Settings struct {
	Mode        Mode
	NgramLength int
	QTW         QTWFunc
	// WeightUnigram (w_t) scales the incoming scores of every document.
	WeightUnigram float64
	// WeightOrdered (w_o) scales sequential-dependence evidence.
	WeightOrdered float64
	// WeightUnordered (w_u) scales full-dependence evidence.
	WeightUnordered float64
	// SplitSynonyms gives every alternative of a synonym group its own slot in
	// the phrase instead of merging their postings.
	SplitSynonyms bool
}

func DefaultSettings() Settings {
	return Settings{
		Mode:            ModeUnset,
		NgramLength:     DefaultNgramLength,
		QTW:             QTWAverage,
		WeightUnigram:   DefaultWeight,
		WeightOrdered:   DefaultWeight,
		WeightUnordered: DefaultWeight,
		SplitSynonyms:   true,
	}
}

// SettingsFromConfig converts the proximity section of the YAML config.
func SettingsFromConfig(c config.ProximityConfig) Settings {
	return Settings{
		Mode:            ParseMode(c.DependencyType),
		NgramLength:     c.NgramLength,
		QTW:             QTWFunc(c.QTWFnID),
		WeightUnigram:   c.WT,
		WeightOrdered:   c.WO,
		WeightUnordered: c.WU,
		SplitSynonyms:   c.SplitSynonyms,
	}
}

func (s Settings) normalized() Settings {
	if s.NgramLength < 1 {
		s.NgramLength = DefaultNgramLength
	}
	return s
}

// SettingsSource is consulted once at the start of every pass.
type SettingsSource interface {
	Settings() Settings
}

// Static always returns the same snapshot.
type Static Settings

func (s Static) Settings() Settings {
	return Settings(s)
}

// SettingsHolder lets configuration change between passes without locking
// the readers.
type SettingsHolder struct {
	current atomic.Pointer[Settings]
}

func NewSettingsHolder(s Settings) *SettingsHolder {
	h := &SettingsHolder{}
	h.Store(s)
	return h
}

func (h *SettingsHolder) Settings() Settings {
	return *h.current.Load()
}

func (h *SettingsHolder) Store(s Settings) {
	h.current.Store(&s)
}

// Fingerprint identifies the settings in cache keys. Two snapshots with the
// same fingerprint score identically.
func (s Settings) Fingerprint() string {
	s = s.normalized()
	return fmt.Sprintf("%s:%d:%d:%g:%g:%g:%t",
		s.Mode, s.NgramLength, int(s.QTW), s.WeightUnigram, s.WeightOrdered, s.WeightUnordered, s.SplitSynonyms)
}
