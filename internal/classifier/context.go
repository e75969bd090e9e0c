// Package classifier scores how well-timed a wallet's entry into a token was,
// given the price action before and after the entry.
package classifier

// BeforeContext characterizes price movement in the window preceding an entry.
type BeforeContext string

// AfterContext characterizes price movement in the window following an entry.
type AfterContext string

const (
	BeforePumpedTo BeforeContext = "pumped_to"
	BeforeRoseTo   BeforeContext = "rose_to"
	BeforeFlat     BeforeContext = "flat"
	BeforeFellTo   BeforeContext = "fell_to"
	BeforeDumpedTo BeforeContext = "dumped_to"
)

const (
	AfterMoon AfterContext = "moon"
	AfterPump AfterContext = "pump"
	AfterFlat AfterContext = "flat"
	AfterDip  AfterContext = "dip"
	AfterDump AfterContext = "dump"
)

// Movement thresholds in percent.
const (
	StrongMovePct = 25.0
	MildMovePct   = 10.0
)

// Score is an entry score in [MinScore, MaxScore].
type Score int

const (
	MinScore Score = -2
	MaxScore Score = 2
)

// scoreMatrix maps (before, after) to a score. Combinations not listed score 0.
// Buying into weakness or a quiet market ahead of a rally scores highest;
// chasing a pump into a dump scores lowest.
var scoreMatrix = map[BeforeContext]map[AfterContext]Score{
	BeforeDumpedTo: {AfterMoon: 2, AfterPump: 1, AfterDump: -1},
	BeforeFellTo:   {AfterMoon: 2, AfterPump: 1, AfterDump: -1},
	BeforeFlat:     {AfterMoon: 2, AfterPump: 1, AfterDip: -1, AfterDump: -1},
	BeforeRoseTo:   {AfterMoon: 1, AfterDip: -1, AfterDump: -2},
	BeforePumpedTo: {AfterFlat: -1, AfterDip: -2, AfterDump: -2},
}

// Lookup returns the matrix score for a (before, after) pair.
func Lookup(before BeforeContext, after AfterContext) Score {
	row, ok := scoreMatrix[before]
	if !ok {
		return 0
	}
	return row[after]
}

// classifyBefore discretizes the move into the entry. rise and fall are percentages;
// whichever is larger decides the direction.
func classifyBefore(risePct, fallPct float64) BeforeContext {
	if risePct >= fallPct {
		switch {
		case risePct >= StrongMovePct:
			return BeforePumpedTo
		case risePct >= MildMovePct:
			return BeforeRoseTo
		}
		return BeforeFlat
	}
	switch {
	case fallPct >= StrongMovePct:
		return BeforeDumpedTo
	case fallPct >= MildMovePct:
		return BeforeFellTo
	}
	return BeforeFlat
}

// classifyAfter discretizes the move following the entry.
func classifyAfter(upPct, downPct float64) AfterContext {
	if upPct >= downPct {
		switch {
		case upPct >= StrongMovePct:
			return AfterMoon
		case upPct >= MildMovePct:
			return AfterPump
		}
		return AfterFlat
	}
	switch {
	case downPct >= StrongMovePct:
		return AfterDump
	case downPct >= MildMovePct:
		return AfterDip
	}
	return AfterFlat
}
