package frequency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AbbreviationTable(t *testing.T) {
	p := NewParser()

	cases := []struct {
		text        string
		dosage      int
		duration    int
		wantPerDay  int
		wantTotal   int
		wantTimes   []string
		wantAbbrev  string
		aliasChecks []string
	}{
		{
			text: "BID", dosage: 1, duration: 10,
			wantPerDay: 2, wantTotal: 20,
			wantTimes: []string{"09:00", "21:00"}, wantAbbrev: "BID",
			aliasChecks: []string{"bid", " bid ", "Twice Daily", "2x/day", "BD"},
		},
		{
			text: "TID", dosage: 2, duration: 5,
			wantPerDay: 3, wantTotal: 30,
			wantTimes: []string{"09:00", "14:00", "21:00"}, wantAbbrev: "TID",
			aliasChecks: []string{"three  times   daily", "3X/DAY"},
		},
		{
			text: "QD", dosage: 1, duration: 7,
			wantPerDay: 1, wantTotal: 7,
			wantTimes: []string{"09:00"}, wantAbbrev: "QD",
			aliasChecks: []string{"once daily", "OD", "1X/DAY"},
		},
		{
			text: "QID", dosage: 1, duration: 3,
			wantPerDay: 4, wantTotal: 12,
			wantTimes: []string{"09:00", "13:00", "17:00", "21:00"}, wantAbbrev: "QID",
		},
		{
			text: "QHS", dosage: 1, duration: 14,
			wantPerDay: 1, wantTotal: 14,
			wantTimes: []string{"22:00"}, wantAbbrev: "QHS",
			aliasChecks: []string{"bedtime", "at night", "HS"},
		},
		{
			text: "Q6H", dosage: 1, duration: 2,
			wantPerDay: 4, wantTotal: 8,
			wantTimes: []string{"00:00", "06:00", "12:00", "18:00"}, wantAbbrev: "Q6H",
		},
		{
			text: "Q8H", dosage: 1, duration: 4,
			wantPerDay: 3, wantTotal: 12,
			wantTimes: []string{"08:00", "16:00", "00:00"}, wantAbbrev: "Q8H",
		},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			res, err := p.Parse(tc.text, tc.dosage, tc.duration)
			require.NoError(t, err)
			assert.Equal(t, tc.wantPerDay, res.Schedule.DosesPerDay)
			assert.Equal(t, tc.wantTimes, res.Schedule.Times)
			assert.Equal(t, tc.wantAbbrev, res.Schedule.Abbreviation)
			assert.Equal(t, tc.wantTotal, res.TotalPills)
			assert.Equal(t, ConfidenceHigh, res.Confidence)

			for _, alias := range tc.aliasChecks {
				aliasRes, err := p.Parse(alias, tc.dosage, tc.duration)
				require.NoError(t, err)
				assert.Equal(t, res.Schedule, aliasRes.Schedule, "alias %q", alias)
			}
		})
	}
}

func TestParse_DashNotation(t *testing.T) {
	p := NewParser()

	cases := []struct {
		text       string
		wantPerDay int
		wantTimes  []string
	}{
		{"1-0-1", 2, []string{"09:00", "21:00"}},
		{"1-1-1", 3, []string{"09:00", "14:00", "21:00"}},
		{"1-0-0", 1, []string{"09:00"}},
		{"0-1-0", 1, []string{"14:00"}},
		{"0-0-1", 1, []string{"21:00"}},
		{"0-1-1", 2, []string{"14:00", "21:00"}},
		// Each nonzero token is one dose slot regardless of its digit.
		{"2-0-0", 1, []string{"09:00"}},
		{"2-0-2", 2, []string{"09:00", "21:00"}},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			res, err := p.Parse(tc.text, 1, 10)
			require.NoError(t, err)
			assert.Equal(t, tc.wantPerDay, res.Schedule.DosesPerDay)
			assert.Equal(t, tc.wantTimes, res.Schedule.Times)
			assert.Equal(t, tc.wantPerDay*10, res.TotalPills)
			assert.Equal(t, ConfidenceHigh, res.Confidence)
		})
	}
}

func TestParse_DashNotationAllZero(t *testing.T) {
	res, err := NewParser().Parse("0-0-0", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, 1, res.Schedule.DosesPerDay)
}

func TestParse_LeadingDigitFallback(t *testing.T) {
	p := NewParser()

	res, err := p.Parse("2 TABLETS DAILY", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Schedule.DosesPerDay)
	assert.Equal(t, []string{"09:00", "21:00"}, res.Schedule.Times)
	assert.Equal(t, 20, res.TotalPills)
	assert.Equal(t, ConfidenceHigh, res.Confidence)

	res, err = p.Parse("6 doses", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Schedule.DosesPerDay)
	assert.Len(t, res.Schedule.Times, 6)
	// Evenly spaced: four hours apart starting at the morning slot.
	assert.Equal(t, []string{"09:00", "13:00", "17:00", "21:00", "01:00", "05:00"}, res.Schedule.Times)
}

func TestParse_UnrecognizedFallsBackLow(t *testing.T) {
	res, err := NewParser().Parse("XYZ", 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Schedule.DosesPerDay)
	assert.Equal(t, []string{"09:00"}, res.Schedule.Times)
	assert.Equal(t, 5, res.TotalPills)
	assert.Equal(t, ConfidenceLow, res.Confidence)

	res, err = NewParser().Parse("", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceLow, res.Confidence)
	assert.Equal(t, 6, res.TotalPills)
}

func TestParse_PRN(t *testing.T) {
	p := NewParser()

	for _, text := range []string{"PRN", "as needed", "SOS"} {
		res, err := p.Parse(text, 2, 10)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Schedule.DosesPerDay, text)
		assert.Empty(t, res.Schedule.Times)
		// One-dose-per-day baseline for inventory; cannot be trusted blindly.
		assert.Equal(t, 20, res.TotalPills)
		assert.Equal(t, ConfidenceLow, res.Confidence)
	}
}

func TestParse_DashNotationTakesPriorityOverDigitFallback(t *testing.T) {
	// "1-0-1" starts with a digit; the positional rule must win over the
	// leading-digit heuristic (which would read one dose per day).
	res, err := NewParser().Parse("1-0-1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Schedule.DosesPerDay)
	assert.Equal(t, 20, res.TotalPills)
}

func TestParse_InvalidInputs(t *testing.T) {
	p := NewParser()

	_, err := p.Parse("BID", 0, 10)
	assert.Error(t, err)

	_, err = p.Parse("BID", 1, 0)
	assert.Error(t, err)

	_, err = p.Parse("BID", -1, -1)
	assert.Error(t, err)
}
