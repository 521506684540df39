package frequency

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Confidence signals whether a resolved schedule can be trusted without human
// confirmation. LOW results must never be persisted silently: the pill counts
// they produce feed patient-safety calculations.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Schedule is the structured interpretation of a dosing-frequency sig.
// Times are 24-hour "HH:MM" slots in dose order across the day.
type Schedule struct {
	DosesPerDay  int      `json:"doses_per_day"`
	Times        []string `json:"times"`
	Abbreviation string   `json:"abbreviation"`
}

// Result carries the resolved schedule together with the total pill count it
// implies for the full treatment.
type Result struct {
	Schedule   Schedule
	TotalPills int
	Confidence Confidence
}

const (
	slotMorning   = "09:00"
	slotAfternoon = "14:00"
	slotEvening   = "21:00"
	slotBedtime   = "22:00"
)

// abbreviationTable maps normalized clinical sig notation to a fixed
// schedule. Dash notation ("1-0-1") is handled positionally before this
// lookup and deliberately has no entries here.
var abbreviationTable = map[string]Schedule{
	"QD":          {DosesPerDay: 1, Times: []string{slotMorning}, Abbreviation: "QD"},
	"OD":          {DosesPerDay: 1, Times: []string{slotMorning}, Abbreviation: "QD"},
	"ONCE DAILY":  {DosesPerDay: 1, Times: []string{slotMorning}, Abbreviation: "QD"},
	"DAILY":       {DosesPerDay: 1, Times: []string{slotMorning}, Abbreviation: "QD"},
	"1X/DAY":      {DosesPerDay: 1, Times: []string{slotMorning}, Abbreviation: "QD"},
	"BID":         {DosesPerDay: 2, Times: []string{slotMorning, slotEvening}, Abbreviation: "BID"},
	"BD":          {DosesPerDay: 2, Times: []string{slotMorning, slotEvening}, Abbreviation: "BID"},
	"TWICE DAILY": {DosesPerDay: 2, Times: []string{slotMorning, slotEvening}, Abbreviation: "BID"},
	"2X/DAY":      {DosesPerDay: 2, Times: []string{slotMorning, slotEvening}, Abbreviation: "BID"},
	"TID":         {DosesPerDay: 3, Times: []string{slotMorning, slotAfternoon, slotEvening}, Abbreviation: "TID"},
	"TDS":         {DosesPerDay: 3, Times: []string{slotMorning, slotAfternoon, slotEvening}, Abbreviation: "TID"},
	"THRICE DAILY": {
		DosesPerDay: 3, Times: []string{slotMorning, slotAfternoon, slotEvening}, Abbreviation: "TID"},
	"THREE TIMES DAILY": {
		DosesPerDay: 3, Times: []string{slotMorning, slotAfternoon, slotEvening}, Abbreviation: "TID"},
	"3X/DAY": {DosesPerDay: 3, Times: []string{slotMorning, slotAfternoon, slotEvening}, Abbreviation: "TID"},
	"QID": {DosesPerDay: 4, Times: []string{"09:00", "13:00", "17:00", slotEvening}, Abbreviation: "QID"},
	"FOUR TIMES DAILY": {
		DosesPerDay: 4, Times: []string{"09:00", "13:00", "17:00", slotEvening}, Abbreviation: "QID"},
	"4X/DAY":    {DosesPerDay: 4, Times: []string{"09:00", "13:00", "17:00", slotEvening}, Abbreviation: "QID"},
	"QHS":       {DosesPerDay: 1, Times: []string{slotBedtime}, Abbreviation: "QHS"},
	"HS":        {DosesPerDay: 1, Times: []string{slotBedtime}, Abbreviation: "QHS"},
	"BEDTIME":   {DosesPerDay: 1, Times: []string{slotBedtime}, Abbreviation: "QHS"},
	"AT NIGHT":  {DosesPerDay: 1, Times: []string{slotBedtime}, Abbreviation: "QHS"},
	"QAM":       {DosesPerDay: 1, Times: []string{slotMorning}, Abbreviation: "QAM"},
	"MORNING":   {DosesPerDay: 1, Times: []string{slotMorning}, Abbreviation: "QAM"},
	"Q4H":       {DosesPerDay: 6, Times: []string{"00:00", "04:00", "08:00", "12:00", "16:00", "20:00"}, Abbreviation: "Q4H"},
	"Q6H":       {DosesPerDay: 4, Times: []string{"00:00", "06:00", "12:00", "18:00"}, Abbreviation: "Q6H"},
	"Q8H":       {DosesPerDay: 3, Times: []string{"08:00", "16:00", "00:00"}, Abbreviation: "Q8H"},
	"Q12H":      {DosesPerDay: 2, Times: []string{"08:00", "20:00"}, Abbreviation: "Q12H"},
	"PRN":       {DosesPerDay: 0, Times: []string{}, Abbreviation: "PRN"},
	"AS NEEDED": {DosesPerDay: 0, Times: []string{}, Abbreviation: "PRN"},
	"SOS":       {DosesPerDay: 0, Times: []string{}, Abbreviation: "PRN"},
}

// dashSlots are the positional meanings of the three dash-notation tokens.
var dashSlots = [3]string{slotMorning, slotAfternoon, slotEvening}

var (
	dashPattern         = regexp.MustCompile(`^[0-9]-[0-9]-[0-9]$`)
	leadingDigitPattern = regexp.MustCompile(`^([0-9]+)`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
)

// Parser resolves free-text dosing frequency into a Schedule and total pill
// count. It holds only the fallback slot and is safe for concurrent use.
type Parser struct {
	defaultSlot string
}

func NewParser() *Parser {
	return &Parser{defaultSlot: slotMorning}
}

// Parse resolves frequencyText against, in priority order: positional dash
// notation, the abbreviation table, and a leading-digit heuristic. When
// nothing matches it falls back to one dose per day at the default slot and
// marks the result LOW so a human confirms it before anything is persisted.
//
// TotalPills is always computed from the resolved schedule, never from the
// raw text. PRN sigs have no fixed schedule; their total uses a one-dose-per-
// day baseline and is likewise marked LOW.
func (p *Parser) Parse(frequencyText string, dosagePerIntake, durationDays int) (Result, error) {
	if dosagePerIntake < 1 {
		return Result{}, fmt.Errorf("dosage per intake must be positive, got %d", dosagePerIntake)
	}
	if durationDays < 1 {
		return Result{}, fmt.Errorf("duration days must be positive, got %d", durationDays)
	}

	normalized := normalize(frequencyText)

	if dashPattern.MatchString(normalized) {
		if sched, ok := parseDashNotation(normalized); ok {
			return p.result(sched, ConfidenceHigh, dosagePerIntake, durationDays), nil
		}
		// All-zero tokens ("0-0-0") carry no schedule; treated as unparseable.
		return p.fallback(normalized, dosagePerIntake, durationDays), nil
	}

	if sched, ok := abbreviationTable[normalized]; ok {
		confidence := ConfidenceHigh
		if sched.DosesPerDay == 0 {
			confidence = ConfidenceLow
		}
		return p.result(sched, confidence, dosagePerIntake, durationDays), nil
	}

	if m := leadingDigitPattern.FindStringSubmatch(normalized); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 24 {
			sched := Schedule{
				DosesPerDay:  n,
				Times:        evenSlots(n),
				Abbreviation: fmt.Sprintf("%dX/DAY", n),
			}
			return p.result(sched, ConfidenceHigh, dosagePerIntake, durationDays), nil
		}
	}

	return p.fallback(normalized, dosagePerIntake, durationDays), nil
}

func (p *Parser) result(sched Schedule, confidence Confidence, dosage, duration int) Result {
	return Result{
		Schedule:   sched,
		TotalPills: totalPills(sched, dosage, duration),
		Confidence: confidence,
	}
}

func (p *Parser) fallback(normalized string, dosage, duration int) Result {
	sched := Schedule{
		DosesPerDay:  1,
		Times:        []string{p.defaultSlot},
		Abbreviation: normalized,
	}
	return p.result(sched, ConfidenceLow, dosage, duration)
}

func totalPills(sched Schedule, dosage, duration int) int {
	perDay := sched.DosesPerDay
	if perDay == 0 {
		// PRN baseline: one dose per day.
		perDay = 1
	}
	return dosage * perDay * duration
}

func normalize(text string) string {
	return whitespacePattern.ReplaceAllString(strings.ToUpper(strings.TrimSpace(text)), " ")
}

func parseDashNotation(normalized string) (Schedule, bool) {
	tokens := strings.Split(normalized, "-")
	sched := Schedule{Abbreviation: normalized, Times: []string{}}
	for i, tok := range tokens {
		if tok != "0" {
			sched.DosesPerDay++
			sched.Times = append(sched.Times, dashSlots[i])
		}
	}
	return sched, sched.DosesPerDay > 0
}

// evenSlots spreads n doses evenly across the day, starting at the morning
// slot, in dose order (later doses may wrap past midnight, as with Q8H).
func evenSlots(n int) []string {
	stepMinutes := 24 * 60 / n
	slots := make([]string, 0, n)
	start := 9 * 60
	for i := 0; i < n; i++ {
		m := (start + i*stepMinutes) % (24 * 60)
		slots = append(slots, fmt.Sprintf("%02d:%02d", m/60, m%60))
	}
	return slots
}
