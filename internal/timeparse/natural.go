package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// defaultNaturalHour is used when a phrase names a day but no clock time
// ("friday", "may 18").
const defaultNaturalHour = 9

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var clockRe = regexp.MustCompile(`^(\d{1,2})(?::(\d{2}))?(am|pm)?$`)

// naturalGrammar matches free-text date phrases: "tomorrow 3pm", "friday",
// "may 18 10am", "15:30". Ambiguous phrases (bare weekday, month-day
// without a year, clock time alone) resolve to the next future occurrence,
// never the past. "today"/"tomorrow" are explicit and do not roll forward.
type naturalGrammar struct{}

func (naturalGrammar) match(text string, now time.Time, loc *time.Location) (matchResult, bool, error) {
	local := now.In(loc)
	sc := scanner{text: text}

	tok, ok := sc.peek()
	if !ok {
		return matchResult{}, false, nil
	}
	word := strings.ToLower(tok)

	var (
		year     = local.Year()
		month    = local.Month()
		day      = local.Day()
		rollUnit rollRule
		haveDay  bool
	)

	switch {
	case word == "today":
		sc.consume()
		haveDay = true

	case word == "tomorrow":
		sc.consume()
		tm := local.AddDate(0, 0, 1)
		year, month, day = tm.Year(), tm.Month(), tm.Day()
		haveDay = true

	default:
		if wd, isWeekday := weekdays[word]; isWeekday {
			sc.consume()
			ahead := (int(wd) - int(local.Weekday()) + 7) % 7
			tm := local.AddDate(0, 0, ahead)
			year, month, day = tm.Year(), tm.Month(), tm.Day()
			haveDay = true
			rollUnit = rollWeek
		} else if mo, isMonth := months[word]; isMonth {
			next, hasNext := sc.peekAhead(1)
			dom, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(next), ordinalSuffix(next)))
			if !hasNext || err != nil || dom < 1 || dom > 31 {
				return matchResult{}, false, nil
			}
			sc.consume()
			sc.consume()
			month, day = mo, dom
			haveDay = true
			rollUnit = rollYear
		}
	}

	hour, minute := defaultNaturalHour, 0
	haveTime := false
	if tok, ok := sc.peek(); ok {
		if h, m, matched := parseClock(strings.ToLower(tok)); matched {
			sc.consume()
			hour, minute = h, m
			haveTime = true
		}
	}

	if !haveDay && !haveTime {
		return matchResult{}, false, nil
	}
	if !haveDay {
		rollUnit = rollDay
	}

	target := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if !target.After(now) {
		switch rollUnit {
		case rollDay:
			target = target.AddDate(0, 0, 1)
		case rollWeek:
			target = target.AddDate(0, 0, 7)
		case rollYear:
			target = target.AddDate(1, 0, 0)
		}
	}

	return matchResult{
		target: target,
		end:    sc.offset,
		source: domain.SourceNatural,
	}, true, nil
}

type rollRule int

const (
	rollNone rollRule = iota
	rollDay
	rollWeek
	rollYear
)

// parseClock accepts "3pm", "10:30am", "15:04". A bare hour requires an
// am/pm suffix so that plain numbers are not read as times.
func parseClock(s string) (hour, minute int, ok bool) {
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}

	hour, _ = strconv.Atoi(m[1])
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	meridiem := m[3]

	if meridiem == "" {
		if m[2] == "" || hour > 23 {
			return 0, 0, false
		}
	} else {
		if hour < 1 || hour > 12 {
			return 0, 0, false
		}
		if meridiem == "pm" && hour != 12 {
			hour += 12
		}
		if meridiem == "am" && hour == 12 {
			hour = 0
		}
	}
	if minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// ordinalSuffix returns the trailing "st"/"nd"/"rd"/"th" of a day token
// like "18th", or "" if absent.
func ordinalSuffix(s string) string {
	lower := strings.ToLower(s)
	for _, suf := range []string{"st", "nd", "rd", "th"} {
		if strings.HasSuffix(lower, suf) && len(lower) > len(suf) {
			return suf
		}
	}
	return ""
}

// scanner walks whitespace-delimited tokens while tracking the offset just
// past the last consumed token, so the parser can report prefix length.
type scanner struct {
	text   string
	offset int
}

func (s *scanner) peek() (string, bool) {
	return s.peekAhead(0)
}

func (s *scanner) peekAhead(n int) (string, bool) {
	rest := s.text[s.offset:]
	fields := strings.Fields(rest)
	if n >= len(fields) {
		return "", false
	}
	return fields[n], true
}

func (s *scanner) consume() {
	rest := s.text[s.offset:]
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\t') {
		i++
	}
	for i < len(rest) && rest[i] != ' ' && rest[i] != '\t' {
		i++
	}
	s.offset += i
}
