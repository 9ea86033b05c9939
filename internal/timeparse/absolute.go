package timeparse

import (
	"regexp"
	"time"

	"github.com/djlord-it/easy-remind/internal/domain"
)

const absoluteLayout = "2006-01-02 15:04"

var absoluteRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}`)

// absoluteGrammar matches "YYYY-MM-DD HH:MM" (24-hour) at the start of
// input, interpreted as wall-clock time in the default zone.
type absoluteGrammar struct{}

func (absoluteGrammar) match(text string, now time.Time, loc *time.Location) (matchResult, bool, error) {
	m := absoluteRe.FindString(text)
	if m == "" {
		return matchResult{}, false, nil
	}

	target, err := time.ParseInLocation(absoluteLayout, m, loc)
	if err != nil {
		// Shape matched but the values are invalid ("2025-13-40 25:61").
		return matchResult{}, false, &ParseError{Reason: ReasonNoMatch}
	}

	return matchResult{
		target: target,
		end:    len(m),
		source: domain.SourceAbsolute,
	}, true, nil
}
