package timeparse

import (
	"regexp"
	"strconv"
	"time"

	"github.com/djlord-it/easy-remind/internal/domain"
)

var (
	incrementTokenRe = regexp.MustCompile(`^(\d+[dhms])+$`)
	incrementUnitRe  = regexp.MustCompile(`(\d+)([dhms])`)
)

// maxIncrementSeconds bounds the summed delay at one hundred years. Counts
// past this are rejected outright; multiplying them into nanoseconds would
// wrap int64 and resolve to a nonsense near-term instant.
const maxIncrementSeconds = int64(100*365*24) * 3600

var unitSeconds = map[string]int64{
	"d": 86400,
	"h": 3600,
	"m": 60,
	"s": 1,
}

// incrementGrammar matches relative delays of concatenated unit tokens
// ("1h30m", "2d", "45s", "30m1h"). Units may appear in any order; repeated
// units sum. The whole first whitespace-delimited token must match, so that
// numeric tokens like "10m" are never handed to the natural-language grammar.
type incrementGrammar struct{}

func (incrementGrammar) match(text string, now time.Time, loc *time.Location) (matchResult, bool, error) {
	token, end := firstToken(text)
	if !incrementTokenRe.MatchString(token) {
		return matchResult{}, false, nil
	}

	var totalSecs int64
	for _, unit := range incrementUnitRe.FindAllStringSubmatch(token, -1) {
		n, err := strconv.ParseInt(unit[1], 10, 64)
		if err != nil {
			// The regexp guarantees digits, so the only failure is a
			// count too large for int64.
			return matchResult{}, false, &ParseError{Reason: ReasonBeyondMaxHorizon}
		}
		secs := unitSeconds[unit[2]]
		if n > maxIncrementSeconds/secs {
			return matchResult{}, false, &ParseError{Reason: ReasonBeyondMaxHorizon}
		}
		totalSecs += n * secs
		if totalSecs > maxIncrementSeconds {
			return matchResult{}, false, &ParseError{Reason: ReasonBeyondMaxHorizon}
		}
	}

	if totalSecs == 0 {
		return matchResult{}, false, &ParseError{Reason: ReasonZeroDuration}
	}
	total := time.Duration(totalSecs) * time.Second

	return matchResult{
		target: now.Add(total),
		end:    end,
		source: domain.SourceIncrement,
	}, true, nil
}
