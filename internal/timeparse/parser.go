// Package timeparse resolves user-supplied time expressions into absolute
// instants. Grammars are independent matchers tried in a fixed precedence
// order; the first one that claims the input prefix wins.
package timeparse

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/djlord-it/easy-remind/internal/domain"
)

// DefaultMessage is used when the input contains no free text after the
// time expression.
const DefaultMessage = "Reminder!"

type Reason string

const (
	ReasonNoMatch          Reason = "no_match"
	ReasonZeroDuration     Reason = "zero_duration"
	ReasonPastInstant      Reason = "past_instant"
	ReasonBeyondMaxHorizon Reason = "beyond_max_horizon"
)

// ParseError reports why an expression was rejected. The dispatcher maps
// each reason to a distinct user-facing message; raw input is never echoed.
type ParseError struct {
	Reason Reason
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("time expression rejected: %s", e.Reason)
}

// ReasonOf extracts the rejection reason from err, if it is a ParseError.
func ReasonOf(err error) (Reason, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Reason, true
	}
	return "", false
}

// matchResult is a successful grammar match: the resolved target instant and
// the length of the consumed input prefix.
type matchResult struct {
	target time.Time
	end    int
	source domain.SourceFormat
}

// grammar attempts to match a prefix of text. A grammar that claims the
// input shape but finds it invalid returns an error; (zero, false, nil)
// means the grammar simply does not apply.
type grammar interface {
	match(text string, now time.Time, loc *time.Location) (matchResult, bool, error)
}

type Parser struct {
	grammars []grammar
}

// NewParser returns a parser accepting absolute datetimes and increment
// expressions. Natural-language phrases are opt-in via WithNaturalLanguage.
func NewParser() *Parser {
	return &Parser{
		grammars: []grammar{
			absoluteGrammar{},
			incrementGrammar{},
		},
	}
}

// WithNaturalLanguage appends the natural-language grammar. It is tried
// last: an input whose first token is a valid increment expression never
// reaches it.
func (p *Parser) WithNaturalLanguage() *Parser {
	p.grammars = append(p.grammars, naturalGrammar{})
	return p
}

// Parse resolves text against now in loc. The returned reminder's target
// instant is strictly after now and normalized to UTC; the remainder of the
// input after the matched prefix becomes the message.
func (p *Parser) Parse(text string, now time.Time, loc *time.Location) (domain.ResolvedReminder, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.ResolvedReminder{}, &ParseError{Reason: ReasonNoMatch}
	}

	for _, g := range p.grammars {
		m, ok, err := g.match(trimmed, now, loc)
		if err != nil {
			return domain.ResolvedReminder{}, err
		}
		if !ok {
			continue
		}

		// Past or present instants are rejected, never clamped.
		if !m.target.After(now) {
			return domain.ResolvedReminder{}, &ParseError{Reason: ReasonPastInstant}
		}

		message := strings.TrimSpace(trimmed[m.end:])
		if message == "" {
			message = DefaultMessage
		}

		return domain.ResolvedReminder{
			TargetAt: m.target.UTC(),
			Message:  message,
			Source:   m.source,
		}, nil
	}

	return domain.ResolvedReminder{}, &ParseError{Reason: ReasonNoMatch}
}

// firstToken returns the first whitespace-delimited token of s and the
// offset just past it.
func firstToken(s string) (string, int) {
	start := 0
	for start < len(s) && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	end := start
	for end < len(s) && s[end] != ' ' && s[end] != '\t' {
		end++
	}
	return s[start:end], end
}
