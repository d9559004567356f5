package link

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	paramTarget = "to"
	paramLabel  = "name"
)

// Link is a decoded countdown link. A nil Target means no countdown is configured.
type Link struct {
	Label  string
	Target *time.Time
}

func (l Link) HasTarget() bool {
	return l.Target != nil
}

// Title is the display title for the countdown.
func (l Link) Title() string {
	if l.Label == "" {
		return "Countdown"
	}
	return l.Label + " countdown"
}

type DecodeError struct {
	Param string
	Raw   string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid %q parameter %q: %v", e.Param, e.Raw, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var errEmptyValue = errors.New("empty value")

// Encode builds the query string for a countdown link. The name parameter is
// omitted when label is empty.
func Encode(label string, target time.Time) string {
	var b strings.Builder
	b.WriteString(paramTarget)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(target.Format(time.RFC3339Nano)))
	if label != "" {
		b.WriteByte('&')
		b.WriteString(paramLabel)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(label))
	}
	return b.String()
}

// URL returns the full shareable link rooted at base.
func URL(base, label string, target time.Time) string {
	return strings.TrimRight(base, "/") + "/?" + Encode(label, target)
}

func Decode(rawQuery string) (Link, error) {
	values, queryErr := url.ParseQuery(strings.TrimPrefix(rawQuery, "?"))

	l, err := DecodeValues(values)
	if err != nil {
		return Link{}, err
	}

	if queryErr != nil && !l.HasTarget() {
		return Link{}, &DecodeError{Param: "query", Raw: rawQuery, Err: queryErr}
	}

	return l, nil
}

func DecodeValues(values url.Values) (Link, error) {
	l := Link{Label: values.Get(paramLabel)}

	if !values.Has(paramTarget) {
		return l, nil
	}

	raw := values.Get(paramTarget)
	if raw == "" {
		return Link{}, &DecodeError{Param: paramTarget, Raw: raw, Err: errEmptyValue}
	}

	target, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return Link{}, &DecodeError{Param: paramTarget, Raw: raw, Err: err}
	}

	l.Target = &target
	return l, nil
}
