package service

import (
	"iter"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/tgardela/event-manager/internal/model"
)

// Predicate reports whether an event matches one filter criterion.
type Predicate func(e *model.Event) bool

// OnDate matches events whose start falls on the UTC calendar day of day.
func OnDate(day time.Time) Predicate {
	y, m, d := day.UTC().Date()
	return func(e *model.Event) bool {
		ey, em, ed := e.StartTime.UTC().Date()
		return ey == y && em == m && ed == d
	}
}

// StartedBefore matches events that started before now.
func StartedBefore(now time.Time) Predicate {
	return func(e *model.Event) bool {
		return e.StartTime.Before(now)
	}
}

// StartsAfter matches events that start after now.
func StartsAfter(now time.Time) Predicate {
	return func(e *model.Event) bool {
		return e.StartTime.After(now)
	}
}

// Predicates turns the set criteria of f into predicates.
func Predicates(f model.EventFilter, now time.Time) []Predicate {
	var preds []Predicate
	if f.Date != nil {
		preds = append(preds, OnDate(*f.Date))
	}
	if f.Past {
		preds = append(preds, StartedBefore(now))
	}
	if f.Future {
		preds = append(preds, StartsAfter(now))
	}
	return preds
}

// Select lazily yields the events of seq that satisfy every predicate.
func Select(seq iter.Seq[model.Event], preds ...Predicate) iter.Seq[model.Event] {
	return func(yield func(model.Event) bool) {
		for e := range seq {
			if matchAll(&e, preds) && !yield(e) {
				return
			}
		}
	}
}

func matchAll(e *model.Event, preds []Predicate) bool {
	for _, p := range preds {
		if !p(e) {
			return false
		}
	}
	return true
}

// Filter returns the events matching f, in their original order. With no
// criteria set the input slice is returned as is.
func Filter(events []model.Event, f model.EventFilter, now time.Time) []model.Event {
	if f.Empty() {
		return events
	}
	out := slices.Collect(Select(slices.Values(events), Predicates(f, now)...))
	if out == nil {
		out = []model.Event{}
	}
	return out
}

// ParseFilter reads date, past and future from query parameters.
func ParseFilter(q url.Values) (model.EventFilter, error) {
	var f model.EventFilter
	fields := map[string]string{}

	if raw := q.Get("date"); raw != "" {
		day, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
		if err != nil {
			fields["date"] = "Enter a valid date (YYYY-MM-DD)."
		} else {
			f.Date = &day
		}
	}
	for _, name := range []string{"past", "future"} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fields[name] = "Must be a boolean."
			continue
		}
		if name == "past" {
			f.Past = v
		} else {
			f.Future = v
		}
	}

	if len(fields) > 0 {
		return model.EventFilter{}, &ValidationError{Code: CodeInvalidQuery, Message: "Invalid query parameters.", Fields: fields}
	}
	return f, nil
}
