package eventlog

import (
	"slices"
	"strings"
	"time"
)

/***** Filter *****/

// Filter narrows a query on the event log.
// All criteria are combined with AND; an empty Filter matches every event.
type Filter struct {
	eventTypes    []string
	predicates    []FilterPredicate
	occurredFrom  time.Time
	occurredUntil time.Time
}

// EventTypes returns the event types of which any must match.
func (f Filter) EventTypes() []string {
	return f.eventTypes
}

// Predicates returns the payload predicates of which all must match.
func (f Filter) Predicates() []FilterPredicate {
	return f.predicates
}

// OccurredFrom returns the inclusive lower bound, zero if unbounded.
func (f Filter) OccurredFrom() time.Time {
	return f.occurredFrom
}

// OccurredUntil returns the inclusive upper bound, zero if unbounded.
func (f Filter) OccurredUntil() time.Time {
	return f.occurredUntil
}

/***** FilterPredicate *****/

// FilterPredicate matches a top level payload key against a string value.
type FilterPredicate struct {
	key string
	val string
}

// P creates a FilterPredicate.
func P(key, val string) FilterPredicate {
	return FilterPredicate{key: key, val: val}
}

func (fp FilterPredicate) Key() string {
	return fp.key
}

func (fp FilterPredicate) Val() string {
	return fp.val
}

/***** FilterBuilder *****/

// FilterBuilder assembles a Filter step by step.
type FilterBuilder struct {
	filter Filter
}

// BuildFilter starts a new, empty Filter.
func BuildFilter() *FilterBuilder {
	return &FilterBuilder{}
}

// AnyEventTypeOf adds event types to the filter.
//
// It sanitizes the input:
//   - removing empty event types ("")
//   - sorting the event types
//   - removing duplicate event types
func (fb *FilterBuilder) AnyEventTypeOf(eventType string, eventTypes ...string) *FilterBuilder {
	all := append(slices.Clone(fb.filter.eventTypes), eventType)
	all = append(all, eventTypes...)

	all = slices.DeleteFunc(all, func(et string) bool { return et == "" })
	slices.Sort(all)
	fb.filter.eventTypes = slices.Compact(all)

	return fb
}

// AllPredicatesOf adds payload predicates to the filter.
//
// It sanitizes the input:
//   - removing partial predicates (key or val is "")
//   - sorting the predicates
//   - removing duplicate predicates
func (fb *FilterBuilder) AllPredicatesOf(predicate FilterPredicate, predicates ...FilterPredicate) *FilterBuilder {
	all := append(slices.Clone(fb.filter.predicates), predicate)
	all = append(all, predicates...)

	all = slices.DeleteFunc(all, func(p FilterPredicate) bool { return p.key == "" || p.val == "" })
	slices.SortFunc(all, func(a, b FilterPredicate) int {
		if c := strings.Compare(a.key, b.key); c != 0 {
			return c
		}

		return strings.Compare(a.val, b.val)
	})
	fb.filter.predicates = slices.Compact(all)

	return fb
}

// OccurredFrom sets the inclusive lower time bound.
func (fb *FilterBuilder) OccurredFrom(from time.Time) *FilterBuilder {
	fb.filter.occurredFrom = from
	return fb
}

// OccurredUntil sets the inclusive upper time bound.
func (fb *FilterBuilder) OccurredUntil(until time.Time) *FilterBuilder {
	fb.filter.occurredUntil = until
	return fb
}

// Finalize returns the built Filter.
func (fb *FilterBuilder) Finalize() Filter {
	return fb.filter
}
