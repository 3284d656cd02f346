// Package report accumulates the per-item outcome of a batch operation.
package report

import (
	"fmt"
	"strings"
)

// Item is a skipped or failed entry together with the reason.
type Item struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report is the outcome of one batch operation such as adding hosts or
// creating port groups. The zero value is ready to use.
type Report struct {
	Operation string   `json:"operation"`
	Succeeded []string `json:"succeeded"`
	Skipped   []Item   `json:"skipped"`
	Failed    []Item   `json:"failed"`
}

func New(operation string) *Report {
	return &Report{Operation: operation}
}

func (r *Report) Succeed(name string) {
	r.Succeeded = append(r.Succeeded, name)
}

func (r *Report) Skip(name, reason string) {
	r.Skipped = append(r.Skipped, Item{Name: name, Reason: reason})
}

func (r *Report) Fail(name string, err error) {
	r.Failed = append(r.Failed, Item{Name: name, Reason: err.Error()})
}

// Merge appends the buckets of other to r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Succeeded = append(r.Succeeded, other.Succeeded...)
	r.Skipped = append(r.Skipped, other.Skipped...)
	r.Failed = append(r.Failed, other.Failed...)
}

func (r *Report) HasFailures() bool {
	return len(r.Failed) > 0
}

// Total is the number of items recorded in any bucket.
func (r *Report) Total() int {
	return len(r.Succeeded) + len(r.Skipped) + len(r.Failed)
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d succeeded, %d skipped, %d failed", r.Operation, len(r.Succeeded), len(r.Skipped), len(r.Failed))
	for _, f := range r.Failed {
		fmt.Fprintf(&b, "\n  failed %s: %s", f.Name, f.Reason)
	}
	return b.String()
}
