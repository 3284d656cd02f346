package report

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportBuckets(t *testing.T) {
	r := New("add hosts")
	r.Succeed("esx-01")
	r.Skip("esx-02", "already member")
	r.Fail("esx-03", errors.New("connection refused"))

	assert.Equal(t, []string{"esx-01"}, r.Succeeded)
	assert.Equal(t, []Item{{Name: "esx-02", Reason: "already member"}}, r.Skipped)
	assert.Equal(t, []Item{{Name: "esx-03", Reason: "connection refused"}}, r.Failed)
	assert.True(t, r.HasFailures())
	assert.Equal(t, 3, r.Total())
	assert.Contains(t, r.String(), "add hosts: 1 succeeded, 1 skipped, 1 failed")
	assert.Contains(t, r.String(), "failed esx-03: connection refused")
}

func TestReportMerge(t *testing.T) {
	a := New("a")
	a.Succeed("x")
	b := New("b")
	b.Skip("y", "exists")
	b.Fail("z", errors.New("boom"))

	a.Merge(b)
	a.Merge(nil)

	assert.Equal(t, 3, a.Total())
	assert.Equal(t, "a", a.Operation)
	assert.False(t, New("empty").HasFailures())
}
