package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordSink struct {
	count int
	err   error
}

func (r *recordSink) RecordAssignments([]AssignmentRecord) error {
	r.count++
	return r.err
}

func (r *recordSink) RecordCommitLatency([]CommitLatency) error {
	r.count++
	return nil
}

type plainSink struct{ count int }

func (p *plainSink) RecordAssignments([]AssignmentRecord) error {
	p.count++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	p := &plainSink{}
	m := NewMultiSink(s1, s2, p)
	require.NoError(t, m.RecordAssignments(nil))
	require.NoError(t, m.RecordCommitLatency(nil))
	require.NoError(t, m.RecordBatch(BatchSummary{}))
	assert.Equal(t, 2, s1.count)
	assert.Equal(t, 2, s2.count)
	assert.Equal(t, 1, p.count)
}

func TestMultiSink_FirstError(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	err := NewMultiSink(s1, s2).RecordAssignments(nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s2.count)
}
