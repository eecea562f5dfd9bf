package metrics

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/ajaxzhan/simos/pkg/types"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, "ok"},
		{&types.PermissionError{Op: "write", Path: "/etc"}, "denied"},
		{fmt.Errorf("x: %w", types.ErrNotFound), "not_found"},
		{types.ErrNameCollision, "collision"},
		{types.ErrReadOnly, "read_only"},
		{types.ErrInvalidMode, "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Result(tt.err))
	}
}

func TestRecordMutation(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordMutation("delete", nil)
	m.RecordMutation("delete", &types.PermissionError{Op: "delete", Sticky: true})
	m.RecordMutation("delete", &types.PermissionError{Op: "delete"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MutationsTotal.WithLabelValues("delete", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MutationsTotal.WithLabelValues("delete", "denied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PermissionDenials.WithLabelValues("delete")))

	m.SetTreeNodes(42)
	assert.Equal(t, 42.0, testutil.ToFloat64(m.TreeNodes))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordCommand("ok")
	m.RecordMutation("create", nil)
	m.RecordDenial("read")
	m.SetTreeNodes(1)
}
