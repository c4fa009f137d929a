package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestEscrowMetricsSplitSuccessAndFailure(t *testing.T) {
	m := Escrow()
	require.Same(t, m, Escrow())

	okBefore := testutil.ToFloat64(m.operations.WithLabelValues("settle"))
	failBefore := testutil.ToFloat64(m.failures.WithLabelValues("settle", "unauthorized_arbiter"))
	inBefore := testutil.ToFloat64(m.custody.WithLabelValues("in"))

	m.Observe("settle", "", time.Millisecond)
	m.Observe("settle", "unauthorized_arbiter", time.Millisecond)
	m.Deposited(1_000)

	require.Equal(t, okBefore+1, testutil.ToFloat64(m.operations.WithLabelValues("settle")))
	require.Equal(t, failBefore+1, testutil.ToFloat64(m.failures.WithLabelValues("settle", "unauthorized_arbiter")))
	require.Equal(t, inBefore+1_000, testutil.ToFloat64(m.custody.WithLabelValues("in")))
}

func TestSweeperMetricsDefaultsFailureCode(t *testing.T) {
	m := Sweeper()
	before := testutil.ToFloat64(m.failed.WithLabelValues("internal"))
	m.Failed("")
	require.Equal(t, before+1, testutil.ToFloat64(m.failed.WithLabelValues("internal")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var e *EscrowMetrics
	var s *SweeperMetrics
	require.NotPanics(t, func() {
		e.Observe("create", "", time.Second)
		e.Deposited(1)
		e.Released(1)
		s.Run()
		s.Refunded()
		s.Failed("x")
	})
}
