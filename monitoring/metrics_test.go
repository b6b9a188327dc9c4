package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForgetEventDropsGaugeSeries(t *testing.T) {
	accreditedCount.WithLabelValues("ev-gone").Set(5)
	require.Equal(t, 1, testutil.CollectAndCount(accreditedCount, "accredited_participants_total"))

	ForgetEvent("ev-gone")

	assert.Equal(t, 0, testutil.CollectAndCount(accreditedCount, "accredited_participants_total"))
}
