package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInitializeIsIdempotent(t *testing.T) {
	first := Initialize()
	second := Get()
	assert.Same(t, first, second)
	assert.NotNil(t, first.App)
}

func TestToggleCounter(t *testing.T) {
	m := Get()
	before := testutil.ToFloat64(m.App.Toggles.WithLabelValues("like", "on"))
	m.App.Toggles.WithLabelValues("like", "on").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(m.App.Toggles.WithLabelValues("like", "on")))
}
