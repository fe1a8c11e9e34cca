package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservePublish(t *testing.T) {
	base := testutil.ToFloat64(publishResults.WithLabelValues("tiktok", "failed"))
	ObservePublish("tiktok", "failed", 2*time.Second)
	ObservePublish("tiktok", "failed", time.Second)
	assert.Equal(t, base+2, testutil.ToFloat64(publishResults.WithLabelValues("tiktok", "failed")))
}

func TestObserveCallbackAndDrops(t *testing.T) {
	base := testutil.ToFloat64(oauthCallbacks.WithLabelValues("youtube", "state_expired"))
	ObserveCallback("youtube", "state_expired")
	assert.Equal(t, base+1, testutil.ToFloat64(oauthCallbacks.WithLabelValues("youtube", "state_expired")))

	baseDrop := testutil.ToFloat64(postEventsDropped.WithLabelValues("pubsub"))
	EventDropped("pubsub")
	assert.Equal(t, baseDrop+1, testutil.ToFloat64(postEventsDropped.WithLabelValues("pubsub")))
}

func TestFinalizeFailed(t *testing.T) {
	base := testutil.ToFloat64(finalizeFailures.WithLabelValues("instagram", "failed"))
	FinalizeFailed("instagram", "failed")
	assert.Equal(t, base+1, testutil.ToFloat64(finalizeFailures.WithLabelValues("instagram", "failed")))
}
