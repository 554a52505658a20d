package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogUnhandledNotification_SuppressesAfterBurst(t *testing.T) {
	const method = "window/logMessage::test-burst"

	for i := 0; i < unhandledBurst; i++ {
		logUnhandledNotification(method, nil)
	}

	unhandledMu.Lock()
	b := unhandledBuckets[method]
	unhandledMu.Unlock()
	if assert.NotNil(t, b) {
		assert.Equal(t, unhandledBurst, b.emitted)
		assert.Equal(t, 0, b.suppressed)
	}

	logUnhandledNotification(method, nil)

	unhandledMu.Lock()
	b = unhandledBuckets[method]
	unhandledMu.Unlock()
	assert.Equal(t, unhandledBurst, b.emitted)
	assert.Equal(t, 1, b.suppressed)
}
