package broker

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_TracksActiveAndClearsOnEnd(t *testing.T) {
	p := newProgressTracker()

	p.Update(json.RawMessage(`{"token":"1","value":{"kind":"begin","title":"Indexing","percentage":0}}`))
	snap := p.Snapshot()
	if assert.Len(t, snap, 1) {
		assert.Equal(t, "Indexing", snap[0].Title)
		assert.False(t, snap[0].Done)
	}

	p.Update(json.RawMessage(`{"token":"1","value":{"kind":"report","message":"50%","percentage":50}}`))
	snap = p.Snapshot()
	if assert.Len(t, snap, 1) {
		assert.Equal(t, 50, snap[0].Percentage)
	}

	p.Update(json.RawMessage(`{"token":"1","value":{"kind":"end"}}`))
	assert.Empty(t, p.Snapshot())
}

func TestProgressTracker_IgnoresMalformedPayload(t *testing.T) {
	p := newProgressTracker()
	p.Update(json.RawMessage(`not json`))
	assert.Empty(t, p.Snapshot())
}
