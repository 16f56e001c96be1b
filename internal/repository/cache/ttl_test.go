package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLPolicyFlat(t *testing.T) {
	p := TTLPolicy{Base: time.Hour}

	assert.Equal(t, time.Hour, p.TTL(0, nil))
	assert.Equal(t, time.Hour, p.TTL(18, nil))
}

func TestTTLPolicyPerZoomCapped(t *testing.T) {
	p := TTLPolicy{Base: time.Minute, PerZoom: time.Minute, Max: 10 * time.Minute}

	assert.Equal(t, time.Minute, p.TTL(0, nil))
	assert.Equal(t, 6*time.Minute, p.TTL(5, nil))
	assert.Equal(t, 10*time.Minute, p.TTL(20, nil))

	prev := p.TTL(0, nil)
	for z := 1; z <= 30; z++ {
		ttl := p.TTL(z, nil)
		assert.GreaterOrEqual(t, ttl, prev)
		prev = ttl
	}
}

func TestTTLPolicyOverride(t *testing.T) {
	p := TTLPolicy{Base: time.Hour}

	override := 5 * time.Second
	assert.Equal(t, override, p.TTL(3, &override))

	zero := time.Duration(0)
	assert.Equal(t, zero, p.TTL(3, &zero))
}

func TestTTLPolicyNeverNegative(t *testing.T) {
	p := TTLPolicy{Base: -time.Hour}
	assert.Equal(t, time.Duration(0), p.TTL(4, nil))
}
