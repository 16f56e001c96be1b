package cache

import "time"

// TTLPolicy computes how long a tile at a given zoom stays cached:
// Base + z*PerZoom, capped at Max when Max is positive.
type TTLPolicy struct {
	Base    time.Duration
	PerZoom time.Duration
	Max     time.Duration
}

// TTL returns override when set, otherwise the policy value for z.
func (p TTLPolicy) TTL(z int, override *time.Duration) time.Duration {
	if override != nil {
		return *override
	}

	if z < 0 {
		z = 0
	}

	ttl := p.Base + time.Duration(z)*p.PerZoom
	if p.Max > 0 && ttl > p.Max {
		ttl = p.Max
	}
	if ttl < 0 {
		return 0
	}

	return ttl
}
