package broker

import "time"

// RedisAdapterConfig configures a RedisAdapter. NewRedisAdapter fills an
// empty Namespace and zero durations from DefaultRedisAdapterConfig;
// PingWhileSending is used as given.
type RedisAdapterConfig struct {
	// Namespace prefixes the identity keys this adapter claims. Pub/sub
	// topics and subscription patterns are not prefixed, so adapters in
	// different namespaces on one Redis instance share channel traffic.
	Namespace string `yaml:"namespace"`
	// IdentityExpire is the TTL on a claimed node identity's key. It must be
	// comfortably larger than HeartbeatInterval.
	IdentityExpire time.Duration `yaml:"identity_expire"`
	// HeartbeatInterval is how often the adapter refreshes its identity's
	// TTL to prove liveness.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// SendTimeout bounds how long Send waits for a pong before giving up
	// when PingWhileSending is set.
	SendTimeout time.Duration `yaml:"send_timeout"`
	// PingWhileSending, when true, sends a PING on the pub/sub connection
	// before every publish and waits for the pong, catching a session that
	// silently dropped without an explicit error.
	PingWhileSending bool `yaml:"ping_while_sending"`
}

// DefaultRedisAdapterConfig returns the configuration used when none is
// supplied: a "curium" namespace, a 1s heartbeat against a 5s identity TTL,
// and liveness pinging enabled with a 2s budget.
func DefaultRedisAdapterConfig() RedisAdapterConfig {
	return RedisAdapterConfig{
		Namespace:         "curium",
		IdentityExpire:    5 * time.Second,
		HeartbeatInterval: 1 * time.Second,
		SendTimeout:       2 * time.Second,
		PingWhileSending:  true,
	}
}

func (c RedisAdapterConfig) withDefaults() RedisAdapterConfig {
	d := DefaultRedisAdapterConfig()
	if c.Namespace == "" {
		c.Namespace = d.Namespace
	}
	if c.IdentityExpire == 0 {
		c.IdentityExpire = d.IdentityExpire
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = d.SendTimeout
	}
	return c
}
