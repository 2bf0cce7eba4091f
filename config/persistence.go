package config

import "time"

// Persistence carries the database settings in the shape the persistence
// client expects.
type Persistence struct {
	Driver         string
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (p Persistence) GetDebug() bool {
	return p.Debug
}

func (p Persistence) GetDriver() string {
	return p.Driver
}

func (p Persistence) GetServer() string {
	return p.DSN
}

func (p Persistence) GetDSN() string {
	return p.DSN
}

func (p Persistence) GetPingTimeout() time.Duration {
	if p.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return p.PingTimeout
}

func (p Persistence) GetOtelIdentifier() string {
	return p.OtelIdentifier
}
