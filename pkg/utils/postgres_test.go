package utils

import (
	"testing"
	"time"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	c := PostgresPoolConfig{MaxOpenConns: 3}.withDefaults()
	if c.MaxOpenConns != 3 {
		t.Fatalf("explicit value overridden: %d", c.MaxOpenConns)
	}
	if c.MaxIdleConns != 5 || c.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults %+v", c)
	}
}
