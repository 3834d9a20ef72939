package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChecker_AllOK(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("database", func(ctx context.Context) error { return nil })
	c.Register("redis", func(ctx context.Context) error { return nil })

	status := c.Check(context.Background())
	assert.True(t, status.Ready)
	assert.Equal(t, map[string]string{"database": "ok", "redis": "ok"}, status.Checks)
	assert.Equal(t, []string{"database", "redis"}, c.Names())
}

func TestChecker_OneFails(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("database", func(ctx context.Context) error { return nil })
	c.Register("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	status := c.Check(context.Background())
	assert.False(t, status.Ready)
	assert.Equal(t, "ok", status.Checks["database"])
	assert.Equal(t, "connection refused", status.Checks["redis"])
}

func TestChecker_Timeout(t *testing.T) {
	c := NewChecker(50 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	status := c.Check(context.Background())
	assert.False(t, status.Ready)
	assert.Less(t, time.Since(start), time.Second)
}

func TestChecker_Empty(t *testing.T) {
	status := NewChecker(0).Check(context.Background())
	assert.True(t, status.Ready)
	assert.Empty(t, status.Checks)
}

func TestChecker_ReturnsAtDeadlineWhenCheckIgnoresContext(t *testing.T) {
	c := NewChecker(50 * time.Millisecond)
	c.Register("database", func(ctx context.Context) error { return nil })
	c.Register("hung", func(ctx context.Context) error {
		time.Sleep(2 * time.Second)
		return nil
	})

	start := time.Now()
	status := c.Check(context.Background())

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, status.Ready)
	assert.Equal(t, "ok", status.Checks["database"])
	assert.Equal(t, "check timed out", status.Checks["hung"])
}
