package cache

import (
	"context"
	"testing"
	"time"
)

func TestNewRedisClient_InvalidURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, "not-a-redis-url")
	if err == nil {
		t.Fatal("不正なURLはエラーになるべき")
	}
}

func TestPlanKey(t *testing.T) {
	if got := planKey("user-1"); got != "plan:user-1" {
		t.Errorf("planKey = %q, want plan:user-1", got)
	}
}
