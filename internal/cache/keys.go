package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ThreadIdentityKeyPrefix = "thread_identity:%d:%d"
	ThreadIdentityPattern   = "thread_identity:%d:*"
)

// ThreadIdentityTTL bounds memory use; mappings never change while they live.
const ThreadIdentityTTL = 24 * time.Hour

func ThreadIdentityKey(threadID, userID uint) string {
	return fmt.Sprintf(ThreadIdentityKeyPrefix, threadID, userID)
}

// InvalidateThread drops every cached pseudonym of a destroyed thread.
func InvalidateThread(ctx context.Context, client *redis.Client, threadID uint) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, fmt.Sprintf(ThreadIdentityPattern, threadID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}
