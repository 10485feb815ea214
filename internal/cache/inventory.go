package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix             = "user:%d"
	PendingElevationKeyPrefix = "elevation:pending:%d"
)

const (
	UserTTL             = 5 * time.Minute
	PendingElevationTTL = time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PendingElevationKey(userID uint) string {
	return fmt.Sprintf(PendingElevationKeyPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidatePendingElevation(ctx context.Context, userID uint) {
	Invalidate(ctx, PendingElevationKey(userID))
}
