package dedup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keyClaim = "payrelay:dedup:claim:%s"

const claimReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Claimer grants one in-flight callback per transaction id across every
// instance sharing the Redis database.
type Claimer struct {
	client *redis.Client
	script *redis.Script
	ttl    time.Duration
}

func NewClaimer(client *redis.Client, ttl time.Duration) *Claimer {
	if client == nil {
		return nil
	}
	return &Claimer{
		client: client,
		script: redis.NewScript(claimReleaseScript),
		ttl:    ttl,
	}
}

// TryClaim returns the release token and whether the claim was granted.
func (c *Claimer) TryClaim(ctx context.Context, transID string) (string, bool, error) {
	if c == nil || c.client == nil {
		return "", false, errors.New("claim client not configured")
	}
	if strings.TrimSpace(transID) == "" {
		return "", false, errors.New("claim key is empty")
	}
	if c.ttl <= 0 {
		return "", false, errors.New("claim ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, claimKey(transID), token, c.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release drops the claim only if it is still held with token.
func (c *Claimer) Release(ctx context.Context, transID, token string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if transID == "" || token == "" {
		return nil
	}
	return c.script.Run(ctx, c.client, []string{claimKey(transID)}, token).Err()
}

func claimKey(transID string) string {
	return fmt.Sprintf(keyClaim, strings.TrimSpace(transID))
}

func hintKey(transID string) string {
	return fmt.Sprintf(keyHint, strings.TrimSpace(transID))
}
