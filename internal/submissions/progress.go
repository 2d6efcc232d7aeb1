package submissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	progressKeyPrefix = "fitanalysis::progress::"
	progressTTL       = 24 * time.Hour
)

var ErrProgressNotFound = errors.New("progress not found")

// ProgressStore keeps the live pipeline state of submissions in Redis, so
// every replica can answer progress requests.
type ProgressStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

func NewProgressStore(redisClient *redis.Client) *ProgressStore {
	return &ProgressStore{
		redisClient: redisClient,
		ttl:         progressTTL,
	}
}

func progressKey(submissionID string) string {
	return progressKeyPrefix + submissionID
}

func (s *ProgressStore) Set(ctx context.Context, p Progress) error {
	progressJson, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return s.redisClient.Set(ctx, progressKey(p.SubmissionID), string(progressJson), s.ttl).Err()
}

func (s *ProgressStore) Get(ctx context.Context, submissionID string) (*Progress, error) {
	val, err := s.redisClient.Get(ctx, progressKey(submissionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrProgressNotFound
	}
	if err != nil {
		return nil, err
	}

	p := &Progress{}
	if err := json.Unmarshal([]byte(val), p); err != nil {
		return nil, fmt.Errorf("unmarshal progress [%s]: %w", submissionID, err)
	}
	return p, nil
}

func (s *ProgressStore) Delete(ctx context.Context, submissionID string) error {
	return s.redisClient.Del(ctx, progressKey(submissionID)).Err()
}
