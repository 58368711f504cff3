package stratify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/logger"
	"github.com/i-dot-ai/medguard-paper-sub001/pkg/common/models"
	"github.com/redis/go-redis/v9"
)

// Cache is a read-through Redis cache over stratification records for
// the cohort service. The derivation run invalidates it wholesale when
// the table is rebuilt.
type Cache struct {
	client *redis.Client
	repo   *Repository
	ttl    time.Duration
}

func NewCache(client *redis.Client, repo *Repository, ttl time.Duration) *Cache {
	return &Cache{client: client, repo: repo, ttl: ttl}
}

func cacheKey(patientID string) string {
	return fmt.Sprintf("stratum:%s", patientID)
}

func (c *Cache) Get(ctx context.Context, patientID string) (*models.StratificationRecord, error) {
	if c.client != nil {
		data, err := c.client.Get(ctx, cacheKey(patientID)).Bytes()
		if err == nil {
			var record models.StratificationRecord
			if err := json.Unmarshal(data, &record); err == nil {
				return &record, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.Log.WithError(err).WithField("patient_id", patientID).Warn("Stratum cache read failed")
		}
	}

	record, err := c.repo.Get(ctx, patientID)
	if err != nil {
		return nil, err
	}
	c.store(ctx, record)
	return record, nil
}

func (c *Cache) store(ctx context.Context, record *models.StratificationRecord) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(record.PatientID), data, c.ttl).Err(); err != nil {
		logger.Log.WithError(err).WithField("patient_id", record.PatientID).Warn("Stratum cache write failed")
	}
}

// Invalidate drops all cached strata. Called after each derivation run.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, "stratum:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
