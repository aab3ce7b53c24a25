package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"estateproof/internal/verification/models"
	id "estateproof/pkg/domain"
	"estateproof/pkg/platform/sentinel"
)

const (
	recordKeyPrefix = "verification:record:"
	statusKeyPrefix = "verification:status:"
	allRecordsKey   = "verification:records"
)

// RedisStore keeps each record as a JSON value with per-status index sets
// so queue rebuilds avoid scanning the keyspace.
type RedisStore struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed record store.
func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func recordKey(propertyID id.PropertyID) string {
	return recordKeyPrefix + propertyID.String()
}

func statusKey(status models.Status) string {
	return statusKeyPrefix + string(status)
}

func (s *RedisStore) Create(ctx context.Context, record *models.VerificationRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	created, err := s.client.SetNX(ctx, recordKey(record.PropertyID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	if !created {
		return sentinel.ErrConflict
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, allRecordsKey, record.PropertyID.String())
	pipe.SAdd(ctx, statusKey(record.Status), record.PropertyID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index record: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, propertyID id.PropertyID) (*models.VerificationRecord, error) {
	payload, err := s.client.Get(ctx, recordKey(propertyID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return unmarshalRecord(payload)
}

func (s *RedisStore) Update(ctx context.Context, record *models.VerificationRecord) error {
	existing, err := s.Get(ctx, record.PropertyID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKey(record.PropertyID), payload, 0)
	if existing.Status != record.Status {
		pipe.SRem(ctx, statusKey(existing.Status), record.PropertyID.String())
		pipe.SAdd(ctx, statusKey(record.Status), record.PropertyID.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, propertyID id.PropertyID) error {
	existing, err := s.Get(ctx, propertyID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, recordKey(propertyID))
	pipe.SRem(ctx, allRecordsKey, propertyID.String())
	pipe.SRem(ctx, statusKey(existing.Status), propertyID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*models.VerificationRecord, error) {
	ids, err := s.client.SMembers(ctx, allRecordsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list record ids: %w", err)
	}
	return s.fetch(ctx, ids)
}

func (s *RedisStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.VerificationRecord, error) {
	ids, err := s.client.SMembers(ctx, statusKey(status)).Result()
	if err != nil {
		return nil, fmt.Errorf("list record ids by status: %w", err)
	}
	records, err := s.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	// The status index may briefly trail the record payloads; trust the
	// payload.
	filtered := records[:0]
	for _, record := range records {
		if record.Status == status {
			filtered = append(filtered, record)
		}
	}
	return filtered, nil
}

func (s *RedisStore) fetch(ctx context.Context, ids []string) ([]*models.VerificationRecord, error) {
	if len(ids) == 0 {
		return []*models.VerificationRecord{}, nil
	}
	keys := make([]string, len(ids))
	for i, propertyID := range ids {
		keys[i] = recordKeyPrefix + propertyID
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	records := make([]*models.VerificationRecord, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue // index points at a deleted record
		}
		record, err := unmarshalRecord([]byte(raw))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	sortRecords(records)
	return records, nil
}
