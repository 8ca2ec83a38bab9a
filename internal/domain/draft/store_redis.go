package draft

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisStore keeps each owner's drafts as one JSON document plus a separate
// current-draft pointer key. Both keys share an idle TTL that is refreshed
// on every write, so abandoned drafts age out on their own.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func collectionKey(owner string) string {
	return fmt.Sprintf("dabform:drafts:%s", owner)
}

func currentKey(owner string) string {
	return fmt.Sprintf("dabform:drafts:%s:current", owner)
}

// load reads the owner's collection, degrading corrupted payloads to an
// empty collection instead of failing.
func (s *RedisStore) load(ctx context.Context, owner string) ([]*ReportDraft, error) {
	v, err := s.client.Get(ctx, collectionKey(owner)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	drafts := DecodeDrafts(v)
	if drafts == nil && len(v) > 0 {
		log.Warn().Str("owner", owner).Msg("draft collection corrupted, starting empty")
	}
	return drafts, nil
}

func (s *RedisStore) save(ctx context.Context, owner string, drafts []*ReportDraft) error {
	b, err := EncodeDrafts(drafts)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, collectionKey(owner), b, s.ttl).Err()
}

func (s *RedisStore) Create(ctx context.Context, owner string) (*ReportDraft, error) {
	drafts, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	d := NewReportDraft(owner)
	drafts = append(drafts, d)
	if err := s.save(ctx, owner, drafts); err != nil {
		return nil, err
	}
	if err := s.setPointer(ctx, owner, d.ID); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *RedisStore) Get(ctx context.Context, owner string, id uuid.UUID) (*ReportDraft, error) {
	drafts, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, d := range drafts {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, ErrNotFound
}

func (s *RedisStore) Update(ctx context.Context, owner string, in *ReportDraft) error {
	drafts, err := s.load(ctx, owner)
	if err != nil {
		return err
	}
	for i, d := range drafts {
		if d.ID == in.ID {
			drafts[i] = in
			return s.save(ctx, owner, drafts)
		}
	}
	return ErrNotFound
}

func (s *RedisStore) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	drafts, err := s.load(ctx, owner)
	if err != nil {
		return err
	}
	kept := drafts[:0]
	found := false
	for _, d := range drafts {
		if d.ID == id {
			found = true
			continue
		}
		kept = append(kept, d)
	}
	if !found {
		return ErrNotFound
	}
	if err := s.save(ctx, owner, kept); err != nil {
		return err
	}
	// A deleted draft must never stay selected.
	cur, err := s.client.Get(ctx, currentKey(owner)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if cur == id.String() {
		return s.client.Del(ctx, currentKey(owner)).Err()
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, owner string, limit, offset int) ([]*ReportDraft, int, error) {
	drafts, err := s.load(ctx, owner)
	if err != nil {
		return nil, 0, err
	}
	total := len(drafts)
	if offset >= total {
		return []*ReportDraft{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return drafts[offset:end], total, nil
}

func (s *RedisStore) Current(ctx context.Context, owner string) (*ReportDraft, error) {
	v, err := s.client.Get(ctx, currentKey(owner)).Result()
	if err == redis.Nil {
		return nil, ErrNoCurrent
	}
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(v)
	if err != nil {
		// Corrupted pointer degrades to "nothing selected".
		_ = s.client.Del(ctx, currentKey(owner)).Err()
		return nil, ErrNoCurrent
	}
	d, err := s.Get(ctx, owner, id)
	if err == ErrNotFound {
		return nil, ErrNoCurrent
	}
	return d, err
}

func (s *RedisStore) SetCurrent(ctx context.Context, owner string, id uuid.UUID) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	return s.setPointer(ctx, owner, id)
}

func (s *RedisStore) ClearCurrent(ctx context.Context, owner string) error {
	return s.client.Del(ctx, currentKey(owner)).Err()
}

func (s *RedisStore) setPointer(ctx context.Context, owner string, id uuid.UUID) error {
	return s.client.Set(ctx, currentKey(owner), id.String(), s.ttl).Err()
}
