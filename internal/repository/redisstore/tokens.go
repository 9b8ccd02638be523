// Package redisstore keeps bearer tokens in Redis. Each token is a hash;
// a per-identity set and a creation-time sorted set index it for
// revoke-all and pruning.
package redisstore

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/filevault/internal/repository"
	"github.com/dmitrymomot/filevault/internal/token"
)

const (
	fieldIdentity = "identity_id"
	fieldName     = "name"
	fieldDigest   = "digest"
	fieldCreated  = "created_at"
)

// TokenStore implements token.Store.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
}

var _ token.Store = (*TokenStore)(nil)

// Option configures a TokenStore.
type Option func(*TokenStore)

// WithPrefix namespaces every key. Defaults to "filevault".
func WithPrefix(prefix string) Option {
	return func(s *TokenStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewTokenStore wraps client, which should come from pkg/redis.Open.
func NewTokenStore(client redis.UniversalClient, opts ...Option) *TokenStore {
	s := &TokenStore{client: client, prefix: "filevault"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TokenStore) tokenKey(id string) string { return s.prefix + ":token:" + id }
func (s *TokenStore) identityKey(id string) string { return s.prefix + ":identity_tokens:" + id }
func (s *TokenStore) createdKey() string { return s.prefix + ":tokens_by_created" }
func score(t time.Time) float64 { return float64(t.UnixMicro()) }
func scoreBound(t time.Time) string { return "(" + strconv.FormatInt(t.UnixMicro(), 10) }

func (s *TokenStore) Create(ctx context.Context, t *token.Token) error {
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.tokenKey(t.ID),
			fieldIdentity, t.IdentityID,
			fieldName, t.Name,
			fieldDigest, t.Digest,
			fieldCreated, t.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		p.SAdd(ctx, s.identityKey(t.IdentityID), t.ID)
		p.ZAdd(ctx, s.createdKey(), redis.Z{Score: score(t.CreatedAt), Member: t.ID})
		return nil
	})
	return repository.Unavailable(err)
}

func (s *TokenStore) Get(ctx context.Context, tokenID string) (*token.Token, error) {
	fields, err := s.client.HGetAll(ctx, s.tokenKey(tokenID)).Result()
	if err != nil {
		return nil, repository.Unavailable(err)
	}
	if len(fields) == 0 {
		return nil, token.ErrTokenNotFound
	}
	return decodeToken(tokenID, fields)
}

func (s *TokenStore) Delete(ctx context.Context, tokenID string) error {
	identityID, err := s.client.HGet(ctx, s.tokenKey(tokenID), fieldIdentity).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return repository.Unavailable(err)
	}
	_, err = s.remove(ctx, map[string]string{tokenID: identityID})
	return err
}

// DeleteByIdentity removes every token indexed for identityID at call
// time. Only the listed members leave the index, so a token created
// concurrently stays reachable by the next revoke-all; Redis drops the
// set once it is empty.
func (s *TokenStore) DeleteByIdentity(ctx context.Context, identityID string) error {
	ids, err := s.client.SMembers(ctx, s.identityKey(identityID)).Result()
	if err != nil {
		return repository.Unavailable(err)
	}
	owners := make(map[string]string, len(ids))
	for _, id := range ids {
		owners[id] = identityID
	}
	_, err = s.remove(ctx, owners)
	return err
}

func (s *TokenStore) ListByIdentity(ctx context.Context, identityID string) ([]*token.Token, error) {
	ids, err := s.client.SMembers(ctx, s.identityKey(identityID)).Result()
	if err != nil {
		return nil, repository.Unavailable(err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, s.tokenKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, repository.Unavailable(err)
	}

	out := make([]*token.Token, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Stale index entry.
			continue
		}
		t, err := decodeToken(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}

	slices.SortFunc(out, func(a, b *token.Token) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *TokenStore) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.createdKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: scoreBound(before),
	}).Result()
	if err != nil {
		return 0, repository.Unavailable(err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGet(ctx, s.tokenKey(id), fieldIdentity)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, repository.Unavailable(err)
	}

	owners := make(map[string]string, len(ids))
	for i, cmd := range cmds {
		// Missing hashes still get their index entry dropped.
		owners[ids[i]] = cmd.Val()
	}
	return s.remove(ctx, owners)
}

// remove deletes tokens and their index entries, keyed token id to
// identity id, and reports how many token hashes existed.
func (s *TokenStore) remove(ctx context.Context, owners map[string]string) (int64, error) {
	if len(owners) == 0 {
		return 0, nil
	}

	dels := make([]*redis.IntCmd, 0, len(owners))
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for id, identityID := range owners {
			dels = append(dels, p.Del(ctx, s.tokenKey(id)))
			if identityID != "" {
				p.SRem(ctx, s.identityKey(identityID), id)
			}
			p.ZRem(ctx, s.createdKey(), id)
		}
		return nil
	})
	if err != nil {
		return 0, repository.Unavailable(err)
	}

	var n int64
	for _, cmd := range dels {
		n += cmd.Val()
	}
	return n, nil
}

func decodeToken(id string, fields map[string]string) (*token.Token, error) {
	created, err := time.Parse(time.RFC3339Nano, fields[fieldCreated])
	if err != nil {
		return nil, repository.Unavailable(errors.Join(errors.New("redisstore: corrupt token record"), err))
	}
	return &token.Token{
		ID:         id,
		IdentityID: fields[fieldIdentity],
		Name:       fields[fieldName],
		Digest:     []byte(fields[fieldDigest]),
		CreatedAt:  created,
	}, nil
}
