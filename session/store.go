package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

// Every key a script touches is passed in KEYS. Callers resolve the owner
// first when the user index key depends on it.

const deleteSessionScript = `
if redis.call("HGET", KEYS[1], "user_id") ~= ARGV[2] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
return 1
`

var deleteSessionLua = redis.NewScript(deleteSessionScript)

// KEYS[1] is the user index, KEYS[i] for i > 1 the session hash of ARGV[i].
const deleteByNonceScript = `
for i = 2, #KEYS do
  if redis.call("HGET", KEYS[i], "nonce") == ARGV[1] then
    redis.call("DEL", KEYS[i])
    redis.call("SREM", KEYS[1], ARGV[i])
    return 1
  end
end
return 0
`

var deleteByNonceLua = redis.NewScript(deleteByNonceScript)

const rotateSessionScript = `
local session_key = KEYS[1]
local user_key = KEYS[2]
local expected_nonce = ARGV[1]
local next_nonce = ARGV[2]
local now_ms = tonumber(ARGV[3])
local delete_on_mismatch = ARGV[4]
local session_id = ARGV[5]
local next_expires = ARGV[6]
local key_expires = ARGV[7]
local owner = ARGV[8]

local fields = redis.call("HMGET", session_key, "user_id", "nonce", "created_at", "expires_at")
if not fields[1] or fields[1] ~= owner then
  return {0}
end

if fields[2] ~= expected_nonce then
  if delete_on_mismatch == "1" then
    redis.call("DEL", session_key)
    redis.call("SREM", user_key, session_id)
  end
  return {2}
end

if tonumber(fields[4]) <= now_ms then
  return {1}
end

redis.call("HSET", session_key, "nonce", next_nonce, "expires_at", next_expires)
redis.call("PEXPIREAT", session_key, key_expires)
return {3, fields[1], fields[3]}
`

var rotateSessionLua = redis.NewScript(rotateSessionScript)

// ExpiredRetention is how long a session hash outlives its expiry, so a late
// refresh reads as [ErrSessionExpired] rather than [ErrSessionNotFound].
const ExpiredRetention = 24 * time.Hour

// RedisStore keeps each session in a hash keyed by session ID plus a per-user
// set of session IDs. Hashes are dropped [ExpiredRetention] after the
// session's hard expiry.
//
// All keys share the hash tag of the prefix, so on Redis Cluster the whole
// namespace lives in one slot and the multi-key scripts stay slot-local.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore] under the key namespace prefix. A
// prefix without braces is wrapped as "{prefix}".
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "sa"
	}
	if !strings.Contains(prefix, "{") {
		prefix = "{" + prefix + "}"
	}
	return &RedisStore{redis: rdb, prefix: prefix}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":s:" + sessionID
}

func (s *RedisStore) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// owner reads the user of a session hash, "" when the hash is gone.
func (s *RedisStore) owner(ctx context.Context, id string) (string, error) {
	userID, err := s.redis.HGet(ctx, s.key(id), "user_id").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", unavailable(err)
	}
	return userID, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func msString(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return time.UnixMilli(ms), nil
}

// Create stores sess. The user index and the session hash are written in one
// MULTI block.
func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	key := s.key(sess.ID)
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user_id", sess.UserID,
			"nonce", sess.Nonce,
			"created_at", msString(sess.CreatedAt),
			"expires_at", msString(sess.ExpiresAt),
		)
		pipe.PExpireAt(ctx, key, sess.ExpiresAt.Add(ExpiredRetention))
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.ID)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Get returns the session with the given ID or [ErrSessionNotFound].
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(fields) == 0 {
		return nil, ErrSessionNotFound
	}
	return decodeHash(id, fields)
}

func decodeHash(id string, fields map[string]string) (*Session, error) {
	created, err := parseMillis(fields["created_at"])
	if err != nil {
		return nil, err
	}
	expires, err := parseMillis(fields["expires_at"])
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:        id,
		UserID:    fields["user_id"],
		Nonce:     fields["nonce"],
		CreatedAt: created,
		ExpiresAt: expires,
	}, nil
}

// Rotate performs the nonce compare-and-swap in a single Lua script. The
// owner is read first so the user index can be declared; the script checks it
// again before touching anything.
func (s *RedisStore) Rotate(ctx context.Context, p RotateParams) (*Session, error) {
	owner, err := s.owner(ctx, p.SessionID)
	if err != nil {
		return nil, err
	}
	if owner == "" {
		return nil, ErrSessionNotFound
	}

	deleteFlag := "0"
	if p.DeleteOnMismatch {
		deleteFlag = "1"
	}

	raw, err := rotateSessionLua.Run(
		ctx,
		s.redis,
		[]string{s.key(p.SessionID), s.userKey(owner)},
		p.Nonce,
		p.NextNonce,
		p.Now.UnixMilli(),
		deleteFlag,
		p.SessionID,
		p.ExpiresAt.UnixMilli(),
		p.ExpiresAt.Add(ExpiredRetention).UnixMilli(),
		owner,
	).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) == 0 {
		return nil, fmt.Errorf("%w: unexpected rotate result", ErrStoreUnavailable)
	}
	status, ok := values[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected rotate status", ErrStoreUnavailable)
	}

	switch status {
	case rotateStatusNotFound:
		return nil, ErrSessionNotFound
	case rotateStatusExpired:
		return nil, ErrSessionExpired
	case rotateStatusMismatch:
		return nil, ErrNonceMismatch
	case rotateStatusRotated:
		if len(values) != 3 {
			return nil, fmt.Errorf("%w: unexpected rotate payload", ErrStoreUnavailable)
		}
		userID, _ := values[1].(string)
		createdRaw, _ := values[2].(string)
		created, err := parseMillis(createdRaw)
		if err != nil {
			return nil, err
		}
		return &Session{
			ID:        p.SessionID,
			UserID:    userID,
			Nonce:     p.NextNonce,
			CreatedAt: created,
			ExpiresAt: time.UnixMilli(p.ExpiresAt.UnixMilli()),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate status %d", ErrStoreUnavailable, status)
	}
}

// ListByUser returns every live session of userID. Index members whose hash
// has expired are pruned.
func (s *RedisStore) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Session{}, nil
		}
		return nil, unavailable(err)
	}
	if len(ids) == 0 {
		return []Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, unavailable(err)
	}

	out := make([]Session, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, unavailable(err)
		}
		if len(fields) == 0 {
			stale = append(stale, ids[i])
			continue
		}
		sess, err := decodeHash(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}

	if len(stale) > 0 {
		if err := s.redis.SRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, unavailable(err)
		}
	}
	return out, nil
}

// DeleteByID removes one session. It reports whether the session existed.
func (s *RedisStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	owner, err := s.owner(ctx, id)
	if err != nil || owner == "" {
		return false, err
	}
	n, err := deleteSessionLua.Run(ctx, s.redis, []string{s.key(id), s.userKey(owner)}, id, owner).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

// DeleteByUserNonce removes the session of userID whose current nonce is nonce.
// A session added to the index after the member read is not considered.
func (s *RedisStore) DeleteByUserNonce(ctx context.Context, userID, nonce string) (bool, error) {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, unavailable(err)
	}
	if len(ids) == 0 {
		return false, nil
	}

	keys := make([]string, 0, len(ids)+1)
	args := make([]interface{}, 0, len(ids)+1)
	keys = append(keys, userKey)
	args = append(args, nonce)
	for _, id := range ids {
		keys = append(keys, s.key(id))
		args = append(args, id)
	}
	n, err := deleteByNonceLua.Run(ctx, s.redis, keys, args...).Int64()
	if err != nil {
		return false, unavailable(err)
	}
	return n == 1, nil
}

// DeleteAllForUser removes every session of userID.
//
// A session created between the SMEMBERS read and the delete survives; it is
// caught by the next call or expires on its own.
func (s *RedisStore) DeleteAllForUser(ctx context.Context, userID string) error {
	userKey := s.userKey(userID)
	ids, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.key(id))
	}
	keys = append(keys, userKey)

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}
