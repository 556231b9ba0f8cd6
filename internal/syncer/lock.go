package syncer

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/semaphore"
)

// ErrConcurrentSync is returned when another mutating workflow holds the
// sync lock.
var ErrConcurrentSync = errors.New("syncer: another sync workflow is running")

// Locker guards the local store against overlapping workflows. Acquire must
// not block: a held lock yields ErrConcurrentSync.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalLocker serialises workflows within one process.
type LocalLocker struct {
	sem *semaphore.Weighted
}

// NewLocalLocker constructs an in-process lock.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sem: semaphore.NewWeighted(1)}
}

// Acquire implements Locker.
func (l *LocalLocker) Acquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.sem.TryAcquire(1) {
		return nil, ErrConcurrentSync
	}
	var once sync.Once
	return func() { once.Do(func() { l.sem.Release(1) }) }, nil
}

// LockKey builds the redis key guarding a sync scope.
func LockKey(scope string) string {
	return fmt.Sprintf("stocksync:%s:lock", scope)
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker serialises workflows across processes sharing one Redis.
type RedisLocker struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker constructs a distributed lock. The ttl bounds how long a
// crashed holder blocks other workers.
func NewRedisLocker(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, key: LockKey("sync"), ttl: ttl, logger: logger}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("syncer: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrConcurrentSync
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{l.key}, token).Err(); err != nil {
				l.logger.Error("release sync lock", slog.Any("error", err))
			}
		})
	}, nil
}

// AdvisoryKey maps a lock key onto a Postgres advisory lock id.
func AdvisoryKey(key string) int64 {
	sum := blake2b.Sum256([]byte(key))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// PostgresLocker serialises workflows across processes sharing one
// database, using a session-level advisory lock held on a pinned connection.
type PostgresLocker struct {
	pool   *pgxpool.Pool
	id     int64
	logger *slog.Logger
}

// NewPostgresLocker constructs an advisory lock on the sync scope.
func NewPostgresLocker(pool *pgxpool.Pool, logger *slog.Logger) *PostgresLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresLocker{pool: pool, id: AdvisoryKey(LockKey("sync")), logger: logger}
}

// Acquire implements Locker.
func (l *PostgresLocker) Acquire(ctx context.Context) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncer: acquire lock connection: %w", err)
	}
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.id).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("syncer: acquire lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, ErrConcurrentSync
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := conn.Exec(releaseCtx, "SELECT pg_advisory_unlock($1)", l.id); err != nil {
				l.logger.Error("release sync lock", slog.Any("error", err))
				// The session still holds the lock; drop the connection so it ends.
				_ = conn.Conn().Close(releaseCtx)
			}
			conn.Release()
		})
	}, nil
}
