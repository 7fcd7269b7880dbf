package outfit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storageContract runs the behaviour every Storage must share.
func storageContract(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetMany(ctx, map[string]string{KeyToken: "tok", KeyUser: `{"id":1}`}))

	v, ok, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)

	v, ok, err = s.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":1}`, v)

	require.NoError(t, s.SetMany(ctx, map[string]string{KeyUser: `{"id":2}`}))
	v, _, err = s.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.Equal(t, `{"id":2}`, v)

	require.NoError(t, s.DeleteMany(ctx, KeyToken, KeyUser, "never-set"))
	_, ok, err = s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.DeleteMany(ctx))
}

func TestMemoryStorage_Contract(t *testing.T) {
	s := NewMemoryStorage()
	storageContract(t, s)
	assert.Equal(t, 0, s.Len())
}

func TestFileStorage_Contract(t *testing.T) {
	s, err := NewFileStorage(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	storageContract(t, s)
}

func TestNewFileStorage_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "nested", "session.json")

	s, err := NewFileStorage(path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileStorage_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	s, err := NewFileStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.SetMany(ctx, map[string]string{KeyToken: "tok", KeyUser: "{}"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file should be renamed away")

	reopened, err := NewFileStorage(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestNewFileStorage_HandlesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	s, err := NewFileStorage(path)
	require.NoError(t, err)
	_, ok, err := s.Get(context.Background(), KeyToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewFileStorage_DetectsCorruptedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileStorage(path)
	assert.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestNewFileStorage_RejectsUnsupportedVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	raw, err := json.Marshal(fileStoreData{Version: DefaultFileStoreVersion + 1})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0600))

	_, err = NewFileStorage(path)
	assert.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestFileStorage_FailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	s, err := NewFileStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.SetMany(ctx, map[string]string{KeyToken: "old"}))

	// A directory in place of the store makes the rename fail.
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0700))

	err = s.SetMany(ctx, map[string]string{KeyToken: "new"})
	assert.ErrorIs(t, err, ErrStorePersist)

	v, _, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "old", v)

	leftovers, err := filepath.Glob(filepath.Join(dir, ".session.json.*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStorage_ConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStorage(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.SetMany(ctx, map[string]string{KeyToken: "tok", KeyUser: "{}"}))
		}()
	}
	wg.Wait()

	v, ok, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestSQLiteStorage_Contract(t *testing.T) {
	s, err := OpenSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	storageContract(t, s)
}

func TestSQLiteStorage_PersistsToFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "session.db")

	s, err := OpenSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.SetMany(ctx, map[string]string{KeyToken: "tok"}))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLiteStorage(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	v, ok, err := reopened.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStorage_Contract(t *testing.T) {
	_, client := newTestRedis(t)
	storageContract(t, NewRedisStorage(client))
}

func TestRedisStorage_PrefixAndTTL(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedisStorage(client, WithRedisPrefix("test:"), WithRedisTTL(time.Hour))

	require.NoError(t, s.SetMany(context.Background(), map[string]string{KeyToken: "tok"}))

	got, err := mr.Get("test:" + KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
	assert.Greater(t, mr.TTL("test:"+KeyToken).Seconds(), 0.0)
}

func TestRedisStorage_ProfileUpdateKeepsPairDeadline(t *testing.T) {
	mr, client := newTestRedis(t)
	storage := NewRedisStorage(client, WithRedisPrefix("s:"), WithRedisTTL(time.Hour))
	auth := &fakeAuth{}
	s := loggedInStore(t, storage, auth)

	mr.FastForward(40 * time.Minute)
	auth.user = testUser(1, "Ada L.")
	_, err := s.UpdateProfile(context.Background(), ProfileUpdate{Name: strPtr("Ada L.")})
	require.NoError(t, err)
	assert.Equal(t, mr.TTL("s:"+KeyToken), mr.TTL("s:"+KeyUser))

	// past the original login deadline
	mr.FastForward(30 * time.Minute)
	token, rawUser := persisted(t, storage)
	assert.Equal(t, "tok-1", token)
	assert.Contains(t, rawUser, `"name":"Ada L."`)

	restored := NewSessionStore(storage, auth)
	require.NoError(t, restored.Restore(context.Background()))
	assert.True(t, restored.IsAuthenticated())

	mr.FastForward(time.Hour)
	token, rawUser = persisted(t, storage)
	assert.Empty(t, token)
	assert.Empty(t, rawUser)
}

func TestRedisStorage_ClosedClient(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedisStorage(client)
	require.NoError(t, client.Close())

	err := s.SetMany(context.Background(), map[string]string{KeyToken: "tok"})
	assert.ErrorIs(t, err, ErrStorePersist)
}

func TestDialRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := DialRedis(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestEncryptedStorage_Contract(t *testing.T) {
	s, err := NewEncryptedStorage(NewMemoryStorage(), "correct horse")
	require.NoError(t, err)
	storageContract(t, s)
}

func TestEncryptedStorage_SealsValues(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStorage()
	s, err := NewEncryptedStorage(inner, "correct horse")
	require.NoError(t, err)

	require.NoError(t, s.SetMany(ctx, map[string]string{KeyToken: "secret-token"}))

	raw, ok, err := inner.Get(ctx, KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "secret-token")

	_, ok, err = inner.Get(ctx, saltKey)
	require.NoError(t, err)
	assert.True(t, ok, "salt should be stored with the first write")
}

func TestEncryptedStorage_WrongPassphrase(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStorage()

	s, err := NewEncryptedStorage(inner, "right")
	require.NoError(t, err)
	require.NoError(t, s.SetMany(ctx, map[string]string{KeyToken: "tok"}))

	other, err := NewEncryptedStorage(inner, "wrong")
	require.NoError(t, err)
	_, _, err = other.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestEncryptedStorage_SwappedValuesRejected(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStorage()
	s, err := NewEncryptedStorage(inner, "pw")
	require.NoError(t, err)
	require.NoError(t, s.SetMany(ctx, map[string]string{KeyToken: "tok", KeyUser: "{}"}))

	sealedUser, _, err := inner.Get(ctx, KeyUser)
	require.NoError(t, err)
	require.NoError(t, inner.SetMany(ctx, map[string]string{KeyToken: sealedUser}))

	_, _, err = s.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrStoreCorrupted)
}

func TestNewEncryptedStorage_EmptyPassphrase(t *testing.T) {
	_, err := NewEncryptedStorage(NewMemoryStorage(), "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
