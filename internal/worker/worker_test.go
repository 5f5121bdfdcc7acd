package worker

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coreux/asset-gateway/config"
	"github.com/coreux/asset-gateway/internal/filestore"
	"github.com/coreux/asset-gateway/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcTask 把闭包包装为任务
type funcTask func()

func (f funcTask) Execute() { f() }

func TestPoolExecutesSubmittedTasks(t *testing.T) {
	pool := NewPool(2, 16)
	pool.Start()
	defer pool.Stop()

	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		ok := pool.Submit(funcTask(func() {
			atomic.AddInt32(&count, 1)
			wg.Done()
		}))
		require.True(t, ok)
	}
	wg.Wait()

	assert.Equal(t, int32(10), atomic.LoadInt32(&count))
}

func TestPoolRecoversFromPanic(t *testing.T) {
	pool := NewPool(1, 16)
	pool.Start()
	defer pool.Stop()

	done := make(chan struct{})
	require.True(t, pool.Submit(funcTask(func() { panic("boom") })))
	require.True(t, pool.Submit(funcTask(func() { close(done) })))

	// panic 被吸收，后续任务照常执行
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task after panic was never executed")
	}
}

func TestPoolStopDrainsQueue(t *testing.T) {
	pool := NewPool(1, 16)
	pool.Start()

	var count int32
	for i := 0; i < 5; i++ {
		require.True(t, pool.Submit(funcTask(func() {
			atomic.AddInt32(&count, 1)
		})))
	}

	// Stop 等待在途与已入队的任务全部完成
	pool.Stop()
	assert.Equal(t, int32(5), atomic.LoadInt32(&count))
}

func TestPoolRejectsSubmitAfterStop(t *testing.T) {
	pool := NewPool(1, 16)
	pool.Start()
	pool.Stop()

	assert.False(t, pool.Submit(funcTask(func() {})))
	assert.False(t, pool.SubmitBlocking(funcTask(func() {}), time.Second))
}

func newCleanerGateway(t *testing.T) (*filestore.Gateway, storage.Provider) {
	t.Helper()
	dir := t.TempDir()

	provider, err := storage.NewLocalStorage(filepath.Join(dir, "durable"))
	require.NoError(t, err)

	cfg := &config.Config{
		CloudBaseURL:            "https://cdn.test",
		CloudFolder:             "docs",
		LocalDriver:             "local",
		LocalDocumentFolder:     filepath.Join(dir, "staging"),
		LocalDocumentFolderName: "staging",
	}
	gateway, err := filestore.NewGateway(cfg, provider, nil)
	require.NoError(t, err)
	return gateway, provider
}

func TestBlobCleanerDeletesOrphans(t *testing.T) {
	gateway, provider := newCleanerGateway(t)
	ctx := context.Background()

	key := "docs/orphan.bin"
	require.NoError(t, provider.SaveWithContext(ctx, key, bytes.NewReader([]byte("orphan"))))

	pool := NewPool(1, 16)
	pool.Start()
	defer pool.Stop()

	cleaner := NewBlobCleaner(pool, gateway)
	cleaner.CleanupBlobs([]string{key})

	deadline := time.Now().Add(2 * time.Second)
	for {
		exists, err := provider.Exists(ctx, key)
		require.NoError(t, err)
		if !exists {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("orphaned blob was never deleted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBlobCleanerFallsBackToSynchronous(t *testing.T) {
	gateway, provider := newCleanerGateway(t)
	ctx := context.Background()

	key := "docs/orphan.bin"
	require.NoError(t, provider.SaveWithContext(ctx, key, bytes.NewReader([]byte("orphan"))))

	// 池已停机，补偿删除退化为同步执行
	pool := NewPool(1, 16)
	pool.Start()
	pool.Stop()

	cleaner := NewBlobCleaner(pool, gateway)
	cleaner.CleanupBlobs([]string{key})

	exists, err := provider.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}
