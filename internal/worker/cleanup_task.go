package worker

import (
	"context"
	"log"
	"time"

	"github.com/coreux/asset-gateway/internal/filestore"
)

// blobCleanupTask 删除已上传但未落库的对象
// 文档创建失败后由补偿路径入队，尽力而为：删除失败只记录日志，
// 不影响主流程的错误返回。
type blobCleanupTask struct {
	gateway *filestore.Gateway
	keys    []string
}

// Execute 执行补偿删除
func (t *blobCleanupTask) Execute() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, key := range t.keys {
		if err := t.gateway.DeleteBlob(ctx, key); err != nil {
			log.Printf("[Cleanup] Failed to delete orphaned blob '%s': %v", key, err)
			continue
		}
		log.Printf("[Cleanup] Deleted orphaned blob '%s'", key)
	}
}

// BlobCleaner 失败补偿提交器，实现文档驱动的补偿接口
type BlobCleaner struct {
	pool    *Pool
	gateway *filestore.Gateway
}

// NewBlobCleaner 创建失败补偿提交器
func NewBlobCleaner(pool *Pool, gateway *filestore.Gateway) *BlobCleaner {
	return &BlobCleaner{pool: pool, gateway: gateway}
}

// CleanupBlobs 异步删除指定 key 的对象
func (c *BlobCleaner) CleanupBlobs(keys []string) {
	if len(keys) == 0 {
		return
	}
	task := &blobCleanupTask{gateway: c.gateway, keys: keys}
	if !c.pool.Submit(task) {
		// 池不可用时退化为同步执行，孤儿对象不能无人认领
		task.Execute()
	}
}
