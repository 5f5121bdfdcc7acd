package worker

import (
	"context"
	"log"
	"time"

	"github.com/coreux/asset-gateway/internal/filestore"
)

// Janitor 暂存区清理器
// 周期性删除超龄的暂存文件，处理失败或进程重启留下的残片。
type Janitor struct {
	gateway  *filestore.Gateway
	maxAge   time.Duration
	interval time.Duration
}

// NewJanitor 创建暂存区清理器
func NewJanitor(gateway *filestore.Gateway, maxAge, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		gateway:  gateway,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Run 周期运行直到 ctx 取消
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

// sweep 执行一轮清理
func (j *Janitor) sweep() {
	removed, err := j.gateway.StagingJanitor(j.maxAge)
	if err != nil {
		log.Printf("[Janitor] Staging sweep failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("[Janitor] Removed %d stale staged files", removed)
	}
}
