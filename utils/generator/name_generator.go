// Package generator 抗冲突文件名生成
package generator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FileName 生成抗冲突文件名（不含扩展名）
// 由时间、作用域（如尺寸标签）、原始名与随机 UUID 派生。
func FileName(scope, originalName string) string {
	raw := fmt.Sprintf("%d-%s-%s-%s", time.Now().UnixNano(), scope, originalName, uuid.NewString())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}
