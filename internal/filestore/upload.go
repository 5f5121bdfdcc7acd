package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreux/asset-gateway/utils/mime"
)

// Upload 上传文件句柄
// 暴露客户端声明的 MIME、嗅探 MIME、原始文件名、扩展名、大小与本地临时路径。
type Upload struct {
	ClientMimeType  string
	SniffedMimeType string
	OriginalName    string
	Extension       string
	Size            int64
	TempPath        string
}

// NewUpload 从本地临时文件构建上传句柄，并完成内容嗅探
func NewUpload(tempPath, originalName, clientMimeType string) (*Upload, error) {
	info, err := os.Stat(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat uploaded file '%s': %w", tempPath, err)
	}

	f, err := os.Open(tempPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file '%s': %w", tempPath, err)
	}
	defer f.Close()

	sniffed, err := mime.SniffContentType(f)
	if err != nil {
		return nil, err
	}

	return &Upload{
		ClientMimeType:  clientMimeType,
		SniffedMimeType: sniffed,
		OriginalName:    originalName,
		Extension:       ExtensionOf(originalName),
		Size:            info.Size(),
		TempPath:        tempPath,
	}, nil
}

// EffectiveMimeType 计算用于驱动选择的有效 MIME
func (u *Upload) EffectiveMimeType() string {
	return mime.Effective(u.ClientMimeType, u.SniffedMimeType)
}

// Open 打开上传内容
func (u *Upload) Open() (*os.File, error) {
	return os.Open(u.TempPath)
}

// StagedFile 本地暂存文件
// 由文件网关的 Stage 步骤产出，尚未进入持久化存储。
type StagedFile struct {
	Folder       string
	Name         string
	Extension    string
	MimeType     string
	OriginalName string
	Size         int64
}

// LocalPath 返回暂存文件的本地路径
func (s *StagedFile) LocalPath() string {
	return filepath.Join(s.Folder, s.Name+"."+s.Extension)
}

// ExtensionOf 提取文件扩展名（无点），缺省为 bin
func ExtensionOf(name string) string {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return "bin"
	}
	return strings.ToLower(ext)
}
