package mime

import (
	"fmt"
	"io"
	"net/http"
)

// OctetStream 客户端未知类型时的通配 MIME
const OctetStream = "application/octet-stream"

// SniffContentType 基于内容嗅探 MIME 类型，读取后回绕到流开头
func SniffContentType(stream io.ReadSeeker) (string, error) {
	buffer := make([]byte, 512)

	n, err := stream.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read stream for mime sniffing: %w", err)
	}

	contentType := http.DetectContentType(buffer[:n])

	if _, err = stream.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to seek stream back to start after sniffing: %w", err)
	}

	return contentType, nil
}

// Effective 计算用于驱动选择的有效 MIME
// 客户端声明为 octet-stream 哨兵值时采用嗅探结果，否则信任客户端声明。
func Effective(clientMime, sniffedMime string) string {
	if clientMime == OctetStream || clientMime == "" {
		return sniffedMime
	}
	return clientMime
}
