package clarity

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/base64"
)

// HashContent 返回内容 SHA256 的 URL 安全 Base64 编码（无填充）。
// 用于比较本地缓存与远程脚本是否一致。
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SameContent 通过 Hash 比较两段内容。
func SameContent(a, b []byte) bool {
	return HashContent(a) == HashContent(b)
}

// GzipContent 以最高压缩级别压缩内容，用于写入 .gz 副本。
func GzipContent(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
