// Package timeout defines centralized timeout constants for pipeline stages.
// Package timeout 定义流水线各阶段的集中式超时常量。
package timeout

import (
	"time"
	"unicode/utf8"
)

// Pipeline stage timeout constants.
// 流水线阶段超时常量。
const (
	// FetchTimeout bounds one object download.
	// FetchTimeout 是单次对象下载的超时时间。
	FetchTimeout = 60 * time.Second

	// VisionTimeout bounds one multimodal inference call.
	// VisionTimeout 是单次多模态推理调用的超时时间。
	VisionTimeout = 3 * time.Minute

	// EmbeddingTimeout is the timeout for embedding generation.
	// EmbeddingTimeout 是向量生成的超时时间。
	EmbeddingTimeout = 30 * time.Second

	// CommitTimeout bounds the interpretation write.
	// CommitTimeout 是解读结果写入的超时时间。
	CommitTimeout = 15 * time.Second

	// RunTimeout bounds a whole pipeline run.
	// RunTimeout 是整次流水线运行的超时时间。
	RunTimeout = 5 * time.Minute

	// MaxTruncateLength is the maximum length in bytes for truncating strings in logs.
	// MaxTruncateLength 是日志中字符串截断的最大字节长度。
	MaxTruncateLength = 200
)

// Truncate shortens s to at most MaxTruncateLength bytes for logging without splitting a rune.
// Truncate 将 s 截断到最多 MaxTruncateLength 字节，不会切断 UTF-8 字符。
func Truncate(s string) string {
	if len(s) <= MaxTruncateLength {
		return s
	}
	cut := MaxTruncateLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
