package storage

import (
	"path"
	"sort"
	"strings"
	"time"
)

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
	// ByPrefix 按顶层目录（audio/、covers/ ...）汇总
	ByPrefix map[string]PrefixStats
}

// PrefixStats 单个顶层目录的统计
type PrefixStats struct {
	Objects int64
	Size    int64
}

// Summarize 计算对象列表的统计信息
func Summarize(objects []ObjectInfo) *BucketStats {
	stats := &BucketStats{ByPrefix: make(map[string]PrefixStats)}
	for _, obj := range objects {
		stats.TotalObjects++
		stats.TotalSize += obj.Size
		if obj.LastModified.After(stats.LastModified) {
			stats.LastModified = obj.LastModified
		}
		top := "/"
		if i := strings.Index(obj.Key, "/"); i > 0 {
			top = obj.Key[:i+1]
		}
		ps := stats.ByPrefix[top]
		ps.Objects++
		ps.Size += obj.Size
		stats.ByPrefix[top] = ps
	}
	return stats
}

// Prefixes 返回排序后的顶层目录
func (b *BucketStats) Prefixes() []string {
	keys := make([]string, 0, len(b.ByPrefix))
	for k := range b.ByPrefix {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InferKind 从文件名推断文件类别
func InferKind(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp3", ".wav", ".flac", ".m4a", ".ogg", ".opus", ".aac", ".aiff", ".wma":
		return "audio"
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return "image"
	default:
		return "other"
	}
}
