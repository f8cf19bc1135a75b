package cache

import "strings"

const (
	GlobalKeyPrefix = "learnrank"
)

// GenerateCacheKey generates a cache key for a given service, object type, and identifier.
// If paramsKey are provided, they are joined by "_" and appended to the cache key.
func GenerateCacheKey(serviceName, objectType, identifier string, paramsKey ...string) string {
	baseKey := strings.Join([]string{GlobalKeyPrefix, serviceName, objectType, identifier}, ":")
	if len(paramsKey) > 0 {
		return strings.Join([]string{baseKey, strings.Join(paramsKey, "_")}, ":")
	}
	return baseKey
}

// LeaderboardKeyPattern matches every cached leaderboard page of one
// (mode[, lesson]) partition, whatever its limit, so a write to the partition
// can drop them all.
func LeaderboardKeyPattern(mode, lessonID string) string {
	identifier := mode
	if lessonID != "" {
		identifier = mode + ":" + lessonID
	}
	return strings.Join([]string{GlobalKeyPrefix, "ranking", "leaderboard", identifier}, ":") + "*"
}
