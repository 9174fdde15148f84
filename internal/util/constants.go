package util

const (
	DateFormat  = "2006-01-02"
	MonthFormat = "2006-01"
	TimeFormat  = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	UsageStoreDatabase = "database"
	UsageStoreRedis    = "redis"
)

// gin 上下文中的 key
const (
	ContextUserKey  = "user"
	ContextUsageKey = "usage"
)

// RoleAdmin 可查看任意用户的用量
const RoleAdmin = "admin"
