package redis

import "strings"

const defaultNamespace = "vs"

// Keyspace builds colon-separated keys under one namespace so several
// environments can share a Redis instance. The zero value uses "vs".
type Keyspace struct {
	namespace string
}

// NewKeyspace returns a keyspace rooted at namespace.
func NewKeyspace(namespace string) Keyspace {
	return Keyspace{namespace: strings.Trim(strings.TrimSpace(namespace), ":")}
}

func (k Keyspace) key(parts ...string) string {
	ns := k.namespace
	if ns == "" {
		ns = defaultNamespace
	}
	var b strings.Builder
	b.WriteString(ns)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// LockKey names a mutual-exclusion lock.
func (k Keyspace) LockKey(scope string, ids ...string) string {
	return k.key(append([]string{"lock", scope}, ids...)...)
}

// VehicleLockKey serializes mutations for one vehicle id. Ids are
// case-insensitive.
func (k Keyspace) VehicleLockKey(vehicleID string) string {
	return k.LockKey("vehicle", strings.ToUpper(strings.TrimSpace(vehicleID)))
}

// IngestionLockKey guards against overlapping snapshot runs.
func (k Keyspace) IngestionLockKey() string {
	return k.LockKey("ingestion")
}

// CronLockKey guards a cron worker cycle.
func (k Keyspace) CronLockKey(name string) string {
	return k.LockKey("cron", name)
}

// IdempotencyKey namespaces a client-supplied key by request scope.
func (k Keyspace) IdempotencyKey(scope, key string) string {
	return k.key("idempotency", scope, key)
}
