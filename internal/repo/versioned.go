package repo

import (
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

// UpdateVersioned applies updates to the row whose keyColumn equals key, but
// only while its version column still equals version. The version is bumped
// in the same statement. Zero affected rows means a concurrent writer won and
// the caller gets a retryable conflict.
func UpdateVersioned(db *gorm.DB, model any, keyColumn string, key any, version int, updates map[string]any) error {
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["version"] = gorm.Expr("version + 1")
	res := db.Model(model).
		Where(keyColumn+" = ? AND version = ?", key, version).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return staleWrite(model, key)
	}
	return nil
}

// DeleteVersioned removes the row only if it was not modified since it was read.
func DeleteVersioned(db *gorm.DB, model any, keyColumn string, key any, version int) error {
	res := db.Where(keyColumn+" = ? AND version = ?", key, version).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return staleWrite(model, key)
	}
	return nil
}

func staleWrite(model any, key any) error {
	table := ""
	if namer, ok := model.(interface{ TableName() string }); ok {
		table = namer.TableName()
	}
	details := map[string]any{"key": key}
	if table != "" {
		details["table"] = table
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "record was modified concurrently").WithDetails(details)
}
