package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/romvault/internal/config"
)

const (
	selectSettingSQL = `SELECT value FROM settings WHERE key = ?`
	insertSettingSQL = `INSERT INTO settings (key, value) VALUES (?, ?)`
	updateSettingSQL = `UPDATE settings SET value = ? WHERE key = ?`
	settingsTableName = "settings"
)

// SettingDAO persists the (key, value) Setting rows, the same
// insert-then-fall-back-to-update shape the teacher's fileHashCacheDao.Upsert
// uses around a unique constraint, built with didi/gendry/builder.
type SettingDAO struct {
	db *sql.DB
}

// Get returns the stored value for key, or its closed-set default if unset.
// Unknown keys are rejected up front — spec.md §6 "Settings keys are a
// closed enumerated set".
func (dao *SettingDAO) Get(ctx context.Context, key config.SettingKey) (string, error) {
	if !config.IsKnownSetting(string(key)) {
		return "", fmt.Errorf("%w: unknown setting %q", ErrFatal, key)
	}
	row := dao.db.QueryRowContext(ctx, selectSettingSQL, string(key))
	var value string
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return config.DefaultValue(key), nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: get setting %s: %v", ErrIO, key, err)
	}
	return value, nil
}

// Set stores value for key, upserting via gendry's builder the same way the
// teacher's hash cache DAO does: attempt an insert, fall back to an update
// on the unique-key conflict.
func (dao *SettingDAO) Set(ctx context.Context, key config.SettingKey, value string) error {
	if !config.IsKnownSetting(string(key)) {
		return fmt.Errorf("%w: unknown setting %q", ErrFatal, key)
	}

	payload := []map[string]interface{}{{"key": string(key), "value": value}}
	insertSQL, insertArgs, err := builder.BuildInsert(settingsTableName, payload)
	if err != nil {
		return fmt.Errorf("%w: build setting insert: %v", ErrIO, err)
	}
	if _, err := dao.db.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
		updateSQL, updateArgs, err := builder.BuildUpdate(settingsTableName,
			map[string]interface{}{"key": string(key)},
			map[string]interface{}{"value": value},
		)
		if err != nil {
			return fmt.Errorf("%w: build setting update: %v", ErrIO, err)
		}
		if _, err := dao.db.ExecContext(ctx, updateSQL, updateArgs...); err != nil {
			return fmt.Errorf("%w: set setting %s: %v", ErrIO, key, err)
		}
	}
	return nil
}

// List returns every setting row present in the database — keys with no
// row still have a default available via config.DefaultValue.
func (dao *SettingDAO) List(ctx context.Context) (map[config.SettingKey]string, error) {
	rows, err := dao.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("%w: list settings: %v", ErrIO, err)
	}
	defer rows.Close()

	out := make(map[config.SettingKey]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%w: scan setting: %v", ErrIO, err)
		}
		out[config.SettingKey(k)] = v
	}
	return out, rows.Err()
}
