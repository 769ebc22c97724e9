// internal/database/sqlitestore.go - SQLite implementation of Store
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    ip         TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL DEFAULT '',
    type       TEXT NOT NULL DEFAULT 'Dispositivo',
    user       TEXT NOT NULL DEFAULT 'not identified',
    sector     TEXT NOT NULL DEFAULT 'not identified',
    status     INTEGER NOT NULL DEFAULT 0,
    mac        TEXT NOT NULL DEFAULT '',
    vendor     TEXT NOT NULL DEFAULT '',
    hostname   TEXT NOT NULL DEFAULT '',
    last_seen  TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status);
CREATE INDEX IF NOT EXISTS idx_devices_type ON devices(type);

CREATE TABLE IF NOT EXISTS vlan (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    ip         TEXT NOT NULL UNIQUE,
    name       TEXT NOT NULL DEFAULT '',
    type       TEXT NOT NULL DEFAULT 'Dispositivo',
    user       TEXT NOT NULL DEFAULT 'not identified',
    sector     TEXT NOT NULL DEFAULT 'not identified',
    status     INTEGER NOT NULL DEFAULT 0,
    mac        TEXT NOT NULL DEFAULT '',
    vendor     TEXT NOT NULL DEFAULT '',
    hostname   TEXT NOT NULL DEFAULT '',
    last_seen  TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vlan_status ON vlan(status);
CREATE INDEX IF NOT EXISTS idx_vlan_type ON vlan(type);

CREATE TABLE IF NOT EXISTS ping_history (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    device_id     INTEGER REFERENCES devices(id),
    ip            TEXT NOT NULL,
    status        INTEGER NOT NULL,
    response_time REAL NOT NULL DEFAULT 0,
    timestamp     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ping_history_ip ON ping_history(ip);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

type SQLiteStore struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// WAL allows concurrent readers; a low connection count keeps write
	// lock contention down between the engine and the recheck worker.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// tableName guards the identifier we splice into statements; everything else
// goes through placeholders.
func tableName(table Table) string {
	if table == TableVLAN {
		return "vlan"
	}
	return "devices"
}

// scanDevice reads one device row. last_seen is selected bare so the driver
// keeps the declared column type; the NULL fallback to created_at happens
// here, not in SQL.
func scanDevice(row interface{ Scan(...interface{}) error }) (Device, error) {
	var d Device
	var lastSeen sql.NullTime
	err := row.Scan(&d.ID, &d.IP, &d.Name, &d.Type, &d.User, &d.Sector, &d.Status,
		&d.MAC, &d.Vendor, &d.Hostname, &lastSeen, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Device{}, err
	}
	if lastSeen.Valid {
		d.LastSeen = lastSeen.Time
	} else {
		d.LastSeen = d.CreatedAt
	}
	return d, nil
}

func (s *SQLiteStore) GetDevices(ctx context.Context, table Table, filters DeviceFilters) ([]Device, error) {
	query := fmt.Sprintf(`SELECT id, ip, name, type, user, sector, status, mac, vendor, hostname,
        last_seen, created_at, updated_at FROM %s WHERE 1=1`, tableName(table))
	args := []interface{}{}

	if filters.Status != nil {
		query += " AND status = ?"
		args = append(args, *filters.Status)
	}
	if filters.Type != "" {
		query += " AND type = ?"
		args = append(args, filters.Type)
	}
	if filters.Sector != "" {
		query += " AND sector = ?"
		args = append(args, filters.Sector)
	}
	query += " ORDER BY ip"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", tableName(table), err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", tableName(table), err)
		}
		devices = append(devices, d)
	}

	return devices, rows.Err()
}

func (s *SQLiteStore) GetDevice(ctx context.Context, table Table, id int64) (*Device, error) {
	return s.getDeviceWhere(ctx, table, "id = ?", id)
}

func (s *SQLiteStore) GetDeviceByIP(ctx context.Context, table Table, ip string) (*Device, error) {
	return s.getDeviceWhere(ctx, table, "ip = ?", ip)
}

func (s *SQLiteStore) getDeviceWhere(ctx context.Context, table Table, where string, arg interface{}) (*Device, error) {
	query := fmt.Sprintf(`SELECT id, ip, name, type, user, sector, status, mac, vendor, hostname,
        last_seen, created_at, updated_at FROM %s WHERE %s`, tableName(table), where)

	d, err := scanDevice(s.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("device not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return &d, nil
}

func (s *SQLiteStore) KnownIPs(ctx context.Context, table Table) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT ip FROM %s", tableName(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to query known IPs: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var ip string
		if err := rows.Scan(&ip); err != nil {
			return nil, fmt.Errorf("failed to scan known IP: %w", err)
		}
		known[ip] = true
	}
	return known, rows.Err()
}

func (s *SQLiteStore) InsertDevice(ctx context.Context, table Table, device *Device) error {
	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now
	if device.LastSeen.IsZero() {
		device.LastSeen = now
	}
	if device.Name == "" {
		device.Name = device.IP
	}
	if device.Type == "" {
		device.Type = TypeUnknown
	}
	if device.User == "" {
		device.User = UserNotIdentified
	}
	if device.Sector == "" {
		device.Sector = SectorNotIdentified
	}

	// ON CONFLICT keeps a concurrent double-insert from ever duplicating an
	// IP; the update arm applies the same merge rule as a refresh pass.
	query := fmt.Sprintf(`
        INSERT INTO %s (ip, name, type, user, sector, status, mac, vendor, hostname, last_seen, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(ip) DO UPDATE SET
          name     = COALESCE(NULLIF(excluded.name, ''), name),
          type     = CASE WHEN excluded.type != 'Dispositivo' THEN excluded.type ELSE type END,
          sector   = COALESCE(NULLIF(excluded.sector, 'not identified'), sector),
          status   = excluded.status,
          mac      = COALESCE(NULLIF(excluded.mac, ''), mac),
          vendor   = COALESCE(NULLIF(excluded.vendor, ''), vendor),
          hostname = COALESCE(NULLIF(excluded.hostname, ''), hostname),
          last_seen = excluded.last_seen,
          updated_at = excluded.updated_at`, tableName(table))

	res, err := s.db.ExecContext(ctx, query, device.IP, device.Name, device.Type, device.User,
		device.Sector, device.Status, device.MAC, device.Vendor, device.Hostname,
		device.LastSeen, device.CreatedAt, device.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert device %s: %w", device.IP, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		device.ID = id
	}
	return nil
}

func (s *SQLiteStore) UpdateDeviceDiscovery(ctx context.Context, table Table, device *Device) error {
	device.UpdatedAt = time.Now()
	if device.LastSeen.IsZero() {
		device.LastSeen = device.UpdatedAt
	}

	// Discovery owns name/type/mac/vendor/hostname/status but must never
	// erase a learned value with a blank scan result. The user field is
	// only advanced when NetBIOS actually yielded one.
	query := fmt.Sprintf(`
        UPDATE %s SET
          name     = COALESCE(NULLIF(?, ''), name),
          type     = CASE WHEN ? != 'Dispositivo' THEN ? ELSE type END,
          user     = CASE WHEN ? != '' AND ? != 'not identified' THEN ? ELSE user END,
          sector   = COALESCE(NULLIF(?, 'not identified'), sector),
          status   = ?,
          mac      = COALESCE(NULLIF(?, ''), mac),
          vendor   = COALESCE(NULLIF(?, ''), vendor),
          hostname = COALESCE(NULLIF(?, ''), hostname),
          last_seen = ?,
          updated_at = ?
        WHERE ip = ?`, tableName(table))

	_, err := s.db.ExecContext(ctx, query,
		device.Name,
		device.Type, device.Type,
		device.User, device.User, device.User,
		device.Sector,
		device.Status,
		device.MAC, device.Vendor, device.Hostname,
		device.LastSeen, device.UpdatedAt, device.IP)
	if err != nil {
		return fmt.Errorf("failed to update device %s: %w", device.IP, err)
	}
	return nil
}

func (s *SQLiteStore) SetDeviceStatus(ctx context.Context, table Table, ip string, status int) error {
	query := fmt.Sprintf("UPDATE %s SET status = ?, updated_at = ? WHERE ip = ?", tableName(table))
	if _, err := s.db.ExecContext(ctx, query, status, time.Now(), ip); err != nil {
		return fmt.Errorf("failed to set status for %s: %w", ip, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateDeviceStatusWithRetry(ctx context.Context, table Table, ip string, status int) bool {
	err := withRetry(ctx, maxRetryAttempts, retryBaseDelay, func() error {
		return s.SetDeviceStatus(ctx, table, ip, status)
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"ip":    ip,
			"table": tableName(table),
		}).Error("Status update abandoned after retries")
		return false
	}
	return true
}

func (s *SQLiteStore) InsertPingHistory(ctx context.Context, entry *PingHistory) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO ping_history (device_id, ip, status, response_time, timestamp) VALUES (?,?,?,?,?)",
		entry.DeviceID, entry.IP, entry.Status, entry.ResponseTime, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert ping history for %s: %w", entry.IP, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

func (s *SQLiteStore) GetPingHistory(ctx context.Context, ip string, limit int) ([]PingHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_id, ip, status, response_time, timestamp FROM ping_history
         WHERE ip = ? ORDER BY timestamp DESC LIMIT ?`, ip, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ping history: %w", err)
	}
	defer rows.Close()

	var history []PingHistory
	for rows.Next() {
		var h PingHistory
		if err := rows.Scan(&h.ID, &h.DeviceID, &h.IP, &h.Status, &h.ResponseTime, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan ping history row: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (s *SQLiteStore) PrunePingHistory(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM ping_history WHERE timestamp < ?", before)
	if err != nil {
		return 0, fmt.Errorf("failed to prune ping history: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting not found")
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?,?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// SeedSetting writes a setting only when it does not exist yet, so config
// file defaults never clobber values edited through the API.
func (s *SQLiteStore) SeedSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO settings (key, value) VALUES (?,?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to seed setting %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) GetSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// Execute is the error-containing query gateway: any storage failure is
// logged with the statement and arguments, and the zero-value result comes
// back so callers treat it as "no data". Reads return rows; writes return
// the affected-row count.
func (s *SQLiteStore) Execute(ctx context.Context, query string, args ...interface{}) ExecResult {
	if !isReadQuery(query) {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"query": query,
				"args":  args,
			}).Error("Statement failed")
			return ExecResult{Rows: []map[string]interface{}{}}
		}
		affected, _ := res.RowsAffected()
		return ExecResult{Rows: []map[string]interface{}{}, RowsAffected: affected}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"query": query,
			"args":  args,
		}).Error("Query failed")
		return ExecResult{Rows: []map[string]interface{}{}}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		logrus.WithError(err).WithField("query", query).Error("Failed to read columns")
		return ExecResult{Rows: []map[string]interface{}{}}
	}

	result := ExecResult{Rows: []map[string]interface{}{}}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			continue
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	result.RowsAffected = int64(len(result.Rows))

	return result
}

func isReadQuery(query string) bool {
	trimmed := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(trimmed, "SELECT") ||
		strings.HasPrefix(trimmed, "PRAGMA") ||
		strings.HasPrefix(trimmed, "WITH")
}

func (s *SQLiteStore) Close() error {
	// Checkpoint so the WAL is folded back into the main file on shutdown.
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		logrus.WithError(err).Warn("WAL checkpoint failed")
	}
	return s.db.Close()
}
