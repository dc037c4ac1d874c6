package state

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/surfvision/camtuner/internal/logger"
)

// Manager persists camera identity, analysis samples and adjustment history
type Manager struct {
	db  *Database
	log *logger.Logger
	mu  sync.RWMutex
}

// NewManager opens the tuning database under dataDir
func NewManager(dataDir string, log *logger.Logger) (*Manager, error) {
	dbPath := filepath.Join(dataDir, "db", "camtuner.db")

	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}

	return &Manager{
		db:  db,
		log: log,
	}, nil
}

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}

// GetDB returns the database connection, for health checks
func (m *Manager) GetDB() *sql.DB {
	return m.db.GetDB()
}

// SaveSystemState saves a key/value pair
func (m *Manager) SaveSystemState(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := `
		INSERT INTO system_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := m.db.GetDB().ExecContext(ctx, query, key, value, time.Now()); err != nil {
		return fmt.Errorf("failed to save system state: %w", err)
	}
	return nil
}

// GetSystemState retrieves a value; missing keys return an empty string
func (m *Manager) GetSystemState(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var value string
	err := m.db.GetDB().QueryRowContext(ctx,
		`SELECT value FROM system_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get system state: %w", err)
	}
	return value, nil
}

// SaveCamera inserts or updates a camera record
func (m *Manager) SaveCamera(ctx context.Context, cam CameraRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	query := `
		INSERT INTO cameras (id, ip, rtsp_url, last_seen, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ip = excluded.ip,
			rtsp_url = excluded.rtsp_url,
			last_seen = excluded.last_seen,
			updated_at = excluded.updated_at
	`

	var lastSeen interface{}
	if cam.LastSeen != nil {
		lastSeen = *cam.LastSeen
	}

	if _, err := m.db.GetDB().ExecContext(ctx, query,
		cam.ID, cam.IP, cam.RTSPURL, lastSeen, time.Now()); err != nil {
		return fmt.Errorf("failed to save camera: %w", err)
	}
	return nil
}

// GetCamera retrieves a camera by ID, nil when unknown
func (m *Manager) GetCamera(ctx context.Context, cameraID string) (*CameraRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var cam CameraRecord
	var lastSeen sql.NullTime
	err := m.db.GetDB().QueryRowContext(ctx,
		`SELECT id, ip, rtsp_url, last_seen FROM cameras WHERE id = ?`, cameraID).
		Scan(&cam.ID, &cam.IP, &cam.RTSPURL, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}

	if lastSeen.Valid {
		cam.LastSeen = &lastSeen.Time
	}
	return &cam, nil
}

// ListCameras lists all known cameras
func (m *Manager) ListCameras(ctx context.Context) ([]CameraRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.GetDB().QueryContext(ctx,
		`SELECT id, ip, rtsp_url, last_seen FROM cameras ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	defer rows.Close()

	var cameras []CameraRecord
	for rows.Next() {
		var cam CameraRecord
		var lastSeen sql.NullTime
		if err := rows.Scan(&cam.ID, &cam.IP, &cam.RTSPURL, &lastSeen); err != nil {
			return nil, err
		}
		if lastSeen.Valid {
			cam.LastSeen = &lastSeen.Time
		}
		cameras = append(cameras, cam)
	}
	return cameras, rows.Err()
}

// UpdateCameraLastSeen stamps a camera as recently contacted
func (m *Manager) UpdateCameraLastSeen(ctx context.Context, cameraID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if _, err := m.db.GetDB().ExecContext(ctx,
		`UPDATE cameras SET last_seen = ?, updated_at = ? WHERE id = ?`,
		now, now, cameraID); err != nil {
		return fmt.Errorf("failed to update camera last seen: %w", err)
	}
	return nil
}
