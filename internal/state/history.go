package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RecordSample stores one cycle's analysis result
func (m *Manager) RecordSample(ctx context.Context, sample MetricSample) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sample.ID == "" {
		sample.ID = uuid.New().String()
	}

	query := `
		INSERT INTO metric_samples (
			id, camera_id, taken_at, mean_brightness, contrast,
			clipped_highlights, clipped_shadows, exposure_score,
			sharpness, focus_score, snapshot_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := m.db.GetDB().ExecContext(ctx, query,
		sample.ID, sample.CameraID, sample.TakenAt,
		sample.MeanBrightness, sample.Contrast,
		sample.ClippedHighlights, sample.ClippedShadows, sample.ExposureScore,
		sample.Sharpness, sample.FocusScore, sample.SnapshotPath); err != nil {
		return "", fmt.Errorf("failed to record sample: %w", err)
	}
	return sample.ID, nil
}

// RecentSamples returns a camera's newest samples, most recent first
func (m *Manager) RecentSamples(ctx context.Context, cameraID string, limit int) ([]MetricSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, camera_id, taken_at, mean_brightness, contrast,
			clipped_highlights, clipped_shadows, exposure_score,
			sharpness, focus_score, snapshot_path
		FROM metric_samples
		WHERE camera_id = ?
		ORDER BY taken_at DESC
		LIMIT ?
	`
	rows, err := m.db.GetDB().QueryContext(ctx, query, cameraID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []MetricSample
	for rows.Next() {
		var s MetricSample
		var snapshotPath sql.NullString
		if err := rows.Scan(&s.ID, &s.CameraID, &s.TakenAt,
			&s.MeanBrightness, &s.Contrast,
			&s.ClippedHighlights, &s.ClippedShadows, &s.ExposureScore,
			&s.Sharpness, &s.FocusScore, &snapshotPath); err != nil {
			return nil, err
		}
		s.SnapshotPath = snapshotPath.String
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// RecordAdjustment stores one advisor decision
func (m *Manager) RecordAdjustment(ctx context.Context, adj AdjustmentRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if adj.ID == "" {
		adj.ID = uuid.New().String()
	}

	reasons, err := json.Marshal(adj.Reasons)
	if err != nil {
		return "", fmt.Errorf("failed to marshal reasons: %w", err)
	}

	query := `
		INSERT INTO adjustments (
			id, camera_id, decided_at,
			iso_from, iso_to, ev_from, ev_to,
			aperture_from, aperture_to, shutter_from, shutter_to,
			confidence, reasons, applied
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := m.db.GetDB().ExecContext(ctx, query,
		adj.ID, adj.CameraID, adj.DecidedAt,
		adj.ISOFrom, adj.ISOTo, adj.EVFrom, adj.EVTo,
		adj.ApertureFrom, adj.ApertureTo, adj.ShutterFrom, adj.ShutterTo,
		adj.Confidence, string(reasons), adj.Applied); err != nil {
		return "", fmt.Errorf("failed to record adjustment: %w", err)
	}
	return adj.ID, nil
}

// RecentAdjustments returns a camera's adjustment history, most recent first
func (m *Manager) RecentAdjustments(ctx context.Context, cameraID string, limit int) ([]AdjustmentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, camera_id, decided_at,
			iso_from, iso_to, ev_from, ev_to,
			aperture_from, aperture_to, shutter_from, shutter_to,
			confidence, reasons, applied
		FROM adjustments
		WHERE camera_id = ?
		ORDER BY decided_at DESC
		LIMIT ?
	`
	rows, err := m.db.GetDB().QueryContext(ctx, query, cameraID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var adjustments []AdjustmentRecord
	for rows.Next() {
		var adj AdjustmentRecord
		var reasons sql.NullString
		if err := rows.Scan(&adj.ID, &adj.CameraID, &adj.DecidedAt,
			&adj.ISOFrom, &adj.ISOTo, &adj.EVFrom, &adj.EVTo,
			&adj.ApertureFrom, &adj.ApertureTo, &adj.ShutterFrom, &adj.ShutterTo,
			&adj.Confidence, &reasons, &adj.Applied); err != nil {
			return nil, err
		}
		if reasons.Valid && reasons.String != "" {
			if err := json.Unmarshal([]byte(reasons.String), &adj.Reasons); err != nil {
				m.log.Warn("Skipping malformed adjustment reasons", "id", adj.ID, "error", err)
			}
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}
