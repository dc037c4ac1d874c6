package storage

import (
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/surfvision/camtuner/internal/analysis"
	"github.com/surfvision/camtuner/internal/logger"
	"github.com/surfvision/camtuner/internal/video"
)

// StoreConfig configures the snapshot store
type StoreConfig struct {
	BaseDir           string
	JPEGQuality       int
	AnnotateFocusGrid bool
}

// SnapshotInfo describes one stored snapshot
type SnapshotInfo struct {
	Path      string    `json:"path"`
	CameraID  string    `json:"camera_id"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotStore writes per-cycle JPEG snapshots under
// <base>/<camera>/<date>/<time>.jpg
type SnapshotStore struct {
	baseDir  string
	quality  int
	annotate bool
	log      *logger.Logger
	mu       sync.Mutex
}

// NewSnapshotStore creates the store and its base directory
func NewSnapshotStore(cfg StoreConfig, log *logger.Logger) (*SnapshotStore, error) {
	quality := cfg.JPEGQuality
	if quality < 1 || quality > 100 {
		quality = 85
	}

	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	return &SnapshotStore{
		baseDir:  cfg.BaseDir,
		quality:  quality,
		annotate: cfg.AnnotateFocusGrid,
		log:      log,
	}, nil
}

// BaseDir returns the store's root directory
func (s *SnapshotStore) BaseDir() string {
	return s.baseDir
}

// Save encodes the frame as JPEG. When annotation is enabled and a focus
// grid is supplied, the grid is drawn onto a copy of the frame first.
func (s *SnapshotStore) Save(cameraID string, frame *video.Frame, grid *analysis.FocusGrid) (SnapshotInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img := frame.Image
	if s.annotate && grid != nil {
		img = drawFocusGrid(img, grid)
	}

	now := frame.CapturedAt
	if now.IsZero() {
		now = time.Now()
	}
	dir := filepath.Join(s.baseDir, sanitizeID(cameraID), now.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return SnapshotInfo{}, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.jpg", now.Format("150405"), uuid.New().String()[:8])
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: s.quality}); err != nil {
		os.Remove(path)
		return SnapshotInfo{}, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("failed to stat snapshot: %w", err)
	}

	info := SnapshotInfo{
		Path:      path,
		CameraID:  cameraID,
		SizeBytes: stat.Size(),
		CreatedAt: now,
	}
	s.log.Info("Snapshot saved", "camera_id", cameraID, "path", path, "bytes", info.SizeBytes)
	return info, nil
}

// Latest returns the newest snapshot for a camera
func (s *SnapshotStore) Latest(cameraID string) (SnapshotInfo, error) {
	snapshots, err := s.List(cameraID)
	if err != nil {
		return SnapshotInfo{}, err
	}
	if len(snapshots) == 0 {
		return SnapshotInfo{}, fmt.Errorf("no snapshots for camera %s", cameraID)
	}
	return snapshots[len(snapshots)-1], nil
}

// List returns a camera's snapshots in chronological order
func (s *SnapshotStore) List(cameraID string) ([]SnapshotInfo, error) {
	root := filepath.Join(s.baseDir, sanitizeID(cameraID))

	var snapshots []SnapshotInfo
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".jpg") {
			return err
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		snapshots = append(snapshots, SnapshotInfo{
			Path:      path,
			CameraID:  cameraID,
			SizeBytes: fi.Size(),
			CreatedAt: fi.ModTime(),
		})
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.Before(snapshots[j].CreatedAt)
	})
	return snapshots, nil
}

// sanitizeID keeps camera IDs filesystem-safe
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
