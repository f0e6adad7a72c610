package recorder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/rgbdcapture/logging"
	"go.viam.com/rgbdcapture/rimage/transform"
)

// ManifestFile is the name of the manifest inside a recording's root directory.
const ManifestFile = "session.json"

// Manifest describes a recording so it can be interpreted without the device.
type Manifest struct {
	SessionID       string                       `json:"session_id"`
	StartedAt       time.Time                    `json:"started_at"`
	SerialNumber    string                       `json:"serial_number"`
	FirmwareVersion string                       `json:"firmware_version"`
	IR              *transform.IRCameraParams    `json:"ir_camera"`
	Color           *transform.ColorCameraParams `json:"color_camera"`
	DepthScale      float32                      `json:"depth_scale"`
	MaxDistanceMM   int64                        `json:"max_distance_mm"`
	FarDepthMM      float32                      `json:"far_depth_mm"`
	DepthDir        string                       `json:"depth_dir"`
	ColorDir        string                       `json:"color_dir"`
	DepthFormat     string                       `json:"depth_format"`
	ColorFormat     string                       `json:"color_format"`
	IndexFormat     string                       `json:"index_format"`
	LogLevel        logging.Level                `json:"log_level"`
}

// NewManifest stamps a manifest with a fresh session id and start time.
func NewManifest(startedAt time.Time) Manifest {
	return Manifest{
		SessionID:   uuid.New().String(),
		StartedAt:   startedAt.UTC(),
		IndexFormat: IndexFormat,
	}
}

// WriteManifest writes m into root.
func WriteManifest(root string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fn := filepath.Join(root, ManifestFile)
	if err := os.WriteFile(fn, data, 0o640); err != nil {
		return errors.Wrapf(err, "failed to write manifest %q", fn)
	}
	return nil
}

// ReadManifest reads the manifest in root.
func ReadManifest(root string) (Manifest, error) {
	var m Manifest
	//nolint:gosec
	data, err := os.ReadFile(filepath.Join(root, ManifestFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, errors.Wrap(err, "invalid manifest")
	}
	if _, err := uuid.Parse(m.SessionID); err != nil {
		return m, errors.Wrap(err, "invalid session id")
	}
	return m, nil
}
