package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/gekko3d/probegi/gi/volume"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// VolumeData is the persisted capture of a probe volume: per probe, per
// surfel, the ten surfel fields in order, plus the anchor and grid
// dimensions at capture time.
type VolumeData struct {
	ID             uuid.UUID
	VolumePosition mgl32.Vec3
	// Dims is zero for records that predate dimension tagging.
	Dims       core.GridSize
	SurfelData []float32
}

// ExpectedLength is the float count a volume's capture occupies.
func ExpectedLength(v *volume.ProbeVolume) int {
	return v.ProbeCount() * core.SurfelsPerProbe * core.FieldsPerSurfel
}

// Store saves and restores volume captures, in memory and, when Path is
// set, in a zstd compressed file.
type Store struct {
	Data   *VolumeData
	Path   string
	Logger core.Logger
}

func New(path string, logger core.Logger) *Store {
	return &Store{Path: path, Logger: logger}
}

func (s *Store) logger() core.Logger {
	return core.OrNop(s.Logger)
}

// Save reads back every probe's surfels and records them with the volume's
// anchor and dimensions. The record keeps its ID across saves.
func (s *Store) Save(v *volume.ProbeVolume) error {
	data := make([]float32, 0, ExpectedLength(v))
	for _, p := range v.Probes() {
		if err := p.SyncSurfels(); err != nil {
			return err
		}
		for _, surfel := range p.Surfels() {
			f := surfel.Fields()
			data = append(data, f[:]...)
		}
	}

	id := uuid.New()
	if s.Data != nil {
		id = s.Data.ID
	}
	s.Data = &VolumeData{
		ID:             id,
		VolumePosition: v.Anchor(),
		Dims:           v.Size(),
		SurfelData:     data,
	}
	if s.Path != "" {
		if err := s.writeFile(); err != nil {
			return err
		}
	}
	s.logger().Infof("saved %d probes (%d floats) for volume at %v", v.ProbeCount(), len(data), v.Anchor())
	return nil
}

func (s *Store) writeFile() error {
	blob, err := Encode(s.Data)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0644); err != nil {
		return fmt.Errorf("write volume data: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write volume data: %w", err)
	}
	return nil
}

// Load replaces Data with the contents of Path.
func (s *Store) Load() error {
	if s.Path == "" {
		return errors.New("store: no path")
	}
	blob, err := os.ReadFile(s.Path)
	if err != nil {
		return err
	}
	d, err := Decode(blob)
	if err != nil {
		return fmt.Errorf("%s: %w", s.Path, err)
	}
	s.Data = d
	return nil
}

// Validate reports ErrStaleData when the record does not fit v: a length or
// dimension mismatch, or any change of anchor.
func (s *Store) Validate(v *volume.ProbeVolume) error {
	d := s.Data
	if d == nil {
		return fmt.Errorf("%w: no captured data", core.ErrStaleData)
	}
	if want := ExpectedLength(v); len(d.SurfelData) != want {
		return fmt.Errorf("%w: %d floats stored, grid %v needs %d", core.ErrStaleData, len(d.SurfelData), v.Size(), want)
	}
	if d.Dims != (core.GridSize{}) && d.Dims != v.Size() {
		return fmt.Errorf("%w: captured for grid %v, volume is %v", core.ErrStaleData, d.Dims, v.Size())
	}
	if d.VolumePosition != v.Anchor() {
		return fmt.Errorf("%w: captured at %v, volume is at %v", core.ErrStaleData, d.VolumePosition, v.Anchor())
	}
	return nil
}

// TryLoad restores every probe's surfels from the record and uploads them.
// When the record is stale it logs a warning, touches nothing and returns an
// error wrapping core.ErrStaleData. A missing file counts as stale.
func (s *Store) TryLoad(v *volume.ProbeVolume) error {
	if s.Data == nil && s.Path != "" {
		if err := s.Load(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = fmt.Errorf("%w: %v", core.ErrStaleData, err)
				s.logger().Warnf("volume data is old, please re-capture: %v", err)
			}
			return err
		}
	}
	if err := s.Validate(v); err != nil {
		s.logger().Warnf("volume data is old, please re-capture: %v", err)
		return err
	}

	data := s.Data.SurfelData
	j := 0
	for _, p := range v.Probes() {
		surfels := p.Surfels()
		for i := range surfels {
			surfels[i] = core.SurfelFromFields(data[j : j+core.FieldsPerSurfel])
			j += core.FieldsPerSurfel
		}
		if err := p.UploadSurfels(); err != nil {
			return err
		}
	}
	s.logger().Debugf("loaded %d probes for volume at %v", v.ProbeCount(), v.Anchor())
	return nil
}
