package volume

import (
	"errors"
	"fmt"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/gekko3d/probegi/gi/scene"
)

// Persister stores captured surfels, see store.Store.
type Persister interface {
	Save(v *ProbeVolume) error
}

// CaptureAll hides every probe's debug visualisation, captures the probes one
// by one in index order and persists the result. A failed probe is logged and
// left degraded; the remaining probes are still captured and saved. The
// returned error joins every probe failure and the save error.
func (v *ProbeVolume) CaptureAll(sc scene.Scene, store Persister) error {
	if len(v.probes) == 0 {
		return fmt.Errorf("capture: %w: volume has no probes", core.ErrUnallocated)
	}
	for _, p := range v.probes {
		p.DebugVisible = false
	}

	var errs []error
	for _, p := range v.probes {
		if err := p.Capture(sc); err != nil {
			v.logger.Warnf("probe %d capture failed, using sky surfels: %v", p.index, err)
			errs = append(errs, err)
		}
	}
	v.logger.Infof("captured %d probes, %d failed", len(v.probes), len(errs))

	if store != nil {
		if err := store.Save(v); err != nil {
			v.logger.Errorf("saving volume data: %v", err)
			errs = append(errs, fmt.Errorf("save: %w", err))
		}
	}
	return errors.Join(errs...)
}
