package scene

import (
	"errors"

	"github.com/gekko3d/probegi/gi/core"
	"github.com/go-gl/mathgl/mgl32"
)

// Channel selects which G-buffer attribute an override shader writes.
type Channel int

const (
	ChannelWorldPosition Channel = iota
	ChannelNormal
	ChannelAlbedo
)

// Channels lists the capture passes in render order.
var Channels = [...]Channel{ChannelWorldPosition, ChannelNormal, ChannelAlbedo}

func (c Channel) String() string {
	switch c {
	case ChannelWorldPosition:
		return "world-position"
	case ChannelNormal:
		return "normal"
	case ChannelAlbedo:
		return "albedo"
	}
	return "unknown"
}

var (
	ErrOverrideBusy    = errors.New("scene: shading override already acquired")
	ErrNoOverride      = errors.New("scene: no shading override active")
	ErrCameraDestroyed = errors.New("scene: camera destroyed")
)

// Scene is the rendering collaborator used by probe capture.
//
// AcquireOverride replaces every surface shader with one that writes the
// channel's world-space value. The returned release restores the original
// shading and is safe to call more than once. At most one override is active.
type Scene interface {
	AcquireOverride(ch Channel) (func(), error)
	NewCamera(pos mgl32.Vec3, clear mgl32.Vec4) (Camera, error)
}

// Camera renders the scene around a point into a cube render target.
type Camera interface {
	// RenderToCubemap renders the active override channel. A nil target is a no-op.
	RenderToCubemap(target *core.Cubemap) error
	Destroy()
}
