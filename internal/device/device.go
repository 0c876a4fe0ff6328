// Package device enumerates Windows render endpoints and resolves a
// stable device identity from a user-visible name, via the malgo
// (miniaudio) bindings.
package device

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// SampleFormat mirrors the device mix formats rearfeed supports.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatF32
	FormatS16
	FormatS24
	FormatS32
)

func sampleFormatFrom(f malgo.FormatType) SampleFormat {
	switch f {
	case malgo.FormatF32:
		return FormatF32
	case malgo.FormatS16:
		return FormatS16
	case malgo.FormatS24:
		return FormatS24
	case malgo.FormatS32:
		return FormatS32
	default:
		return FormatUnknown
	}
}

// MixFormat describes a device's negotiated format.
type MixFormat struct {
	SampleRate uint32
	Channels   uint32
	Format     SampleFormat
}

// Handle is an opaque device identity plus the metadata callers need:
// a human name and current mix format. A Handle is valid
// only while the underlying endpoint exists; enumerating again after a
// device-removed event is required to get a fresh one.
type Handle struct {
	id        malgo.DeviceID
	Name      string
	IsDefault bool
	Mix       MixFormat
}

// ID exposes the underlying malgo device identity, needed to open a
// capture/playback stream against this exact endpoint.
func (h Handle) ID() malgo.DeviceID {
	return h.id
}

// ErrNotFound is returned by ResolveByName when no endpoint matches.
type ErrNotFound struct {
	Name string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("device not found: %q", e.Name)
}

// Enumerator lists and resolves Windows render endpoints.
type Enumerator struct {
	ctx *malgo.AllocatedContext
}

// New wraps an existing malgo context. The context's lifetime is owned
// by the caller (typically the routing engine, which also uses it to
// open capture/playback streams).
func New(ctx *malgo.AllocatedContext) *Enumerator {
	return &Enumerator{ctx: ctx}
}

// ListRenderEndpoints returns every render endpoint currently in the
// active state. Order is unspecified.
func (e *Enumerator) ListRenderEndpoints() ([]Handle, error) {
	infos, err := e.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate render endpoints: %w", err)
	}

	handles := make([]Handle, 0, len(infos))
	for _, info := range infos {
		handles = append(handles, fromDeviceInfo(info))
	}
	return handles, nil
}

// ResolveByName finds the render endpoint with the given name,
// tie-broken to the first match in enumeration order.
func (e *Enumerator) ResolveByName(name string) (Handle, error) {
	handles, err := e.ListRenderEndpoints()
	if err != nil {
		return Handle{}, err
	}
	for _, h := range handles {
		if h.Name == name {
			return h, nil
		}
	}
	return Handle{}, &ErrNotFound{Name: name}
}

// DefaultRenderEndpoint returns the system's default render endpoint.
func (e *Enumerator) DefaultRenderEndpoint() (Handle, error) {
	handles, err := e.ListRenderEndpoints()
	if err != nil {
		return Handle{}, err
	}
	for _, h := range handles {
		if h.IsDefault {
			return h, nil
		}
	}
	if len(handles) > 0 {
		return handles[0], nil
	}
	return Handle{}, &ErrNotFound{Name: "<default>"}
}

func fromDeviceInfo(info malgo.DeviceInfo) Handle {
	return Handle{
		id:        info.ID,
		Name:      info.Name(),
		IsDefault: info.IsDefault != 0,
		Mix: MixFormat{
			SampleRate: info.MaxSampleRate,
			Channels:   info.MaxChannels,
			Format:     sampleFormatFromFirst(info),
		},
	}
}

func sampleFormatFromFirst(info malgo.DeviceInfo) SampleFormat {
	if info.FormatCount == 0 {
		return FormatUnknown
	}
	return sampleFormatFrom(info.Formats[0])
}
