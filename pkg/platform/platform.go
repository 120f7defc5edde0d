// Package platform maps social-media platform names to the output geometry
// and encoding hints their feeds expect.
package platform

import (
	"fmt"
	"sort"

	"github.com/sko/reframe/pkg/types"
)

// Platform describes one output target.
type Platform interface {
	// GetName returns the platform name used on the command line.
	GetName() string

	// GetTargetSpec returns the output dimensions videos and images are
	// reframed to.
	GetTargetSpec() types.TargetSpec

	// GetMaxDuration returns the maximum clip duration in seconds.
	GetMaxDuration() int

	// GetVideoBitrate returns the recommended video bitrate.
	GetVideoBitrate() string

	// GetOutputFormat returns the preferred container format.
	GetOutputFormat() string
}

var platforms = make(map[string]Platform)

// Register adds a platform to the registry.
func Register(p Platform) {
	platforms[p.GetName()] = p
}

// Get returns a platform by name.
func Get(name string) (Platform, error) {
	p, ok := platforms[name]
	if !ok {
		return nil, fmt.Errorf("unsupported platform: %s", name)
	}
	return p, nil
}

// Supported returns the sorted list of registered platform names.
func Supported() []string {
	names := make([]string, 0, len(platforms))
	for name := range platforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
