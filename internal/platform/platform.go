// Package platform describes which assemblies supply the game types on each
// target platform.
package platform

import (
	"fmt"
	"strings"
)

// Platform is an operating system the game runs on.
type Platform string

// supported platforms.
const (
	Windows Platform = "windows"
	Linux   Platform = "linux"
	Mac     Platform = "mac"
)

// Parse returns the platform for the given name. Go runtime names are accepted
// as aliases.
func Parse(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win":
		return Windows, nil
	case "linux":
		return Linux, nil
	case "mac", "macos", "osx", "darwin":
		return Mac, nil
	default:
		return "", fmt.Errorf("unsupported platform '%s'", s)
	}
}

// String implements fmt.Stringer.
func (p Platform) String() string {
	return string(p)
}

// IsWindows returns whether the platform uses the Windows game build.
func (p Platform) IsWindows() bool {
	return p == Windows
}

// SameBuild returns whether both platforms run the same game build, Linux and
// Mac share their assemblies.
func (p Platform) SameBuild(other Platform) bool {
	return p.IsWindows() == other.IsWindows()
}
