// Package patch identifies a game edition/client version and resolves it to
// a CDN base URL via the patch-server handshake (spec §4.1, §6).
package patch

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Identity names a patch version: the two known major editions, or an exact
// client version string (e.g. "3.25.0.1" or "4.1.2").
type Identity struct {
	kind    identityKind
	literal string
}

type identityKind int

const (
	kindMajor1 identityKind = iota
	kindMajor2
	kindSpecific
)

var (
	Major1 = Identity{kind: kindMajor1}
	Major2 = Identity{kind: kindMajor2}
)

// Specific builds an Identity from an exact client version string.
func Specific(version string) Identity {
	return Identity{kind: kindSpecific, literal: version}
}

// Parse mirrors the original tool's convenience resolution: bare "1"/"2"
// collapse to the corresponding major edition, everything else becomes a
// Specific version string to be disambiguated by its prefix in Major().
func Parse(s string) (Identity, error) {
	switch s {
	case "1":
		return Major1, nil
	case "2":
		return Major2, nil
	case "":
		return Identity{}, fmt.Errorf("empty patch identity")
	default:
		return Specific(s), nil
	}
}

// Major projects an Identity to its major edition number (1 or 2). A
// Specific version is classified by its leading "3." or "4." prefix; any
// other prefix is rejected, matching the source tool's behavior.
func (p Identity) Major() (int, error) {
	switch p.kind {
	case kindMajor1:
		return 1, nil
	case kindMajor2:
		return 2, nil
	case kindSpecific:
		switch {
		case strings.HasPrefix(p.literal, "3."):
			return 1, nil
		case strings.HasPrefix(p.literal, "4."):
			return 2, nil
		default:
			return 0, fmt.Errorf("invalid patch version %q: expected a 3.x or 4.x prefix", p.literal)
		}
	default:
		return 0, fmt.Errorf("invalid patch identity")
	}
}

func (p Identity) String() string {
	switch p.kind {
	case kindMajor1:
		return "1"
	case kindMajor2:
		return "2"
	default:
		return p.literal
	}
}

// steamLibraryCandidates mirrors original_source/src/steam.rs: the common
// install locations across the platforms the original tool targeted, pared
// down to the ones relevant for the current OS.
func steamLibraryCandidates(home string) []string {
	switch runtime.GOOS {
	case "windows":
		return []string{`C:\Program Files (x86)\Grinding Gear Games`}
	case "darwin":
		return []string{filepath.Join(home, "Library/Application Support/Steam/steamapps/common")}
	default:
		return []string{
			filepath.Join(home, ".local/share/Steam/steamapps/common"),
			"/mnt/e/SteamLibrary/steamapps/common",
		}
	}
}

// DiscoverLocalInstall looks for a local Steam install of the game matching
// patch's major edition, returning its directory if found. It is a pure
// filesystem probe: no network access, no error on a miss.
func DiscoverLocalInstall(p Identity) (string, bool) {
	major, err := p.Major()
	if err != nil {
		return "", false
	}
	var game string
	switch major {
	case 1:
		game = "Path of Exile"
	case 2:
		game = "Path of Exile 2"
	default:
		return "", false
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}

	for _, base := range steamLibraryCandidates(home) {
		candidate := filepath.Join(base, game)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}
