package brie

import "strings"

// Library identifies a graphics-translation or auxiliary DLL bundle that can
// be installed into a wine prefix. Each has a fixed provider, repo and asset
// filter — see internal/provider.Route.
type Library int

const (
	Dxvk Library = iota
	DxvkGplAsync
	DxvkNvapi
	NvidiaLibs
	Vkd3dProton
)

// Name is the on-disk / cache-key name of the library, matching the
// upstream project's slug.
func (l Library) Name() string {
	switch l {
	case Dxvk:
		return "dxvk"
	case DxvkGplAsync:
		return "dxvk-gplasync"
	case DxvkNvapi:
		return "dxvk-nvapi"
	case NvidiaLibs:
		return "nvidia-libs"
	case Vkd3dProton:
		return "vkd3d-proton"
	default:
		return "unknown"
	}
}

func (l Library) String() string { return l.Name() }

// ReleaseVersion selects either the newest release a provider reports
// ("*"/"latest" in serialized form) or a specific tag.
type ReleaseVersion struct {
	latest bool
	tag    string
}

// Latest is the sentinel meaning "whatever the provider currently returns
// as newest".
var Latest = ReleaseVersion{latest: true}

// Tag selects a concrete, never re-checked release tag.
func Tag(tag string) ReleaseVersion { return ReleaseVersion{tag: tag} }

func (v ReleaseVersion) IsLatest() bool { return v.latest }

// Key is the on-disk version directory name: "latest" for the Latest
// sentinel, or the literal tag otherwise.
func (v ReleaseVersion) Key() string {
	if v.latest {
		return "latest"
	}
	return v.tag
}

func (v ReleaseVersion) String() string { return v.Key() }

// ParseReleaseVersion accepts the serialized wildcard forms ("*", "latest")
// as Latest and anything else as a literal Tag.
func ParseReleaseVersion(s string) ReleaseVersion {
	if s == "*" || s == "latest" {
		return Latest
	}
	return Tag(s)
}

// Runtime selects the compatibility-layer binary ("wine") a Unit runs
// under.
type Runtime struct {
	kind    runtimeKind
	path    string // System only; empty means "look up on PATH"
	version ReleaseVersion
}

type runtimeKind int

const (
	runtimeSystem runtimeKind = iota
	runtimeGeProton
	runtimeTkg
)

// SystemRuntime uses the host's installed wine, optionally rooted at path
// (path/wine is the binary looked up). An empty path means "use $PATH".
func SystemRuntime(path string) Runtime {
	return Runtime{kind: runtimeSystem, path: path}
}

// GeProtonRuntime fetches and uses a GE-Proton wine-ge-custom build.
func GeProtonRuntime(version ReleaseVersion) Runtime {
	return Runtime{kind: runtimeGeProton, version: version}
}

// TkgRuntime fetches and uses a wine-tkg-git workflow-artifact build.
func TkgRuntime(version ReleaseVersion) Runtime {
	return Runtime{kind: runtimeTkg, version: version}
}

func (r Runtime) IsSystem() bool   { return r.kind == runtimeSystem }
func (r Runtime) IsGeProton() bool { return r.kind == runtimeGeProton }
func (r Runtime) IsTkg() bool      { return r.kind == runtimeTkg }
func (r Runtime) Path() string     { return r.path }
func (r Runtime) Version() ReleaseVersion {
	return r.version
}

// LibraryVersion is one entry of Unit.Libraries, preserving insertion
// order (the provisioning order in which DLLs are installed matters: later
// libraries can overwrite earlier ones' overrides).
type LibraryVersion struct {
	Library Library
	Version ReleaseVersion
}

// EnvVar is one entry of an ordered env mapping.
type EnvVar struct {
	Name  string
	Value string
}

// Mount is a single drive-letter-to-host-path mapping.
type Mount struct {
	Drive  byte // e.g. 'r'
	Target string
}

// Unit is the fully-resolved launch request: everything launch.Pipeline
// needs to provision a prefix and run a command in it. Config parsing
// (YAML) and CLI dispatch that produce a Unit live outside this module.
type Unit struct {
	Runtime   Runtime
	Libraries []LibraryVersion
	Env       []EnvVar

	// Prefix is the directory name under Paths.Prefixes. See SanitizePrefix.
	Prefix string

	Mounts     []Mount
	Before     [][]string
	Winetricks []string

	// Cd is the optional working directory for Command, shell-expandable
	// (e.g. "$HOME/Games"). When empty, the command runs in
	// "<prefix>/drive_c".
	Cd string

	// Command is the argv to run inside the prefix. Empty means "only
	// provision, don't run anything".
	Command []string

	// Wrapper is prepended to Command's argv (e.g. ["gamemoderun"]).
	Wrapper []string
}

// prefixDisallowed are the characters stripped from a prefix name:
// '/', '\', ':', '*', '?', '"', '<', '>', '|'.
const prefixDisallowed = "/\\:*?\"<>|"

// SanitizePrefix removes filesystem-hostile characters from a candidate
// prefix name. If name is empty, falls back to humanName, falling back in
// turn to key.
func SanitizePrefix(name, humanName, key string) string {
	candidate := name
	if candidate == "" {
		candidate = humanName
	}
	if candidate == "" {
		candidate = key
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(prefixDisallowed, r) {
			return -1
		}
		return r
	}, candidate)
}
