// Command brie is a thin peripheral launcher binary around the
// provisioning core. Unit loading and CLI flag surface are intentionally
// minimal — config-file parsing and storefront integration live outside
// this module (spec.md §1's Non-goals).
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/briehq/brie"
	"github.com/briehq/brie/internal/launch"
	"github.com/briehq/brie/internal/provider"
)

var (
	unitPath = flag.String("unit", "", "path to a JSON-encoded Unit describing what to provision and run")
	dataHome = flag.String("data-home", "", "data directory root (default: $XDG_DATA_HOME/brie or $HOME/.local/share/brie)")
	debug    = flag.Bool("debug", false, "debug logging")
)

func main() {
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		TimeFormat: time.Kitchen,
		Level:      level,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	if err := run(); err != nil {
		slog.Error("launch failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if *unitPath == "" {
		return errMissingUnit{}
	}

	unit, err := loadUnit(*unitPath)
	if err != nil {
		return err
	}

	paths := brie.New(resolveDataHome())
	tokens := provider.Tokens{GitHub: os.Getenv("BRIE_GITHUB_TOKEN")}
	pipeline := launch.New(paths, tokens, slog.Default())

	return pipeline.Launch(unit)
}

type errMissingUnit struct{}

func (errMissingUnit) Error() string { return "-unit is required" }

// jsonUnit is the on-disk shape a Unit is loaded from. It mirrors
// brie.Unit field-for-field; config parsing proper (YAML, storefront
// manifests) lives outside this module.
type jsonUnit struct {
	Runtime struct {
		Kind    string `json:"kind"` // "system", "ge-proton", "tkg"
		Path    string `json:"path,omitempty"`
		Version string `json:"version,omitempty"`
	} `json:"runtime"`
	Libraries []struct {
		Name    string `json:"name"`
		Version string `json:"version,omitempty"`
	} `json:"libraries"`
	Env []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"env"`
	Prefix string `json:"prefix"`
	Mounts []struct {
		Drive  string `json:"drive"`
		Target string `json:"target"`
	} `json:"mounts"`
	Before     [][]string `json:"before"`
	Winetricks []string   `json:"winetricks"`
	Cd         string     `json:"cd"`
	Command    []string   `json:"command"`
	Wrapper    []string   `json:"wrapper"`
}

func loadUnit(path string) (brie.Unit, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return brie.Unit{}, err
	}
	var ju jsonUnit
	if err := json.Unmarshal(b, &ju); err != nil {
		return brie.Unit{}, err
	}

	u := brie.Unit{
		Prefix:     ju.Prefix,
		Before:     ju.Before,
		Winetricks: ju.Winetricks,
		Cd:         ju.Cd,
		Command:    ju.Command,
		Wrapper:    ju.Wrapper,
	}

	switch ju.Runtime.Kind {
	case "ge-proton":
		u.Runtime = brie.GeProtonRuntime(brie.ParseReleaseVersion(orLatest(ju.Runtime.Version)))
	case "tkg":
		u.Runtime = brie.TkgRuntime(brie.ParseReleaseVersion(orLatest(ju.Runtime.Version)))
	default:
		u.Runtime = brie.SystemRuntime(ju.Runtime.Path)
	}

	for _, l := range ju.Libraries {
		lib, ok := libraryByName(l.Name)
		if !ok {
			continue
		}
		u.Libraries = append(u.Libraries, brie.LibraryVersion{
			Library: lib,
			Version: brie.ParseReleaseVersion(orLatest(l.Version)),
		})
	}
	for _, e := range ju.Env {
		u.Env = append(u.Env, brie.EnvVar{Name: e.Name, Value: e.Value})
	}
	for _, m := range ju.Mounts {
		if len(m.Drive) != 1 {
			continue
		}
		u.Mounts = append(u.Mounts, brie.Mount{Drive: m.Drive[0], Target: m.Target})
	}

	u.Prefix = brie.SanitizePrefix(u.Prefix, "", u.Prefix)
	return u, nil
}

func orLatest(s string) string {
	if s == "" {
		return "latest"
	}
	return s
}

func libraryByName(name string) (brie.Library, bool) {
	for _, l := range []brie.Library{brie.Dxvk, brie.DxvkGplAsync, brie.DxvkNvapi, brie.Vkd3dProton, brie.NvidiaLibs} {
		if l.Name() == name {
			return l, true
		}
	}
	return brie.Library(-1), false
}

func resolveDataHome() string {
	if *dataHome != "" {
		return *dataHome
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return xdg + "/brie"
	}
	return os.Getenv("HOME") + "/.local/share/brie"
}
