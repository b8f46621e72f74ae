package dll

import (
	"bufio"
	"os"
	"strings"

	"github.com/google/renameio"
	"golang.org/x/xerrors"
)

// Arch is a wine architecture a DLL override applies to.
type Arch int

const (
	X86 Arch = iota
	X64
)

func (a Arch) String() string {
	if a == X86 {
		return "X86"
	}
	return "X64"
}

// override is one reconciled (arch, stem) DLL-override entry.
type override struct {
	Arch Arch
	Stem string
}

// overrideSet is a set of override entries, used to diff "what's already
// on the ledger" against "what this run wants". Lookups compare only the
// stem for entries loaded from the stem-only format, since a stem-only
// entry is understood to apply to whichever arch actually installed it
// (spec.md §9's open question: readers must accept both historical
// formats).
type overrideSet struct {
	byArchStem map[Arch]map[string]bool
	stemOnly   map[string]bool
}

func newOverrideSet() *overrideSet {
	return &overrideSet{
		byArchStem: map[Arch]map[string]bool{X86: {}, X64: {}},
		stemOnly:   map[string]bool{},
	}
}

func (s *overrideSet) has(o override) bool {
	return s.stemOnly[o.Stem] || s.byArchStem[o.Arch][o.Stem]
}

func (s *overrideSet) add(o override) {
	s.byArchStem[o.Arch][o.Stem] = true
}

// loadOverrides reads <prefix>/.overrides, accepting both the historical
// "<ARCH> <stem>" format and the newer stem-only "<stem>" format (spec
// §6: "Readers must accept either.").
func loadOverrides(path string) (*overrideSet, error) {
	set := newOverrideSet()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return set, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			set.stemOnly[fields[0]] = true
		case 2:
			arch := X86
			if strings.EqualFold(fields[0], "X64") {
				arch = X64
			}
			set.byArchStem[arch][fields[1]] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.Errorf("reading %s: %w", path, err)
	}
	return set, nil
}

// appendOverrides appends newEntries to <prefix>/.overrides in the
// stem-only format that new writers standardize on, deduplicating stems
// that appear more than once in this run (e.g. installed at both arches).
func appendOverrides(path string, newEntries []override) error {
	if len(newEntries) == 0 {
		return nil
	}

	seen := map[string]bool{}
	var lines []string
	for _, o := range newEntries {
		if seen[o.Stem] {
			continue
		}
		seen[o.Stem] = true
		lines = append(lines, o.Stem)
	}

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return xerrors.Errorf("reading %s: %w", path, err)
	}

	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		b.WriteByte('\n')
	}
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if err := renameio.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return xerrors.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// stemOf derives a DLL override's registry stem from its installed
// filename: strip a trailing ".so" (NvidiaLibs ships *.dll.so), then
// strip ".dll".
func stemOf(filename string) string {
	name := strings.TrimSuffix(filename, ".so")
	return strings.TrimSuffix(name, ".dll")
}
