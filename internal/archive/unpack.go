// Package archive extracts the handful of archive formats the upstream
// release hosts use (spec.md §4.3): gzipped tar, xz tar, zstd tar, and a
// GitHub Actions artifact zip wrapping a single zstd tar member.
package archive

import (
	"archive/tar"
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/orcaman/writerseeker"
	"github.com/ulikunitz/xz"
	"golang.org/x/xerrors"
)

// ErrUnknownFormat is returned by Unpack when filename carries a suffix none
// of the supported decoders recognize.
type ErrUnknownFormat struct {
	Filename string
}

func (e *ErrUnknownFormat) Error() string {
	return fmt.Sprintf("archive: unrecognized format for %q", e.Filename)
}

// Unpack reads the archive named filename from r and extracts its contents
// under destDir, which must already exist. filename is used only to select
// a decoder by suffix; its bytes are never inspected.
func Unpack(r io.Reader, filename, destDir string) error {
	switch {
	case strings.HasSuffix(filename, ".tar.gz") || strings.HasSuffix(filename, ".tgz"):
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return xerrors.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		return untar(gz, destDir)

	case strings.HasSuffix(filename, ".tar.xz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return xerrors.Errorf("xz: %w", err)
		}
		return untar(xr, destDir)

	case strings.HasSuffix(filename, ".tar.zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return xerrors.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		return untar(zr, destDir)

	case strings.HasSuffix(filename, ".zip"):
		return unzipTarZst(r, destDir)

	default:
		return &ErrUnknownFormat{Filename: filename}
	}
}

// unzipTarZst handles the one zip shape this core ever downloads: a GitHub
// Actions artifact zip (spec §4.2, WineTkg) whose single relevant member is
// itself a zstd-compressed tar. archive/zip needs an io.ReaderAt, so the
// response body is buffered through a writerseeker first.
func unzipTarZst(r io.Reader, destDir string) error {
	var buf writerseeker.WriterSeeker
	if _, err := io.Copy(&buf, r); err != nil {
		return xerrors.Errorf("buffering zip: %w", err)
	}
	br := buf.BytesReader()

	zr, err := zip.NewReader(br, br.Size())
	if err != nil {
		return xerrors.Errorf("opening zip: %w", err)
	}

	var member *zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".tar.zst") {
			member = f
			break
		}
	}
	if member == nil {
		return xerrors.New("zip contains no .tar.zst member")
	}

	rc, err := member.Open()
	if err != nil {
		return xerrors.Errorf("opening %s: %w", member.Name, err)
	}
	defer rc.Close()

	zstr, err := zstd.NewReader(rc)
	if err != nil {
		return xerrors.Errorf("zstd: %w", err)
	}
	defer zstr.Close()

	return untar(zstr, destDir)
}

// ExtractMember streams a single archive (selected by filename's suffix,
// same decoders as Unpack) and writes the first tar entry whose name ends
// in memberSuffix to destPath with the given mode. Used for the auxiliary
// tool fetches that want one binary out of a distro package tarball
// without extracting (or flattening) the whole tree.
func ExtractMember(r io.Reader, filename, memberSuffix, destPath string, mode os.FileMode) error {
	tr, closer, err := tarReaderFor(r, filename)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return xerrors.Errorf("no member ending in %q found in %s", memberSuffix, filename)
		}
		if err != nil {
			return xerrors.Errorf("tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(hdr.Name, memberSuffix) {
			continue
		}

		f, err := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			return xerrors.Errorf("create %s: %w", destPath, err)
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return xerrors.Errorf("write %s: %w", destPath, err)
		}
		return f.Close()
	}
}

// tarReaderFor opens the tar stream inside r for the gz/xz/zst formats;
// zip-of-zst is not supported here since no auxiliary tool ships that way.
func tarReaderFor(r io.Reader, filename string) (*tar.Reader, func(), error) {
	switch {
	case strings.HasSuffix(filename, ".tar.gz") || strings.HasSuffix(filename, ".tgz"):
		gz, err := pgzip.NewReader(r)
		if err != nil {
			return nil, nil, xerrors.Errorf("gzip: %w", err)
		}
		return tar.NewReader(gz), func() { gz.Close() }, nil

	case strings.HasSuffix(filename, ".tar.xz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, xerrors.Errorf("xz: %w", err)
		}
		return tar.NewReader(xr), nil, nil

	case strings.HasSuffix(filename, ".tar.zst"):
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, xerrors.Errorf("zstd: %w", err)
		}
		return tar.NewReader(zr), func() { zr.Close() }, nil

	default:
		return nil, nil, &ErrUnknownFormat{Filename: filename}
	}
}

// untar extracts a tar stream into destDir, preserving file modes and
// symlinks. It refuses entries that would escape destDir.
func untar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return xerrors.Errorf("tar: %w", err)
		}

		target := filepath.Join(destDir, hdr.Name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(filepath.Separator)) && target != filepath.Clean(destDir) {
			return xerrors.Errorf("tar entry %q escapes destination", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode).Perm()|0700); err != nil {
				return xerrors.Errorf("mkdir %s: %w", target, err)
			}

		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return xerrors.Errorf("mkdir %s: %w", filepath.Dir(target), err)
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return xerrors.Errorf("symlink %s: %w", target, err)
			}

		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return xerrors.Errorf("mkdir %s: %w", filepath.Dir(target), err)
			}
			f, err := os.OpenFile(target, os.O_RDWR|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return xerrors.Errorf("create %s: %w", target, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return xerrors.Errorf("write %s: %w", target, err)
			}
			if err := f.Close(); err != nil {
				return xerrors.Errorf("close %s: %w", target, err)
			}

		default:
			// Device nodes, fifos and the like never appear in these
			// releases; skip rather than fail.
		}
	}
}
