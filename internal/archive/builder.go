package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/acwea904/qlback/internal/logger"
)

// ErrSourceMissing indicates the snapshot source directory does not exist.
var ErrSourceMissing = errors.New("backup source missing")

// ErrBuildFailed indicates the snapshot or packaging step failed.
var ErrBuildFailed = errors.New("backup build failed")

// CheckSource verifies sourceDir exists and is a directory.
func CheckSource(sourceDir string) error {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceMissing, sourceDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrSourceMissing, sourceDir)
	}
	return nil
}

// Builder produces canonical tar.gz artifacts from a directory tree.
type Builder struct {
	log logger.Logger
}

func NewBuilder(log logger.Logger) *Builder {
	return &Builder{log: log}
}

// Build snapshots sourceDir into workDir by copying it, then packages the
// copy as a tar.gz artifact next to it. The live source tree is only ever
// read; compression always works on the private copy.
func (b *Builder) Build(ctx context.Context, sourceDir, workDir string) (Artifact, error) {
	if err := CheckSource(sourceDir); err != nil {
		return Artifact{}, err
	}

	createdAt := time.Now().In(ArtifactZone)
	name := ArtifactName(createdAt)

	snapshotDir := filepath.Join(workDir, filepath.Base(sourceDir))
	b.log.Info("snapshot started", "source", sourceDir, "snapshot", snapshotDir)
	if err := b.copyTree(ctx, sourceDir, snapshotDir); err != nil {
		return Artifact{}, fmt.Errorf("%w: snapshot %s: %v", ErrBuildFailed, sourceDir, err)
	}

	archivePath := filepath.Join(workDir, name)
	if err := b.pack(ctx, snapshotDir, archivePath); err != nil {
		return Artifact{}, fmt.Errorf("%w: package %s: %v", ErrBuildFailed, archivePath, err)
	}

	stat, err := os.Stat(archivePath)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: stat artifact: %v", ErrBuildFailed, err)
	}
	b.log.Info("artifact packaged", "name", name, "bytes", stat.Size())

	return Artifact{
		Name:      name,
		Path:      archivePath,
		CreatedAt: createdAt,
		SizeBytes: stat.Size(),
	}, nil
}

// copyTree mirrors directories, regular files and symlinks from src into
// dst. Other entry types are skipped with a warning.
func (b *Builder) copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		case d.Type().IsRegular():
			return copyFile(path, target)
		default:
			b.log.Warn("skipping irregular entry", "path", path, "mode", d.Type().String())
			return nil
		}
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// archiveWriters bundles the layered file, gzip and tar writers so they
// can be closed in reverse order, keeping the first error.
type archiveWriters struct {
	tw      *tar.Writer
	closers []io.Closer
}

func newArchiveWriters(path string) (*archiveWriters, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	gz, err := gzip.NewWriterLevel(f, gzip.DefaultCompression)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	return &archiveWriters{
		tw:      tar.NewWriter(gz),
		closers: []io.Closer{f, gz},
	}, nil
}

func (aw *archiveWriters) Close() error {
	var firstErr error
	if err := aw.tw.Close(); err != nil {
		firstErr = err
	}
	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// pack writes snapshotDir into a tar.gz at archivePath, entries rooted at
// the snapshot directory's base name.
func (b *Builder) pack(ctx context.Context, snapshotDir, archivePath string) error {
	aw, err := newArchiveWriters(archivePath)
	if err != nil {
		return err
	}

	root := filepath.Base(snapshotDir)
	walkErr := filepath.WalkDir(snapshotDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(snapshotDir, path)
		if err != nil {
			return err
		}
		name := root
		if rel != "." {
			name = filepath.ToSlash(filepath.Join(root, rel))
		}

		link := ""
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = name
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := aw.tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(aw.tw, f)
		return err
	})

	closeErr := aw.Close()
	if walkErr != nil {
		return walkErr
	}
	return closeErr
}
