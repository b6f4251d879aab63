package operations

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/acwea904/qlback/internal/archive"
	"github.com/acwea904/qlback/internal/notify"
	"github.com/acwea904/qlback/internal/retention"
	"github.com/acwea904/qlback/internal/webdav"
)

// ErrUploadFailed indicates the artifact could not be stored remotely.
var ErrUploadFailed = errors.New("artifact upload failed")

// Run executes one backup: snapshot the source, upload the artifact,
// enforce retention, report, clean up. It returns nil only when the
// artifact was durably stored; retention and notification trouble is
// logged and absorbed. The scratch workspace is removed on every path
// out of here.
func (m *Manager) Run(ctx context.Context) error {
	start := time.Now()
	m.log.Info("backup started",
		"source", m.cfg.Backup.SourceDir,
		"store", m.cfg.Storage.URL,
	)

	// A missing source aborts here, before anything touches the network.
	m.log.Debug("entering state", "state", "init")
	if err := archive.CheckSource(m.cfg.Backup.SourceDir); err != nil {
		m.log.Error("source check failed", "error", err)
		return err
	}
	ws, err := NewWorkspace(m.cfg.Backup.WorkRoot, m.log)
	if err != nil {
		return fmt.Errorf("init workspace: %w", err)
	}
	defer ws.Remove()

	m.log.Debug("entering state", "state", "snapshotting")
	art, err := m.builder.Build(ctx, m.cfg.Backup.SourceDir, ws.Dir())
	if err != nil {
		m.log.Error("snapshot failed", "error", err)
		if !errors.Is(err, archive.ErrSourceMissing) {
			m.reporter.Send(ctx, notify.FormatFailure("snapshot", err.Error()))
		}
		return err
	}

	m.log.Debug("entering state", "state", "uploading")
	m.log.Info("uploading artifact", "name", art.Name, "bytes", art.SizeBytes)
	f, err := os.Open(art.Path)
	if err != nil {
		m.log.Error("upload failed", "name", art.Name, "error", err)
		m.reporter.Send(ctx, notify.FormatFailure("upload", err.Error()))
		return fmt.Errorf("%w: open artifact: %v", ErrUploadFailed, err)
	}
	status, upErr := m.store.Upload(ctx, art.Name, f, art.SizeBytes)
	f.Close()
	if !webdav.IsSuccess(status) {
		detail := fmt.Sprintf("status %d", status)
		if upErr != nil {
			detail = fmt.Sprintf("status %d: %v", status, upErr)
		}
		m.log.Error("upload failed", "name", art.Name, "status", status)
		m.reporter.Send(ctx, notify.FormatFailure("upload", detail))
		return fmt.Errorf("%w: %s", ErrUploadFailed, detail)
	}
	m.log.Info("artifact uploaded", "name", art.Name, "status", status)

	// The listing is taken only now, after the upload, so the new
	// artifact is part of it and sorts first.
	m.log.Debug("entering state", "state", "retaining")
	res, retErr := m.retain.Enforce(ctx, retention.Policy{KeepLast: m.cfg.Retention.KeepLast})
	if retErr != nil {
		m.log.Warn("cleanup skipped", "error", retErr)
	}

	m.log.Debug("entering state", "state", "reporting")
	m.reporter.Send(ctx, notify.Format(notify.Report{
		Artifact: art,
		Status:   status,
		Retained: res.Retained,
		KeepLast: m.cfg.Retention.KeepLast,
		Deleted:  res.Deleted,
		Duration: time.Since(start),
	}))

	m.log.Info("backup completed",
		"name", art.Name,
		"retained", res.Retained,
		"deleted", len(res.Deleted),
		"duration", time.Since(start).String(),
	)
	return nil
}
