package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/riaaa16/ai-consultant/internal/backup"
	"github.com/riaaa16/ai-consultant/internal/history"
	"github.com/riaaa16/ai-consultant/internal/patch"
	"github.com/riaaa16/ai-consultant/internal/pathguard"
	"github.com/riaaa16/ai-consultant/internal/schema"
	"github.com/riaaa16/ai-consultant/pkg/logger"
	"github.com/riaaa16/ai-consultant/pkg/metrics"
)

// schemaFiles maps each editable file to the schema that gates it.
var schemaFiles = map[string]string{
	pathguard.AllowedFile: "site.schema.json",
}

// UpdateResult describes a successful ApplyUpdate.
type UpdateResult struct {
	Status    string          `json:"status"`
	File      string          `json:"file"`
	Operation patch.Operation `json:"operation"`
	Backup    string          `json:"backup"`
	// Path is the absolute location of the written file.
	Path string `json:"-"`
}

// RestoreResult describes a successful Restore.
type RestoreResult struct {
	Status          string `json:"status"`
	File            string `json:"file"`
	RestoredFrom    string `json:"restored_from"`
	BackupOfCurrent string `json:"backup_of_current"`
	Path            string `json:"-"`
}

// Updater applies validated patches to the files under a content root.
// It performs no locking: concurrent writers race and the last one wins.
type Updater struct {
	root    string
	schemas *schema.Loader
	backups *backup.Store
	history history.Repository
}

type options struct {
	backup  []backup.Option
	history history.Repository
}

type Option func(*options)

// WithMirror copies every new backup to m as well.
func WithMirror(m backup.Mirror) Option {
	return func(o *options) { o.backup = append(o.backup, backup.WithMirror(m)) }
}

// WithHistory records every successful write in r.
func WithHistory(r history.Repository) Option {
	return func(o *options) { o.history = r }
}

// WithClock overrides the clock used to stamp backups.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(o *options) { o.backup = append(o.backup, backup.WithClock(now, sleep)) }
}

// New returns an Updater for the content under root, validated with schemas
// from schemaDir.
func New(root, schemaDir string, opts ...Option) (*Updater, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("content root %s: %w", root, err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Updater{
		root:    absRoot,
		schemas: schema.NewLoader(schemaDir),
		backups: backup.NewStore(absRoot, o.backup...),
		history: o.history,
	}, nil
}

func (u *Updater) Root() string { return u.root }

// ApplyUpdate validates raw as an update payload and applies it. Nothing is
// written unless the patched document passes the schema, and the previous
// version is always backed up first.
func (u *Updater) ApplyUpdate(ctx context.Context, raw map[string]any) (res *UpdateResult, err error) {
	op := "unknown"
	defer func() {
		status := "ok"
		if err != nil {
			status = Kind(err)
		}
		metrics.ContentUpdates.WithLabelValues(op, status).Inc()
	}()

	p, err := patch.Parse(raw)
	if err != nil {
		return nil, err
	}
	op = string(p.Operation)

	path, err := u.target(p.File)
	if err != nil {
		return nil, err
	}
	sch, err := u.schemaFor(p.File)
	if err != nil {
		return nil, err
	}

	current, err := readDocument(path)
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(current); err != nil {
		return nil, fmt.Errorf("existing %s: %w", p.File, err)
	}

	next, err := patch.Apply(current, p.Patch)
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(next); err != nil {
		return nil, err
	}

	backupPath, err := u.backups.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := writeDocument(path, next); err != nil {
		return nil, err
	}

	logger.Infow("content updated", "file", p.File, "operation", op, "backup", backupPath)
	u.record(ctx, &history.Entry{File: p.File, Action: history.Action(op), Backup: backupPath})

	return &UpdateResult{
		Status:    "ok",
		File:      p.File,
		Operation: p.Operation,
		Backup:    backupPath,
		Path:      path,
	}, nil
}

// Restore replaces file with the named backup, or the newest one when name is
// empty. The current version is backed up before it is overwritten.
func (u *Updater) Restore(ctx context.Context, file, name string) (res *RestoreResult, err error) {
	defer func() {
		status := "ok"
		if err != nil {
			status = Kind(err)
		}
		metrics.ContentRestores.WithLabelValues(status).Inc()
	}()

	if err := pathguard.ValidateFileName(file); err != nil {
		return nil, err
	}
	if name != "" {
		if err := pathguard.ValidateBackupName(file, name); err != nil {
			return nil, err
		}
	}
	path, err := u.target(file)
	if err != nil {
		return nil, err
	}

	available, err := u.backups.List(file)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoBackupsFound, file)
	}
	chosen := available[0]
	if name != "" {
		if !contains(available, name) {
			return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, name)
		}
		chosen = name
	}
	from, err := u.backups.Path(chosen)
	if err != nil {
		return nil, err
	}

	sch, err := u.schemaFor(file)
	if err != nil {
		return nil, err
	}
	restored, err := readDocument(from)
	if err != nil {
		return nil, err
	}
	if err := sch.Validate(restored); err != nil {
		return nil, fmt.Errorf("backup %s: %w", chosen, err)
	}

	current, err := u.backups.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := writeDocument(path, restored); err != nil {
		return nil, err
	}

	logger.Infow("content restored", "file", file, "from", from, "backup", current)
	u.record(ctx, &history.Entry{File: file, Action: history.ActionRestore, Backup: current, RestoredFrom: from})

	return &RestoreResult{
		Status:          "ok",
		File:            file,
		RestoredFrom:    from,
		BackupOfCurrent: current,
		Path:            path,
	}, nil
}

// ListBackups returns backup names for file, newest first.
func (u *Updater) ListBackups(file string) ([]string, error) {
	if err := pathguard.ValidateFileName(file); err != nil {
		return nil, err
	}
	return u.backups.List(file)
}

// Current reads the live document for file.
func (u *Updater) Current(file string) (patch.Document, error) {
	path, err := u.target(file)
	if err != nil {
		return nil, err
	}
	return readDocument(path)
}

// History returns recorded writes for file, newest first. Without a history
// repository the result is always empty.
func (u *Updater) History(ctx context.Context, file string, limit int) ([]*history.Entry, error) {
	if err := pathguard.ValidateFileName(file); err != nil {
		return nil, err
	}
	if u.history == nil {
		return []*history.Entry{}, nil
	}
	return u.history.List(ctx, file, limit)
}

// target resolves an allowed file name to an existing file under the root.
func (u *Updater) target(file string) (string, error) {
	if err := pathguard.ValidateFileName(file); err != nil {
		return "", err
	}
	path, err := pathguard.Resolve(u.root, file)
	if err != nil {
		return "", err
	}
	if !pathguard.Exists(path) {
		return "", fmt.Errorf("%w: %s", ErrFileNotFound, file)
	}
	return path, nil
}

func (u *Updater) schemaFor(file string) (*schema.Schema, error) {
	name, ok := schemaFiles[file]
	if !ok {
		return nil, fmt.Errorf("%w: %q", pathguard.ErrUnsupportedFile, file)
	}
	return u.schemas.Load(name)
}

// record stores a history entry. The write has already happened, so a
// failure here is only logged.
func (u *Updater) record(ctx context.Context, e *history.Entry) {
	if u.history == nil {
		return
	}
	if err := u.history.Record(ctx, e); err != nil {
		logger.Warnf("history: record %s %s: %v", e.Action, e.File, err)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// readDocument parses path as a single JSON object. Trailing data after the
// object makes the file invalid.
func readDocument(path string) (patch.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	doc, err := patch.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid JSON: %v", ErrSchemaViolation, filepath.Base(path), err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a JSON object", ErrSchemaViolation, filepath.Base(path))
	}
	return obj, nil
}

// encodeDocument renders doc with two-space indentation, no HTML escaping
// and a trailing newline.
func encodeDocument(doc patch.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return buf.Bytes(), nil
}

// writeDocument replaces path atomically: the new bytes go to a synced temp
// file in the same directory which is then renamed over the target.
func writeDocument(path string, doc patch.Document) (err error) {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
