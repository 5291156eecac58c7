package content

import (
	"errors"

	"github.com/riaaa16/ai-consultant/internal/patch"
	"github.com/riaaa16/ai-consultant/internal/pathguard"
	"github.com/riaaa16/ai-consultant/internal/schema"
)

var (
	ErrPathEscape      = pathguard.ErrPathEscape
	ErrBackupFilename  = pathguard.ErrBackupFilename
	ErrSchemaNotFound  = schema.ErrSchemaNotFound
	ErrSchemaViolation = schema.ErrSchemaViolation
	ErrPatchValidation = patch.ErrInvalidPatch

	ErrFileNotFound   = errors.New("content file does not exist")
	ErrNoBackupsFound = errors.New("no backups found")
	ErrBackupNotFound = errors.New("backup not found")
)

// Error kinds reported to callers alongside the message.
const (
	KindPathEscape      = "path_escape"
	KindFileNotFound    = "file_not_found"
	KindSchemaNotFound  = "schema_not_found"
	KindSchemaViolation = "schema_violation"
	KindPatchValidation = "patch_validation"
	KindNoBackupsFound  = "no_backups_found"
	KindBackupNotFound  = "backup_not_found"
	KindBackupFilename  = "backup_filename"
	KindInternal        = "internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrPathEscape, KindPathEscape},
	{ErrBackupFilename, KindBackupFilename},
	{ErrFileNotFound, KindFileNotFound},
	{ErrSchemaNotFound, KindSchemaNotFound},
	{ErrSchemaViolation, KindSchemaViolation},
	{ErrPatchValidation, KindPatchValidation},
	{pathguard.ErrUnsupportedFile, KindPatchValidation},
	{ErrNoBackupsFound, KindNoBackupsFound},
	{ErrBackupNotFound, KindBackupNotFound},
}

// Kind classifies err. nil yields "", anything unrecognised is internal.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
