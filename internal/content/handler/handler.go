package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/riaaa16/ai-consultant/internal/content"
	"github.com/riaaa16/ai-consultant/internal/gitops"
	"github.com/riaaa16/ai-consultant/internal/history"
	"github.com/riaaa16/ai-consultant/internal/patch"
	"github.com/riaaa16/ai-consultant/internal/pathguard"
)

// Engine is the content operations the routes expose.
type Engine interface {
	ApplyUpdate(ctx context.Context, raw map[string]any) (*content.UpdateResult, error)
	Restore(ctx context.Context, file, backup string) (*content.RestoreResult, error)
	ListBackups(file string) ([]string, error)
	Current(file string) (patch.Document, error)
	History(ctx context.Context, file string, limit int) ([]*history.Entry, error)
}

// Publisher commits a written file. A nil Publisher disables git.
type Publisher interface {
	Publish(ctx context.Context, absPath, message string) *gitops.Result
}

type updateResponse struct {
	*content.UpdateResult
	Git *gitops.Result `json:"git,omitempty"`
}

type restoreResponse struct {
	*content.RestoreResult
	Git *gitops.Result `json:"git,omitempty"`
}

// RegisterContentRoutes mounts the content API on r.
func RegisterContentRoutes(r gin.IRouter, eng Engine, pub Publisher) {
	r.GET("/api/content/:file", func(c *gin.Context) {
		file := c.Param("file")
		doc, err := eng.Current(file)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "file": file, "content": doc})
	})

	r.GET("/api/content/:file/backups", func(c *gin.Context) {
		file := c.Param("file")
		list, err := eng.ListBackups(file)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "file": file, "backups": list})
	})

	r.GET("/api/content/:file/history", func(c *gin.Context) {
		file := c.Param("file")
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		entries, err := eng.History(c.Request.Context(), file, limit)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "file": file, "history": entries})
	})

	r.POST("/api/content/update", func(c *gin.Context) {
		raw, ok := bindPayload(c)
		if !ok {
			return
		}
		res, err := eng.ApplyUpdate(c.Request.Context(), raw)
		if err != nil {
			fail(c, err)
			return
		}
		out := updateResponse{UpdateResult: res}
		if pub != nil {
			out.Git = pub.Publish(c.Request.Context(), res.Path, gitops.UpdateMessage(res.File, string(res.Operation)))
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/api/content/rollback", func(c *gin.Context) {
		raw, ok := bindPayload(c)
		if !ok {
			return
		}
		file, _ := raw["file"].(string)
		if file != pathguard.AllowedFile {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "Invalid or unsupported file", "kind": content.KindPatchValidation})
			return
		}
		var backup string
		if v, present := raw["backup"]; present && v != nil {
			s, ok := v.(string)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "backup must be a string", "kind": content.KindBackupFilename})
				return
			}
			backup = s
		}
		res, err := eng.Restore(c.Request.Context(), file, backup)
		if err != nil {
			fail(c, err)
			return
		}
		out := restoreResponse{RestoreResult: res}
		if pub != nil {
			out.Git = pub.Publish(c.Request.Context(), res.Path, gitops.RollbackMessage(res.File))
		}
		c.JSON(http.StatusOK, out)
	})
}

// bindPayload decodes the request body as an object, unwrapping a lone
// {"payload": {...}} envelope as sent by tool-call inspectors.
func bindPayload(c *gin.Context) (map[string]any, bool) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error(), "kind": content.KindPatchValidation})
		return nil, false
	}
	v, err := patch.Decode(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "Payload must be valid JSON: " + err.Error(), "kind": content.KindPatchValidation})
		return nil, false
	}
	obj, ok := patch.Unwrap(v).(map[string]any)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "Payload must be an object", "kind": content.KindPatchValidation})
		return nil, false
	}
	return obj, true
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind string) int {
	switch kind {
	case content.KindPatchValidation, content.KindBackupFilename:
		return http.StatusBadRequest
	case content.KindFileNotFound, content.KindNoBackupsFound, content.KindBackupNotFound:
		return http.StatusNotFound
	case content.KindPathEscape:
		return http.StatusForbidden
	case content.KindSchemaViolation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	kind := content.Kind(err)
	msg := err.Error()
	if kind == content.KindInternal {
		msg = "Unexpected error: " + msg
	}
	c.JSON(StatusFor(kind), gin.H{"status": "error", "error": msg, "kind": kind})
}
