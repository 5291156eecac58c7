package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers the OpenAPI document for the content API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg gin.IRouter) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>ai-consultant content API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "ai-consultant content API", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Error": { "type": "object", "properties": { "status": {"type":"string","enum":["error"]}, "error": {"type":"string"}, "kind": {"type":"string","enum":["path_escape","file_not_found","schema_not_found","schema_violation","patch_validation","no_backups_found","backup_not_found","backup_filename","internal"]} } },
      "UpdatePayload": { "type": "object", "required": ["file","operation","content"], "additionalProperties": false, "properties": { "file": {"type":"string","enum":["site.json"]}, "operation": {"type":"string","enum":["replace","append","delete"]}, "content": {"type":"object","description":"full document for replace, {section,data} otherwise"} } },
      "Git": { "type": "object", "properties": { "status": {"type":"string"}, "commit": {"type":"string"}, "pushed": {"type":"boolean"}, "error": {"type":"string"} } }
    }
  },
  "security": [ { "bearer": [] } ],
  "paths": {
    "/api/content/update": {
      "post": {
        "summary": "Apply a replace/append/delete patch to a content file",
        "requestBody": { "content": { "application/json": { "schema": { "oneOf": [ {"$ref":"#/components/schemas/UpdatePayload"}, {"type":"object","properties":{"payload":{"$ref":"#/components/schemas/UpdatePayload"}}} ] } } } },
        "responses": {
          "200": { "description": "written; {status, file, operation, backup, git?}" },
          "400": { "description": "invalid payload", "content": { "application/json": { "schema": {"$ref":"#/components/schemas/Error"} } } },
          "404": { "description": "content file missing" },
          "422": { "description": "result violates the site schema" }
        }
      }
    },
    "/api/content/rollback": {
      "post": {
        "summary": "Restore a content file from a backup (newest when backup is omitted)",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["file"],"properties":{"file":{"type":"string","enum":["site.json"]},"backup":{"type":"string"}}} } } },
        "responses": {
          "200": { "description": "restored; {status, file, restored_from, backup_of_current, git?}" },
          "400": { "description": "invalid file or backup name" },
          "404": { "description": "no backups or backup not found" }
        }
      }
    },
    "/api/content/{file}": {
      "get": { "summary": "Read the live document", "parameters": [ {"name":"file","in":"path","required":true,"schema":{"type":"string"}} ], "responses": { "200": { "description": "{status, file, content}" }, "404": { "description": "missing" } } }
    },
    "/api/content/{file}/backups": {
      "get": { "summary": "List backups newest first", "parameters": [ {"name":"file","in":"path","required":true,"schema":{"type":"string"}} ], "responses": { "200": { "description": "{status, file, backups}" } } }
    },
    "/api/content/{file}/history": {
      "get": { "summary": "List recorded writes newest first", "parameters": [ {"name":"file","in":"path","required":true,"schema":{"type":"string"}}, {"name":"limit","in":"query","schema":{"type":"integer","default":50}} ], "responses": { "200": { "description": "{status, file, history}" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "security": [], "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "security": [], "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "security": [], "responses": { "200": { "description": "text exposition" } } } }
  }
}`
