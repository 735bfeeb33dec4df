package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flowforge/ostiumgate/internal/model"
	"github.com/flowforge/ostiumgate/internal/service"
)

const ContextAuditLog = "audit_log"

// bodyLogWriter captures the response body as it is written.
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Audit records every request as a redacted JSONL entry. Handlers can
// attach business context through AddAuditContext.
func Audit(auditSvc *service.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auditSvc == nil {
			c.Next()
			return
		}
		start := time.Now()

		var reqBody []byte
		if c.Request.Body != nil {
			reqBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBody))
		}

		entry := &model.AuditLog{
			ID:        RequestIDFrom(c),
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			CreatedAt: start,
			Context:   make(map[string]interface{}),
		}
		c.Set(ContextAuditLog, entry)

		blw := &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		entry.RequestBody = redactAuditBody(reqBody)
		entry.StatusCode = c.Writer.Status()
		entry.ResponseBody = redactAuditBody(blw.body.Bytes())
		entry.LatencyMs = time.Since(start).Milliseconds()

		auditSvc.Log(entry)
	}
}

// AddAuditContext lets handlers attach business attributes (pair id,
// tx hash) to the current request's audit entry.
func AddAuditContext(c *gin.Context, key string, value interface{}) {
	if val, exists := c.Get(ContextAuditLog); exists {
		if entry, ok := val.(*model.AuditLog); ok {
			entry.Context[key] = value
		}
	}
}

func redactAuditBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	redacted, ok := redactJSON(body)
	if !ok {
		return "[unparseable]"
	}
	return string(redacted)
}

func redactJSON(body []byte) ([]byte, bool) {
	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, false
	}
	redactValue(&data)
	out, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	return out, true
}

func redactValue(v *interface{}) {
	switch raw := (*v).(type) {
	case map[string]interface{}:
		for key, val := range raw {
			if isSensitiveKey(key) {
				raw[key] = "***"
				continue
			}
			vv := val
			redactValue(&vv)
			raw[key] = vv
		}
	case []interface{}:
		for i, val := range raw {
			vv := val
			redactValue(&vv)
			raw[i] = vv
		}
	}
}

func isSensitiveKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "signature",
		"sig",
		"secret",
		"hmacsecret",
		"private_key",
		"privatekey",
		"delegateprivatekey",
		"idempotencykey":
		return true
	default:
		return false
	}
}
