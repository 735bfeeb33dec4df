package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/flowforge/ostiumgate/internal/model"
	"github.com/flowforge/ostiumgate/internal/pkg/logger"
)

// AuditRepo is the optional durable sink behind the audit trail.
type AuditRepo interface {
	Insert(ctx context.Context, entry *model.AuditLog) error
	Purge(ctx context.Context, retentionDays int) error
}

// AuditService writes one JSONL line per request, keeps a small ring
// buffer for inspection, and mirrors entries into Postgres when a repo
// is wired. Logging never blocks the request path: a full channel drops
// the entry.
type AuditService struct {
	logChan chan *model.AuditLog
	logFile *os.File
	buffer  *auditBuffer
	repo    AuditRepo
	done    chan struct{}
}

func NewAuditService(logDir string, repo AuditRepo) (*AuditService, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}

	filename := filepath.Join(logDir, "audit-"+time.Now().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	svc := &AuditService{
		logChan: make(chan *model.AuditLog, 1000),
		logFile: f,
		buffer:  newAuditBuffer(1000),
		repo:    repo,
		done:    make(chan struct{}),
	}
	go svc.processLogs()
	return svc, nil
}

func (s *AuditService) Log(entry *model.AuditLog) {
	if entry == nil {
		return
	}
	s.buffer.Add(entry)
	select {
	case s.logChan <- entry:
	default:
		logger.Warn("audit buffer full, dropping entry", "path", entry.Path)
	}
}

// Recent returns the newest in-memory entries, newest first.
func (s *AuditService) Recent(limit int) []*model.AuditLog {
	return s.buffer.List(limit)
}

func (s *AuditService) processLogs() {
	defer close(s.done)
	encoder := json.NewEncoder(s.logFile)
	for entry := range s.logChan {
		if s.repo != nil {
			if err := s.repo.Insert(context.Background(), entry); err != nil {
				logger.LogError(context.Background(), err, "failed to persist audit entry")
			}
		}
		if err := encoder.Encode(entry); err != nil {
			logger.LogError(context.Background(), err, "failed to write audit entry")
		}
	}
}

// RunRetention purges persisted entries older than retentionDays once a
// day until ctx is cancelled. No-op without a repo.
func (s *AuditService) RunRetention(ctx context.Context, retentionDays int) {
	if s.repo == nil || retentionDays <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.repo.Purge(ctx, retentionDays); err != nil {
				logger.LogError(ctx, err, "audit retention purge failed")
			}
		}
	}
}

func (s *AuditService) Close() {
	close(s.logChan)
	<-s.done
	s.logFile.Close()
}

type auditBuffer struct {
	mu        sync.Mutex
	maxSize   int
	records   []*model.AuditLog
	nextIndex int
}

func newAuditBuffer(maxSize int) *auditBuffer {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &auditBuffer{
		maxSize: maxSize,
		records: make([]*model.AuditLog, 0, maxSize),
	}
}

func (b *auditBuffer) Add(entry *model.AuditLog) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.records) < b.maxSize {
		b.records = append(b.records, entry)
		return
	}
	b.records[b.nextIndex] = entry
	b.nextIndex = (b.nextIndex + 1) % b.maxSize
}

func (b *auditBuffer) List(limit int) []*model.AuditLog {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > b.maxSize {
		limit = b.maxSize
	}
	results := make([]*model.AuditLog, 0, limit)
	total := len(b.records)
	for i := 0; i < total && len(results) < limit; i++ {
		idx := (b.nextIndex + total - 1 - i) % total
		if entry := b.records[idx]; entry != nil {
			results = append(results, entry)
		}
	}
	return results
}
