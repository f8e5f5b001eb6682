package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/alanyoungcy/oddsbot/internal/domain"
)

// Archiver implements domain.ReportArchiver on any BlobWriter. Objects are
// laid out by UTC day:
//
//	analysis/2026/01/02/<event_id>/<analysis_id>.json
//	scans/2026/01/02/150405.jsonl
type Archiver struct {
	writer domain.BlobWriter
	prefix string
}

// NewArchiver creates an Archiver writing under prefix (may be empty).
func NewArchiver(writer domain.BlobWriter, prefix string) *Archiver {
	return &Archiver{writer: writer, prefix: prefix}
}

type analysisDoc struct {
	Result domain.AnalysisResult `json:"result"`
	Report string                `json:"report"`
}

// ArchiveAnalysis stores the result together with its rendered text and
// returns the object path.
func (a *Archiver) ArchiveAnalysis(ctx context.Context, res domain.AnalysisResult, text string) (string, error) {
	body, err := json.Marshal(analysisDoc{Result: res, Report: text})
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal analysis %s: %w", res.ID, err)
	}
	key := path.Join(a.prefix, "analysis", dayPath(res.GeneratedAt), res.EventID, res.ID+".json")
	if err := a.writer.Put(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// ArchiveScan stores one sweep's opportunities as JSON lines and returns
// the object path.
func (a *Archiver) ArchiveScan(ctx context.Context, at time.Time, opps []domain.ArbOpportunity) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, o := range opps {
		if err := enc.Encode(o); err != nil {
			return "", fmt.Errorf("s3blob: encode opportunity %s: %w", o.ID, err)
		}
	}
	at = at.UTC()
	key := path.Join(a.prefix, "scans", dayPath(at), at.Format("150405.000")+".jsonl")
	if err := a.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return "", err
	}
	return key, nil
}

func dayPath(t time.Time) string {
	return t.UTC().Format("2006/01/02")
}
