package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/ktp-quant/pairsignal/internal/domain"
)

// ModelArchiver copies superseded model artifacts to object storage so a
// refit never destroys history. Keys are partitioned by pair and stamped
// with the fit time:
//
//	models/KXFOO-X/KXBAR-Y/2025-11-03T12-00-00Z.json
type ModelArchiver struct {
	writer domain.BlobWriter
}

// NewModelArchiver creates a ModelArchiver uploading through the given
// writer.
func NewModelArchiver(writer domain.BlobWriter) *ModelArchiver {
	return &ModelArchiver{writer: writer}
}

// Archive serializes the model and uploads it under its fit timestamp.
func (a *ModelArchiver) Archive(ctx context.Context, m domain.FittedModel) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal model: %w", err)
	}

	path := fmt.Sprintf("models/%s/%s/%s.json",
		m.InstrumentX, m.InstrumentY, m.FittedAt.UTC().Format("2006-01-02T15-04-05Z"))

	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive model: %w", err)
	}
	return nil
}
