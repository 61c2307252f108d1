package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	appctx "supplyledger/internal/core/context"
	"supplyledger/internal/core/id"
	"supplyledger/internal/domain/audit"
)

var _ audit.Recorder = (*AuditService)(nil)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// defaultCompressThreshold is the payload size above which changes are compressed.
const defaultCompressThreshold = 10 * 1024

// AuditRecord is a row of sys_audit.
type AuditRecord struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          string          `db:"entity_id"`
	Action            audit.Action    `db:"action"`
	TraceID           string          `db:"trace_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService stores audit entries in sys_audit.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: defaultCompressThreshold,
	}, nil
}

// Record implements audit.Recorder. It joins the transaction in ctx if any.
func (s *AuditService) Record(ctx context.Context, entry audit.Entry) error {
	rec, err := s.encode(ctx, entry)
	if err != nil {
		return err
	}

	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, trace_id,
			changes, changes_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.ID, rec.EntityType, rec.EntityID, rec.Action, rec.TraceID,
		rec.Changes, rec.ChangesCompressed, rec.CompressionAlgo, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// encode builds the row, compressing large change sets.
func (s *AuditService) encode(ctx context.Context, entry audit.Entry) (AuditRecord, error) {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return AuditRecord{}, fmt.Errorf("marshal changes: %w", err)
	}

	rec := AuditRecord{
		ID:              id.New(),
		EntityType:      entry.EntityType,
		EntityID:        entry.EntityID,
		Action:          entry.Action,
		TraceID:         appctx.GetTraceID(ctx),
		Changes:         changes,
		CompressionAlgo: CompressionNone,
		CreatedAt:       time.Now().UTC(),
	}

	if len(changes) > s.compressThreshold {
		rec.ChangesCompressed = s.encoder.EncodeAll(changes, nil)
		rec.Changes = nil
		rec.CompressionAlgo = CompressionZstd
	}

	return rec, nil
}

// decode restores compressed changes in place.
func (s *AuditService) decode(rec *AuditRecord) error {
	if rec.CompressionAlgo != CompressionZstd || len(rec.ChangesCompressed) == 0 {
		return nil
	}
	decompressed, err := s.decoder.DecodeAll(rec.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	rec.Changes = decompressed
	rec.ChangesCompressed = nil
	return nil
}

// History retrieves the most recent audit entries for an entity.
func (s *AuditService) History(ctx context.Context, entityType, entityID string, limit int) ([]AuditRecord, error) {
	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, `
		SELECT id, entity_type, entity_id, action, trace_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var r AuditRecord
		if err := rows.Scan(
			&r.ID, &r.EntityType, &r.EntityID, &r.Action, &r.TraceID,
			&r.Changes, &r.ChangesCompressed, &r.CompressionAlgo, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if err := s.decode(&r); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}
