// Package backup exports the wallets, categories and transactions tables to
// a versioned JSON document and restores them from one.
package backup

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"khoroch/internal/log"
	"khoroch/internal/storage"
)

// Version is the only envelope version Restore accepts.
const Version = 1

// ErrInvalidBackup is returned before any table is touched.
var ErrInvalidBackup = errors.New("invalid backup data format")

//go:embed schema.json
var schemaJSON []byte

// Snapshot is the backup envelope. Timestamp is unix milliseconds.
type Snapshot struct {
	Version   int             `json:"version"`
	Timestamp int64           `json:"timestamp"`
	Data      *storage.Tables `json:"data"`
}

type Service struct {
	repo   *storage.Repository
	schema *gojsonschema.Schema
	now    func() time.Time
}

func NewService(repo *storage.Repository) (*Service, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("load backup schema: %w", err)
	}
	return &Service{
		repo:   repo,
		schema: schema,
		now:    time.Now,
	}, nil
}

// Export captures all three tables as one consistent snapshot.
func (s *Service) Export(ctx context.Context) (Snapshot, error) {
	tables, err := s.repo.ExportTables(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("export backup: %w", err)
	}
	return Snapshot{
		Version:   Version,
		Timestamp: s.now().UnixMilli(),
		Data:      &tables,
	}, nil
}

// Restore replaces every row of the three tables with the snapshot's.
// The envelope is checked first; a bad one leaves the database untouched.
func (s *Service) Restore(ctx context.Context, snap Snapshot) error {
	if snap.Version != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidBackup, snap.Version)
	}
	if snap.Data == nil {
		return fmt.Errorf("%w: missing data", ErrInvalidBackup)
	}

	start := time.Now()
	if err := s.repo.ReplaceTables(ctx, *snap.Data); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	log.For(ctx, log.ComponentBackup).InfoContext(ctx, "Backup restored",
		log.FieldOperation, log.OpRestore,
		"wallets", len(snap.Data.Wallets),
		"categories", len(snap.Data.Categories),
		"transactions", len(snap.Data.Transactions),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Validate checks a raw document against the backup schema.
func (s *Service) Validate(raw []byte) error {
	res, err := s.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if !res.Valid() {
		details := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			details = append(details, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidBackup, strings.Join(details, "; "))
	}
	return nil
}

// WriteJSON exports and encodes the snapshot to w.
func (s *Service) WriteJSON(ctx context.Context, w io.Writer) (Snapshot, error) {
	snap, err := s.Export(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return Snapshot{}, fmt.Errorf("encode backup: %w", err)
	}
	return snap, nil
}

// ReadJSON validates and decodes a document from r, then restores it.
func (s *Service) ReadJSON(ctx context.Context, r io.Reader) (Snapshot, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read backup: %w", err)
	}
	if err := s.Validate(raw); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if err := s.Restore(ctx, snap); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// FileName is the name a backup taken at t is written under.
func FileName(t time.Time) string {
	return fmt.Sprintf("khoroch_backup_%d.json", t.UnixMilli())
}

// WriteFile writes a new backup into dir and returns its path.
func (s *Service) WriteFile(ctx context.Context, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".khoroch_backup_*.tmp")
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(f.Name())

	snap, err := s.WriteJSON(ctx, f)
	if err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close backup file: %w", err)
	}

	path := filepath.Join(dir, FileName(time.UnixMilli(snap.Timestamp)))
	if err := os.Rename(f.Name(), path); err != nil {
		return "", fmt.Errorf("rename backup file: %w", err)
	}

	log.For(ctx, log.ComponentBackup).InfoContext(ctx, "Backup written",
		log.FieldOperation, log.OpExport,
		"path", path,
		"wallets", len(snap.Data.Wallets),
		"transactions", len(snap.Data.Transactions))
	return path, nil
}

// RestoreFile restores the backup stored at path.
func (s *Service) RestoreFile(ctx context.Context, path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open backup file: %w", err)
	}
	defer f.Close()
	return s.ReadJSON(ctx, f)
}
