package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agendaengine/internal/domain"
	logx "agendaengine/pkg/logx"
)

// fileStore is the memory store persisted to disk.
//
// Files:
//   - <prefix>.snapshot.json  (full state, rewritten via tmp+rename on every change)
//   - <prefix>.audit.jsonl    (append-only agenda item logs)
//
// The snapshot is authoritative; the audit file is never read back.
type fileStore struct {
	*memStore
	log logx.Logger

	snapshotPath string
	auditFile    *os.File
}

func openFile(cfg Config, log logx.Logger, opts ...Option) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".snapshot.json"
	st, err := loadSnapshot(snapPath)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	af, err := os.OpenFile(prefix+".audit.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	fs := &fileStore{
		memStore:     newMemStore(st, opts...),
		log:          log,
		snapshotPath: snapPath,
		auditFile:    af,
	}
	fs.commit = fs.persistLocked
	log.Debug("file store opened", logx.String("snapshot", snapPath), logx.Int("agendas", len(st.Agendas)), logx.Int("items", len(st.Items)))
	return fs, nil
}

func (s *fileStore) Close() error {
	_ = s.memStore.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditFile == nil {
		return nil
	}
	err := s.auditFile.Close()
	s.auditFile = nil
	return err
}

// persistLocked runs with memStore.mu held. A failed snapshot write rejects
// the change; the audit append happens only once the snapshot landed.
func (s *fileStore) persistLocked(st *state, logs []domain.AgendaItemLog) error {
	if err := writeSnapshot(s.snapshotPath, st); err != nil {
		s.log.Warn("snapshot write failed", logx.String("path", s.snapshotPath), logx.Err(err))
		return fmt.Errorf("write snapshot: %w", err)
	}
	if s.auditFile == nil || len(logs) == 0 {
		return nil
	}
	enc := json.NewEncoder(s.auditFile)
	for _, l := range logs {
		if err := enc.Encode(l); err != nil {
			s.log.Warn("audit append failed", logx.String("item", l.AgendaItemID), logx.Err(err))
			break
		}
	}
	return nil
}

func writeSnapshot(path string, st *state) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(st); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func loadSnapshot(path string) (*state, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return newState(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st := newState()
	if err := json.NewDecoder(f).Decode(st); err != nil {
		return nil, err
	}
	st.fill()
	return st, nil
}
