package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dmehra2102/pix-disburser/internal/disbursement/domain"
)

// LedgerFile keeps committed payee IDs in a text file, one per line. Every
// Append rewrites the whole file through a temp file and rename.
type LedgerFile struct {
	mu     sync.Mutex
	path   string
	ids    []string
	loaded bool
}

func NewLedgerFile(path string) *LedgerFile {
	return &LedgerFile{path: path}
}

func (l *LedgerFile) Load(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.load(); err != nil {
		return nil, err
	}
	return slices.Clone(l.ids), nil
}

func (l *LedgerFile) load() error {
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		l.ids, l.loaded = nil, true
		return nil
	}
	if err != nil {
		return err
	}

	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		id := strings.TrimRight(sc.Text(), "\r")
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read ledger %s: %w", l.path, err)
	}
	l.ids, l.loaded = ids, true
	return nil
}

func (l *LedgerFile) Append(ctx context.Context, id string) error {
	if id == "" || strings.ContainsAny(id, "\r\n") {
		return fmt.Errorf("%w: %q", domain.ErrInvalidPayeeID, id)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		if err := l.load(); err != nil {
			return err
		}
	}
	next := append(slices.Clone(l.ids), id)
	if err := l.write(next); err != nil {
		return err
	}
	l.ids = next
	return nil
}

func (l *LedgerFile) write(ids []string) error {
	var buf bytes.Buffer
	for _, id := range ids {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return err
	}
	return syncDir(filepath.Dir(l.path))
}

// syncDir flushes the directory entry so the rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return fmt.Errorf("sync %s: %w", dir, err)
	}
	return d.Close()
}
