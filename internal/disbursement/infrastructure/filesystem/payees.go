package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmehra2102/pix-disburser/internal/disbursement/domain"
)

// PayeeDir lists one payee per regular file in a directory. The file name is
// the payee ID and the file holds a JSON object with the PIX key fields.
// Dotfiles and subdirectories are ignored.
type PayeeDir struct {
	dir string
}

func NewPayeeDir(dir string) *PayeeDir {
	return &PayeeDir{dir: dir}
}

func (d *PayeeDir) List(ctx context.Context) ([]domain.Payee, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}

	// ReadDir returns entries sorted by name, which is the listing order.
	var payees []domain.Payee
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		fields, err := readObject(filepath.Join(d.dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("payee %q: %w", e.Name(), err)
		}
		payees = append(payees, domain.NewPayee(e.Name(), fields))
	}
	return payees, nil
}

func readObject(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decode: expected a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode: trailing data after JSON object")
	}
	return fields, nil
}
