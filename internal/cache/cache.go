// Package cache stores per-year annual records between runs so unchanged
// snapshot years skip alignment.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hydroglacier/glacierfrac/internal/snapshot"
	"github.com/hydroglacier/glacierfrac/internal/types"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrMiss is returned by Get when no valid entry exists.
var ErrMiss = errors.New("cache miss")

// entry is the on-disk msgpack document.
type entry struct {
	Key    string             `msgpack:"key"`
	Record types.AnnualRecord `msgpack:"record"`
}

// Cache is a directory of msgpack entries, one per year.
type Cache struct {
	dir string
}

// New creates the cache directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Key identifies a year's inputs: the source files (path, size, mtime),
// the reference grid, every unit's id and pixel footprint, and the
// resampler. Moving a cell between units changes the key even when the set
// of unit ids stays the same.
func Key(y snapshot.Year, gridSignature string, units []types.Unit, resampler string) string {
	h := sha256.New()
	fmt.Fprintf(h, "year=%d\ngrid=%s\nresampler=%s\n", y.Year, gridSignature, resampler)

	buf := make([]byte, 0, 64)
	for _, u := range units {
		buf = append(buf[:0], "unit="...)
		buf = strconv.AppendInt(buf, int64(u.ID), 10)
		buf = append(buf, ':')
		h.Write(buf)
		for _, px := range u.Mask {
			buf = strconv.AppendInt(buf[:0], int64(px), 10)
			buf = append(buf, ',')
			h.Write(buf)
		}
		h.Write([]byte{'\n'})
	}

	for _, f := range y.Files {
		fmt.Fprintf(h, "%s|%d|%d\n", f.Path, f.Size, f.ModTime)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) path(year int) string {
	return filepath.Join(c.dir, fmt.Sprintf("annual_%d.msgpack", year))
}

// Get returns the cached record for year if its key matches.
func (c *Cache) Get(year int, key string) (types.AnnualRecord, error) {
	b, err := os.ReadFile(c.path(year))
	if errors.Is(err, os.ErrNotExist) {
		return types.AnnualRecord{}, ErrMiss
	}
	if err != nil {
		return types.AnnualRecord{}, err
	}

	var e entry
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return types.AnnualRecord{}, fmt.Errorf("corrupt cache entry for %d: %w", year, err)
	}
	if e.Key != key || e.Record.Year != year {
		return types.AnnualRecord{}, ErrMiss
	}
	return e.Record, nil
}

// Put stores rec under key, replacing any previous entry for the year.
func (c *Cache) Put(key string, rec types.AnnualRecord) error {
	b, err := msgpack.Marshal(entry{Key: key, Record: rec})
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, ".annual-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(rec.Year))
}

// Purge removes every cache entry.
func (c *Cache) Purge() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "annual_") && strings.HasSuffix(e.Name(), ".msgpack") {
			if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}
