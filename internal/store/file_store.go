package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const cartFile = "guest_cart.json"
const wishlistFile = "guest_wishlist.json"

// FileStore persists guest state as two JSON documents under an
// app-private directory: an array of cart records and an array of
// wishlist product ids. Writes replace the whole file via rename, so a
// reader never observes a partial write.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewFileStore creates a FileStore rooted at dir, creating the directory
// if needed. A failure to create the directory is logged; the store then
// degrades to reads returning empty and writes becoming no-ops.
func NewFileStore(dir string, logger *slog.Logger) *FileStore {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		logger.Error("Failed to create guest store directory", "dir", dir, "error", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With("component", "guest_store"),
		now:    time.Now,
	}
}

func (s *FileStore) Read() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readCart()
}

func (s *FileStore) Write(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCart(records)
}

func (s *FileStore) AddOrIncrement(productID string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.readCart()
	for i := range records {
		if records[i].ProductID == productID {
			records[i].Quantity += delta
			if records[i].Quantity < 1 {
				records = append(records[:i], records[i+1:]...)
			}
			s.writeCart(records)
			return
		}
	}
	if delta < 1 {
		return
	}
	records = append(records, Record{
		ProductID: productID,
		Quantity:  delta,
		AddedAt:   s.now().UnixMilli(),
	})
	s.writeCart(records)
}

func (s *FileStore) SetQuantity(productID string, qty int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.readCart()
	for i := range records {
		if records[i].ProductID == productID {
			if qty <= 0 {
				records = append(records[:i], records[i+1:]...)
			} else {
				records[i].Quantity = qty
			}
			s.writeCart(records)
			return
		}
	}
	if qty > 0 {
		records = append(records, Record{ProductID: productID, Quantity: qty, AddedAt: s.now().UnixMilli()})
		s.writeCart(records)
	}
}

func (s *FileStore) Remove(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.readCart()
	for i := range records {
		if records[i].ProductID == productID {
			s.writeCart(append(records[:i], records[i+1:]...))
			return
		}
	}
}

func (s *FileStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCart(nil)
}

func (s *FileStore) ReadWishlist() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readWishlist()
}

func (s *FileStore) WriteWishlist(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeWishlist(ids)
}

func (s *FileStore) AddWishlist(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.readWishlist()
	for _, id := range ids {
		if id == productID {
			return
		}
	}
	s.writeWishlist(append(ids, productID))
}

func (s *FileStore) RemoveWishlist(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.readWishlist()
	for i, id := range ids {
		if id == productID {
			s.writeWishlist(append(ids[:i], ids[i+1:]...))
			return
		}
	}
}

func (s *FileStore) ContainsWishlist(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.readWishlist() {
		if id == productID {
			return true
		}
	}
	return false
}

func (s *FileStore) ClearWishlist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeWishlist(nil)
}

func (s *FileStore) readCart() []Record {
	var records []Record
	if !s.readJSON(cartFile, &records) {
		return []Record{}
	}
	return records
}

func (s *FileStore) writeCart(records []Record) {
	if records == nil {
		records = []Record{}
	}
	s.writeJSON(cartFile, records)
}

func (s *FileStore) readWishlist() []string {
	var ids []string
	if !s.readJSON(wishlistFile, &ids) {
		return []string{}
	}
	return ids
}

func (s *FileStore) writeWishlist(ids []string) {
	if ids == nil {
		ids = []string{}
	}
	s.writeJSON(wishlistFile, ids)
}

// readJSON reads and decodes the named file. Missing or corrupt data is
// treated as empty, never as an error.
func (s *FileStore) readJSON(name string, out any) bool {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read guest store file", "file", name, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("Corrupt guest store file, treating as empty", "file", name, "error", err)
		return false
	}
	return true
}

// writeJSON writes the document to a temp file and renames it into place
// so a crash mid-write leaves the previous content intact.
func (s *FileStore) writeJSON(name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode guest store file", "file", name, "error", err)
		return
	}
	target := filepath.Join(s.dir, name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		s.logger.Error("Failed to write guest store file", "file", name, "error", err)
		return
	}
	if err := os.Rename(tmp, target); err != nil {
		s.logger.Error("Failed to replace guest store file", "file", name, "error", err)
	}
}
