package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/models"
)

var fileHeader = []string{
	"ip", "country", "country_code", "region", "city", "lat", "lng",
	"timezone", "isp", "org", "as", "mobile", "stored_at",
}

// FileStore implements Store on top of a CSV file
// The whole file is loaded into memory on open and rewritten on every mutation,
// which is fine for the few hundred entries a pasted IP list produces
//
// CSV Format: ip,country,country_code,region,city,lat,lng,timezone,isp,org,as,mobile,stored_at
// stored_at is unix milliseconds
type FileStore struct {
	path string

	mu   sync.RWMutex
	data map[string]models.CacheEntry
}

// NewFileStore opens (or creates on first write) a CSV backed store
//
// Parameters:
//   - filePath: path to the CSV file, missing file means empty store
//
// Returns:
//   - *FileStore: pointer to the created store
//   - error: any error that occurred while reading an existing file
func NewFileStore(filePath string) (*FileStore, error) {
	s := &FileStore{
		path: filePath,
		data: make(map[string]models.CacheEntry),
	}

	file, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	for i, record := range records {
		// Skip header row
		if i == 0 {
			continue
		}

		entry, ok := parseRow(record)
		if !ok {
			// Skip rows we cannot parse instead of failing the whole store
			continue
		}
		s.data[entry.IP] = entry
	}

	return s, nil
}

func parseRow(record []string) (models.CacheEntry, bool) {
	if len(record) != len(fileHeader) {
		return models.CacheEntry{}, false
	}

	lat, err := strconv.ParseFloat(record[5], 64)
	if err != nil {
		return models.CacheEntry{}, false
	}
	lng, err := strconv.ParseFloat(record[6], 64)
	if err != nil {
		return models.CacheEntry{}, false
	}
	storedAt, err := strconv.ParseInt(record[12], 10, 64)
	if err != nil {
		return models.CacheEntry{}, false
	}

	return models.CacheEntry{
		IP: record[0],
		Location: models.LocationRecord{
			IP:          record[0],
			Country:     record[1],
			CountryCode: record[2],
			Region:      record[3],
			City:        record[4],
			Lat:         lat,
			Lng:         lng,
			Timezone:    record[7],
			ISP:         record[8],
			Org:         record[9],
			AS:          record[10],
			Mobile:      record[11] == "true",
		},
		StoredAt: time.UnixMilli(storedAt),
	}, true
}

func formatRow(entry models.CacheEntry) []string {
	loc := entry.Location
	return []string{
		entry.IP,
		loc.Country,
		loc.CountryCode,
		loc.Region,
		loc.City,
		strconv.FormatFloat(loc.Lat, 'f', -1, 64),
		strconv.FormatFloat(loc.Lng, 'f', -1, 64),
		loc.Timezone,
		loc.ISP,
		loc.Org,
		loc.AS,
		strconv.FormatBool(loc.Mobile),
		strconv.FormatInt(entry.StoredAt.UnixMilli(), 10),
	}
}

func (s *FileStore) Get(_ context.Context, ip string) (*models.CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[ip]
	if !exists {
		return nil, ErrNotFound
	}
	return &entry, nil
}

func (s *FileStore) Put(_ context.Context, entry *models.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, existed := s.data[entry.IP]
	s.data[entry.IP] = *entry

	if err := s.flush(); err != nil {
		// Keep memory and disk in sync
		if existed {
			s.data[entry.IP] = previous
		} else {
			delete(s.data, entry.IP)
		}
		return err
	}
	return nil
}

func (s *FileStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.data)), nil
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]models.CacheEntry)
	return s.flush()
}

func (s *FileStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for ip, entry := range s.data {
		if entry.StoredAt.Before(cutoff) {
			delete(s.data, ip)
			removed++
		}
	}

	if removed == 0 {
		return 0, nil
	}
	return removed, s.flush()
}

// flush rewrites the file through a temp file + rename so readers never see a half-written file
// Must be called with mu held
func (s *FileStore) flush() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cache-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	ips := make([]string, 0, len(s.data))
	for ip := range s.data {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	writer := csv.NewWriter(tmp)
	if err := writer.Write(fileHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	for _, ip := range ips {
		if err := writer.Write(formatRow(s.data[ip])); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write cache file: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	return nil
}

// Close cleans up resources
// Every mutation is already on disk, so there is nothing left to do
func (s *FileStore) Close() error {
	return nil
}
