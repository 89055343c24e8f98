// mock_storage.go - Mock storage implementations for testing
package testutil

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/droneguard/backend/internal/models"
	"github.com/droneguard/backend/internal/storage"
	"github.com/droneguard/backend/internal/tracks"
)

// MockStorage implements storage.Store in memory
type MockStorage struct {
	files    map[string]*models.FileInfo
	fileData map[string][]byte
	mu       sync.RWMutex
}

// NewMockStorage creates an empty mock file store
func NewMockStorage() *MockStorage {
	return &MockStorage{
		files:    make(map[string]*models.FileInfo),
		fileData: make(map[string][]byte),
	}
}

func (m *MockStorage) Save(name string, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := generateTestID()
	file := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       int64(len(data)),
		UploadedAt: time.Now(),
		Status:     storage.StatusUploaded,
	}
	m.files[id] = file
	m.fileData[id] = data
	c := *file
	return &c, nil
}

func (m *MockStorage) Get(id string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, ok := m.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	c := *file
	return &c, nil
}

func (m *MockStorage) List(limit int) ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make([]*models.FileInfo, 0, len(m.files))
	for _, file := range m.files {
		c := *file
		files = append(files, &c)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ID > files[j].ID })
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}

func (m *MockStorage) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	delete(m.files, id)
	delete(m.fileData, id)
	return nil
}

func (m *MockStorage) SetStatus(id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[id]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	file.Status = status
	return nil
}

func (m *MockStorage) GetFilePath(id string) (string, error) {
	return "/mock/path/" + id, nil
}

// GetFileData returns the stored bytes for verification in tests
func (m *MockStorage) GetFileData(id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.fileData[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return data, nil
}

// GetFileCount returns the number of stored files
func (m *MockStorage) GetFileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

var idCounter atomic.Int64

// generateTestID creates unique, increasing IDs for tests
func generateTestID() string {
	return fmt.Sprintf("test-%06d", idCounter.Add(1))
}

var _ storage.Store = (*MockStorage)(nil)

// MockTrackStore implements tracks.Store in memory
type MockTrackStore struct {
	mu    sync.RWMutex
	fixes map[string]models.Track

	// AddErr, when set, is returned by AddFixes.
	AddErr error
}

// NewMockTrackStore creates an empty mock track store
func NewMockTrackStore() *MockTrackStore {
	return &MockTrackStore{fixes: make(map[string]models.Track)}
}

func (m *MockTrackStore) AddFixes(_ context.Context, droneID string, fixes []models.TimedFix) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tr := append(m.fixes[droneID], fixes...)
	sort.SliceStable(tr, func(i, j int) bool { return tr[i].Timestamp < tr[j].Timestamp })
	m.fixes[droneID] = tr
	return nil
}

func (m *MockTrackStore) ListRoutes(context.Context) ([]models.RouteSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	routes := make([]models.RouteSummary, 0, len(m.fixes))
	for id, tr := range m.fixes {
		if len(tr) == 0 {
			continue
		}
		routes = append(routes, tracks.NewRouteSummary(id, tr[0].Timestamp, tr[len(tr)-1].Timestamp, len(tr)))
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].DroneID < routes[j].DroneID })
	return routes, nil
}

func (m *MockTrackStore) Track(_ context.Context, droneID string, start, end int64) (models.Track, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out models.Track
	for _, f := range m.fixes[droneID] {
		if f.Timestamp >= start && f.Timestamp <= end {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", tracks.ErrNoFixes, droneID)
	}
	return out, nil
}

func (m *MockTrackStore) Close() error { return nil }

// FixCount returns the number of fixes stored for droneID
func (m *MockTrackStore) FixCount(droneID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.fixes[droneID])
}

var _ tracks.Store = (*MockTrackStore)(nil)
