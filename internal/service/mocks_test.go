package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/swap-mitra/city-vault/internal/domain/model"
	"github.com/swap-mitra/city-vault/internal/pinclient"
	"github.com/swap-mitra/city-vault/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- memFileRepo: in-memory FileRepository honouring UNIQUE (cid, user_id) ---

type memFileRepo struct {
	mu    sync.Mutex
	rows  map[string]*model.FileRecord // key: cid|user
	clock time.Time

	// beforeCreate runs just before the uniqueness check of Create
	// (outside the lock), simulating a concurrent writer.
	beforeCreate func(f *model.FileRecord)

	creates int
	deletes int
}

func newMemFileRepo() *memFileRepo {
	return &memFileRepo{
		rows:  make(map[string]*model.FileRecord),
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func key(cid, userID string) string { return cid + "|" + userID }

func (m *memFileRepo) put(f *model.FileRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = m.clock.Add(time.Second)
	f.UploadedAt = m.clock
	m.rows[key(f.CID, f.UserID)] = f
}

func (m *memFileRepo) GetByCIDAndUser(_ context.Context, cid, userID string) (*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.rows[key(cid, userID)]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memFileRepo) GetByCID(_ context.Context, cid string) (*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var earliest *model.FileRecord
	for _, f := range m.rows {
		if f.CID == cid && (earliest == nil || f.UploadedAt.Before(earliest.UploadedAt)) {
			earliest = f
		}
	}
	if earliest == nil {
		return nil, repository.ErrNotFound
	}
	cp := *earliest
	cp.Owner = &model.FileOwner{Email: cp.UserID + "@example.com"}
	return &cp, nil
}

func (m *memFileRepo) Create(_ context.Context, f *model.FileRecord) error {
	if m.beforeCreate != nil {
		m.beforeCreate(f)
	}
	m.mu.Lock()
	m.creates++
	if _, exists := m.rows[key(f.CID, f.UserID)]; exists {
		m.mu.Unlock()
		return repository.ErrConflict
	}
	m.clock = m.clock.Add(time.Second)
	f.UploadedAt = m.clock
	cp := *f
	m.rows[key(f.CID, f.UserID)] = &cp
	m.mu.Unlock()
	return nil
}

func (m *memFileRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, f := range m.rows {
		if f.ID == id {
			delete(m.rows, k)
			m.deletes++
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memFileRepo) CountByCID(_ context.Context, cid string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, f := range m.rows {
		if f.CID == cid {
			n++
		}
	}
	return n, nil
}

func (m *memFileRepo) ListByUser(_ context.Context, userID, _ string) ([]*model.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.FileRecord, 0)
	for _, f := range m.rows {
		if f.UserID == userID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (m *memFileRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// --- mockFileRepo: function-field FileRepository for error paths ---

type mockFileRepo struct {
	getByCIDAndUserFn func(ctx context.Context, cid, userID string) (*model.FileRecord, error)
	getByCIDFn        func(ctx context.Context, cid string) (*model.FileRecord, error)
	createFn          func(ctx context.Context, f *model.FileRecord) error
	deleteFn          func(ctx context.Context, id string) error
	countByCIDFn      func(ctx context.Context, cid string) (int, error)
	listByUserFn      func(ctx context.Context, userID, filename string) ([]*model.FileRecord, error)
}

func (m *mockFileRepo) GetByCIDAndUser(ctx context.Context, cid, userID string) (*model.FileRecord, error) {
	if m.getByCIDAndUserFn != nil {
		return m.getByCIDAndUserFn(ctx, cid, userID)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) GetByCID(ctx context.Context, cid string) (*model.FileRecord, error) {
	if m.getByCIDFn != nil {
		return m.getByCIDFn(ctx, cid)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	if m.createFn != nil {
		return m.createFn(ctx, f)
	}
	return nil
}

func (m *mockFileRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockFileRepo) CountByCID(ctx context.Context, cid string) (int, error) {
	if m.countByCIDFn != nil {
		return m.countByCIDFn(ctx, cid)
	}
	return 0, nil
}

func (m *mockFileRepo) ListByUser(ctx context.Context, userID, filename string) ([]*model.FileRecord, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID, filename)
	}
	return nil, nil
}

// --- mockStore: ContentStore ---

type mockStore struct {
	mu       sync.Mutex
	pinFn    func(ctx context.Context, filename string, content io.Reader) (*pinclient.PinResult, error)
	unpinFn  func(ctx context.Context, cid string) error
	unpinned []string
}

func (m *mockStore) PinFile(ctx context.Context, filename string, content io.Reader) (*pinclient.PinResult, error) {
	if m.pinFn != nil {
		return m.pinFn(ctx, filename, content)
	}
	data, _ := io.ReadAll(content)
	return &pinclient.PinResult{CID: "bafy-" + string(data), Size: int64(len(data))}, nil
}

func (m *mockStore) Unpin(ctx context.Context, cid string) error {
	m.mu.Lock()
	m.unpinned = append(m.unpinned, cid)
	m.mu.Unlock()
	if m.unpinFn != nil {
		return m.unpinFn(ctx, cid)
	}
	return nil
}

// --- mockUserRepo ---

type mockUserRepo struct {
	mu         sync.Mutex
	byID       map[string]*model.User
	getCalls   int
	createFn   func(ctx context.Context, u *model.User) error
	getEmailFn func(ctx context.Context, email string) (*model.User, error)
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byID: make(map[string]*model.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, u *model.User) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, u); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == u.Email {
			return repository.ErrConflict
		}
	}
	u.CreatedAt = time.Now()
	m.byID[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.getEmailFn != nil {
		return m.getEmailFn(ctx, email)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}
