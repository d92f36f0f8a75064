package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/samsonhsy/dot-backend/internal/db/models"
	"github.com/samsonhsy/dot-backend/internal/db/repositories"
	"github.com/samsonhsy/dot-backend/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------------
// fakeCollectionStore
// ---------------------------------------------------------------------------

type fakeCollectionStore struct {
	rows    map[string]*models.Collection
	nextID  int
	failGet error
}

func newFakeCollectionStore() *fakeCollectionStore {
	return &fakeCollectionStore{rows: make(map[string]*models.Collection)}
}

func (f *fakeCollectionStore) Create(_ context.Context, c *models.Collection) error {
	f.nextID++
	c.ID = fmt.Sprintf("col-%d", f.nextID)
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	clone := *c
	f.rows[c.ID] = &clone
	return nil
}

func (f *fakeCollectionStore) GetByID(_ context.Context, id string) (*models.Collection, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	c, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	clone := *c
	return &clone, nil
}

func (f *fakeCollectionStore) ListByOwner(_ context.Context, ownerID string) ([]*models.Collection, error) {
	var out []*models.Collection
	for _, c := range f.rows {
		if c.OwnerID == ownerID {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeCollectionStore) ListPublic(_ context.Context) ([]*models.Collection, error) {
	var out []*models.Collection
	for _, c := range f.rows {
		if !c.IsPrivate {
			clone := *c
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeCollectionStore) Delete(_ context.Context, id string) error {
	delete(f.rows, id)
	return nil
}

func (f *fakeCollectionStore) Touch(_ context.Context, id string) error {
	if c, ok := f.rows[id]; ok {
		c.UpdatedAt = time.Now()
	}
	return nil
}

// add seeds a collection directly
func (f *fakeCollectionStore) add(id, ownerID string, private bool) *models.Collection {
	c := &models.Collection{ID: id, Name: id, OwnerID: ownerID, IsPrivate: private}
	f.rows[id] = c
	return c
}

// ---------------------------------------------------------------------------
// fakeDotfileStore
// ---------------------------------------------------------------------------

type fakeDotfileStore struct {
	rows       map[string]map[string]*models.Dotfile // collectionID -> filename -> row
	failCreate error
	failDelete map[string]error // filename -> error
}

func newFakeDotfileStore() *fakeDotfileStore {
	return &fakeDotfileStore{
		rows:       make(map[string]map[string]*models.Dotfile),
		failDelete: make(map[string]error),
	}
}

func (f *fakeDotfileStore) CreateBatch(_ context.Context, dotfiles []*models.Dotfile) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	for _, d := range dotfiles {
		byName := f.rows[d.CollectionID]
		if byName == nil {
			byName = make(map[string]*models.Dotfile)
			f.rows[d.CollectionID] = byName
		}
		if _, exists := byName[d.Filename]; exists {
			return &pq.Error{Code: "23505"}
		}
		d.ID = "df-" + d.Filename
		clone := *d
		byName[d.Filename] = &clone
	}
	return nil
}

func (f *fakeDotfileStore) ListByCollection(_ context.Context, collectionID string) ([]*models.Dotfile, error) {
	var out []*models.Dotfile
	for _, d := range f.rows[collectionID] {
		clone := *d
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

func (f *fakeDotfileStore) GetByFilename(_ context.Context, collectionID, filename string) (*models.Dotfile, error) {
	d, ok := f.rows[collectionID][filename]
	if !ok {
		return nil, nil
	}
	clone := *d
	return &clone, nil
}

func (f *fakeDotfileStore) Delete(_ context.Context, collectionID, filename string) error {
	if err := f.failDelete[filename]; err != nil {
		return err
	}
	delete(f.rows[collectionID], filename)
	return nil
}

// ---------------------------------------------------------------------------
// fakeStorage
// ---------------------------------------------------------------------------

type fakeStorage struct {
	blobs        map[string][]byte
	uploadErrs   map[string]error // key -> error
	downloadErrs map[string]error
	deleteErrs   map[string]error
	uploads      []string // keys in upload order
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		blobs:        make(map[string][]byte),
		uploadErrs:   make(map[string]error),
		downloadErrs: make(map[string]error),
		deleteErrs:   make(map[string]error),
	}
}

func (f *fakeStorage) Upload(_ context.Context, key string, reader io.Reader, _ int64) (*storage.UploadResult, error) {
	if err := f.uploadErrs[key]; err != nil {
		return nil, err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.blobs[key] = data
	f.uploads = append(f.uploads, key)
	return &storage.UploadResult{Key: key, Size: int64(len(data))}, nil
}

func (f *fakeStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	if err := f.downloadErrs[key]; err != nil {
		return nil, err
	}
	data, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	if err := f.deleteErrs[key]; err != nil {
		return err
	}
	delete(f.blobs, key)
	return nil
}

func (f *fakeStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := f.blobs[key]
	return ok, nil
}

func (f *fakeStorage) Ping(_ context.Context) error { return nil }

// ---------------------------------------------------------------------------
// fakeQuotaStore mirrors the transactional reserve semantics in memory
// ---------------------------------------------------------------------------

type quotaRow struct {
	count       int
	periodStart time.Time
}

type fakeQuotaStore struct {
	mu       sync.Mutex
	rows     map[string]*quotaRow
	reserves int
	releases int
	failNext error
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{rows: make(map[string]*quotaRow)}
}

func (f *fakeQuotaStore) ReserveRetrieval(_ context.Context, userID string, limit, periodDays int, today time.Time) (*repositories.QuotaReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return nil, err
	}
	f.reserves++
	row := f.rows[userID]
	if row == nil {
		row = &quotaRow{periodStart: today}
		f.rows[userID] = row
	}
	if today.After(row.periodStart.AddDate(0, 0, periodDays)) {
		row.count = 0
		row.periodStart = today
	}
	if row.count >= limit {
		return &repositories.QuotaReservation{Allowed: false, Count: row.count, PeriodStart: row.periodStart}, nil
	}
	row.count++
	return &repositories.QuotaReservation{Allowed: true, Count: row.count, PeriodStart: row.periodStart}, nil
}

func (f *fakeQuotaStore) ReleaseRetrieval(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	if row := f.rows[userID]; row != nil && row.count > 0 {
		row.count--
	}
	return nil
}

// ---------------------------------------------------------------------------
// fakeUserStore
// ---------------------------------------------------------------------------

type fakeUserStore struct {
	rows       map[string]*models.User
	nextID     int
	failDelete error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{rows: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(_ context.Context, u *models.User) error {
	for _, row := range f.rows {
		if row.Username == u.Username || row.Email == u.Email {
			return &pq.Error{Code: "23505"}
		}
	}
	f.nextID++
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	u.AccountTier = models.TierFree
	clone := *u
	f.rows[u.ID] = &clone
	return nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserStore) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range f.rows {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.rows {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) List(_ context.Context) ([]*models.User, error) {
	var out []*models.User
	for _, u := range f.rows {
		clone := *u
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeUserStore) Delete(_ context.Context, id string) error {
	if f.failDelete != nil {
		return f.failDelete
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeUserStore) UpdateTier(_ context.Context, id, tier string) error {
	if u, ok := f.rows[id]; ok {
		u.AccountTier = tier
	}
	return nil
}

// ---------------------------------------------------------------------------
// fakeLicenseStore
// ---------------------------------------------------------------------------

type fakeLicenseStore struct {
	mu       sync.Mutex
	rows     map[string]*models.LicenseKey // id -> key
	byString map[string]*models.LicenseKey
	promoted map[string]bool // userID -> promoted to pro
	nextID   int
}

func newFakeLicenseStore() *fakeLicenseStore {
	return &fakeLicenseStore{
		rows:     make(map[string]*models.LicenseKey),
		byString: make(map[string]*models.LicenseKey),
		promoted: make(map[string]bool),
	}
}

func (f *fakeLicenseStore) CreateBatch(_ context.Context, keys []*models.LicenseKey) error {
	for _, k := range keys {
		f.nextID++
		k.ID = fmt.Sprintf("key-%d", f.nextID)
		clone := *k
		f.rows[k.ID] = &clone
		f.byString[k.KeyString] = &clone
	}
	return nil
}

func (f *fakeLicenseStore) GetByID(_ context.Context, id string) (*models.LicenseKey, error) {
	k, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	clone := *k
	return &clone, nil
}

func (f *fakeLicenseStore) List(_ context.Context) ([]*models.LicenseKey, error) {
	var out []*models.LicenseKey
	for _, k := range f.rows {
		clone := *k
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeLicenseStore) Delete(_ context.Context, id string) error {
	if k, ok := f.rows[id]; ok {
		delete(f.byString, k.KeyString)
		delete(f.rows, id)
	}
	return nil
}

func (f *fakeLicenseStore) Redeem(_ context.Context, keyString, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.byString[keyString]
	if !ok || k.IsUsed {
		return false, nil
	}
	now := time.Now()
	k.IsUsed = true
	k.ActivatedByUserID = &userID
	k.ActivatedAt = &now
	f.promoted[userID] = true
	return true, nil
}
