package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/stillpoint-app/stillpoint/internal/store"
	"github.com/stillpoint-app/stillpoint/models"
)

// ─────────────────────────────────────────────
// Fake clock
// ─────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// ─────────────────────────────────────────────
// Fake queue repository
// ─────────────────────────────────────────────

type fakeQueueRepo struct {
	mu      sync.Mutex
	items   []models.SyncQueueItem
	nextSeq int64
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{nextSeq: 1}
}

func (q *fakeQueueRepo) enqueue(item models.SyncQueueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	item.Seq = q.nextSeq
	q.nextSeq++
	q.items = append(q.items, item)
}

func (q *fakeQueueRepo) List(_ context.Context, limit int) ([]models.SyncQueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.SyncQueueItem, len(q.items))
	copy(out, q.items)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (q *fakeQueueRepo) Remove(_ context.Context, seq int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, item := range q.items {
		if item.Seq == seq {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *fakeQueueRepo) IncrementRetry(_ context.Context, seq int64) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.items {
		if q.items[i].Seq == seq {
			q.items[i].RetryCount++
			return q.items[i].RetryCount, nil
		}
	}
	return 0, store.ErrRecordNotFound
}

func (q *fakeQueueRepo) Count(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items), nil
}

// ─────────────────────────────────────────────
// Fake record repository (+ transaction)
// ─────────────────────────────────────────────

type fakeRecordRepo struct {
	mu      sync.Mutex
	records map[string]models.LocalRecord
	queue   *fakeQueueRepo

	insertErr error
	// setOwnerFailID makes RecordTx.SetOwner fail for one record id, to
	// simulate a per-item migration error.
	setOwnerFailID string
}

func newFakeRecordRepo(queue *fakeQueueRepo) *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[string]models.LocalRecord), queue: queue}
}

func (r *fakeRecordRepo) put(rec models.LocalRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
}

func (r *fakeRecordRepo) Insert(_ context.Context, rec models.LocalRecord, queued models.SyncQueueItem) error {
	if r.insertErr != nil {
		return r.insertErr
	}

	r.mu.Lock()
	r.records[rec.ID] = rec
	r.mu.Unlock()

	r.queue.enqueue(queued)
	return nil
}

func (r *fakeRecordRepo) Update(_ context.Context, rec models.LocalRecord, queued models.SyncQueueItem) error {
	r.mu.Lock()
	if _, ok := r.records[rec.ID]; !ok {
		r.mu.Unlock()
		return store.ErrRecordNotFound
	}
	r.records[rec.ID] = rec
	r.mu.Unlock()

	r.queue.enqueue(queued)
	return nil
}

func (r *fakeRecordRepo) Delete(_ context.Context, id string, queued models.SyncQueueItem) error {
	r.mu.Lock()
	if _, ok := r.records[id]; !ok {
		r.mu.Unlock()
		return store.ErrRecordNotFound
	}
	delete(r.records, id)
	r.mu.Unlock()

	r.queue.enqueue(queued)
	return nil
}

func (r *fakeRecordRepo) Get(_ context.Context, id string) (models.LocalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return models.LocalRecord{}, store.ErrRecordNotFound
	}
	return rec, nil
}

func (r *fakeRecordRepo) List(_ context.Context, ownerID string, f store.RecordFilter) ([]models.LocalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.LocalRecord
	for _, rec := range r.records {
		if rec.OwnerID != ownerID {
			continue
		}
		if f.EntityType != "" && rec.EntityType != f.EntityType {
			continue
		}
		if f.Since != nil && rec.UpdatedAt.Before(*f.Since) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *fakeRecordRepo) SetSyncState(_ context.Context, id string, state models.SyncState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return store.ErrRecordNotFound
	}
	rec.SyncState = state
	r.records[id] = rec
	return nil
}

func (r *fakeRecordRepo) CountByType(_ context.Context, ownerID string, t models.EntityType) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, rec := range r.records {
		if rec.OwnerID == ownerID && rec.EntityType == t {
			count++
		}
	}
	return count, nil
}

func (r *fakeRecordRepo) EvictSynced(_ context.Context, ownerID string, t models.EntityType, n int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var synced []models.LocalRecord
	for _, rec := range r.records {
		if rec.OwnerID == ownerID && rec.EntityType == t && rec.SyncState == models.SyncStateSynced {
			synced = append(synced, rec)
		}
	}
	sort.Slice(synced, func(i, j int) bool { return synced[i].UpdatedAt.Before(synced[j].UpdatedAt) })

	evicted := 0
	for i := 0; i < len(synced) && i < n; i++ {
		delete(r.records, synced[i].ID)
		evicted++
	}
	return evicted, nil
}

func (r *fakeRecordRepo) Begin(_ context.Context) (store.RecordTx, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	working := make(map[string]models.LocalRecord, len(r.records))
	for id, rec := range r.records {
		working[id] = rec
	}
	return &fakeRecordTx{repo: r, working: working}, nil
}

// fakeRecordTx mutates a copy and swaps it in on Commit, so Rollback leaves
// the repository exactly as it was.
type fakeRecordTx struct {
	repo    *fakeRecordRepo
	working map[string]models.LocalRecord
	done    bool
}

func (t *fakeRecordTx) SetOwner(_ context.Context, id, ownerID string, updatedAt time.Time) error {
	if t.repo.setOwnerFailID == id {
		return store.ErrRecordNotFound
	}

	rec, ok := t.working[id]
	if !ok {
		return store.ErrRecordNotFound
	}
	rec.OwnerID = ownerID
	rec.UpdatedAt = updatedAt
	t.working[id] = rec
	return nil
}

func (t *fakeRecordTx) SavePayload(_ context.Context, id string, payload json.RawMessage, updatedAt time.Time) error {
	rec, ok := t.working[id]
	if !ok {
		return store.ErrRecordNotFound
	}
	rec.Payload = payload
	rec.UpdatedAt = updatedAt
	t.working[id] = rec
	return nil
}

func (t *fakeRecordTx) Delete(_ context.Context, id string) error {
	if _, ok := t.working[id]; !ok {
		return store.ErrRecordNotFound
	}
	delete(t.working, id)
	return nil
}

func (t *fakeRecordTx) Commit() error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.records = t.working
	t.done = true
	return nil
}

func (t *fakeRecordTx) Rollback() error {
	t.done = true
	return nil
}

// ─────────────────────────────────────────────
// Fake session repository
// ─────────────────────────────────────────────

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]models.SOSSession
	activeID string
	saves    int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]models.SOSSession)}
}

func (r *fakeSessionRepo) Save(_ context.Context, s models.SOSSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	r.saves++
	return nil
}

func (r *fakeSessionRepo) Get(_ context.Context, id string) (models.SOSSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return models.SOSSession{}, store.ErrSessionNotFound
	}
	return s, nil
}

func (r *fakeSessionRepo) GetActive(ctx context.Context) (models.SOSSession, error) {
	r.mu.Lock()
	id := r.activeID
	r.mu.Unlock()

	if id == "" {
		return models.SOSSession{}, store.ErrSessionNotFound
	}
	return r.Get(ctx, id)
}

func (r *fakeSessionRepo) SetActive(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeID = id
	return nil
}

func (r *fakeSessionRepo) ClearActive(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeID = ""
	return nil
}

func (r *fakeSessionRepo) ListHistory(_ context.Context, limit int) ([]models.SOSSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.SOSSession
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeSessionRepo) EvictHistory(_ context.Context, keep int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ended []models.SOSSession
	for _, s := range r.sessions {
		if !s.IsActive {
			ended = append(ended, s)
		}
	}
	if len(ended) <= keep {
		return 0, nil
	}

	sort.Slice(ended, func(i, j int) bool { return ended[i].StartedAt.Before(ended[j].StartedAt) })
	evicted := 0
	for i := 0; i < len(ended)-keep; i++ {
		delete(r.sessions, ended[i].ID)
		evicted++
	}
	return evicted, nil
}

// ─────────────────────────────────────────────
// Fake state repository
// ─────────────────────────────────────────────

type fakeStateRepo struct {
	mu         sync.Mutex
	guestID    string
	lastSyncAt *time.Time
	status     models.MigrationStatus
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{}
}

func (r *fakeStateRepo) GetMigrationStatus(context.Context) (models.MigrationStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status, nil
}

func (r *fakeStateRepo) SetMigrationStatus(_ context.Context, st models.MigrationStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = st
	return nil
}

func (r *fakeStateRepo) GetLastSyncAt(context.Context) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSyncAt, nil
}

func (r *fakeStateRepo) SetLastSyncAt(_ context.Context, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSyncAt = &t
	return nil
}

func (r *fakeStateRepo) GetGuestID(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.guestID, nil
}

func (r *fakeStateRepo) SetGuestID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guestID = id
	return nil
}

// ─────────────────────────────────────────────
// Fake backup store
// ─────────────────────────────────────────────

type fakeBackupStore struct {
	mu       sync.Mutex
	snaps    []models.GuestSnapshot
	writeErr error
}

func (b *fakeBackupStore) Write(_ context.Context, snap models.GuestSnapshot) (string, error) {
	if b.writeErr != nil {
		return "", b.writeErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snaps = append(b.snaps, snap)
	return "/tmp/backup.json", nil
}

func (b *fakeBackupStore) Load(context.Context, string) (models.GuestSnapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.snaps) == 0 {
		return models.GuestSnapshot{}, store.ErrStateNotFound
	}
	return b.snaps[len(b.snaps)-1], nil
}

// ─────────────────────────────────────────────
// Connectivity and identity stubs
// ─────────────────────────────────────────────

type stubConnectivity struct {
	mu     sync.Mutex
	online bool
	ch     chan bool
}

func newStubConnectivity(online bool) *stubConnectivity {
	return &stubConnectivity{online: online, ch: make(chan bool, 1)}
}

func (c *stubConnectivity) IsOnline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *stubConnectivity) setOnline(online bool) {
	c.mu.Lock()
	c.online = online
	c.mu.Unlock()

	select {
	case c.ch <- online:
	default:
	}
}

func (c *stubConnectivity) Subscribe() <-chan bool {
	return c.ch
}

type stubIdentity struct {
	owner string
	guest bool
}

func (s *stubIdentity) Bootstrap(context.Context) error { return nil }
func (s *stubIdentity) CurrentOwner() string            { return s.owner }
func (s *stubIdentity) IsGuest() bool                   { return s.guest }
func (s *stubIdentity) SignIn(string) (string, error)   { return s.owner, nil }
func (s *stubIdentity) SignOut()                        {}
