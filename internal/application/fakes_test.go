package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pharmatrace/trace-engine/internal/domain"
)

type fakeBatchRepo struct {
	mu         sync.Mutex
	batches    map[string]*domain.Batch
	findErr    error
	reserveErr error
	releaseErr error
	reserves   int
	releases   int
}

func newFakeBatchRepo(batches ...*domain.Batch) *fakeBatchRepo {
	f := &fakeBatchRepo{batches: make(map[string]*domain.Batch)}
	for _, b := range batches {
		f.batches[b.ID] = b
	}
	return f
}

func (f *fakeBatchRepo) FindByID(_ context.Context, id string) (*domain.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	b, ok := f.batches[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBatchRepo) TryReserve(_ context.Context, id string, n int64) error {
	return f.reserve(id, n, false)
}

func (f *fakeBatchRepo) TryReserveForShipment(_ context.Context, id string, n int64) error {
	return f.reserve(id, n, true)
}

func (f *fakeBatchRepo) reserve(id string, n int64, ship bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return f.reserveErr
	}
	b, ok := f.batches[id]
	if !ok {
		return domain.ErrBatchNotFound
	}
	if b.Qty < n {
		return domain.ErrInsufficientQuantity
	}
	b.Qty -= n
	if ship {
		b.SentQty += n
	}
	f.reserves++
	return nil
}

func (f *fakeBatchRepo) Release(_ context.Context, id string, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseErr != nil {
		return f.releaseErr
	}
	b, ok := f.batches[id]
	if !ok {
		return domain.ErrBatchNotFound
	}
	b.Qty += n
	f.releases++
	return nil
}

func (f *fakeBatchRepo) qty(id string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches[id].Qty
}

func (f *fakeBatchRepo) sentQty(id string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches[id].SentQty
}

type fakeActorRepo struct {
	actors  map[string]*domain.Actor
	findErr error
}

func newFakeActorRepo(ids ...string) *fakeActorRepo {
	f := &fakeActorRepo{actors: make(map[string]*domain.Actor)}
	for _, id := range ids {
		f.actors[id] = &domain.Actor{ID: id, Name: id}
	}
	return f
}

func (f *fakeActorRepo) FindByID(_ context.Context, id string) (*domain.Actor, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.actors[id], nil
}

type fakeStatusRepo struct {
	records   []*domain.StatusRecord
	appendErr error
}

func (f *fakeStatusRepo) Append(_ context.Context, rec *domain.StatusRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.records = append(f.records, rec)
	return nil
}

func matchesKey(rec *domain.StatusRecord, key domain.StatusKey) bool {
	return (key.ProductID != "" && rec.ProductID == key.ProductID) ||
		(key.BatchID != "" && rec.BatchID == key.BatchID) ||
		(key.SGTIN != "" && rec.SGTIN == key.SGTIN)
}

func (f *fakeStatusRepo) FindLatest(_ context.Context, key domain.StatusKey) (*domain.StatusRecord, error) {
	for i := len(f.records) - 1; i >= 0; i-- {
		if matchesKey(f.records[i], key) {
			return f.records[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStatusRepo) FindHistory(_ context.Context, key domain.StatusKey, limit int) ([]*domain.StatusRecord, error) {
	var out []*domain.StatusRecord
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if matchesKey(f.records[i], key) {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

type fakeDestructionRepo struct {
	mu        sync.Mutex
	requests  map[string]*domain.DestructionRequest
	saveErr   error
	updateErr error
	saves     int
	updates   int
}

func newFakeDestructionRepo() *fakeDestructionRepo {
	return &fakeDestructionRepo{requests: make(map[string]*domain.DestructionRequest)}
}

func (f *fakeDestructionRepo) Save(_ context.Context, req *domain.DestructionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.store(req)
	return nil
}

func (f *fakeDestructionRepo) Update(_ context.Context, req *domain.DestructionRequest, from domain.DestructionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.requests[req.ID]
	if !ok || stored.Status != from {
		return domain.ErrInvalidState
	}
	f.updates++
	req.ClaimedUntil = nil
	f.store(req)
	return nil
}

func (f *fakeDestructionRepo) Claim(_ context.Context, id string, from domain.DestructionStatus, ttl time.Duration) (*domain.DestructionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.requests[id]
	if !ok {
		return nil, domain.ErrDestructionNotFound
	}
	if stored.Status != from || claimLive(stored.ClaimedUntil) {
		return nil, domain.ErrInvalidState
	}
	until := time.Now().Add(ttl)
	stored.ClaimedUntil = &until
	cp := *stored
	return &cp, nil
}

func (f *fakeDestructionRepo) Unclaim(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.requests[id]; ok {
		stored.ClaimedUntil = nil
	}
	return nil
}

func (f *fakeDestructionRepo) store(req *domain.DestructionRequest) {
	cp := *req
	cp.DomainEvents = nil
	f.requests[req.ID] = &cp
}

func (f *fakeDestructionRepo) FindByID(_ context.Context, id string) (*domain.DestructionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	return &cp, nil
}

func (f *fakeDestructionRepo) status(id string) domain.DestructionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id].Status
}

func (f *fakeDestructionRepo) FindByBatchID(_ context.Context, batchID string) ([]*domain.DestructionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.DestructionRequest
	for _, r := range f.requests {
		if r.BatchID == batchID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeDestructionRepo) FindByStatus(_ context.Context, status domain.DestructionStatus, limit int) ([]*domain.DestructionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.DestructionRequest
	for _, r := range f.requests {
		if r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeReturnRepo struct {
	mu        sync.Mutex
	records   map[string]*domain.ReturnRecord
	saveErr   error
	updateErr error
}

func newFakeReturnRepo() *fakeReturnRepo {
	return &fakeReturnRepo{records: make(map[string]*domain.ReturnRecord)}
}

func (f *fakeReturnRepo) Save(_ context.Context, rec *domain.ReturnRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.store(rec)
	return nil
}

func (f *fakeReturnRepo) Update(_ context.Context, rec *domain.ReturnRecord, from domain.ReturnStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	stored, ok := f.records[rec.ID]
	if !ok || stored.Status != from {
		return domain.ErrInvalidState
	}
	rec.ClaimedUntil = nil
	f.store(rec)
	return nil
}

func (f *fakeReturnRepo) Claim(_ context.Context, id string, from domain.ReturnStatus, ttl time.Duration) (*domain.ReturnRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.records[id]
	if !ok {
		return nil, domain.ErrReturnNotFound
	}
	if stored.Status != from || claimLive(stored.ClaimedUntil) {
		return nil, domain.ErrInvalidState
	}
	until := time.Now().Add(ttl)
	stored.ClaimedUntil = &until
	cp := *stored
	return &cp, nil
}

func (f *fakeReturnRepo) Unclaim(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.records[id]; ok {
		stored.ClaimedUntil = nil
	}
	return nil
}

func (f *fakeReturnRepo) store(rec *domain.ReturnRecord) {
	cp := *rec
	cp.DomainEvents = nil
	f.records[rec.ID] = &cp
}

func (f *fakeReturnRepo) FindByID(_ context.Context, id string) (*domain.ReturnRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeReturnRepo) FindByBatchID(_ context.Context, batchID string) ([]*domain.ReturnRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ReturnRecord
	for _, r := range f.records {
		if r.BatchID == batchID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReturnRepo) FindPending(_ context.Context, direction domain.ReturnDirection, limit int) ([]*domain.ReturnRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ReturnRecord
	for _, r := range f.records {
		if r.Direction == direction && r.Status == domain.ReturnPending && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeEventStore struct {
	events    []*domain.TraceEvent
	appendErr error
}

func (f *fakeEventStore) Append(_ context.Context, e *domain.TraceEvent) (string, error) {
	if f.appendErr != nil {
		return "", f.appendErr
	}
	f.events = append(f.events, e)
	return e.ID, nil
}

type fakeRegistry struct {
	name    string
	parties map[string]*domain.CompanyInfo
	err     error
	calls   int
}

func (f *fakeRegistry) Name() string { return f.name }

func (f *fakeRegistry) FindByPrefix(_ context.Context, prefix string) (*domain.CompanyInfo, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.parties[prefix], nil
}

type cacheEntry struct {
	info *domain.CompanyInfo
	ttl  time.Duration
}

type fakePrefixCache struct {
	entries map[string]cacheEntry
	getErr  error
	setErr  error
}

func newFakePrefixCache() *fakePrefixCache {
	return &fakePrefixCache{entries: make(map[string]cacheEntry)}
}

func (f *fakePrefixCache) Get(_ context.Context, prefix string) (*domain.CompanyInfo, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	e, ok := f.entries[prefix]
	return e.info, ok, nil
}

func (f *fakePrefixCache) Set(_ context.Context, prefix string, info *domain.CompanyInfo, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[prefix] = cacheEntry{info: info, ttl: ttl}
	return nil
}

func (f *fakePrefixCache) Delete(_ context.Context, prefix string) error {
	delete(f.entries, prefix)
	return nil
}

type fakeNumberRegistry struct {
	taken map[string]bool
	err   error
	calls int
	// takeAll makes every candidate collide
	takeAll bool
}

func (f *fakeNumberRegistry) Reserve(_ context.Context, productID, userID, candidate string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if f.takeAll {
		return false, nil
	}
	if f.taken == nil {
		f.taken = make(map[string]bool)
	}
	k := productID + "/" + userID + "/" + candidate
	if f.taken[k] {
		return false, nil
	}
	f.taken[k] = true
	return true, nil
}

type recordingRecorder struct {
	calls []EventOptions
	epcs  [][]string
	err   error
}

func (r *recordingRecorder) CreateObjectEvent(_ context.Context, epcList []string, opts EventOptions) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.calls = append(r.calls, opts)
	r.epcs = append(r.epcs, epcList)
	return "evt-1", nil
}
