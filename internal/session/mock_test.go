package session

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/abhisek/adaptest/internal/irt"
	"github.com/abhisek/adaptest/internal/store"
)

// mockRepos is an in-memory store.Repos. Atomic holds the lock for the
// whole callback and restores a snapshot on error.
type mockRepos struct {
	mu   *sync.Mutex
	data *mockData
	inTx bool
}

type mockData struct {
	pools     map[string]store.Pool
	items     map[string]store.Item
	itemOrder []string
	sessions  map[string]store.Session
	responses []store.Response
	reports   map[string]store.Report

	failRecordAnswer error
}

func newMockRepos() *mockRepos {
	return &mockRepos{
		mu: &sync.Mutex{},
		data: &mockData{
			pools:    map[string]store.Pool{},
			items:    map[string]store.Item{},
			sessions: map[string]store.Session{},
			reports:  map[string]store.Report{},
		},
	}
}

func (m *mockRepos) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *mockRepos) Items() store.ItemRepo         { return mockItems{m} }
func (m *mockRepos) Pools() store.PoolRepo         { return mockPools{m} }
func (m *mockRepos) Sessions() store.SessionRepo   { return mockSessions{m} }
func (m *mockRepos) Responses() store.ResponseRepo { return mockResponses{m} }
func (m *mockRepos) Reports() store.ReportRepo     { return mockReports{m} }

func (m *mockRepos) Atomic(ctx context.Context, fn func(store.Repos) error) error {
	if m.inTx {
		return fn(m)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.data.clone()
	if err := fn(&mockRepos{mu: m.mu, data: m.data, inTx: true}); err != nil {
		*m.data = *snap
		return err
	}
	return nil
}

func cloneSession(s store.Session) store.Session {
	s.AskedItems = slices.Clone(s.AskedItems)
	s.History = slices.Clone(s.History)
	s.TopicCoverage = maps.Clone(s.TopicCoverage)
	return s
}

func (d *mockData) clone() *mockData {
	out := *d
	out.pools = maps.Clone(d.pools)
	out.items = maps.Clone(d.items)
	out.itemOrder = slices.Clone(d.itemOrder)
	out.sessions = make(map[string]store.Session, len(d.sessions))
	for k, v := range d.sessions {
		out.sessions[k] = cloneSession(v)
	}
	out.responses = slices.Clone(d.responses)
	out.reports = maps.Clone(d.reports)
	return &out
}

type mockItems struct{ m *mockRepos }

func (r mockItems) Create(_ context.Context, it *store.Item) error {
	defer r.m.lock()()
	d := r.m.data
	p, ok := d.pools[it.PoolID]
	if !ok {
		return fmt.Errorf("pool %s: %w", it.PoolID, store.ErrNotFound)
	}
	if _, dup := d.items[it.ID]; dup {
		return store.ErrConflict
	}
	if it.Level == "" {
		it.Level = irt.LevelFor(it.Difficulty)
	}
	d.items[it.ID] = *it
	d.itemOrder = append(d.itemOrder, it.ID)
	p.ItemCount++
	d.pools[p.ID] = p
	return nil
}

func (r mockItems) Get(_ context.Context, id string) (*store.Item, error) {
	defer r.m.lock()()
	it, ok := r.m.data.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	return &it, nil
}

func (r mockItems) ListByPool(_ context.Context, poolID string, exclude []string) ([]store.Item, error) {
	defer r.m.lock()()
	var out []store.Item
	for _, id := range r.m.data.itemOrder {
		it := r.m.data.items[id]
		if it.PoolID == poolID && !slices.Contains(exclude, id) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r mockItems) UpdateParams(_ context.Context, id string, p irt.Params) error {
	defer r.m.lock()()
	it, ok := r.m.data.items[id]
	if !ok {
		return store.ErrNotFound
	}
	it.Discrimination, it.Difficulty, it.Guessing = p.A, p.B, p.C
	it.Level = irt.LevelFor(p.B)
	r.m.data.items[id] = it
	return nil
}

func (r mockItems) RecordServed(_ context.Context, id string, info float64) error {
	defer r.m.lock()()
	it, ok := r.m.data.items[id]
	if !ok {
		return store.ErrNotFound
	}
	it.InformationValue = info
	r.m.data.items[id] = it
	return nil
}

func (r mockItems) RecordAnswer(_ context.Context, id string, correct bool, rt float64, completed int) error {
	defer r.m.lock()()
	if r.m.data.failRecordAnswer != nil {
		return r.m.data.failRecordAnswer
	}
	it, ok := r.m.data.items[id]
	if !ok {
		return store.ErrNotFound
	}
	it.AvgResponseTime = (it.AvgResponseTime*float64(it.UsageCount) + rt) / float64(it.UsageCount+1)
	it.UsageCount++
	if correct {
		it.CorrectCount++
	}
	it.ExposureRate = 0
	if completed > 0 {
		it.ExposureRate = float64(it.UsageCount) / float64(completed)
	}
	r.m.data.items[id] = it
	return nil
}

type mockPools struct{ m *mockRepos }

func (r mockPools) Create(_ context.Context, p *store.Pool) error {
	defer r.m.lock()()
	if _, dup := r.m.data.pools[p.ID]; dup {
		return store.ErrConflict
	}
	r.m.data.pools[p.ID] = *p
	return nil
}

func (r mockPools) Get(_ context.Context, id string) (*store.Pool, error) {
	defer r.m.lock()()
	p, ok := r.m.data.pools[id]
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", id, store.ErrNotFound)
	}
	return &p, nil
}

func (r mockPools) List(_ context.Context, orgID string) ([]store.Pool, error) {
	defer r.m.lock()()
	var out []store.Pool
	for _, p := range r.m.data.pools {
		if orgID == "" || p.OrgID == orgID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r mockPools) Update(_ context.Context, p *store.Pool) error {
	defer r.m.lock()()
	cur, ok := r.m.data.pools[p.ID]
	if !ok {
		return store.ErrNotFound
	}
	cur.Name, cur.Description, cur.Active = p.Name, p.Description, p.Active
	r.m.data.pools[p.ID] = cur
	return nil
}

func (r mockPools) IncrementCompleted(_ context.Context, id string) error {
	defer r.m.lock()()
	p, ok := r.m.data.pools[id]
	if !ok {
		return store.ErrNotFound
	}
	p.CompletedSessions++
	r.m.data.pools[id] = p
	return nil
}

type mockSessions struct{ m *mockRepos }

func (r mockSessions) Create(_ context.Context, s *store.Session) error {
	defer r.m.lock()()
	for _, cur := range r.m.data.sessions {
		if s.Status == store.StatusInProgress && cur.Status == store.StatusInProgress &&
			cur.PoolID == s.PoolID && cur.TakerID == s.TakerID {
			return store.ErrConflict
		}
	}
	r.m.data.sessions[s.ID] = cloneSession(*s)
	return nil
}

func (r mockSessions) Get(_ context.Context, id string) (*store.Session, error) {
	defer r.m.lock()()
	s, ok := r.m.data.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, store.ErrNotFound)
	}
	s = cloneSession(s)
	return &s, nil
}

func (r mockSessions) GetActive(_ context.Context, poolID, takerID string) (*store.Session, error) {
	defer r.m.lock()()
	for _, s := range r.m.data.sessions {
		if s.PoolID == poolID && s.TakerID == takerID && s.Status == store.StatusInProgress {
			s = cloneSession(s)
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r mockSessions) Update(_ context.Context, s *store.Session) error {
	defer r.m.lock()()
	cur, ok := r.m.data.sessions[s.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != s.Version {
		return store.ErrConflict
	}
	s.Version++
	r.m.data.sessions[s.ID] = cloneSession(*s)
	return nil
}

type mockResponses struct{ m *mockRepos }

func (r mockResponses) Append(_ context.Context, resp *store.Response) error {
	defer r.m.lock()()
	for _, cur := range r.m.data.responses {
		if cur.SessionID == resp.SessionID &&
			(cur.QuestionNumber == resp.QuestionNumber || cur.ItemID == resp.ItemID) {
			return store.ErrConflict
		}
	}
	r.m.data.responses = append(r.m.data.responses, *resp)
	return nil
}

func (r mockResponses) ListBySession(_ context.Context, sessionID string) ([]store.Response, error) {
	defer r.m.lock()()
	var out []store.Response
	for _, resp := range r.m.data.responses {
		if resp.SessionID == sessionID {
			out = append(out, resp)
		}
	}
	slices.SortFunc(out, func(a, b store.Response) int { return a.QuestionNumber - b.QuestionNumber })
	return out, nil
}

func (r mockResponses) ListByItem(_ context.Context, itemID string) ([]store.Response, error) {
	defer r.m.lock()()
	var out []store.Response
	for _, resp := range r.m.data.responses {
		if resp.ItemID == itemID {
			out = append(out, resp)
		}
	}
	return out, nil
}

type mockReports struct{ m *mockRepos }

func (r mockReports) Get(_ context.Context, sessionID string) (*store.Report, error) {
	defer r.m.lock()()
	rep, ok := r.m.data.reports[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rep, nil
}

func (r mockReports) Insert(_ context.Context, rep *store.Report) (*store.Report, error) {
	defer r.m.lock()()
	if cur, ok := r.m.data.reports[rep.SessionID]; ok {
		return &cur, nil
	}
	r.m.data.reports[rep.SessionID] = *rep
	out := *rep
	return &out, nil
}
