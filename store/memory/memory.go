// Package memory provides in-memory stores for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Cherif0104/EcosystIA-sub001/generic"
	"github.com/Cherif0104/EcosystIA-sub001/leave"
	"github.com/Cherif0104/EcosystIA-sub001/obligation"
	"github.com/Cherif0104/EcosystIA-sub001/recurring"
	"github.com/Cherif0104/EcosystIA-sub001/reminders"
)

// =============================================================================
// MEMORY - Shared state behind the obligation and leave stores
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	templates   ordered[obligation.TemplateRecord]
	instances   ordered[obligation.InstanceRecord]
	generations ordered[recurring.Generation]
	requests    ordered[leave.Request]

	reminderDays map[string]int
	reads        map[string]map[string]bool
}

// ordered is a map that remembers insertion order, like a rowid.
type ordered[V any] struct {
	byID  map[string]V
	order []string
}

func (o *ordered[V]) put(id string, v V) {
	if o.byID == nil {
		o.byID = make(map[string]V)
	}
	if _, ok := o.byID[id]; !ok {
		o.order = append(o.order, id)
	}
	o.byID[id] = v
}

func (o *ordered[V]) get(id string) (V, bool) {
	v, ok := o.byID[id]
	return v, ok
}

func (o *ordered[V]) each(fn func(V)) {
	for _, id := range o.order {
		fn(o.byID[id])
	}
}

func (o ordered[V]) clone() ordered[V] {
	out := ordered[V]{byID: make(map[string]V, len(o.byID)), order: append([]string(nil), o.order...)}
	for k, v := range o.byID {
		out.byID[k] = v
	}
	return out
}

func (s *state) clone() *state {
	out := &state{
		templates:    s.templates.clone(),
		instances:    s.instances.clone(),
		generations:  s.generations.clone(),
		requests:     s.requests.clone(),
		reminderDays: make(map[string]int, len(s.reminderDays)),
		reads:        make(map[string]map[string]bool, len(s.reads)),
	}
	for k, v := range s.reminderDays {
		out.reminderDays[k] = v
	}
	for tenant, ids := range s.reads {
		cp := make(map[string]bool, len(ids))
		for id := range ids {
			cp[id] = true
		}
		out.reads[tenant] = cp
	}
	return out
}

func New() *Memory {
	return &Memory{state: &state{
		reminderDays: make(map[string]int),
		reads:        make(map[string]map[string]bool),
	}}
}

// Obligations returns the obligation store view.
func (m *Memory) Obligations() *ObligationStore { return &ObligationStore{view{m: m}} }

// Leave returns the leave request store view.
func (m *Memory) Leave() *LeaveStore { return &LeaveStore{view{m: m}} }

// view takes the lock unless it is bound to a running transaction, which
// already holds it.
type view struct {
	m    *Memory
	inTx bool
}

func (v view) read(fn func(*state)) {
	if !v.inTx {
		v.m.mu.RLock()
		defer v.m.mu.RUnlock()
	}
	fn(v.m.state)
}

func (v view) write(fn func(*state) error) error {
	if !v.inTx {
		v.m.mu.Lock()
		defer v.m.mu.Unlock()
	}
	return fn(v.m.state)
}

// withTx is simulated with a snapshot and a rollback on error.
func (v view) withTx(fn func(tx view) error) error {
	if v.inTx {
		return fn(v)
	}
	v.m.mu.Lock()
	defer v.m.mu.Unlock()

	snapshot := v.m.state.clone()
	if err := fn(view{m: v.m, inTx: true}); err != nil {
		v.m.state = snapshot
		return err
	}
	return nil
}

// =============================================================================
// OBLIGATION STORE
// =============================================================================

type ObligationStore struct {
	view
}

var (
	_ recurring.Store  = (*ObligationStore)(nil)
	_ reminders.Store  = (*ObligationStore)(nil)
	_ obligation.Store = (*ObligationStore)(nil)
)

func (s *ObligationStore) ListTenants(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	s.read(func(st *state) {
		st.templates.each(func(r obligation.TemplateRecord) { seen[r.TenantID] = true })
		st.instances.each(func(r obligation.InstanceRecord) { seen[r.TenantID] = true })
	})
	tenants := make([]string, 0, len(seen))
	for t := range seen {
		tenants = append(tenants, t)
	}
	sort.Strings(tenants)
	return tenants, nil
}

func (s *ObligationStore) ListTemplates(_ context.Context, tenantID string) ([]obligation.TemplateRecord, error) {
	var out []obligation.TemplateRecord
	s.read(func(st *state) {
		st.templates.each(func(r obligation.TemplateRecord) {
			if r.TenantID == tenantID {
				out = append(out, r)
			}
		})
	})
	return out, nil
}

func (s *ObligationStore) GetTemplate(_ context.Context, tenantID, id string) (obligation.TemplateRecord, error) {
	var rec obligation.TemplateRecord
	var ok bool
	s.read(func(st *state) { rec, ok = st.templates.get(id) })
	if !ok || rec.TenantID != tenantID {
		return obligation.TemplateRecord{}, fmt.Errorf("template %s: %w", id, generic.ErrNotFound)
	}
	return rec, nil
}

func (s *ObligationStore) SaveTemplate(ctx context.Context, tpl obligation.Template) error {
	return s.SaveTemplateRecord(ctx, tpl.Record())
}

// SaveTemplateRecord stores a record without parsing it. Tenant, kind and
// last generated date of an existing template are kept.
func (s *ObligationStore) SaveTemplateRecord(_ context.Context, rec obligation.TemplateRecord) error {
	return s.write(func(st *state) error {
		if existing, ok := st.templates.get(rec.ID); ok {
			rec.TenantID = existing.TenantID
			rec.Kind = existing.Kind
			rec.LastGeneratedDate = existing.LastGeneratedDate
		}
		st.templates.put(rec.ID, rec)
		return nil
	})
}

func (s *ObligationStore) AdvanceTemplate(_ context.Context, tenantID, templateID string, from *generic.TimePoint, to generic.TimePoint) error {
	return s.write(func(st *state) error {
		rec, ok := st.templates.get(templateID)
		if !ok || rec.TenantID != tenantID {
			return fmt.Errorf("template %s: %w", templateID, generic.ErrNotFound)
		}
		want := ""
		if from != nil {
			want = from.String()
		}
		if rec.LastGeneratedDate != want {
			return fmt.Errorf("template %s: %w", templateID, generic.ErrStaleTemplate)
		}
		rec.LastGeneratedDate = to.String()
		st.templates.put(templateID, rec)
		return nil
	})
}

func (s *ObligationStore) ListInstances(_ context.Context, tenantID string) ([]obligation.InstanceRecord, error) {
	var out []obligation.InstanceRecord
	s.read(func(st *state) {
		st.instances.each(func(r obligation.InstanceRecord) {
			if r.TenantID == tenantID {
				out = append(out, r)
			}
		})
	})
	return out, nil
}

func (s *ObligationStore) GetInstance(_ context.Context, tenantID, id string) (obligation.InstanceRecord, error) {
	var rec obligation.InstanceRecord
	var ok bool
	s.read(func(st *state) { rec, ok = st.instances.get(id) })
	if !ok || rec.TenantID != tenantID {
		return obligation.InstanceRecord{}, fmt.Errorf("instance %s: %w", id, generic.ErrNotFound)
	}
	return rec, nil
}

// AppendInstance inserts a new instance; an existing id is a conflict.
func (s *ObligationStore) AppendInstance(_ context.Context, inst obligation.Instance) error {
	return s.write(func(st *state) error {
		if _, ok := st.instances.get(inst.ID); ok {
			return fmt.Errorf("instance %s: %w", inst.ID, generic.ErrDuplicateIdempotencyKey)
		}
		st.instances.put(inst.ID, inst.Record())
		return nil
	})
}

// SaveInstance upserts an instance. The recurring back-reference of an
// existing instance is kept whatever the caller passes.
func (s *ObligationStore) SaveInstance(ctx context.Context, inst obligation.Instance) error {
	return s.SaveInstanceRecord(ctx, inst.Record())
}

func (s *ObligationStore) SaveInstanceRecord(_ context.Context, rec obligation.InstanceRecord) error {
	return s.write(func(st *state) error {
		if existing, ok := st.instances.get(rec.ID); ok {
			rec.TenantID = existing.TenantID
			rec.RecurringSourceID = existing.RecurringSourceID
			rec.GeneratedFor = existing.GeneratedFor
		}
		st.instances.put(rec.ID, rec)
		return nil
	})
}

func (s *ObligationStore) RecordGeneration(_ context.Context, gen recurring.Generation) error {
	return s.write(func(st *state) error {
		if _, ok := st.generations.get(gen.Key); ok {
			return fmt.Errorf("generation %s: %w", gen.Key, generic.ErrDuplicateIdempotencyKey)
		}
		st.generations.put(gen.Key, gen)
		return nil
	})
}

func (s *ObligationStore) GetGeneration(_ context.Context, key string) (recurring.Generation, error) {
	var gen recurring.Generation
	var ok bool
	s.read(func(st *state) { gen, ok = st.generations.get(key) })
	if !ok {
		return recurring.Generation{}, fmt.Errorf("generation %s: %w", key, generic.ErrNotFound)
	}
	return gen, nil
}

func (s *ObligationStore) ListGenerations(_ context.Context, tenantID string) ([]recurring.Generation, error) {
	var out []recurring.Generation
	s.read(func(st *state) {
		st.generations.each(func(g recurring.Generation) {
			if g.TenantID == tenantID {
				out = append(out, g)
			}
		})
	})
	return out, nil
}

func (s *ObligationStore) WithTx(_ context.Context, fn func(recurring.Store) error) error {
	return s.withTx(func(tx view) error {
		return fn(&ObligationStore{tx})
	})
}

func (s *ObligationStore) ReminderDays(_ context.Context, tenantID string) (int, bool, error) {
	var days int
	var ok bool
	s.read(func(st *state) { days, ok = st.reminderDays[tenantID] })
	return days, ok, nil
}

func (s *ObligationStore) SetReminderDays(_ context.Context, tenantID string, days int) error {
	return s.write(func(st *state) error {
		st.reminderDays[tenantID] = days
		return nil
	})
}

func (s *ObligationStore) ReadNotificationIDs(_ context.Context, tenantID string) (map[string]bool, error) {
	out := make(map[string]bool)
	s.read(func(st *state) {
		for id := range st.reads[tenantID] {
			out[id] = true
		}
	})
	return out, nil
}

func (s *ObligationStore) MarkNotificationRead(_ context.Context, tenantID, notificationID string) error {
	return s.write(func(st *state) error {
		if st.reads[tenantID] == nil {
			st.reads[tenantID] = make(map[string]bool)
		}
		st.reads[tenantID][notificationID] = true
		return nil
	})
}

// =============================================================================
// LEAVE STORE
// =============================================================================

type LeaveStore struct {
	view
}

var _ leave.Store = (*LeaveStore)(nil)

func (s *LeaveStore) Get(_ context.Context, id string) (*leave.Request, error) {
	var req leave.Request
	var ok bool
	s.read(func(st *state) { req, ok = st.requests.get(id) })
	if !ok {
		return nil, fmt.Errorf("leave request %s: %w", id, generic.ErrNotFound)
	}
	return &req, nil
}

func (s *LeaveStore) Save(_ context.Context, req *leave.Request) error {
	return s.write(func(st *state) error {
		st.requests.put(req.ID, *req)
		return nil
	})
}

// List methods never skip: memory holds parsed requests only.
func (s *LeaveStore) ListByTenant(_ context.Context, tenantID string) ([]*leave.Request, []error, error) {
	return s.filter(func(r leave.Request) bool { return r.TenantID == tenantID }), nil, nil
}

func (s *LeaveStore) ListByEmployee(_ context.Context, tenantID, employeeID string) ([]*leave.Request, []error, error) {
	return s.filter(func(r leave.Request) bool {
		return r.TenantID == tenantID && r.EmployeeID == employeeID
	}), nil, nil
}

func (s *LeaveStore) filter(keep func(leave.Request) bool) []*leave.Request {
	var out []*leave.Request
	s.read(func(st *state) {
		st.requests.each(func(r leave.Request) {
			if keep(r) {
				r := r
				out = append(out, &r)
			}
		})
	})
	return out
}

func (s *LeaveStore) WithTx(_ context.Context, fn func(leave.Store) error) error {
	return s.withTx(func(tx view) error {
		return fn(&LeaveStore{tx})
	})
}
