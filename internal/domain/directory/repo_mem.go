package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// In-memory repositories for development mode and tests. Lookups that miss
// return pgx.ErrNoRows so callers handle both backends identically.

type MemorySpecialtyRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]*Specialty
}

func NewMemorySpecialtyRepo() *MemorySpecialtyRepo {
	return &MemorySpecialtyRepo{items: make(map[int64]*Specialty)}
}

func (r *MemorySpecialtyRepo) Create(_ context.Context, s *Specialty) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	stored := *s
	r.items[s.ID] = &stored
	return nil
}

func (r *MemorySpecialtyRepo) GetByID(_ context.Context, id int64) (*Specialty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *s
	return &out, nil
}

func (r *MemorySpecialtyRepo) Update(_ context.Context, s *Specialty) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID]; !ok {
		return pgx.ErrNoRows
	}
	s.UpdatedAt = time.Now()
	stored := *s
	r.items[s.ID] = &stored
	return nil
}

func (r *MemorySpecialtyRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *MemorySpecialtyRepo) List(_ context.Context, limit, offset int) ([]*Specialty, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*Specialty
	for _, s := range r.items {
		out := *s
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return page(all, limit, offset), len(all), nil
}

type MemoryDoctorRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]*Doctor
}

func NewMemoryDoctorRepo() *MemoryDoctorRepo {
	return &MemoryDoctorRepo{items: make(map[int64]*Doctor)}
}

func (r *MemoryDoctorRepo) Create(_ context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	d.ID = r.nextID
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	stored := *d
	r.items[d.ID] = &stored
	return nil
}

func (r *MemoryDoctorRepo) GetByID(_ context.Context, id int64) (*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *d
	return &out, nil
}

func (r *MemoryDoctorRepo) Update(_ context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[d.ID]; !ok {
		return pgx.ErrNoRows
	}
	d.UpdatedAt = time.Now()
	stored := *d
	r.items[d.ID] = &stored
	return nil
}

func (r *MemoryDoctorRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *MemoryDoctorRepo) ListBySpecialty(_ context.Context, specialtyID int64, activeOnly bool) ([]*Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Doctor
	for _, d := range r.items {
		if d.SpecialtyID != specialtyID {
			continue
		}
		if activeOnly && !d.Active {
			continue
		}
		copied := *d
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryDoctorRepo) List(_ context.Context, limit, offset int) ([]*Doctor, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []*Doctor
	for _, d := range r.items {
		out := *d
		all = append(all, &out)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, limit, offset), len(all), nil
}

type MemoryAvailabilityRuleRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]*AvailabilityRule
}

func NewMemoryAvailabilityRuleRepo() *MemoryAvailabilityRuleRepo {
	return &MemoryAvailabilityRuleRepo{items: make(map[int64]*AvailabilityRule)}
}

func (r *MemoryAvailabilityRuleRepo) Create(_ context.Context, rule *AvailabilityRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rule.ID = r.nextID
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	stored := *rule
	r.items[rule.ID] = &stored
	return nil
}

func (r *MemoryAvailabilityRuleRepo) GetByID(_ context.Context, id int64) (*AvailabilityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.items[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := *rule
	return &out, nil
}

func (r *MemoryAvailabilityRuleRepo) Update(_ context.Context, rule *AvailabilityRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[rule.ID]; !ok {
		return pgx.ErrNoRows
	}
	rule.UpdatedAt = time.Now()
	stored := *rule
	r.items[rule.ID] = &stored
	return nil
}

func (r *MemoryAvailabilityRuleRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *MemoryAvailabilityRuleRepo) ListByDoctor(_ context.Context, doctorID int64) ([]*AvailabilityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*AvailabilityRule
	for _, rule := range r.items {
		if rule.DoctorID == doctorID {
			copied := *rule
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryAvailabilityRuleRepo) ListForDate(_ context.Context, doctorID int64, date time.Time) ([]*AvailabilityRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*AvailabilityRule
	for _, rule := range r.items {
		if rule.DoctorID == doctorID && rule.AppliesTo(date) {
			copied := *rule
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func page[T any](all []*T, limit, offset int) []*T {
	if offset >= len(all) {
		return []*T{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}
