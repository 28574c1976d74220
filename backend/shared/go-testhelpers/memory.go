// backend/shared/go-testhelpers/memory.go

package testhelpers

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/condoprime/mono-repo/backend/shared/go-models"
	"github.com/condoprime/mono-repo/backend/shared/go-repositories"
	"github.com/google/uuid"
	"github.com/jackc/pgconn"
)

var (
	tagUpdated   = pgconn.CommandTag("UPDATE 1")
	tagUnchanged = pgconn.CommandTag("UPDATE 0")
)

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint, Message: "duplicate key value"}
}

// Faults lets a test make the next call of a named operation fail once.
// Operation names are "<store>.<Method>", e.g. "companies.UpdateIfVersion".
type Faults struct {
	mu      sync.Mutex
	pending map[string]error
}

func (f *Faults) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		f.pending = map[string]error{}
	}
	f.pending[op] = err
}

func (f *Faults) take(op string) error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.pending[op]
	delete(f.pending, op)
	return err
}

// ErrInjected is the default error for injected faults.
var ErrInjected = errors.New("injected store failure")

/* ───────────── principals ───────────── */

type MemoryPrincipalRepo struct {
	mu        sync.Mutex
	faults    *Faults
	rows      map[uuid.UUID]*models.Principal
	passwords map[uuid.UUID]string
	tokens    map[uuid.UUID]string
}

func NewMemoryPrincipalRepo(f *Faults) *MemoryPrincipalRepo {
	return &MemoryPrincipalRepo{
		faults:    f,
		rows:      map[uuid.UUID]*models.Principal{},
		passwords: map[uuid.UUID]string{},
		tokens:    map[uuid.UUID]string{},
	}
}

func clonePrincipal(p *models.Principal) *models.Principal {
	cp := *p
	cp.Roles = append([]models.Role(nil), p.Roles...)
	return &cp
}

func (r *MemoryPrincipalRepo) CreatePrincipal(_ context.Context, p *models.Principal, passwordHash string) error {
	if err := r.faults.take("principals.CreatePrincipal"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if strings.EqualFold(existing.Email, p.Email) {
			return uniqueViolation(repositories.ConstraintPrincipalEmail)
		}
		if existing.DocumentID == p.DocumentID {
			return uniqueViolation(repositories.ConstraintPrincipalDocument)
		}
	}
	p.RowVersion = 1
	r.rows[p.ID] = clonePrincipal(p)
	r.passwords[p.ID] = passwordHash
	return nil
}

func (r *MemoryPrincipalRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Principal, error) {
	if err := r.faults.take("principals.GetByID"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.rows[id]; ok {
		return clonePrincipal(p), nil
	}
	return nil, nil
}

func (r *MemoryPrincipalRepo) FindByEmail(_ context.Context, email string) (*models.Principal, error) {
	return r.findOne(func(p *models.Principal) bool { return strings.EqualFold(p.Email, email) }), nil
}

func (r *MemoryPrincipalRepo) FindByDocumentID(_ context.Context, documentID string) (*models.Principal, error) {
	return r.findOne(func(p *models.Principal) bool { return p.DocumentID == documentID }), nil
}

func (r *MemoryPrincipalRepo) ListAll(_ context.Context) ([]*models.Principal, error) {
	return r.filter(func(*models.Principal) bool { return true }), nil
}

func (r *MemoryPrincipalRepo) ListByCompanyIDs(_ context.Context, companyIDs []uuid.UUID) ([]*models.Principal, error) {
	return r.filter(func(p *models.Principal) bool {
		if p.CompanyID == nil {
			return false
		}
		for _, id := range companyIDs {
			if id != uuid.Nil && id == *p.CompanyID {
				return true
			}
		}
		return false
	}), nil
}

func (r *MemoryPrincipalRepo) ListByCondominiumID(_ context.Context, condoID uuid.UUID) ([]*models.Principal, error) {
	return r.filter(func(p *models.Principal) bool {
		return p.CondominiumID != nil && *p.CondominiumID == condoID
	}), nil
}

func (r *MemoryPrincipalRepo) ListLockoutMismatches(_ context.Context, now time.Time) ([]*models.Principal, error) {
	return r.filter(func(p *models.Principal) bool { return !p.LockoutConsistent(now) }), nil
}

func (r *MemoryPrincipalRepo) ListDeactivatedWithRole(_ context.Context, role models.Role) ([]*models.Principal, error) {
	return r.filter(func(p *models.Principal) bool { return p.IsDeactivated() && p.HasRole(role) }), nil
}

func (r *MemoryPrincipalRepo) AddRole(_ context.Context, id uuid.UUID, role models.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return errors.New("principal not found")
	}
	if !p.HasRole(role) {
		p.Roles = append(p.Roles, role)
	}
	return nil
}

func (r *MemoryPrincipalRepo) HasRole(_ context.Context, id uuid.UUID, role models.Role) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	return ok && p.HasRole(role), nil
}

func (r *MemoryPrincipalRepo) SetLockout(_ context.Context, id uuid.UUID, until *time.Time) error {
	if err := r.faults.take("principals.SetLockout"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return errors.New("principal not found")
	}
	if until == nil {
		p.LockoutEnd = nil
	} else {
		t := *until
		p.LockoutEnd = &t
	}
	return nil
}

func (r *MemoryPrincipalRepo) GetPasswordHash(_ context.Context, id uuid.UUID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.passwords[id], nil
}

func (r *MemoryPrincipalRepo) SetPasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passwords[id] = hash
	return nil
}

func (r *MemoryPrincipalRepo) SetEmailConfirmationToken(_ context.Context, id uuid.UUID, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[id] = tokenHash
	return nil
}

func (r *MemoryPrincipalRepo) ConfirmEmail(_ context.Context, id uuid.UUID, tokenHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok || r.tokens[id] == "" || r.tokens[id] != tokenHash {
		return false, nil
	}
	delete(r.tokens, id)
	p.EmailConfirmed = true
	return true, nil
}

func (r *MemoryPrincipalRepo) UpdateIfVersion(_ context.Context, p *models.Principal, expected int64) (pgconn.CommandTag, error) {
	if err := r.faults.take("principals.UpdateIfVersion"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[p.ID]
	if !ok || cur.RowVersion != expected {
		return tagUnchanged, nil
	}
	next := clonePrincipal(p)
	// lockout, roles and credentials are owned by dedicated calls
	next.LockoutEnd = cur.LockoutEnd
	next.Roles = cur.Roles
	next.EmailConfirmed = cur.EmailConfirmed
	next.RowVersion = expected + 1
	r.rows[p.ID] = next
	return tagUpdated, nil
}

func (r *MemoryPrincipalRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Principal) error) error {
	return repositories.WithRetry(ctx, 3, id.String(), r.getByString, r.UpdateIfVersion, mutate)
}

func (r *MemoryPrincipalRepo) getByString(ctx context.Context, id string) (*models.Principal, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, parsed)
}

func (r *MemoryPrincipalRepo) findOne(match func(*models.Principal) bool) *models.Principal {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if match(p) {
			return clonePrincipal(p)
		}
	}
	return nil
}

func (r *MemoryPrincipalRepo) filter(match func(*models.Principal) bool) []*models.Principal {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Principal
	for _, p := range r.rows {
		if match(p) {
			out = append(out, clonePrincipal(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out
}

// Delete removes a row outright, simulating a hard delete by the owning store.
func (r *MemoryPrincipalRepo) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
}

/* ───────────── companies ───────────── */

type MemoryCompanyRepo struct {
	mu     sync.Mutex
	faults *Faults
	rows   map[uuid.UUID]*models.Company
}

func NewMemoryCompanyRepo(f *Faults) *MemoryCompanyRepo {
	return &MemoryCompanyRepo{faults: f, rows: map[uuid.UUID]*models.Company{}}
}

func (r *MemoryCompanyRepo) Create(_ context.Context, c *models.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.RowVersion = 1
	cp := *c
	r.rows[c.ID] = &cp
	return nil
}

func (r *MemoryCompanyRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Company, error) {
	if err := r.faults.take("companies.GetByID"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryCompanyRepo) ListByOwnerID(_ context.Context, ownerID uuid.UUID, includeDeleted bool) ([]*models.Company, error) {
	return r.filter(func(c *models.Company) bool {
		return c.OwnerPrincipalID == ownerID && (includeDeleted || !c.IsDeleted())
	}), nil
}

func (r *MemoryCompanyRepo) ListAll(_ context.Context) ([]*models.Company, error) {
	return r.filter(func(*models.Company) bool { return true }), nil
}

func (r *MemoryCompanyRepo) UpdateIfVersion(_ context.Context, c *models.Company, expected int64) (pgconn.CommandTag, error) {
	if err := r.faults.take("companies.UpdateIfVersion"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[c.ID]
	if !ok || cur.RowVersion != expected {
		return tagUnchanged, nil
	}
	cp := *c
	cp.OwnerPrincipalID = cur.OwnerPrincipalID
	cp.RowVersion = expected + 1
	r.rows[c.ID] = &cp
	return tagUpdated, nil
}

func (r *MemoryCompanyRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Company) error) error {
	return repositories.WithRetry(ctx, 3, id.String(), func(ctx context.Context, s string) (*models.Company, error) {
		parsed, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		return r.GetByID(ctx, parsed)
	}, r.UpdateIfVersion, mutate)
}

func (r *MemoryCompanyRepo) filter(match func(*models.Company) bool) []*models.Company {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Company
	for _, c := range r.rows {
		if match(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete removes a row outright, simulating a hard delete by the owning store.
func (r *MemoryCompanyRepo) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
}

/* ───────────── condominiums ───────────── */

type MemoryCondominiumRepo struct {
	mu     sync.Mutex
	faults *Faults
	rows   map[uuid.UUID]*models.Condominium
	// Writes records every manager-link change in order, for ordering assertions.
	Writes []ManagerWrite
}

// ManagerWrite is one observed change of a condominium's manager link.
type ManagerWrite struct {
	CondominiumID uuid.UUID
	ManagerID     *uuid.UUID
}

func NewMemoryCondominiumRepo(f *Faults) *MemoryCondominiumRepo {
	return &MemoryCondominiumRepo{faults: f, rows: map[uuid.UUID]*models.Condominium{}}
}

func (r *MemoryCondominiumRepo) Create(_ context.Context, c *models.Condominium) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.CompanyID == c.CompanyID && existing.RegistryNumber == c.RegistryNumber {
			return uniqueViolation(repositories.ConstraintCondominiumRegistry)
		}
	}
	c.RowVersion = 1
	cp := *c
	r.rows[c.ID] = &cp
	return nil
}

func (r *MemoryCondominiumRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Condominium, error) {
	if err := r.faults.take("condominiums.GetByID"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryCondominiumRepo) ListByCompanyIDs(_ context.Context, companyIDs []uuid.UUID) ([]*models.Condominium, error) {
	return r.filter(func(c *models.Condominium) bool {
		for _, id := range companyIDs {
			if id != uuid.Nil && id == c.CompanyID {
				return true
			}
		}
		return false
	}), nil
}

func (r *MemoryCondominiumRepo) ListByManagerID(_ context.Context, managerID uuid.UUID) ([]*models.Condominium, error) {
	return r.filter(func(c *models.Condominium) bool { return c.IsManagedBy(managerID) }), nil
}

func (r *MemoryCondominiumRepo) RegistryNumberExists(_ context.Context, companyID uuid.UUID, value string, excludeID *uuid.UUID) (bool, error) {
	found := r.filter(func(c *models.Condominium) bool {
		return c.CompanyID == companyID && c.RegistryNumber == value && (excludeID == nil || c.ID != *excludeID)
	})
	return len(found) > 0, nil
}

func (r *MemoryCondominiumRepo) UpdateIfVersion(_ context.Context, c *models.Condominium, expected int64) (pgconn.CommandTag, error) {
	if err := r.faults.take("condominiums.UpdateIfVersion"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[c.ID]
	if !ok || cur.RowVersion != expected {
		return tagUnchanged, nil
	}
	for _, other := range r.rows {
		if other.ID != c.ID && other.CompanyID == cur.CompanyID && other.RegistryNumber == c.RegistryNumber {
			return nil, uniqueViolation(repositories.ConstraintCondominiumRegistry)
		}
	}
	if !sameUUID(cur.ManagerPrincipalID, c.ManagerPrincipalID) {
		r.Writes = append(r.Writes, ManagerWrite{CondominiumID: c.ID, ManagerID: c.ManagerPrincipalID})
	}
	cp := *c
	cp.CompanyID = cur.CompanyID
	cp.RowVersion = expected + 1
	r.rows[c.ID] = &cp
	return tagUpdated, nil
}

func (r *MemoryCondominiumRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Condominium) error) error {
	return repositories.WithRetry(ctx, 3, id.String(), func(ctx context.Context, s string) (*models.Condominium, error) {
		parsed, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		return r.GetByID(ctx, parsed)
	}, r.UpdateIfVersion, mutate)
}

func (r *MemoryCondominiumRepo) ClearManagerIf(_ context.Context, id, managerID, actor uuid.UUID, at time.Time) (bool, error) {
	if err := r.faults.take("condominiums.ClearManagerIf"); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok || !c.IsManagedBy(managerID) {
		return false, nil
	}
	c.ManagerPrincipalID = nil
	c.StampUpdated(actor, at)
	c.RowVersion++
	r.Writes = append(r.Writes, ManagerWrite{CondominiumID: id})
	return true, nil
}

func (r *MemoryCondominiumRepo) filter(match func(*models.Condominium) bool) []*models.Condominium {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Condominium
	for _, c := range r.rows {
		if match(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Put overwrites a row as-is, bypassing every invariant. Used to stage
// inconsistent cross-store states.
func (r *MemoryCondominiumRepo) Put(c *models.Condominium) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.rows[c.ID] = &cp
}

/* ───────────── units ───────────── */

type MemoryUnitRepo struct {
	mu     sync.Mutex
	faults *Faults
	rows   map[uuid.UUID]*models.Unit
}

func NewMemoryUnitRepo(f *Faults) *MemoryUnitRepo {
	return &MemoryUnitRepo{faults: f, rows: map[uuid.UUID]*models.Unit{}}
}

func (r *MemoryUnitRepo) Create(_ context.Context, u *models.Unit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rows {
		if existing.CondominiumID == u.CondominiumID && existing.UnitNumber == u.UnitNumber {
			return uniqueViolation(repositories.ConstraintUnitNumber)
		}
	}
	u.RowVersion = 1
	cp := *u
	r.rows[u.ID] = &cp
	return nil
}

func (r *MemoryUnitRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Unit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.rows[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *MemoryUnitRepo) ListByCondominiumID(_ context.Context, condoID uuid.UUID) ([]*models.Unit, error) {
	return r.filter(func(u *models.Unit) bool { return u.CondominiumID == condoID }), nil
}

func (r *MemoryUnitRepo) ListByOwnerID(_ context.Context, ownerID uuid.UUID) ([]*models.Unit, error) {
	return r.filter(func(u *models.Unit) bool { return u.IsOwnedBy(ownerID) }), nil
}

func (r *MemoryUnitRepo) UnitNumberExists(_ context.Context, condoID uuid.UUID, value string, excludeID *uuid.UUID) (bool, error) {
	found := r.filter(func(u *models.Unit) bool {
		return u.CondominiumID == condoID && u.UnitNumber == value && (excludeID == nil || u.ID != *excludeID)
	})
	return len(found) > 0, nil
}

func (r *MemoryUnitRepo) UpdateIfVersion(_ context.Context, u *models.Unit, expected int64) (pgconn.CommandTag, error) {
	if err := r.faults.take("units.UpdateIfVersion"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.rows[u.ID]
	if !ok || cur.RowVersion != expected {
		return tagUnchanged, nil
	}
	for _, other := range r.rows {
		if other.ID != u.ID && other.CondominiumID == cur.CondominiumID && other.UnitNumber == u.UnitNumber {
			return nil, uniqueViolation(repositories.ConstraintUnitNumber)
		}
	}
	cp := *u
	cp.CondominiumID = cur.CondominiumID
	cp.RowVersion = expected + 1
	r.rows[u.ID] = &cp
	return tagUpdated, nil
}

func (r *MemoryUnitRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Unit) error) error {
	return repositories.WithRetry(ctx, 3, id.String(), func(ctx context.Context, s string) (*models.Unit, error) {
		parsed, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		return r.GetByID(ctx, parsed)
	}, r.UpdateIfVersion, mutate)
}

func (r *MemoryUnitRepo) ClearOwnerIf(_ context.Context, id, ownerID, actor uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.rows[id]
	if !ok || !u.IsOwnedBy(ownerID) {
		return false, nil
	}
	u.OwnerPrincipalID = nil
	u.StampUpdated(actor, at)
	u.RowVersion++
	return true, nil
}

func (r *MemoryUnitRepo) filter(match func(*models.Unit) bool) []*models.Unit {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Unit
	for _, u := range r.rows {
		if match(u) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitNumber < out[j].UnitNumber })
	return out
}

/* ───────────── audit log ───────────── */

type MemoryAuditLogRepo struct {
	mu      sync.Mutex
	faults  *Faults
	entries []*models.AuditLog
}

func NewMemoryAuditLogRepo(f *Faults) *MemoryAuditLogRepo {
	return &MemoryAuditLogRepo{faults: f}
}

func (r *MemoryAuditLogRepo) Create(_ context.Context, entry *models.AuditLog) error {
	if err := r.faults.take("audit.Create"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *MemoryAuditLogRepo) ListByTarget(_ context.Context, targetID uuid.UUID) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for _, e := range r.entries {
		if e.TargetID == targetID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Actions returns the recorded actions for target, oldest first.
func (r *MemoryAuditLogRepo) Actions(targetID uuid.UUID) []models.AuditAction {
	entries, _ := r.ListByTarget(context.Background(), targetID)
	out := make([]models.AuditAction, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func sameUUID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

/* ───────────── sign-in attempts ───────────── */

type MemorySignInAttemptsRepo struct {
	mu       sync.Mutex
	faults   *Faults
	attempts map[string]*repositories.SignInAttempts
}

func NewMemorySignInAttemptsRepo(f *Faults) *MemorySignInAttemptsRepo {
	return &MemorySignInAttemptsRepo{faults: f, attempts: map[string]*repositories.SignInAttempts{}}
}

func (r *MemorySignInAttemptsRepo) RecordFailure(
	_ context.Context,
	email string,
	now time.Time,
	lockFor, window time.Duration,
	maxAttempts int,
) (*repositories.SignInAttempts, error) {
	if err := r.faults.take("signInAttempts.RecordFailure"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.attempts[email]
	switch {
	case !ok:
		a = &repositories.SignInAttempts{Email: email, CreatedAt: now}
		r.attempts[email] = a
		a.AttemptCount = 1
	case a.LockedUntil != nil && a.LockedUntil.After(now):
		// locked; keep count and lock as they are
	case now.Sub(a.UpdatedAt) > window:
		a.AttemptCount = 1
		a.LockedUntil = nil
	default:
		a.AttemptCount++
		a.LockedUntil = nil
	}
	if a.LockedUntil == nil && a.AttemptCount >= maxAttempts {
		until := now.Add(lockFor)
		a.LockedUntil = &until
	}
	a.UpdatedAt = now
	cp := *a
	return &cp, nil
}

func (r *MemorySignInAttemptsRepo) LockedUntil(_ context.Context, email string, now time.Time) (*time.Time, error) {
	if err := r.faults.take("signInAttempts.LockedUntil"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[email]
	if !ok || a.LockedUntil == nil || !a.LockedUntil.After(now) {
		return nil, nil
	}
	until := *a.LockedUntil
	return &until, nil
}

func (r *MemorySignInAttemptsRepo) Reset(_ context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, email)
	return nil
}

func (r *MemorySignInAttemptsRepo) PurgeStale(_ context.Context, before time.Time) (int64, error) {
	if err := r.faults.take("signInAttempts.PurgeStale"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for email, a := range r.attempts {
		if a.UpdatedAt.Before(before) && (a.LockedUntil == nil || a.LockedUntil.Before(before)) {
			delete(r.attempts, email)
			n++
		}
	}
	return n, nil
}

// Count reports the stored failure count for email, zero when absent.
func (r *MemorySignInAttemptsRepo) Count(email string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[email]; ok {
		return a.AttemptCount
	}
	return 0
}

/* ───────────── bundle ───────────── */

// MemoryStores bundles one in-memory repository per store table.
type MemoryStores struct {
	Faults       *Faults
	Principals   *MemoryPrincipalRepo
	Companies    *MemoryCompanyRepo
	Condominiums *MemoryCondominiumRepo
	Units        *MemoryUnitRepo
	AuditLogs    *MemoryAuditLogRepo
	SignIns      *MemorySignInAttemptsRepo
}

func NewMemoryStores() *MemoryStores {
	f := &Faults{}
	return &MemoryStores{
		Faults:       f,
		Principals:   NewMemoryPrincipalRepo(f),
		Companies:    NewMemoryCompanyRepo(f),
		Condominiums: NewMemoryCondominiumRepo(f),
		Units:        NewMemoryUnitRepo(f),
		AuditLogs:    NewMemoryAuditLogRepo(f),
		SignIns:      NewMemorySignInAttemptsRepo(f),
	}
}

var (
	_ repositories.PrincipalRepository   = (*MemoryPrincipalRepo)(nil)
	_ repositories.CompanyRepository     = (*MemoryCompanyRepo)(nil)
	_ repositories.CondominiumRepository = (*MemoryCondominiumRepo)(nil)
	_ repositories.UnitRepository        = (*MemoryUnitRepo)(nil)
	_ repositories.AuditLogRepository    = (*MemoryAuditLogRepo)(nil)

	_ repositories.SignInAttemptsRepository = (*MemorySignInAttemptsRepo)(nil)
)
