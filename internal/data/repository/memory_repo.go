package repository

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"member-onboarding/internal/data/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memoryState holds every table of the in-process backend. Values are stored
// by value so callers never alias stored records.
type memoryState struct {
	accounts    map[uuid.UUID]entity.Account
	emails      map[string]uuid.UUID
	profiles    map[uuid.UUID]entity.MemberProfile
	tokens      map[string]entity.Token
	roles       map[entity.RoleName]entity.Role
	assignments map[uuid.UUID]map[int64]entity.RoleAssignment
	regions     map[int64]entity.Region
	sessions    map[uuid.UUID]entity.Session
	audits      []entity.AuditLog
}

// undoLog records how to reverse each write made inside one transaction.
// Rollback replays it backwards, so writes made outside the transaction
// survive.
type undoLog struct {
	steps []func()
}

type undoKey struct{}

// journal returns the undo log of the transaction running on ctx, or nil.
func journal(ctx context.Context) *undoLog {
	u, _ := ctx.Value(undoKey{}).(*undoLog)
	return u
}

// keep records the current value of m[k] so rollback can restore it. It must
// run before the write, under the state lock.
func keep[K comparable, V any](u *undoLog, m map[K]V, k K) {
	if u == nil {
		return
	}
	prev, existed := m[k]
	u.steps = append(u.steps, func() {
		if existed {
			m[k] = prev
		} else {
			delete(m, k)
		}
	})
}

func (u *undoLog) revert() {
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i]()
	}
	u.steps = nil
}

type memoryDB struct {
	mu    sync.Mutex
	txMu  sync.Mutex
	state *memoryState
}

// NewMemoryRepository returns a Repository kept in process memory. It serves
// DB_DRIVER=memory and the service tests. Transactions are serialized with
// each other and roll back through an undo log, so it suits a single instance only.
func NewMemoryRepository(log *zap.Logger, regions ...entity.Region) *Repository {
	db := &memoryDB{state: &memoryState{
		accounts:    map[uuid.UUID]entity.Account{},
		emails:      map[string]uuid.UUID{},
		profiles:    map[uuid.UUID]entity.MemberProfile{},
		tokens:      map[string]entity.Token{},
		roles:       map[entity.RoleName]entity.Role{},
		assignments: map[uuid.UUID]map[int64]entity.RoleAssignment{},
		regions:     map[int64]entity.Region{},
		sessions:    map[uuid.UUID]entity.Session{},
	}}

	for i, role := range []entity.Role{
		{Name: entity.RoleSuperAdmin, Level: 4},
		{Name: entity.RolePengurus, Level: 3},
		{Name: entity.RoleCoordinator, Level: 2},
		{Name: entity.RoleMember, Level: 1},
		{Name: entity.RolePendingMember, Level: 0},
	} {
		role.ID = int64(i + 1)
		db.state.roles[role.Name] = role
	}
	for _, region := range regions {
		db.state.regions[region.ID] = region
	}

	log = log.With(zap.String("repository", "memory"))
	repo := &Repository{
		Account: &memoryAccountRepo{db: db},
		Profile: &memoryProfileRepo{db: db},
		Token:   &memoryTokenRepo{db: db},
		Role:    &memoryRoleRepo{db: db},
		Region:  &memoryRegionRepo{db: db},
		Session: &memorySessionRepo{db: db},
		Audit:   &memoryAuditRepo{db: db},
	}
	repo.Tx = func(ctx context.Context, fn func(ctx context.Context, tx *Repository) error) error {
		txRepo := *repo
		txRepo.Tx = joinTx(&txRepo)
		if journal(ctx) != nil {
			return fn(ctx, &txRepo)
		}

		db.txMu.Lock()
		defer db.txMu.Unlock()

		undo := &undoLog{}

		committed := false
		defer func() {
			if !committed {
				db.mu.Lock()
				undo.revert()
				db.mu.Unlock()
				log.Debug("Rolled back memory transaction")
			}
		}()

		if err := fn(context.WithValue(ctx, undoKey{}, undo), &txRepo); err != nil {
			return err
		}
		committed = true
		return nil
	}
	return repo
}

// write runs fn under the state lock. Outside a transaction it first waits
// for any open transaction, so a rollback never crosses an unrelated write.
func (db *memoryDB) write(ctx context.Context, fn func(s *memoryState)) {
	if journal(ctx) == nil {
		db.txMu.Lock()
		defer db.txMu.Unlock()
	}
	db.with(fn)
}

func (db *memoryDB) with(fn func(s *memoryState)) {
	db.mu.Lock()
	defer db.mu.Unlock()
	fn(db.state)
}

type memoryAccountRepo struct{ db *memoryDB }

func (r *memoryAccountRepo) Create(ctx context.Context, account *entity.Account) (err error) {
	key := strings.ToLower(account.Email)
	r.db.write(ctx, func(s *memoryState) {
		if _, taken := s.emails[key]; taken {
			err = ErrDuplicateEmail
			return
		}
		undo := journal(ctx)
		keep(undo, s.accounts, account.ID)
		keep(undo, s.emails, key)
		s.accounts[account.ID] = *account
		s.emails[key] = account.ID
	})
	return err
}

func (r *memoryAccountRepo) FindByID(_ context.Context, id uuid.UUID) (out *entity.Account, _ error) {
	r.db.with(func(s *memoryState) {
		if a, ok := s.accounts[id]; ok {
			out = &a
		}
	})
	return out, nil
}

func (r *memoryAccountRepo) FindByEmail(_ context.Context, email string) (out *entity.Account, _ error) {
	r.db.with(func(s *memoryState) {
		if id, ok := s.emails[strings.ToLower(email)]; ok {
			a := s.accounts[id]
			out = &a
		}
	})
	return out, nil
}

func (r *memoryAccountRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.AccountStatus, at time.Time) (updated bool, _ error) {
	r.db.write(ctx, func(s *memoryState) {
		a, ok := s.accounts[id]
		if !ok || a.Status != from {
			return
		}
		keep(journal(ctx), s.accounts, id)
		a.Status = to
		a.UpdatedAt = at
		s.accounts[id] = a
		updated = true
	})
	return updated, nil
}

func (r *memoryAccountRepo) MarkEmailVerified(ctx context.Context, id uuid.UUID, at time.Time) (err error) {
	r.db.write(ctx, func(s *memoryState) {
		a, ok := s.accounts[id]
		if !ok {
			err = fmt.Errorf("account %s not found", id.String())
			return
		}
		keep(journal(ctx), s.accounts, id)
		if a.EmailVerifiedAt == nil {
			verified := at
			a.EmailVerifiedAt = &verified
		}
		a.UpdatedAt = at
		s.accounts[id] = a
	})
	return err
}

func (r *memoryAccountRepo) SetPassword(ctx context.Context, id uuid.UUID, hash string, at time.Time) (err error) {
	r.db.write(ctx, func(s *memoryState) {
		a, ok := s.accounts[id]
		if !ok {
			err = fmt.Errorf("account %s not found", id.String())
			return
		}
		keep(journal(ctx), s.accounts, id)
		a.PasswordHash = &hash
		a.UpdatedAt = at
		s.accounts[id] = a
	})
	return err
}

type memoryProfileRepo struct{ db *memoryDB }

func (r *memoryProfileRepo) Create(ctx context.Context, p *entity.MemberProfile) (err error) {
	r.db.write(ctx, func(s *memoryState) {
		if _, exists := s.profiles[p.AccountID]; exists {
			err = fmt.Errorf("profile for %s already exists", p.AccountID.String())
			return
		}
		keep(journal(ctx), s.profiles, p.AccountID)
		s.profiles[p.AccountID] = *p
	})
	return err
}

func (r *memoryProfileRepo) FindByAccountID(_ context.Context, accountID uuid.UUID) (out *entity.MemberProfile, _ error) {
	r.db.with(func(s *memoryState) {
		if p, ok := s.profiles[accountID]; ok {
			out = &p
		}
	})
	return out, nil
}

func (r *memoryProfileRepo) Update(ctx context.Context, p *entity.MemberProfile) (err error) {
	r.db.write(ctx, func(s *memoryState) {
		existing, ok := s.profiles[p.AccountID]
		if !ok {
			err = fmt.Errorf("profile for %s not found", p.AccountID.String())
			return
		}
		keep(journal(ctx), s.profiles, p.AccountID)
		updated := *p
		updated.CreatedAt = existing.CreatedAt
		s.profiles[p.AccountID] = updated
	})
	return err
}

type memoryTokenRepo struct{ db *memoryDB }

func (r *memoryTokenRepo) Replace(ctx context.Context, t *entity.Token) (err error) {
	r.db.write(ctx, func(s *memoryState) {
		if _, exists := s.tokens[t.Value]; exists {
			err = fmt.Errorf("token value collision")
			return
		}
		undo := journal(ctx)
		for value, existing := range s.tokens {
			if existing.AccountID == t.AccountID && existing.Purpose == t.Purpose && existing.ConsumedAt == nil {
				keep(undo, s.tokens, value)
				delete(s.tokens, value)
			}
		}
		keep(undo, s.tokens, t.Value)
		stored := *t
		stored.ConsumedAt = nil
		s.tokens[t.Value] = stored
	})
	return err
}

func (r *memoryTokenRepo) FindByValue(_ context.Context, value string) (out *entity.Token, _ error) {
	r.db.with(func(s *memoryState) {
		if t, ok := s.tokens[value]; ok {
			out = &t
		}
	})
	return out, nil
}

// Consume is the compare-and-swap on consumed_at; it runs under the state lock.
func (r *memoryTokenRepo) Consume(ctx context.Context, value string, purpose entity.TokenPurpose, at time.Time) (consumed bool, _ error) {
	r.db.write(ctx, func(s *memoryState) {
		t, ok := s.tokens[value]
		if !ok || t.Purpose != purpose || t.ConsumedAt != nil || at.After(t.ExpiresAt) {
			return
		}
		keep(journal(ctx), s.tokens, value)
		stamp := at
		t.ConsumedAt = &stamp
		s.tokens[value] = t
		consumed = true
	})
	return consumed, nil
}

type memoryRoleRepo struct{ db *memoryDB }

func (r *memoryRoleRepo) FindByName(_ context.Context, name entity.RoleName) (out *entity.Role, _ error) {
	r.db.with(func(s *memoryState) {
		if role, ok := s.roles[name]; ok {
			out = &role
		}
	})
	return out, nil
}

func (r *memoryRoleRepo) FindAssignments(_ context.Context, accountID uuid.UUID) (out []entity.RoleAssignment, _ error) {
	r.db.with(func(s *memoryState) {
		for _, a := range s.assignments[accountID] {
			out = append(out, a)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Role.Level > out[j].Role.Level })
	return out, nil
}

func (r *memoryRoleRepo) Assign(ctx context.Context, accountID uuid.UUID, name entity.RoleName, regionID *int64) (err error) {
	r.db.write(ctx, func(s *memoryState) {
		role, ok := s.roles[name]
		if !ok {
			err = fmt.Errorf("role %s not found", name)
			return
		}
		grants := s.assignments[accountID]
		if grants == nil {
			grants = map[int64]entity.RoleAssignment{}
			s.assignments[accountID] = grants
		}
		keep(journal(ctx), grants, role.ID)
		grants[role.ID] = entity.RoleAssignment{AccountID: accountID, Role: role, RegionID: regionID}
	})
	return err
}

func (r *memoryRoleRepo) Revoke(ctx context.Context, accountID uuid.UUID, name entity.RoleName) error {
	r.db.write(ctx, func(s *memoryState) {
		if role, ok := s.roles[name]; ok {
			keep(journal(ctx), s.assignments[accountID], role.ID)
			delete(s.assignments[accountID], role.ID)
		}
	})
	return nil
}

type memoryRegionRepo struct{ db *memoryDB }

func (r *memoryRegionRepo) FindAll(_ context.Context) ([]entity.Region, error) {
	out := make([]entity.Region, 0)
	r.db.with(func(s *memoryState) {
		for _, region := range s.regions {
			out = append(out, region)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRegionRepo) FindByID(_ context.Context, id int64) (out *entity.Region, _ error) {
	r.db.with(func(s *memoryState) {
		if region, ok := s.regions[id]; ok {
			out = &region
		}
	})
	return out, nil
}

type memorySessionRepo struct{ db *memoryDB }

func (r *memorySessionRepo) Create(ctx context.Context, session *entity.Session) error {
	r.db.write(ctx, func(s *memoryState) {
		keep(journal(ctx), s.sessions, session.Token)
		s.sessions[session.Token] = *session
	})
	return nil
}

func (r *memorySessionRepo) FindValidSession(_ context.Context, token uuid.UUID, now time.Time) (out *entity.Session, _ error) {
	r.db.with(func(s *memoryState) {
		session, ok := s.sessions[token]
		if ok && session.RevokedAt == nil && session.ExpiresAt.After(now) {
			out = &session
		}
	})
	return out, nil
}

func (r *memorySessionRepo) Revoke(ctx context.Context, token uuid.UUID, at time.Time) (err error) {
	r.db.write(ctx, func(s *memoryState) {
		session, ok := s.sessions[token]
		if !ok || session.RevokedAt != nil {
			err = ErrSessionNotFound
			return
		}
		keep(journal(ctx), s.sessions, token)
		session.RevokedAt = &at
		s.sessions[token] = session
	})
	return err
}

func (r *memorySessionRepo) RevokeAllForAccount(ctx context.Context, accountID uuid.UUID, at time.Time) error {
	undo := journal(ctx)
	r.db.write(ctx, func(s *memoryState) {
		for token, session := range s.sessions {
			if session.AccountID == accountID && session.RevokedAt == nil {
				keep(undo, s.sessions, token)
				session.RevokedAt = &at
				s.sessions[token] = session
			}
		}
	})
	return nil
}

// Audit rows are not journaled: like the pool-backed sink they outlive a
// rolled back transaction.
type memoryAuditRepo struct{ db *memoryDB }

func (r *memoryAuditRepo) Create(_ context.Context, entry *entity.AuditLog) error {
	r.db.with(func(s *memoryState) {
		stored := *entry
		stored.Detail = maps.Clone(entry.Detail)
		s.audits = append(s.audits, stored)
	})
	return nil
}

func (r *memoryAuditRepo) FindByAccount(_ context.Context, accountID uuid.UUID, limit int) ([]entity.AuditLog, error) {
	out := make([]entity.AuditLog, 0)
	r.db.with(func(s *memoryState) {
		for i := len(s.audits) - 1; i >= 0 && len(out) < limit; i-- {
			if id := s.audits[i].AccountID; id != nil && *id == accountID {
				out = append(out, s.audits[i])
			}
		}
	})
	return out, nil
}
