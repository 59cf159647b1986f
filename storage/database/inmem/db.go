// Package inmemdb implements the repositories in memory, for tests and local runs.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/invitation"
	"github.com/trezcool/academia/core/organization"
	"github.com/trezcool/academia/core/user"
)

type teamMemberKey struct{ teamID, memberID string }

type tables struct {
	users       map[string]user.User
	orgs        map[string]organization.Organization
	members     map[string]organization.Member
	teams       map[string]organization.Team
	teamMembers map[teamMemberKey]organization.TeamMember
	invitations map[string]invitation.Invitation
	courses     map[string]course.Course
	modules     map[string]course.Module
	lessons     map[string]course.Lesson
	enrollments map[string]course.Enrollment
	completions map[string]course.LessonCompletion
}

func newTables() tables {
	return tables{
		users:       make(map[string]user.User),
		orgs:        make(map[string]organization.Organization),
		members:     make(map[string]organization.Member),
		teams:       make(map[string]organization.Team),
		teamMembers: make(map[teamMemberKey]organization.TeamMember),
		invitations: make(map[string]invitation.Invitation),
		courses:     make(map[string]course.Course),
		modules:     make(map[string]course.Module),
		lessons:     make(map[string]course.Lesson),
		enrollments: make(map[string]course.Enrollment),
		completions: make(map[string]course.LessonCompletion),
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	c := make(map[K]V, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func (t tables) clone() tables {
	return tables{
		users:       copyMap(t.users),
		orgs:        copyMap(t.orgs),
		members:     copyMap(t.members),
		teams:       copyMap(t.teams),
		teamMembers: copyMap(t.teamMembers),
		invitations: copyMap(t.invitations),
		courses:     copyMap(t.courses),
		modules:     copyMap(t.modules),
		lessons:     copyMap(t.lessons),
		enrollments: copyMap(t.enrollments),
		completions: copyMap(t.completions),
	}
}

// DB holds every table. Values are stored by copy, so callers never share state with it.
type DB struct {
	mu   sync.RWMutex // guards t
	txMu sync.Mutex   // serializes transactions
	t    tables
}

func NewDB() *DB {
	return &DB{t: newTables()}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.t = newTables()
}

type txKey struct{}

// TxRunner emulates transactions: they run one at a time and a failing one restores
// the tables as they were when it started. Writes made outside any transaction are
// not isolated from it: a rollback overwrites them too.
type TxRunner struct {
	db *DB
}

var _ core.TxRunner = (*TxRunner)(nil)

func NewTxRunner(db *DB) *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	r.db.txMu.Lock()
	defer r.db.txMu.Unlock()

	r.db.mu.RLock()
	snapshot := r.db.t.clone()
	r.db.mu.RUnlock()

	restore := func() {
		r.db.mu.Lock()
		r.db.t = snapshot
		r.db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			restore()
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		restore()
	}
	return err
}
