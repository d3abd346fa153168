// Package hierarchy resolves which workers an administrator may see.
//
// Administrators form a creation hierarchy through the creator id stored on every
// identity. Visibility depends on the admin level:
//
//   - level 1 sees every worker;
//   - level 2 sees the workers it created plus the workers created by its own creator;
//   - level 3 sees the workers it created plus, for every level 2 admin it created,
//     what that admin sees under the level 2 rule.
//
// Lookups that fail for one branch of the hierarchy do not fail the resolution. The
// branch contributes no workers and is reported as an Anomaly on the result, so one bad
// admin record cannot block every dashboard above it.
package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"workscope/db"
	"workscope/logger"
	"workscope/models"
	"workscope/normalize"
)

const (
	// MaxDepth is the number of hops below the requesting admin that are followed.
	MaxDepth = 2
	// MaxIntermediateAdmins caps how many level 2 admins a level 3 admin fans out to.
	MaxIntermediateAdmins = 100
	// fanOut bounds concurrent branch lookups.
	fanOut = 8
)

var (
	ErrNotAdmin     = errors.New("user is not an administrator")
	ErrInvalidLevel = errors.New("invalid admin level")
)

// Anomaly kinds reported on a Visibility.
const (
	AnomalyBranchFailed    = "branch_failed"
	AnomalyMissingCreator  = "missing_creator"
	AnomalyCreatorNotAdmin = "creator_not_admin"
	AnomalyBranchLimit     = "branch_limit"
)

// Anomaly describes a branch that was skipped or truncated.
type Anomaly struct {
	Kind    string `json:"kind"`
	AdminID string `json:"admin_id"`
	Detail  string `json:"detail,omitempty"`
}

// Visibility is the set of workers an admin may see.
type Visibility struct {
	AdminID   string
	Level     int
	Workers   map[string]models.User
	Anomalies []Anomaly
}

// IDs returns the visible worker ids in ascending order.
func (v *Visibility) IDs() []string {
	ids := make([]string, 0, len(v.Workers))
	for id := range v.Workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Contains reports whether workerID is visible.
func (v *Visibility) Contains(workerID string) bool {
	_, ok := v.Workers[workerID]
	return ok
}

// Partial reports whether any branch was skipped.
func (v *Visibility) Partial() bool {
	return len(v.Anomalies) > 0
}

// Resolver computes Visibility from the identities in the store.
type Resolver struct {
	store     db.Store
	norm      *normalize.Normalizer
	maxAdmins int
	log       *logrus.Entry
}

// New returns a Resolver reading identities from store.
func New(store db.Store, norm *normalize.Normalizer) *Resolver {
	return &Resolver{
		store:     store,
		norm:      norm,
		maxAdmins: MaxIntermediateAdmins,
		log:       logger.WithModule("hierarchy"),
	}
}

// Resolve returns the workers visible to admin. The admin's level is trusted as given.
// An error is returned only for a non-admin caller, an unknown level or a cancelled
// context; lookup failures are recorded as anomalies instead.
func (r *Resolver) Resolve(ctx context.Context, admin models.User) (*Visibility, error) {
	if !admin.IsAdmin() {
		return nil, fmt.Errorf("%s: %w", admin.ID, ErrNotAdmin)
	}

	c := newCollector()
	switch admin.AdminLevel {
	case models.AdminLevelGlobal:
		r.everyWorker(ctx, admin, c)
	case models.AdminLevelPeer:
		r.peerRule(ctx, admin, c, 1)
	case models.AdminLevelTop:
		r.topRule(ctx, admin, c)
	default:
		return nil, fmt.Errorf("%s has level %d: %w", admin.ID, admin.AdminLevel, ErrInvalidLevel)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := &Visibility{
		AdminID:   admin.ID,
		Level:     admin.AdminLevel,
		Workers:   c.workers,
		Anomalies: c.anomalies,
	}
	sort.Slice(v.Anomalies, func(i, j int) bool {
		if v.Anomalies[i].AdminID != v.Anomalies[j].AdminID {
			return v.Anomalies[i].AdminID < v.Anomalies[j].AdminID
		}
		return v.Anomalies[i].Kind < v.Anomalies[j].Kind
	})

	entry := r.log.WithFields(logrus.Fields{
		"admin":       admin.ID,
		"admin_level": admin.AdminLevel,
		"workers":     len(v.Workers),
	})
	if v.Partial() {
		entry.WithField("anomalies", len(v.Anomalies)).Warn("visibility resolved with skipped branches")
	} else {
		entry.Debug("visibility resolved")
	}
	return v, nil
}

func (r *Resolver) everyWorker(ctx context.Context, admin models.User, c *collector) {
	recs, err := r.store.Query(ctx, models.CollectionUsers, nil, 0)
	if err != nil {
		r.branchFailed(c, admin.ID, "all workers", err)
		return
	}
	for _, u := range r.norm.Users(recs) {
		if !u.IsAdmin() {
			c.addWorker(u)
		}
	}
}

// peerRule adds admin's own workers and the workers of admin's creator.
func (r *Resolver) peerRule(ctx context.Context, admin models.User, c *collector, depth int) {
	if depth > MaxDepth {
		return
	}

	var g errgroup.Group
	g.Go(func() error {
		r.ownWorkers(ctx, admin.ID, c)
		return nil
	})
	g.Go(func() error {
		r.creatorWorkers(ctx, admin, c)
		return nil
	})
	_ = g.Wait()
}

func (r *Resolver) ownWorkers(ctx context.Context, adminID string, c *collector) {
	if !c.claim(adminID) {
		return
	}
	created, err := r.createdBy(ctx, adminID)
	if err != nil {
		r.branchFailed(c, adminID, "own workers", err)
		return
	}
	for _, u := range created {
		if !u.IsAdmin() {
			c.addWorker(u)
		}
	}
}

func (r *Resolver) creatorWorkers(ctx context.Context, admin models.User, c *collector) {
	if admin.CreatorID == "" {
		c.addAnomaly(Anomaly{Kind: AnomalyMissingCreator, AdminID: admin.ID})
		return
	}
	if c.claimed(admin.CreatorID) {
		return
	}

	rec, err := r.store.GetByID(ctx, models.CollectionUsers, admin.CreatorID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			c.addAnomaly(Anomaly{Kind: AnomalyCreatorNotAdmin, AdminID: admin.ID, Detail: "creator " + admin.CreatorID + " not found"})
			return
		}
		r.branchFailed(c, admin.ID, "creator lookup", err)
		return
	}
	if creator := r.norm.User(*rec); !creator.IsAdmin() {
		c.addAnomaly(Anomaly{Kind: AnomalyCreatorNotAdmin, AdminID: admin.ID, Detail: "creator " + admin.CreatorID + " is not an admin"})
		return
	}

	r.ownWorkers(ctx, admin.CreatorID, c)
}

// topRule adds admin's own workers and applies the peer rule to every level 2 admin
// it created.
func (r *Resolver) topRule(ctx context.Context, admin models.User, c *collector) {
	c.claim(admin.ID)
	created, err := r.createdBy(ctx, admin.ID)
	if err != nil {
		r.branchFailed(c, admin.ID, "created identities", err)
		return
	}

	var peers []models.User
	for _, u := range created {
		switch {
		case !u.IsAdmin():
			c.addWorker(u)
		case u.AdminLevel == models.AdminLevelPeer:
			peers = append(peers, u)
		}
	}

	if len(peers) > r.maxAdmins {
		c.addAnomaly(Anomaly{
			Kind:    AnomalyBranchLimit,
			AdminID: admin.ID,
			Detail:  fmt.Sprintf("%d level 2 admins, resolved %d", len(peers), r.maxAdmins),
		})
		sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
		peers = peers[:r.maxAdmins]
	}

	var g errgroup.Group
	g.SetLimit(fanOut)
	for _, peer := range peers {
		g.Go(func() error {
			r.peerRule(ctx, peer, c, 2)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Resolver) createdBy(ctx context.Context, adminID string) ([]models.User, error) {
	recs, err := r.store.Query(ctx, models.CollectionUsers, []db.Predicate{db.Eq(models.FieldCreatorID, adminID)}, 0)
	if err != nil {
		return nil, err
	}
	return r.norm.Users(recs), nil
}

func (r *Resolver) branchFailed(c *collector, adminID, branch string, err error) {
	r.log.WithError(err).WithFields(logrus.Fields{
		"admin":  adminID,
		"branch": branch,
	}).Warn("hierarchy branch skipped")
	c.addAnomaly(Anomaly{Kind: AnomalyBranchFailed, AdminID: adminID, Detail: branch + ": " + err.Error()})
}

// collector merges branch results. Branches run concurrently. expanded holds the
// admins whose own workers have been requested, so each is queried once.
type collector struct {
	mu        sync.Mutex
	workers   map[string]models.User
	expanded  map[string]bool
	anomalies []Anomaly
}

func newCollector() *collector {
	return &collector{
		workers:  make(map[string]models.User),
		expanded: make(map[string]bool),
	}
}

// claim marks adminID as expanded and reports whether the caller should expand it.
func (c *collector) claim(adminID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expanded[adminID] {
		return false
	}
	c.expanded[adminID] = true
	return true
}

func (c *collector) claimed(adminID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expanded[adminID]
}

func (c *collector) addWorker(u models.User) {
	c.mu.Lock()
	c.workers[u.ID] = u
	c.mu.Unlock()
}

func (c *collector) addAnomaly(a Anomaly) {
	c.mu.Lock()
	c.anomalies = append(c.anomalies, a)
	c.mu.Unlock()
}
