package service

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/pkg/timetable"
)

const (
	defaultProposalCapacity = 512
	defaultProposalTTL      = 30 * time.Minute
)

// timetableProposal is a successful generation awaiting a save.
type timetableProposal struct {
	ID           string            `json:"id"`
	CourseID     string            `json:"courseId"`
	SchoolID     string            `json:"schoolId"`
	AcademicYear int               `json:"academicYear"`
	Blocks       []timetable.Block `json:"blocks"`
	Stats        timetable.Stats   `json:"stats"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// proposalStore keeps proposals in a bounded in-process LRU and mirrors them to the shared cache
// so another instance can save a proposal it did not generate. Expiry is checked on read.
type proposalStore struct {
	ttl     time.Duration
	entries *lru.Cache[string, timetableProposal]
	remote  *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

func newProposalStore(capacity int, ttl time.Duration, remote *CacheService, metrics *MetricsService, logger *zap.Logger) *proposalStore {
	if capacity <= 0 {
		capacity = defaultProposalCapacity
	}
	if ttl <= 0 {
		ttl = defaultProposalTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := lru.New[string, timetableProposal](capacity)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return &proposalStore{
		ttl:     ttl,
		entries: entries,
		remote:  remote,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

func (s *proposalStore) expiresAt(p timetableProposal) time.Time {
	return p.CreatedAt.Add(s.ttl)
}

func (s *proposalStore) expired(p timetableProposal) bool {
	return !s.now().Before(s.expiresAt(p))
}

// Save stores the proposal locally and, best effort, in the shared cache.
func (s *proposalStore) Save(ctx context.Context, p timetableProposal) {
	s.entries.Add(p.ID, p)
	s.metrics.RecordProposal(ProposalStored)
	if err := s.remote.Set(ctx, proposalCacheKey(p.ID), p, s.ttl); err != nil {
		s.logger.Warn("proposal not mirrored to cache", zap.String("proposal_id", p.ID), zap.Error(err))
	}
}

// Get returns a live proposal. Expired entries are evicted and reported as missing.
func (s *proposalStore) Get(ctx context.Context, id string) (timetableProposal, bool) {
	if p, ok := s.entries.Get(id); ok {
		if s.expired(p) {
			s.entries.Remove(id)
			s.metrics.RecordProposal(ProposalExpired)
			return timetableProposal{}, false
		}
		return p, true
	}

	var p timetableProposal
	hit, err := s.remote.Get(ctx, proposalCacheKey(id), &p)
	if err != nil || !hit {
		s.metrics.RecordProposal(ProposalMissing)
		return timetableProposal{}, false
	}
	if s.expired(p) {
		s.metrics.RecordProposal(ProposalExpired)
		return timetableProposal{}, false
	}
	s.entries.Add(id, p)
	return p, true
}

// Delete forgets a proposal once it has been saved.
func (s *proposalStore) Delete(ctx context.Context, id string) {
	s.entries.Remove(id)
	_ = s.remote.Delete(ctx, proposalCacheKey(id))
}

// Len reports the number of proposals held in process.
func (s *proposalStore) Len() int {
	return s.entries.Len()
}
