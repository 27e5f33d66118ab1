// Package service implements the aggregation engine behind the cities API
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"smogwatch/internal/core/normalize"
	"smogwatch/internal/platform/cache"
	perr "smogwatch/internal/platform/errors"
	"smogwatch/internal/platform/logger"
	"smogwatch/internal/services/cities/domain"
)

const (
	defaultLimit       = 10
	defaultFetchLimit  = 50
	defaultSnapshotTTL = 10 * time.Minute
	defaultSnapshotCap = 8
)

// Options tune the aggregation loop and the progressive country cache
type Options struct {
	// FetchLimit is the upstream page size used during accumulation
	FetchLimit int

	SnapshotTTL time.Duration
	SnapshotCap int
}

// Service is the aggregation engine surface
type Service interface {
	domain.ServicePort
}

type service struct {
	log  logger.Logger
	meas domain.MeasurementPort
	desc domain.DescriptionPort
	opts Options

	snaps *cache.Cache[string, snapshot]

	// one lock per country keeps the snapshot read-modify-write serial
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New constructs the cities service over the two upstream ports
func New(meas domain.MeasurementPort, desc domain.DescriptionPort, opts Options) Service {
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = defaultFetchLimit
	}
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = defaultSnapshotTTL
	}
	if opts.SnapshotCap <= 0 {
		opts.SnapshotCap = defaultSnapshotCap
	}
	return &service{
		log:   *logger.Named("cities"),
		meas:  meas,
		desc:  desc,
		opts:  opts,
		snaps: cache.New[string, snapshot](opts.SnapshotCap),
		locks: map[string]*sync.Mutex{},
	}
}

// Ranked serves one page of the ranked listing, pulling only as many
// upstream pages as the request needs. Partial progress made before an
// upstream failure stays committed, a retry resumes where it stopped
func (s *service) Ranked(ctx context.Context, q domain.RankedQuery) (domain.RankedPage, error) {
	country := strings.ToUpper(strings.TrimSpace(q.Country))
	if !normalize.Supported(country) {
		return domain.RankedPage{}, perr.InvalidArgf("invalid-country %q", q.Country)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	page := q.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return domain.RankedPage{}, perr.InvalidArgf("invalid-page %d", q.Page)
	}

	runID := uuid.NewString()
	target := page * limit

	lock := s.countryLock(country)
	lock.Lock()
	defer lock.Unlock()

	snap, ok := s.snaps.Get(country)
	if !ok {
		snap = newSnapshot()
	}

	if len(snap.entities) < target && !snap.complete {
		if err := s.accumulate(ctx, runID, country, &snap, target); err != nil {
			return domain.RankedPage{}, perr.WithOp(err, "cities.ranked")
		}
	}

	ents := ranked(snap.entities)
	offset := (page - 1) * limit
	window := []domain.City{}
	if offset < len(ents) {
		end := min(offset+limit, len(ents))
		window = ents[offset:end]
	}
	hasMore := offset+len(window) < len(ents)

	s.log.Info().
		Str("run_id", runID).
		Str("country", country).
		Int("page", page).
		Int("limit", limit).
		Int("accumulated", len(ents)).
		Bool("complete", snap.complete).
		Msg("ranked page served")

	return domain.RankedPage{Page: page, Limit: limit, HasMore: hasMore, Cities: window}, nil
}

// Top is the legacy form: the first Limit entries of page one
func (s *service) Top(ctx context.Context, q domain.TopQuery) ([]domain.City, error) {
	rp, err := s.Ranked(ctx, domain.RankedQuery{Country: q.Country, Limit: q.Limit, Page: 1})
	if err != nil {
		return nil, err
	}
	return rp.Cities, nil
}

// Diagnostics reports live entry counts across the three cache tiers
func (s *service) Diagnostics(context.Context) (domain.Diagnostics, error) {
	return domain.Diagnostics{
		PageEntries:        s.meas.CachedPages(),
		DescriptionEntries: s.desc.CachedDescriptions(),
		CountryEntries:     s.snaps.Len(),
	}, nil
}

// accumulate pulls upstream pages until the snapshot holds target
// entities or the country is exhausted, committing after every page so
// a failure never loses progress
func (s *service) accumulate(ctx context.Context, runID, country string, snap *snapshot, target int) error {
	for len(snap.entities) < target && !snap.complete {
		pageNo := snap.lastPage + 1
		if snap.totalPages > 0 && pageNo > snap.totalPages {
			snap.complete = true
			break
		}

		mp, err := s.meas.FetchPage(ctx, country, pageNo, s.opts.FetchLimit)
		if err != nil {
			s.commit(country, *snap)
			return err
		}

		cands := candidates(country, mp.Records, snap.seen)

		appended := 0
		if len(cands) > 0 {
			lookups := make([]string, len(cands))
			for i, c := range cands {
				lookups[i] = c.lookup
			}
			descs, err := s.desc.Describe(ctx, country, lookups)
			if err != nil {
				s.commit(country, *snap)
				return err
			}
			appended = merge(snap, country, cands, descs)
		}

		advance(snap, mp, len(cands) > 0)
		s.commit(country, *snap)

		s.log.Debug().
			Str("run_id", runID).
			Str("country", country).
			Int("page", pageNo).
			Int("records", len(mp.Records)).
			Int("candidates", len(cands)).
			Int("appended", appended).
			Bool("complete", snap.complete).
			Msg("page folded into snapshot")
	}
	return nil
}

func (s *service) commit(country string, snap snapshot) {
	s.snaps.Set(country, snap, s.opts.SnapshotTTL)
}

func (s *service) countryLock(country string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[country]
	if !ok {
		l = &sync.Mutex{}
		s.locks[country] = l
	}
	return l
}
