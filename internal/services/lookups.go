package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"feeledger/internal/cache"
	"feeledger/internal/core"
	"feeledger/internal/feeapi"
	"feeledger/internal/log"
	"feeledger/internal/query"
)

const lookupKey = "all"

// Lookups are the selection lists of the fee forms.
type Lookups struct {
	Courses       []core.Course       `json:"courses"`
	Students      []core.Student      `json:"students"`
	Branches      []core.Branch       `json:"branches"`
	FeeStructures []core.FeeStructure `json:"fee_structures"`
}

// LookupService loads and caches the lists owned by other screens.
type LookupService struct {
	api    feeapi.LookupReader
	logger *log.Logger

	courses    *cache.Loader[[]core.Course]
	students   *cache.Loader[[]core.Student]
	branches   *cache.Loader[[]core.Branch]
	structures *cache.Loader[[]core.FeeStructure]
	cleaners   []cache.Cleaner
}

func NewLookupService(api feeapi.LookupReader, ttl time.Duration) *LookupService {
	courses := cache.NewLRUCache[[]core.Course](1, ttl)
	students := cache.NewLRUCache[[]core.Student](1, ttl)
	branches := cache.NewLRUCache[[]core.Branch](1, ttl)
	structures := cache.NewLRUCache[[]core.FeeStructure](1, ttl)
	return &LookupService{
		api:        api,
		logger:     log.Wrap(slog.Default(), log.ComponentLookups),
		courses:    cache.NewLoader[[]core.Course](courses),
		students:   cache.NewLoader[[]core.Student](students),
		branches:   cache.NewLoader[[]core.Branch](branches),
		structures: cache.NewLoader[[]core.FeeStructure](structures),
		cleaners:   []cache.Cleaner{courses, students, branches, structures},
	}
}

// Cleaners returns the caches so a cache.Manager can expire them.
func (s *LookupService) Cleaners() []cache.Cleaner { return s.cleaners }

// Load fetches every list concurrently. One failure fails the whole load.
func (s *LookupService) Load(ctx context.Context) (Lookups, error) {
	var out Lookups
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.Courses, err = s.Courses(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Students, err = s.allStudents(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.Branches, err = s.Branches(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.FeeStructures, err = s.FeeStructures(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Lookups{}, err
	}
	s.logger.DebugContext(ctx, "Lookups loaded",
		"courses", len(out.Courses), "students", len(out.Students),
		"branches", len(out.Branches), "fee_structures", len(out.FeeStructures))
	return out, nil
}

func (s *LookupService) Courses(ctx context.Context) ([]core.Course, error) {
	return s.courses.Get(ctx, lookupKey, func(ctx context.Context) ([]core.Course, error) {
		v, err := s.api.ListCourses(ctx)
		if err != nil {
			return nil, remoteError("list courses", err)
		}
		return v, nil
	})
}

func (s *LookupService) Branches(ctx context.Context) ([]core.Branch, error) {
	return s.branches.Get(ctx, lookupKey, func(ctx context.Context) ([]core.Branch, error) {
		v, err := s.api.ListBranches(ctx)
		if err != nil {
			return nil, remoteError("list branches", err)
		}
		return v, nil
	})
}

func (s *LookupService) FeeStructures(ctx context.Context) ([]core.FeeStructure, error) {
	return s.structures.Get(ctx, lookupKey, func(ctx context.Context) ([]core.FeeStructure, error) {
		v, err := s.api.ListFeeStructures(ctx)
		if err != nil {
			return nil, remoteError("list fee structures", err)
		}
		return v, nil
	})
}

func (s *LookupService) allStudents(ctx context.Context) ([]core.Student, error) {
	return s.students.Get(ctx, lookupKey, func(ctx context.Context) ([]core.Student, error) {
		v, err := s.api.ListStudents(ctx)
		if err != nil {
			return nil, remoteError("list students", err)
		}
		return v, nil
	})
}

// Students runs the query pipeline over the cached student list. The result
// is a fresh slice.
func (s *LookupService) Students(ctx context.Context, q query.Query) ([]core.Student, query.Page, error) {
	all, err := s.allStudents(ctx)
	if err != nil {
		return nil, query.Page{}, err
	}
	out, err := query.Students.Apply(all, q)
	if err != nil {
		return nil, query.Page{}, fmt.Errorf("query students: %w", err)
	}
	rows, page := query.Paginate(out, q.Page, q.PerPage)
	return rows, page, nil
}

// Invalidate drops every cached list.
func (s *LookupService) Invalidate() {
	s.courses.Invalidate(lookupKey)
	s.students.Invalidate(lookupKey)
	s.branches.Invalidate(lookupKey)
	s.structures.Invalidate(lookupKey)
}
