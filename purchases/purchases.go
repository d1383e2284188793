// Package purchases resolves which courses a user may open, with their watch
// progress attached.
//
// A lookup reads the whole catalog, counts each course's videos and the ones
// the user finished, asks Appx which courses the email bought, adds the
// open-to-everyone courses and caches the list per email.
package purchases

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"coursehub/cache"
	"coursehub/logger"
	courseModels "coursehub/models/course"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// CourseSource reads the catalog and progress data a lookup needs.
type CourseSource interface {
	GetAllCoursesAndContentHierarchy(ctx context.Context) ([]courseModels.Course, error)
	GetAllVideos(ctx context.Context) ([]courseModels.Content, error)
	GetVideoProgressForUser(ctx context.Context, userID string, markAsCompleted bool) ([]courseModels.VideoProgress, error)
}

// Verifier checks purchases for a batch of courses.
type Verifier interface {
	Verify(ctx context.Context, email string, courses []courseModels.EnrichedCourse) []Outcome
}

// Identity names the user a lookup is for. Progress is read for UserID; the
// cache and the purchase checks use Email.
type Identity struct {
	UserID string `validate:"required"`
	Email  string `validate:"required,email"`
}

type Options struct {
	// LocalCmsProvider skips Appx and returns the whole catalog.
	LocalCmsProvider bool
	// AllowPartial returns the courses that verified when some lookups
	// fail, instead of failing the request. Partial lists are not cached.
	AllowPartial bool
	// OpenAccessAlways adds open-to-everyone courses even when no purchase
	// was found.
	OpenAccessAlways bool
	// Coalesce shares one computation between concurrent misses for the
	// same user.
	Coalesce bool
}

// Result is a resolved purchase list.
type Result struct {
	Courses             []courseModels.EnrichedCourse `json:"courses"`
	FromCache           bool                          `json:"fromCache"`
	Partial             bool                          `json:"partial"`
	UnverifiedCourseIDs []int                         `json:"unverifiedCourseIds,omitempty"`
}

type PurchaseCache = cache.LRU[string, []courseModels.EnrichedCourse]

// NewCache builds the per-email purchase cache. A list weighs one unit per
// course.
func NewCache(maxEntries, maxSize int, ttl time.Duration) *PurchaseCache {
	return cache.New[string, []courseModels.EnrichedCourse](cache.Options[[]courseModels.EnrichedCourse]{
		MaxEntries: maxEntries,
		MaxSize:    maxSize,
		TTL:        ttl,
		SizeOf:     func(v []courseModels.EnrichedCourse) int { return len(v) },
	})
}

type Service struct {
	source   CourseSource
	verifier Verifier
	cache    *PurchaseCache
	opts     Options
	inflight singleflight.Group

	// generations guard against a computation started before Forget or
	// ResetCache writing its list back afterwards.
	genMu       sync.Mutex
	epoch       uint64
	generations map[string]uint64
}

type generation struct {
	epoch uint64
	gen   uint64
}

func NewService(source CourseSource, verifier Verifier, purchaseCache *PurchaseCache, opts Options) *Service {
	return &Service{
		source:      source,
		verifier:    verifier,
		cache:       purchaseCache,
		opts:        opts,
		generations: make(map[string]uint64),
	}
}

// GetPurchases returns the courses id may access. A cached list is returned
// as is; otherwise the list is computed and, when fully verified, cached.
func (s *Service) GetPurchases(ctx context.Context, id Identity) (*Result, error) {
	if cached, ok := s.cache.Get(id.Email); ok {
		logger.Debug().Str("email", id.Email).Int("courses", len(cached)).Msg("purchases cache hit")
		return &Result{Courses: cloneCourses(cached), FromCache: true}, nil
	}

	if !s.opts.Coalesce {
		return s.resolve(ctx, id)
	}

	// The shared run must not fail because the caller that started it went
	// away.
	runCtx := context.WithoutCancel(ctx)
	v, err, shared := s.inflight.Do(id.Email, func() (any, error) {
		return s.resolve(runCtx, id)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*Result)
	if !shared {
		return res, nil
	}
	out := *res
	out.Courses = cloneCourses(res.Courses)
	out.UnverifiedCourseIDs = slices.Clone(res.UnverifiedCourseIDs)
	return &out, nil
}

// Forget drops the cached list for email. A computation already running for
// email will not store its result, and later calls do not join it.
func (s *Service) Forget(email string) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	s.generations[email]++
	s.inflight.Forget(email)
	return s.cache.Delete(email)
}

// ResetCache empties the purchase cache.
func (s *Service) ResetCache() {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	s.epoch++
	s.generations = make(map[string]uint64)
	s.cache.Reset()
}

func (s *Service) generationOf(email string) generation {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return generation{epoch: s.epoch, gen: s.generations[email]}
}

// store caches courses unless email was forgotten since g was taken.
func (s *Service) store(email string, g generation, courses []courseModels.EnrichedCourse) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()

	if g != (generation{epoch: s.epoch, gen: s.generations[email]}) {
		return false
	}
	s.cache.Set(email, cloneCourses(courses))
	return true
}

// cloneCourses copies courses including their video counts, so a stored list
// shares nothing with the caller.
func cloneCourses(courses []courseModels.EnrichedCourse) []courseModels.EnrichedCourse {
	if courses == nil {
		return nil
	}
	out := make([]courseModels.EnrichedCourse, len(courses))
	for i, c := range courses {
		if c.VideoCounts != nil {
			counts := *c.VideoCounts
			c.VideoCounts = &counts
		}
		out[i] = c
	}
	return out
}

func (s *Service) resolve(ctx context.Context, id Identity) (*Result, error) {
	log := logger.Logger.With().
		Str("run", uuid.NewString()).
		Str("email", id.Email).
		Logger()
	gen := s.generationOf(id.Email)

	courses, err := s.source.GetAllCoursesAndContentHierarchy(ctx)
	if err != nil {
		return nil, &FetchError{Op: "courses", Err: err}
	}
	progress, err := s.source.GetVideoProgressForUser(ctx, id.UserID, true)
	if err != nil {
		return nil, &FetchError{Op: "video progress", Err: err}
	}
	videos, err := s.source.GetAllVideos(ctx)
	if err != nil {
		return nil, &FetchError{Op: "videos", Err: err}
	}

	enriched := EnrichCourses(courses, videos, CompletedSet(progress))

	if s.opts.LocalCmsProvider {
		log.Debug().Int("courses", len(enriched)).Msg("local cms provider, skipping purchase checks")
		return &Result{Courses: enriched}, nil
	}

	start := time.Now()
	entitled, failed := splitOutcomes(s.verifier.Verify(ctx, id.Email, enriched))
	log.Debug().
		Int("checked", len(enriched)).
		Int("entitled", len(entitled)).
		Int("failed", len(failed)).
		Dur("took", time.Since(start)).
		Msg("purchase checks settled")

	if len(failed) > 0 && !s.opts.AllowPartial {
		log.Error().Err(failed[0]).Int("failed", len(failed)).Msg("purchase verification failed")
		return nil, errors.Join(failed...)
	}

	result := &Result{
		Courses: mergeOpenAccess(entitled, enriched, s.opts.OpenAccessAlways),
	}
	if len(failed) > 0 {
		result.Partial = true
		result.UnverifiedCourseIDs = failedCourseIDs(failed)
		log.Warn().Ints("appxCourseIds", result.UnverifiedCourseIDs).Msg("returning partial purchase list")
		return result, nil
	}

	if !s.store(id.Email, gen, result.Courses) {
		log.Debug().Msg("purchase cache entry forgotten during lookup, not storing")
	}
	return result, nil
}

// mergeOpenAccess appends the open-to-everyone courses to the purchased ones.
// Unless always is set this only happens when at least one purchase was
// found.
func mergeOpenAccess(entitled, all []courseModels.EnrichedCourse, always bool) []courseModels.EnrichedCourse {
	merged := make([]courseModels.EnrichedCourse, 0, len(entitled))
	merged = append(merged, entitled...)
	if len(entitled) == 0 && !always {
		return merged
	}

	present := make(map[string]struct{}, len(merged))
	for _, c := range merged {
		present[c.ID] = struct{}{}
	}
	for _, c := range all {
		if !c.OpenToEveryone {
			continue
		}
		if _, ok := present[c.ID]; ok {
			continue
		}
		present[c.ID] = struct{}{}
		merged = append(merged, c)
	}
	return merged
}
