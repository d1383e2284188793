package purchases

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	courseModels "coursehub/models/course"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	courses  []courseModels.Course
	videos   []courseModels.Content
	progress map[string][]courseModels.VideoProgress

	coursesErr  error
	videosErr   error
	progressErr error

	mu            sync.Mutex
	progressUsers []string
	courseCalls   int
}

func (f *fakeSource) GetAllCoursesAndContentHierarchy(ctx context.Context) ([]courseModels.Course, error) {
	f.mu.Lock()
	f.courseCalls++
	f.mu.Unlock()
	return f.courses, f.coursesErr
}

func (f *fakeSource) GetAllVideos(ctx context.Context) ([]courseModels.Content, error) {
	return f.videos, f.videosErr
}

func (f *fakeSource) GetVideoProgressForUser(ctx context.Context, userID string, markAsCompleted bool) ([]courseModels.VideoProgress, error) {
	f.mu.Lock()
	f.progressUsers = append(f.progressUsers, userID)
	f.mu.Unlock()
	return f.progress[userID], f.progressErr
}

// fakeVerifier marks the listed Appx ids as purchased and fails the ones in
// errs.
type fakeVerifier struct {
	entitled map[int]bool
	errs     map[int]error
	gate     chan struct{}
	calls    atomic.Int32
}

func (f *fakeVerifier) Verify(ctx context.Context, email string, courses []courseModels.EnrichedCourse) []Outcome {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	out := make([]Outcome, len(courses))
	for i, c := range courses {
		out[i] = Outcome{Course: c, Entitled: f.entitled[c.AppxCourseID]}
		err := f.errs[c.AppxCourseID]
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			out[i] = Outcome{Course: c, Err: &VerificationError{AppxCourseID: c.AppxCourseID, Err: err}}
		}
	}
	return out
}

var buyer = Identity{UserID: "u1", Email: "buyer@example.com"}

// catalog: X is paid (appx 55), Y is open to everyone (appx 77), Z is paid
// and not bought (appx 99).
func catalog() *fakeSource {
	x := courseWith("X", "n1")
	x.AppxCourseID = 55
	y := courseWith("Y", "n2")
	y.AppxCourseID = 77
	y.OpenToEveryone = true
	z := courseWith("Z")
	z.AppxCourseID = 99
	return &fakeSource{
		courses: []courseModels.Course{x, y, z},
		videos:  []courseModels.Content{video("v1", "n1"), video("v2", "n1"), video("v3", "n2")},
		progress: map[string][]courseModels.VideoProgress{
			"u1": {{UserID: "u1", ContentID: "v1", MarkAsCompleted: true}},
		},
	}
}

func newTestService(src CourseSource, v Verifier, opts Options) *Service {
	return NewService(src, v, NewCache(100, 5000, time.Hour), opts)
}

func ids(courses []courseModels.EnrichedCourse) []string {
	out := make([]string, len(courses))
	for i, c := range courses {
		out[i] = c.ID
	}
	return out
}

func TestGetPurchasesMergesOpenAccessWhenSomethingVerified(t *testing.T) {
	v := &fakeVerifier{entitled: map[int]bool{55: true}}
	s := newTestService(catalog(), v, Options{})

	res, err := s.GetPurchases(context.Background(), buyer)

	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, ids(res.Courses))
	assert.False(t, res.FromCache)
	require.NotNil(t, res.Courses[0].VideoCounts)
	assert.Equal(t, 2, res.Courses[0].TotalVideos)
	assert.Equal(t, 1, res.Courses[0].TotalVideosWatched)
}

func TestGetPurchasesSkipsOpenAccessWhenNothingVerified(t *testing.T) {
	v := &fakeVerifier{}
	s := newTestService(catalog(), v, Options{})

	res, err := s.GetPurchases(context.Background(), buyer)

	require.NoError(t, err)
	assert.NotNil(t, res.Courses)
	assert.Empty(t, res.Courses)
}

func TestGetPurchasesOpenAccessAlways(t *testing.T) {
	s := newTestService(catalog(), &fakeVerifier{}, Options{OpenAccessAlways: true})

	res, err := s.GetPurchases(context.Background(), buyer)

	require.NoError(t, err)
	assert.Equal(t, []string{"Y"}, ids(res.Courses))
}

func TestGetPurchasesDoesNotDuplicateVerifiedOpenCourse(t *testing.T) {
	v := &fakeVerifier{entitled: map[int]bool{55: true, 77: true}}
	s := newTestService(catalog(), v, Options{})

	res, err := s.GetPurchases(context.Background(), buyer)

	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, ids(res.Courses))
}

func TestGetPurchasesServesRepeatsFromCache(t *testing.T) {
	src := catalog()
	v := &fakeVerifier{entitled: map[int]bool{55: true}}
	s := newTestService(src, v, Options{})

	first, err := s.GetPurchases(context.Background(), buyer)
	require.NoError(t, err)
	second, err := s.GetPurchases(context.Background(), buyer)
	require.NoError(t, err)

	assert.Equal(t, first.Courses, second.Courses)
	assert.True(t, second.FromCache)
	assert.Equal(t, int32(1), v.calls.Load())
	assert.Equal(t, 1, src.courseCalls)
}

func TestGetPurchasesCachedListIsNotAliased(t *testing.T) {
	v := &fakeVerifier{entitled: map[int]bool{55: true}}
	s := newTestService(catalog(), v, Options{})

	first, err := s.GetPurchases(context.Background(), buyer)
	require.NoError(t, err)
	first.Courses[0].Title = "tampered"
	require.NotNil(t, first.Courses[0].VideoCounts)
	first.Courses[0].TotalVideosWatched = 999

	second, err := s.GetPurchases(context.Background(), buyer)
	require.NoError(t, err)
	require.True(t, second.FromCache)
	assert.Equal(t, "Course X", second.Courses[0].Title)
	assert.Equal(t, 1, second.Courses[0].TotalVideosWatched)

	second.Courses[0].TotalVideos = 0
	third, err := s.GetPurchases(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Courses[0].TotalVideos)
	assert.LessOrEqual(t, third.Courses[0].TotalVideosWatched, third.Courses[0].TotalVideos)
}

func TestCloneCoursesCopiesVideoCounts(t *testing.T) {
	src := []courseModels.EnrichedCourse{
		{ID: "a", VideoCounts: &courseModels.VideoCounts{TotalVideos: 3, TotalVideosWatched: 1}},
		{ID: "b"},
	}

	out := cloneCourses(src)
	out[0].TotalVideosWatched = 3

	assert.Equal(t, 1, src[0].TotalVideosWatched)
	assert.NotSame(t, src[0].VideoCounts, out[0].VideoCounts)
	assert.Nil(t, out[1].VideoCounts)
	assert.Nil(t, cloneCourses(nil))
}

func TestGetPurchasesSharedRunSurvivesStarterCancel(t *testing.T) {
	v := &fakeVerifier{entitled: map[int]bool{55: true}, gate: make(chan struct{})}
	s := newTestService(catalog(), v, Options{Coalesce: true})

	starterCtx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		res *Result
		err error
	}
	starter := make(chan outcome, 1)
	go func() {
		res, err := s.GetPurchases(starterCtx, buyer)
		starter <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return v.calls.Load() == 1 }, time.Second, time.Millisecond)

	waiter := make(chan outcome, 1)
	go func() {
		res, err := s.GetPurchases(context.Background(), buyer)
		waiter <- outcome{res, err}
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(v.gate)

	for _, ch := range []chan outcome{starter, waiter} {
		got := <-ch
		require.NoError(t, got.err)
		assert.Equal(t, []string{"X", "Y"}, ids(got.res.Courses))
	}
	assert.Equal(t, int32(1), v.calls.Load())
	assert.Equal(t, 1, s.cache.Len())
}

func TestForgetWinsOverRunningLookup(t *testing.T) {
	v := &fakeVerifier{entitled: map[int]bool{55: true}, gate: make(chan struct{})}
	s := newTestService(catalog(), v, Options{Coalesce: true})

	done := make(chan error, 1)
	go func() {
		_, err := s.GetPurchases(context.Background(), buyer)
		done <- err
	}()
	require.Eventually(t, func() bool { return v.calls.Load() == 1 }, time.Second, time.Millisecond)

	s.Forget(buyer.Email)
	close(v.gate)
	require.NoError(t, <-done)

	assert.Equal(t, 0, s.cache.Len(), "a lookup started before Forget must not repopulate the cache")

	res, err := s.GetPurchases(context.Background(), buyer)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, int32(2), v.calls.Load())
	assert.Equal(t, 1, s.cache.Len())
}

func TestResetCacheWinsOverRunningLookup(t *testing.T) {
	v := &fakeVerifier{entitled: map[int]bool{55: true}, gate: make(chan struct{})}
	s := newTestService(catalog(), v, Options{})

	done := make(chan error, 1)
	go func() {
		_, err := s.GetPurchases(context.Background(), buyer)
		done <- err
	}()
	require.Eventually(t, func() bool { return v.calls.Load() == 1 }, time.Second, time.Millisecond)

	s.ResetCache()
	close(v.gate)
	require.NoError(t, <-done)

	assert.Equal(t, 0, s.cache.Len())
}

func TestGetPurchasesRecomputesAfterExpiry(t *testing.T) {
	v := &fakeVerifier{entitled: map[int]bool{55: true}}
	s := NewService(catalog(), v, NewCache(10, 100, time.Millisecond), Options{})

	_, err := s.GetPurchases(context.Background(), buyer)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	v.entitled[99] = true
	res, err := s.GetPurchases(context.Background(), buyer)

	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Equal(t, []string{"X", "Z", "Y"}, ids(res.Courses))
	assert.Equal(t, int32(2), v.calls.Load())
}

func TestGetPurchasesLocalCmsProviderReturnsEverything(t *testing.T) {
	v := &fakeVerifier{}
	s := newTestService(catalog(), v, Options{LocalCmsProvider: true})

	res, err := s.GetPurchases(context.Background(), buyer)

	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y", "Z"}, ids(res.Courses))
	assert.Equal(t, int32(0), v.calls.Load())
	assert.Equal(t, 0, s.cache.Len(), "bypass results are not cached")
}

func TestGetPurchasesReadsProgressForIdentityUser(t *testing.T) {
	src := catalog()
	s := newTestService(src, &fakeVerifier{entitled: map[int]bool{55: true}}, Options{})

	res, err := s.GetPurchases(context.Background(), Identity{UserID: "u2", Email: "other@example.com"})

	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, src.progressUsers)
	assert.Equal(t, 0, res.Courses[0].TotalVideosWatched)
}

func TestGetPurchasesFetchErrors(t *testing.T) {
	boom := errors.New("db down")
	cases := map[string]func(*fakeSource){
		"courses":        func(f *fakeSource) { f.coursesErr = boom },
		"videos":         func(f *fakeSource) { f.videosErr = boom },
		"video progress": func(f *fakeSource) { f.progressErr = boom },
	}
	for op, breakIt := range cases {
		t.Run(op, func(t *testing.T) {
			src := catalog()
			breakIt(src)
			v := &fakeVerifier{entitled: map[int]bool{55: true}}
			s := newTestService(src, v, Options{})

			res, err := s.GetPurchases(context.Background(), buyer)

			assert.Nil(t, res)
			var ferr *FetchError
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, op, ferr.Op)
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, int32(0), v.calls.Load())
			assert.Equal(t, 0, s.cache.Len())
		})
	}
}

func TestGetPurchasesStrictVerificationFailure(t *testing.T) {
	v := &fakeVerifier{
		entitled: map[int]bool{55: true},
		errs:     map[int]error{99: errors.New("connection reset")},
	}
	s := newTestService(catalog(), v, Options{})

	res, err := s.GetPurchases(context.Background(), buyer)

	assert.Nil(t, res)
	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 99, verr.AppxCourseID)
	assert.Equal(t, 0, s.cache.Len())
}

func TestGetPurchasesPartialVerification(t *testing.T) {
	v := &fakeVerifier{
		entitled: map[int]bool{55: true},
		errs:     map[int]error{99: errors.New("connection reset")},
	}
	s := newTestService(catalog(), v, Options{AllowPartial: true})

	res, err := s.GetPurchases(context.Background(), buyer)

	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, []int{99}, res.UnverifiedCourseIDs)
	assert.Equal(t, []string{"X", "Y"}, ids(res.Courses))
	assert.Equal(t, 0, s.cache.Len(), "partial lists are not cached")
}

func TestGetPurchasesCoalescesConcurrentMisses(t *testing.T) {
	v := &fakeVerifier{entitled: map[int]bool{55: true}, gate: make(chan struct{})}
	s := newTestService(catalog(), v, Options{Coalesce: true})

	var wg sync.WaitGroup
	results := make([]*Result, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.GetPurchases(context.Background(), buyer)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	require.Eventually(t, func() bool { return v.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(v.gate)
	wg.Wait()

	assert.Equal(t, int32(1), v.calls.Load())
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, []string{"X", "Y"}, ids(res.Courses))
	}
}

func TestForgetAndReset(t *testing.T) {
	v := &fakeVerifier{entitled: map[int]bool{55: true}}
	s := newTestService(catalog(), v, Options{})

	_, err := s.GetPurchases(context.Background(), buyer)
	require.NoError(t, err)
	assert.True(t, s.Forget(buyer.Email))
	assert.False(t, s.Forget(buyer.Email))

	_, err = s.GetPurchases(context.Background(), buyer)
	require.NoError(t, err)
	s.ResetCache()
	assert.Equal(t, 0, s.cache.Len())
	assert.Equal(t, int32(2), v.calls.Load())
}

func TestEndToEndAgainstAppx(t *testing.T) {
	f, srv := newFakeAppx(t, map[string]string{"55": `{"data":"1"}`})
	s := newTestService(catalog(), testVerifier(srv.URL), Options{})

	res, err := s.GetPurchases(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, ids(res.Courses))
	assert.Equal(t, int32(3), f.calls.Load())

	_, err = s.GetPurchases(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.calls.Load(), "cached call makes no lookups")
}
