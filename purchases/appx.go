package purchases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	courseModels "coursehub/models/course"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"
)

const (
	checkPurchasePath = "/get/checkemailforpurchase"
	itemTypeCourse    = "10"
	purchasedFlag     = "1"
)

// AppxConfig holds the credentials and limits for the purchase service.
type AppxConfig struct {
	BaseURL        string
	ClientService  string
	AuthKey        string
	Timeout        time.Duration
	MaxConcurrency int
}

// Outcome is the result of a single purchase lookup.
type Outcome struct {
	Course   courseModels.EnrichedCourse
	Entitled bool
	Err      error
}

// AppxVerifier asks Appx whether an email has bought a course.
type AppxVerifier struct {
	client         *resty.Client
	maxConcurrency int
}

func NewAppxVerifier(cfg AppxConfig) *AppxVerifier {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Client-Service", cfg.ClientService).
		SetHeader("Auth-Key", cfg.AuthKey)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &AppxVerifier{client: client, maxConcurrency: cfg.MaxConcurrency}
}

// Verify checks every course concurrently and returns one outcome per course,
// in input order. It waits for all lookups to settle; failures are reported
// per outcome and never cancel the other lookups.
func (v *AppxVerifier) Verify(ctx context.Context, email string, courses []courseModels.EnrichedCourse) []Outcome {
	outcomes := make([]Outcome, len(courses))

	var g errgroup.Group
	if v.maxConcurrency > 0 {
		g.SetLimit(v.maxConcurrency)
	}
	for i, c := range courses {
		g.Go(func() error {
			entitled, err := v.checkPurchase(ctx, email, c.AppxCourseID)
			outcomes[i] = Outcome{Course: c, Entitled: entitled, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (v *AppxVerifier) checkPurchase(ctx context.Context, email string, appxCourseID int) (bool, error) {
	resp, err := v.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"email":    email,
			"itemtype": itemTypeCourse,
			"itemid":   strconv.Itoa(appxCourseID),
		}).
		Get(checkPurchasePath)
	if err != nil {
		return false, &VerificationError{AppxCourseID: appxCourseID, Err: err}
	}
	if resp.IsError() {
		return false, &VerificationError{
			AppxCourseID: appxCourseID,
			Err:          fmt.Errorf("unexpected status %d", resp.StatusCode()),
		}
	}

	var body struct {
		Data any `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return false, &VerificationError{AppxCourseID: appxCourseID, Err: fmt.Errorf("decode response: %w", err)}
	}

	flag, ok := body.Data.(string)
	return ok && flag == purchasedFlag, nil
}

// splitOutcomes separates entitled courses from failed lookups, keeping input
// order for both.
func splitOutcomes(outcomes []Outcome) (entitled []courseModels.EnrichedCourse, failed []error) {
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o.Err)
			continue
		}
		if o.Entitled {
			entitled = append(entitled, o.Course)
		}
	}
	return entitled, failed
}

// failedCourseIDs lists the Appx ids behind a set of verification errors.
func failedCourseIDs(failed []error) []int {
	ids := make([]int, 0, len(failed))
	for _, err := range failed {
		var verr *VerificationError
		if errors.As(err, &verr) {
			ids = append(ids, verr.AppxCourseID)
		}
	}
	return ids
}
