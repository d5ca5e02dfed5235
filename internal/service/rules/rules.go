// Package rules holds the business checks shared by the public and staff
// booking flows. Nothing here touches storage: callers load the entities
// and pass them in, and every check reports all of its failures at once.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

const (
	// MinimumWindow applies when the booked services add up to no time.
	MinimumWindow = 30 * time.Minute
	// StartTolerance lets a booking for "now" survive request latency.
	StartTolerance = time.Minute
	// ConsultationSkew is how far in the future a consultation may be dated.
	ConsultationSkew = 5 * time.Minute
)

// Result is either ok or a list of reasons.
type Result struct {
	Reasons []string
}

func (r Result) OK() bool {
	return len(r.Reasons) == 0
}

func (r *Result) Addf(format string, args ...interface{}) {
	r.Reasons = append(r.Reasons, fmt.Sprintf(format, args...))
}

// Merge appends the reasons of others to r.
func (r *Result) Merge(others ...Result) {
	for _, o := range others {
		r.Reasons = append(r.Reasons, o.Reasons...)
	}
}

// Err returns nil when ok, otherwise a validation AppError.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return apperrors.NewValidation(r.Reasons...)
}

func ValidateBranch(branch *model.Branch, clinicID uuid.UUID) Result {
	var r Result
	switch {
	case branch == nil:
		r.Addf("branch not found")
	case branch.ClinicID != clinicID:
		r.Addf("branch %s does not belong to clinic %s", branch.ID, clinicID)
	case !branch.Active:
		r.Addf("branch %s is inactive", branch.ID)
	}
	return r
}

// DistinctServiceIDs drops repeated ids, keeping first-seen order.
func DistinctServiceIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ValidateServices checks that every requested id resolved to an active
// service of the clinic. requested must already be distinct.
func ValidateServices(requested []uuid.UUID, resolved []*model.Service, clinicID uuid.UUID) Result {
	var r Result
	if len(requested) == 0 {
		r.Addf("at least one service is required")
		return r
	}

	byID := make(map[uuid.UUID]*model.Service, len(resolved))
	for _, s := range resolved {
		if s != nil && s.ClinicID == clinicID {
			byID[s.ID] = s
		}
	}
	for _, id := range requested {
		s, ok := byID[id]
		switch {
		case !ok:
			r.Addf("service %s not found in clinic %s", id, clinicID)
		case !s.Active:
			r.Addf("service %s is inactive", id)
		}
	}
	return r
}

func ValidateDoctor(user *model.User, clinicID uuid.UUID) Result {
	var r Result
	if user == nil {
		r.Addf("doctor not found")
		return r
	}
	if !user.Active {
		r.Addf("doctor %s is inactive", user.ID)
	}
	if user.ClinicID != clinicID {
		r.Addf("doctor %s does not belong to clinic %s", user.ID, clinicID)
	}
	if !user.IsDoctor() {
		r.Addf("user %s does not hold the doctor role", user.ID)
	}
	return r
}

func ValidateStart(start, now time.Time) Result {
	var r Result
	if start.IsZero() {
		r.Addf("planned start is required")
	} else if start.Before(now.Add(-StartTolerance)) {
		r.Addf("planned start %s is in the past", start.UTC().Format(time.RFC3339))
	}
	return r
}

func ValidateInitialState(state model.AppointmentState) Result {
	var r Result
	if !state.InitialAllowed() {
		r.Addf("initial state %q is not allowed", state)
	}
	return r
}

func ValidateConsultedAt(t, now time.Time) Result {
	var r Result
	if t.After(now.Add(ConsultationSkew)) {
		r.Addf("consultation date cannot be in the future")
	}
	return r
}

func ValidateBirthDate(dob *time.Time, now time.Time) Result {
	var r Result
	if dob != nil && dob.After(now) {
		r.Addf("date of birth cannot be in the future")
	}
	return r
}

// BuildLines snapshots duration and price of each requested service, in
// request order. Ids missing from resolved are skipped.
func BuildLines(requested []uuid.UUID, resolved []*model.Service) []model.AppointmentServiceLine {
	byID := make(map[uuid.UUID]*model.Service, len(resolved))
	for _, s := range resolved {
		byID[s.ID] = s
	}

	lines := make([]model.AppointmentServiceLine, 0, len(requested))
	for _, id := range requested {
		s, ok := byID[id]
		if !ok {
			continue
		}
		lines = append(lines, model.AppointmentServiceLine{
			ServiceID:   s.ID,
			ServiceName: s.Name,
			DurationMin: s.DurationMin,
			Price:       s.BasePrice,
			Position:    len(lines),
		})
	}
	return lines
}

// PlanWindow returns the planned end. A non-positive total duration gets
// the MinimumWindow.
func PlanWindow(start time.Time, lines []model.AppointmentServiceLine) time.Time {
	total := 0
	for _, l := range lines {
		total += l.DurationMin
	}
	d := time.Duration(total) * time.Minute
	if d <= 0 {
		d = MinimumWindow
	}
	return start.Add(d)
}

// Price returns subtotal and total. No discounts or taxes apply, so they
// are equal.
func Price(lines []model.AppointmentServiceLine) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Price)
	}
	return subtotal, subtotal
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
