package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/practice-scheduling/internal/logging"
	"github.com/hackgods/practice-scheduling/internal/metrics"
)

// CreateRecurringRule stores a new, active rule. It does not materialize anything.
func (s *Service) CreateRecurringRule(ctx context.Context, practiceID uuid.UUID, r RecurringRule) (*RecurringRule, error) {
	r.ID = uuid.New()
	r.PracticeID = practiceID
	r.IsActive = true
	r.CreatedAt = s.clock.Now()
	if r.DurationMinutes == 0 {
		r.DurationMinutes = DefaultDurationMinutes
	}
	r.DaysOfWeek = normalizeDaysOfWeek(r.DaysOfWeek)

	if r.PatientID == uuid.Nil {
		return nil, invalidRule("patient_id is required")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPatient(ctx, practiceID, r.PatientID); err != nil {
		return nil, lookupFailed("load patient", err)
	}

	if err := s.repo.CreateRecurringRule(ctx, &r); err != nil {
		return nil, lookupFailed("create recurring rule", err)
	}
	return &r, nil
}

func (s *Service) GetRecurringRule(ctx context.Context, practiceID, id uuid.UUID) (*RecurringRule, error) {
	r, err := s.repo.GetRecurringRule(ctx, practiceID, id)
	if err != nil {
		return nil, lookupFailed("load recurring rule", err)
	}
	return r, nil
}

func (s *Service) ListRecurringRules(ctx context.Context, practiceID uuid.UUID) ([]RecurringRule, error) {
	rules, err := s.repo.ListRecurringRules(ctx, practiceID)
	if err != nil {
		return nil, lookupFailed("list recurring rules", err)
	}
	return rules, nil
}

// SetRecurringRuleActive toggles expansion. Appointments already materialized are kept.
func (s *Service) SetRecurringRuleActive(ctx context.Context, practiceID, id uuid.UUID, active bool) (*RecurringRule, error) {
	r, err := s.repo.SetRecurringRuleActive(ctx, practiceID, id, active)
	if err != nil {
		return nil, lookupFailed("toggle recurring rule", err)
	}
	return r, nil
}

// DeleteRecurringRule removes the rule. Appointments already materialized are kept.
func (s *Service) DeleteRecurringRule(ctx context.Context, practiceID, id uuid.UUID) error {
	if err := s.repo.DeleteRecurringRule(ctx, practiceID, id); err != nil {
		return lookupFailed("delete recurring rule", err)
	}
	return nil
}

// PreviewOccurrences expands a stored rule without writing anything.
func (s *Service) PreviewOccurrences(ctx context.Context, practiceID, id uuid.UUID, from, to Date) ([]Occurrence, error) {
	if err := checkExpansionRange(from, to); err != nil {
		return nil, err
	}
	r, err := s.GetRecurringRule(ctx, practiceID, id)
	if err != nil {
		return nil, err
	}
	return ExpandOccurrences(*r, from, to)
}

type SkippedOccurrence struct {
	Occurrence
	Reason string `json:"reason"`
}

type MaterializeResult struct {
	RuleID  uuid.UUID           `json:"rule_id"`
	Created []Appointment       `json:"created"`
	Skipped []SkippedOccurrence `json:"skipped"`
}

// MaterializeRule turns the rule's occurrences in [from, to] into appointments. Occurrences that
// collide with an existing booking or fall on a blocked day are reported as skipped. A date the
// rule has produced once is never booked again, even after its appointment was moved or deleted,
// so running it twice over the same range creates nothing new.
func (s *Service) MaterializeRule(ctx context.Context, practiceID, id uuid.UUID, from, to Date) (*MaterializeResult, error) {
	if err := checkExpansionRange(from, to); err != nil {
		return nil, err
	}
	r, err := s.GetRecurringRule(ctx, practiceID, id)
	if err != nil {
		return nil, err
	}
	return s.materialize(ctx, *r, from, to, time.Time{})
}

// Skip reasons that do not come from a booking error.
const (
	skipAlreadyMaterialized = "already_materialized"
	skipInPast              = "in_past"
)

// materialize books the occurrences in [from, to]. Occurrences starting before notBefore are
// skipped; a zero notBefore disables the check.
func (s *Service) materialize(ctx context.Context, r RecurringRule, from, to Date, notBefore time.Time) (*MaterializeResult, error) {
	occurrences, err := ExpandOccurrences(r, from, to)
	if err != nil {
		return nil, err
	}

	done, err := s.repo.MaterializedDates(ctx, r.PracticeID, r.ID, from, to)
	if err != nil {
		return nil, lookupFailed("load materialized dates", err)
	}
	seen := make(map[string]struct{}, len(done))
	for _, d := range done {
		seen[d.String()] = struct{}{}
	}

	result := &MaterializeResult{RuleID: r.ID, Created: []Appointment{}, Skipped: []SkippedOccurrence{}}
	skip := func(occ Occurrence, reason string) {
		result.Skipped = append(result.Skipped, SkippedOccurrence{Occurrence: occ, Reason: reason})
		metrics.OccurrencesMaterializedTotal.WithLabelValues("skipped").Inc()
	}

	ruleID := r.ID
	loc := s.location()
	for _, occ := range occurrences {
		if _, ok := seen[occ.Date.String()]; ok {
			skip(occ, skipAlreadyMaterialized)
			continue
		}
		if !notBefore.IsZero() && occ.Time.On(occ.Date, loc).Before(notBefore) {
			skip(occ, skipInPast)
			continue
		}

		appt, err := s.CreateAppointment(ctx, r.PracticeID, NewAppointment{
			PatientID:       r.PatientID,
			Date:            occ.Date,
			Time:            occ.Time,
			DurationMinutes: r.DurationMinutes,
			Service:         r.Service,
			Notes:           r.Notes,
			RecurringRuleID: &ruleID,
		})
		switch {
		case err == nil:
			result.Created = append(result.Created, *appt)
			metrics.OccurrencesMaterializedTotal.WithLabelValues("created").Inc()
		case errors.Is(err, ErrDuplicateBooking):
			// the slot is already covered, so the date counts as produced
			skip(occ, errorCode(err))
		case errors.Is(err, ErrWeekendBlocked), errors.Is(err, ErrSlotBusy):
			skip(occ, errorCode(err))
			continue
		default:
			return result, err
		}

		if err := s.repo.RecordMaterialized(ctx, r.PracticeID, r.ID, occ.Date); err != nil {
			return result, lookupFailed("record materialized occurrence", err)
		}
	}
	return result, nil
}

type MaterializeSummary struct {
	Rules   int
	Created int
	Skipped int
	Failed  int
}

// MaterializeActiveRules materializes every active rule of every practice from now up to
// horizonDays ahead. Occurrences earlier today are left alone. A failing rule is logged and
// does not stop the others.
func (s *Service) MaterializeActiveRules(ctx context.Context, horizonDays int) (MaterializeSummary, error) {
	var summary MaterializeSummary
	if horizonDays <= 0 {
		return summary, invalidInput("horizon must be positive")
	}

	rules, err := s.repo.ListActiveRecurringRules(ctx)
	if err != nil {
		return summary, lookupFailed("list active recurring rules", err)
	}

	now := s.clock.Now()
	today := DateOf(now)
	until := today.AddDays(horizonDays)
	log := logging.FromContext(ctx)

	for _, r := range rules {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Rules++
		res, err := s.materialize(ctx, r, today, until, now)
		if res != nil {
			summary.Created += len(res.Created)
			summary.Skipped += len(res.Skipped)
		}
		if err != nil {
			summary.Failed++
			log.Error().Err(err).
				Str("practice_id", r.PracticeID.String()).
				Str("rule_id", r.ID.String()).
				Msg("failed to materialize recurring rule")
		}
	}
	return summary, nil
}

func checkExpansionRange(from, to Date) error {
	if from.IsZero() || to.IsZero() {
		return invalidInput("from and to are required")
	}
	if to.Before(from) {
		return invalidInput("to %s is before from %s", to, from)
	}
	if to.DaysSince(from) > maxExpansionDays {
		return invalidInput("range may span at most %d days", maxExpansionDays)
	}
	return nil
}
