package portal

import (
	"context"

	"triton/internal/domain"
	"triton/internal/status"
)

// gateEntry applies the access checks for non-rostered programs.
// Rostered programs bypass all of them.
func (r *Router) gateEntry(ctx context.Context, st routeState) (routeState, error) {
	if st.cfg.Rostered() {
		return st, nil
	}
	if err := r.checkCohortOpen(st); err != nil {
		return st, err
	}
	if err := r.checkSurveyReady(ctx, st); err != nil {
		return st, err
	}
	if err := r.checkSurveyNotDone(st); err != nil {
		return st, err
	}
	return st, nil
}

// checkCohortOpen compares the local calendar date against the cohort
// window. Dates are parsed in local time so a published close date
// means local midnight for everyone. Missing or malformed dates fail
// closed.
func (r *Router) checkCohortOpen(st routeState) error {
	if st.req.Override {
		return nil
	}
	open, closed, err := st.cohortCfg.OpenWindow(r.location())
	if err != nil {
		r.logger().Printf("cohort %s window: %v", st.cohort.UID, err)
		return validation("cohort closed")
	}
	now := r.now().In(r.location())
	if now.Before(open) || !now.Before(closed) {
		return validation("cohort closed")
	}
	return nil
}

func (r *Router) checkSurveyReady(ctx context.Context, st routeState) error {
	if st.req.Override {
		return nil
	}
	s, err := r.Engine.SurveyStatus(ctx, st.cohort.UID, st.session)
	if err != nil {
		return err
	}
	if s == status.SurveyNotReady {
		return validation("survey not ready")
	}
	return nil
}

// checkSurveyNotDone refuses re-entry once this survey's progress
// reached 100. No override applies.
func (r *Router) checkSurveyNotDone(st routeState) error {
	pd, ok := latestSurveyPD(st.cohortPD, domain.PDKeyProgress, st.session)
	if ok && pd.Value == "100" {
		return validation("survey done")
	}
	return nil
}
