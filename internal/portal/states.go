package portal

import (
	"context"
	"hash/fnv"
	"time"

	"triton/internal/config"
	"triton/internal/domain"
)

// runStates advances through the program's configured presurvey states
// in order. The sequence is linear: a state either passes (possibly
// contributing redirect params or pd), pauses the pipeline by setting
// pending, or fails validation. Re-entry after explicit user action
// carries ResumeAfter, which skips everything up to and including that
// state; a ResumeAfter not present in the list skips them all.
func (r *Router) runStates(ctx context.Context, st routeState) (routeState, error) {
	states := st.cfg.PresurveyStates
	start := 0
	if st.req.ResumeAfter != "" {
		idx := -1
		for i, name := range states {
			if name == st.req.ResumeAfter {
				idx = i
			}
		}
		if idx == -1 {
			return st, nil
		}
		start = idx + 1
	}
	for _, name := range states[start:] {
		var err error
		switch name {
		case config.StateSkipCheck:
			if r.returningParticipant(st) {
				return st, nil
			}
		case config.StateValidation:
			st = r.stateValidation(st)
		case config.StateAssent:
			st = r.stateAssent(st)
		case config.StateIESCheck:
			st, err = r.stateIESCheck(ctx, st)
		case config.StateBlockSwitcher:
			st, err = r.stateBlockSwitcher(ctx, st)
		default:
			r.logger().Printf("program %s: unhandled presurvey state %q", st.cfg.Program.Label, name)
		}
		if err != nil {
			return st, err
		}
		if st.pending != "" {
			return st, nil
		}
	}
	return st, nil
}

// returningParticipant reports whether this survey already has any
// recorded progress, in which case the remaining states are skipped.
func (r *Router) returningParticipant(st routeState) bool {
	pd, ok := latestSurveyPD(st.cohortPD, domain.PDKeyProgress, st.session)
	return ok && pd.Value != "" && pd.Value != "0"
}

// stateValidation pauses for the identity-validation screen unless the
// participant validated recently. The interval is compared in UTC.
func (r *Router) stateValidation(st routeState) routeState {
	if !st.cfg.Presurvey.ValidationRequired {
		return st
	}
	if pd, ok := latestPD(st.cohortPD, domain.PDKeySawValidation); ok {
		seen, err := time.Parse(time.RFC3339, pd.Value)
		if err == nil {
			age := r.now().UTC().Sub(seen.UTC())
			if age < time.Duration(st.cfg.Presurvey.ValidationIntervalDays)*24*time.Hour {
				return st
			}
		} else {
			r.logger().Printf("participant %s saw_validation %q: %v", st.participant.UID, pd.Value, err)
		}
	}
	st.pending = config.StateValidation
	return st
}

// stateAssent forwards a recorded assent decision as a redirect param,
// pausing for the assent screen when the program requires one and none
// is recorded yet.
func (r *Router) stateAssent(st routeState) routeState {
	if pd, ok := latestPD(st.cohortPD, domain.PDKeyAssent); ok {
		st.stateParams.Set("assent", pd.Value)
		return st
	}
	if st.cfg.Presurvey.AssentRequired {
		st.pending = config.StateAssent
	}
	return st
}

// stateIESCheck reports whether the demographic and baseline modules
// were already seen, and marks them seen on first pass so each shows at
// most once.
func (r *Router) stateIESCheck(ctx context.Context, st routeState) (routeState, error) {
	if !st.cfg.Presurvey.IESEnabled {
		return st, nil
	}
	for _, key := range []string{domain.PDKeySawDemographics, domain.PDKeySawBaseline} {
		if _, ok := latestPD(st.cohortPD, key); ok {
			st.stateParams.Set(key, "true")
			continue
		}
		st.stateParams.Set(key, "false")
		pd, err := r.Engine.RecordParticipantData(ctx, domain.ParticipantData{
			ParticipantID:   st.participant.UID,
			Key:             key,
			Value:           "1",
			ProjectCohortID: &st.cohort.UID,
		}, "portal")
		if err != nil {
			return st, err
		}
		st.allPD = append(st.allPD, pd)
		st.cohortPD = append(st.cohortPD, pd)
	}
	return st, nil
}

// stateBlockSwitcher assigns the participant a learning condition,
// reusing a recorded one when present. Assignment is a stable hash of
// the participant id so re-routing never flips conditions.
func (r *Router) stateBlockSwitcher(ctx context.Context, st routeState) (routeState, error) {
	if pd, ok := latestPD(st.cohortPD, domain.PDKeyCondition); ok {
		st.stateParams.Set("condition", pd.Value)
		return st, nil
	}
	conditions := st.cfg.Presurvey.Conditions
	if len(conditions) == 0 {
		return st, validation("conditions not configured")
	}
	h := fnv.New32a()
	h.Write([]byte(st.participant.UID))
	condition := conditions[int(h.Sum32())%len(conditions)]
	pd, err := r.Engine.RecordParticipantData(ctx, domain.ParticipantData{
		ParticipantID:   st.participant.UID,
		Key:             domain.PDKeyCondition,
		Value:           condition,
		ProjectCohortID: &st.cohort.UID,
	}, "portal")
	if err != nil {
		return st, err
	}
	st.allPD = append(st.allPD, pd)
	st.cohortPD = append(st.cohortPD, pd)
	st.stateParams.Set("condition", condition)
	return st, nil
}
