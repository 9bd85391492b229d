package portal

import (
	"context"
	"errors"

	"triton/internal/domain"
	"triton/internal/events"
	"triton/internal/links"
)

// resolveLink picks the survey URL for this session. Rostered programs
// always take the anonymous link. Otherwise an already-issued link pd
// wins; failing that a unique link is minted and persisted; and when
// the issuer is exhausted the anonymous link is used without
// persisting, since a cached anonymous link could later be wrong.
func (r *Router) resolveLink(ctx context.Context, st routeState) (routeState, error) {
	if st.cfg.Rostered() {
		st.link = st.survey.AnonymousLink
		return st, nil
	}
	if pd, ok := latestSurveyPD(st.cohortPD, domain.PDKeyLink, st.session); ok {
		st.link = pd.Value
		return st, nil
	}
	minted, err := r.Links.GetUnique(ctx, st.cfg.Program.Label, st.session)
	if err != nil {
		if errors.Is(err, links.ErrExhausted) {
			r.logger().Printf("program %s session %d: unique links exhausted, using anonymous link", st.cfg.Program.Label, st.session)
			st.link = st.survey.AnonymousLink
			return st, nil
		}
		return st, err
	}
	session := st.session
	pd, err := r.Engine.RecordParticipantData(ctx, domain.ParticipantData{
		ParticipantID:   st.participant.UID,
		Key:             domain.PDKeyLink,
		Value:           minted,
		ProjectCohortID: &st.cohort.UID,
		SurveyOrdinal:   &session,
	}, "portal")
	if err != nil {
		return st, err
	}
	st.allPD = append(st.allPD, pd)
	st.cohortPD = append(st.cohortPD, pd)
	st.link = minted
	r.appendEvent(ctx, "link.minted", st, events.EventPayload{"session": st.session})
	return st, nil
}
