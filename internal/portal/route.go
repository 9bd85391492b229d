package portal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"triton/internal/cache"
	"triton/internal/config"
	"triton/internal/domain"
	"triton/internal/engine"
	"triton/internal/events"
	"triton/internal/links"
	"triton/internal/repo"
	"triton/internal/roster"
)

// Router drives one participant's portal entry from cookie triple to
// redirect. Each request runs an isolated pipeline of fallible steps
// over a copy-on-write state value; nothing is shared across requests.
type Router struct {
	Engine   engine.Engine
	Repo     repo.Repo
	Programs *cache.Cache[*config.Config]
	Orgs     *cache.Cache[domain.Organization]
	Links    links.Issuer
	Roster   roster.Verifier
	Location *time.Location
	Now      func() time.Time
	Logger   *log.Logger
}

// RouteRequest is the cookie triple plus entry modifiers.
type RouteRequest struct {
	Code        string
	Session     string
	Token       string
	Override    bool
	ResumeAfter string
}

// Decision is the outcome of a routing pass. Exactly one of
// RedirectURL, DeniedReason, or PendingState is set.
type Decision struct {
	RedirectURL  string `json:"redirect_url,omitempty"`
	DeniedReason string `json:"denied_reason,omitempty"`
	PendingState string `json:"pending_state,omitempty"`
	ReenterToken bool   `json:"reenter_token,omitempty"`
	FirstLogin   bool   `json:"first_login"`
}

// routeState accumulates loaded inputs. Steps receive it by value and
// return an updated copy.
type routeState struct {
	req          RouteRequest
	code         string
	session      int
	cohort       domain.ProjectCohort
	cohortCfg    config.Cohort
	cfg          *config.Config
	organization domain.Organization
	participant  domain.Participant
	firstLogin   bool
	rosterInfo   roster.Info
	allPD        []domain.ParticipantData
	cohortPD     []domain.ParticipantData
	survey       config.Survey
	link         string
	stateParams  url.Values
	pending      string
}

type step struct {
	name string
	fn   func(context.Context, routeState) (routeState, error)
}

func (r *Router) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Router) location() *time.Location {
	if r.Location != nil {
		return r.Location
	}
	return time.Local
}

func (r *Router) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}

// Route runs the full pipeline. Validation denials come back inside the
// Decision; anything else is an operator-visible error.
func (r *Router) Route(ctx context.Context, req RouteRequest) (Decision, error) {
	st := routeState{req: req, stateParams: url.Values{}}
	steps := []step{
		{"parse entry", r.parseEntry},
		{"resolve cohort", r.resolveCohort},
		{"verify roster", r.verifyRoster},
		{"load participant data", r.loadParticipantData},
		{"gate entry", r.gateEntry},
		{"run presurvey states", r.runStates},
		{"resolve survey link", r.resolveLink},
	}
	for _, s := range steps {
		next, err := s.fn(ctx, st)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				r.appendEvent(ctx, "portal.denied", st, events.EventPayload{"step": s.name, "reason": ve.Reason})
				return Decision{DeniedReason: ve.Reason, ReenterToken: ve.Reenter, FirstLogin: st.firstLogin}, nil
			}
			return Decision{}, fmt.Errorf("%s: %w", s.name, err)
		}
		st = next
		if st.pending != "" {
			return Decision{PendingState: st.pending, FirstLogin: st.firstLogin}, nil
		}
	}
	if _, err := r.Engine.RecordParticipantData(ctx, domain.ParticipantData{
		ParticipantID:   st.participant.UID,
		Key:             domain.PDKeyLastLogin,
		Value:           r.now().UTC().Format(time.RFC3339),
		ProjectCohortID: &st.cohort.UID,
	}, "portal"); err != nil {
		r.logger().Printf("record last_login: %v", err)
	}
	r.appendEvent(ctx, "portal.routed", st, events.EventPayload{"session": st.session})
	return Decision{RedirectURL: r.buildRedirect(st), FirstLogin: st.firstLogin}, nil
}

// appendEvent journals a routing outcome. Best effort: a journaling
// failure never changes the participant's decision.
func (r *Router) appendEvent(ctx context.Context, evtType string, st routeState, payload events.EventPayload) {
	if err := r.Engine.Events.AppendOne(ctx, evtType, st.cohort.UID, "participant", st.participant.UID, "portal", payload); err != nil {
		r.logger().Printf("append %s: %v", evtType, err)
	}
}

// parseEntry validates the cookie triple. The code cookie is mandatory
// and may itself carry a trailing session ordinal, which wins only when
// the session cookie is absent.
func (r *Router) parseEntry(_ context.Context, st routeState) (routeState, error) {
	if st.req.Code == "" {
		return st, validation("code cookie missing")
	}
	if err := ValidateToken(st.req.Token); err != nil {
		return st, err
	}
	code, codeSession, err := ParseCode(st.req.Code)
	if err != nil {
		return st, err
	}
	session, err := ParseSessionCookie(st.req.Session)
	if err != nil {
		return st, err
	}
	if st.req.Session == "" && codeSession > 0 {
		session = codeSession
	}
	st.code = code
	st.session = session
	return st, nil
}

// resolveCohort looks the code up, then fetches the program config and
// the participant concurrently and joins before proceeding.
func (r *Router) resolveCohort(ctx context.Context, st routeState) (routeState, error) {
	cohort, err := r.Repo.GetProjectCohortByCode(ctx, st.code)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return st, validation("code not recognized")
		}
		return st, err
	}
	st.cohort = cohort

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cfg, err := r.Programs.Get(gctx, cohort.ProgramLabel)
		if err != nil {
			return fmt.Errorf("program %s: %w", cohort.ProgramLabel, err)
		}
		st.cfg = cfg
		return nil
	})
	g.Go(func() error {
		org, err := r.getOrganization(gctx, cohort.OrganizationID)
		if err != nil {
			return fmt.Errorf("organization %s: %w", cohort.OrganizationID, err)
		}
		st.organization = org
		return nil
	})
	if err := g.Wait(); err != nil {
		return st, err
	}

	cohortCfg, ok := st.cfg.Cohort(cohort.CohortLabel)
	if !ok {
		return st, fmt.Errorf("program %s has no cohort %s", cohort.ProgramLabel, cohort.CohortLabel)
	}
	st.cohortCfg = cohortCfg
	if err := ValidateSession(st.session, len(st.cfg.Surveys)); err != nil {
		return st, err
	}
	survey, _ := st.cfg.SurveyByOrdinal(st.session)
	st.survey = survey

	p, firstLogin, err := r.Engine.EnsureParticipant(ctx, st.req.Token, cohort.OrganizationID, nil, "portal")
	if err != nil {
		return st, err
	}
	st.participant = p
	st.firstLogin = firstLogin
	return st, nil
}

// verifyRoster checks rostered programs against the external roster. A
// missing entry sends the participant back to token entry; an identity
// mismatch against the local participant is fatal.
func (r *Router) verifyRoster(ctx context.Context, st routeState) (routeState, error) {
	if !st.cfg.Rostered() {
		return st, nil
	}
	info, err := r.Roster.Lookup(ctx, st.code, st.req.Token)
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			return st, &ValidationError{Reason: "token not found on roster", Reenter: true}
		}
		return st, err
	}
	if st.participant.ExternalID != nil && *st.participant.ExternalID != "" &&
		info.ParticipantID != "" && *st.participant.ExternalID != info.ParticipantID {
		err := &IntegrityError{
			Participant: st.participant.UID,
			Local:       *st.participant.ExternalID,
			External:    info.ParticipantID,
		}
		r.logger().Printf("FATAL %v", err)
		return st, err
	}
	st.rosterInfo = info
	return st, nil
}

// getOrganization prefers the cache; organizations are immutable once
// created so cached copies never go stale.
func (r *Router) getOrganization(ctx context.Context, uid string) (domain.Organization, error) {
	if r.Orgs != nil {
		return r.Orgs.Get(ctx, uid)
	}
	return r.Repo.GetOrganization(ctx, uid)
}

func (r *Router) loadParticipantData(ctx context.Context, st routeState) (routeState, error) {
	pds, err := r.Repo.ListParticipantData(ctx, st.participant.UID)
	if err != nil {
		return st, err
	}
	st.allPD = pds
	st.cohortPD = filterCohortPD(pds, st.cohort.UID)
	return st, nil
}
