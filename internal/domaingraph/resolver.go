package domaingraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"memberhub/internal/domaingraph/metrics"
	"memberhub/internal/recordstore"
	"memberhub/pkg/email"
	"memberhub/pkg/platform/sentinel"
)

var tracer = otel.Tracer("memberhub/domaingraph")

// Query identifies the Contact anchoring the graph. ContactID wins over
// Email when both are set.
type Query struct {
	ContactID string
	Email     string
}

// Options selects the resolution depth.
type Options struct {
	// Minimal skips Education/Institution/Program linkage and Team/Cohort
	// expansion; only the Contact, its participations, and the email-domain
	// institution heuristic are fetched.
	Minimal bool
}

// Resolver fetches the domain graph for a Contact. Sub-fetches are isolated:
// any piece may fail and nil out without failing the resolution; only a
// missing Contact is a hard error.
type Resolver struct {
	store recordstore.Store

	// majorAlias gates Program resolution: only institutions whose name
	// contains the alias surface a major. Matched by substring because the
	// linkage predates stable institution ids in the store.
	majorAlias string

	instCache *InstitutionCache
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger sets a logger for degraded sub-fetches.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithInstitutionCache enables the redis read-through cache for the
// email-domain heuristic.
func WithInstitutionCache(cache *InstitutionCache) Option {
	return func(r *Resolver) {
		r.instCache = cache
	}
}

// WithMajorAlias sets the major-relevant institution alias.
func WithMajorAlias(alias string) Option {
	return func(r *Resolver) {
		r.majorAlias = alias
	}
}

// New creates a Resolver over the given record store.
func New(store recordstore.Store, opts ...Option) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	r := &Resolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve fetches the graph anchored on the queried Contact. It returns an
// error only when the Contact itself cannot be resolved.
func (r *Resolver) Resolve(ctx context.Context, q Query, opts Options) (*Graph, error) {
	mode := "full"
	if opts.Minimal {
		mode = "minimal"
	}
	ctx, span := tracer.Start(ctx, "domaingraph.Resolve")
	span.SetAttributes(attribute.String("resolve.mode", mode))
	defer span.End()

	start := time.Now()
	defer func() {
		r.metrics.ObserveResolveLatency(mode, time.Since(start))
	}()

	contact, err := r.resolveContact(ctx, q)
	if err != nil {
		return nil, err
	}

	graph := &Graph{
		Contact: contact,
		Teams:   make(map[string]*Team),
		Cohorts: make(map[string]*Cohort),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		graph.Participations = r.fetchParticipations(gctx, contact.ID)
		return nil
	})

	if !opts.Minimal {
		g.Go(func() error {
			r.resolveEducationChain(gctx, graph)
			return nil
		})
	}

	// Sub-fetches swallow their own errors, so Wait cannot fail; the join
	// still bounds the request to the slowest branch.
	_ = g.Wait()

	if graph.Institution == nil {
		r.applyInstitutionHeuristic(ctx, graph)
	}

	if !opts.Minimal {
		r.expandTeamsAndCohorts(ctx, graph)
	}

	return graph, nil
}

func (r *Resolver) resolveContact(ctx context.Context, q Query) (*Contact, error) {
	if q.ContactID != "" {
		record, err := r.store.GetByID(ctx, recordstore.EntityContact, q.ContactID)
		if err != nil {
			return nil, fmt.Errorf("resolve contact %s: %w", q.ContactID, err)
		}
		return contactFromRecord(record), nil
	}

	normalized := email.Normalize(q.Email)
	record, err := r.store.FindOne(ctx, recordstore.EntityContact, recordstore.Eq("email", normalized))
	if err != nil {
		return nil, fmt.Errorf("resolve contact by email: %w", err)
	}
	return contactFromRecord(record), nil
}

// resolveEducationChain fetches Education, then its Institution, then the
// Program when the institution is major-relevant. The chain is inherently
// sequential; it runs concurrently with the participation fetch.
func (r *Resolver) resolveEducationChain(ctx context.Context, graph *Graph) {
	contact := graph.Contact
	if len(contact.EducationIDs) == 0 {
		return
	}

	record, err := r.store.GetByID(ctx, recordstore.EntityEducation, contact.EducationIDs[0])
	if err != nil {
		r.degrade(ctx, "education", err)
		return
	}
	graph.Education = educationFromRecord(record)

	if graph.Education.InstitutionID == "" {
		return
	}
	instRecord, err := r.store.GetByID(ctx, recordstore.EntityInstitution, graph.Education.InstitutionID)
	if err != nil {
		r.degrade(ctx, "institution", err)
		return
	}
	graph.Institution = institutionFromRecord(instRecord)

	if graph.Education.MajorID == "" || !r.MajorRelevant(graph.Institution) {
		return
	}
	programRecord, err := r.store.GetByID(ctx, recordstore.EntityProgram, graph.Education.MajorID)
	if err != nil {
		r.degrade(ctx, "program", err)
		return
	}
	graph.Program = programFromRecord(programRecord)
}

func (r *Resolver) fetchParticipations(ctx context.Context, contactID string) []Participation {
	records, err := r.store.FindMany(ctx, recordstore.EntityParticipation, recordstore.Eq("contactId", contactID))
	if err != nil {
		r.degrade(ctx, "participations", err)
		return nil
	}
	participations := make([]Participation, 0, len(records))
	for i := range records {
		participations = append(participations, participationFromRecord(&records[i]))
	}
	return participations
}

// expandTeamsAndCohorts fetches each unique Team and Cohort referenced by
// the participations, deduplicated before fetch, each in its own goroutine.
func (r *Resolver) expandTeamsAndCohorts(ctx context.Context, graph *Graph) {
	teamIDs := make(map[string]struct{})
	cohortIDs := make(map[string]struct{})
	for _, p := range graph.Participations {
		if p.TeamID != "" {
			teamIDs[p.TeamID] = struct{}{}
		}
		if p.CohortID != "" {
			cohortIDs[p.CohortID] = struct{}{}
		}
	}
	if len(teamIDs) == 0 && len(cohortIDs) == 0 {
		return
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for teamID := range teamIDs {
		g.Go(func() error {
			record, err := r.store.GetByID(gctx, recordstore.EntityTeam, teamID)
			if err != nil {
				r.degrade(gctx, "team", err)
				return nil
			}
			mu.Lock()
			graph.Teams[teamID] = teamFromRecord(record)
			mu.Unlock()
			return nil
		})
	}
	for cohortID := range cohortIDs {
		g.Go(func() error {
			record, err := r.store.GetByID(gctx, recordstore.EntityCohort, cohortID)
			if err != nil {
				r.degrade(gctx, "cohort", err)
				return nil
			}
			mu.Lock()
			graph.Cohorts[cohortID] = cohortFromRecord(record)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

// applyInstitutionHeuristic suggests an institution by the contact's email
// domain when no Education linkage produced one. The result is marked
// suggested so the caller can ask for confirmation.
func (r *Resolver) applyInstitutionHeuristic(ctx context.Context, graph *Graph) {
	domain := email.Domain(graph.Contact.Email)
	if domain == "" {
		return
	}

	if cached, err := r.instCache.Get(ctx, domain); err == nil && cached != nil {
		r.metrics.IncCacheHit()
		r.metrics.IncHeuristicMatch()
		graph.Institution = cached
		graph.InstitutionSuggested = true
		return
	}
	r.metrics.IncCacheMiss()

	record, err := r.store.FindOne(ctx, recordstore.EntityInstitution, recordstore.Eq("emailDomains", domain))
	if err != nil {
		if !errors.Is(err, sentinel.ErrRecordNotFound) {
			r.degrade(ctx, "institution_heuristic", err)
		}
		return
	}
	inst := institutionFromRecord(record)
	graph.Institution = inst
	graph.InstitutionSuggested = true
	r.metrics.IncHeuristicMatch()

	if err := r.instCache.Put(ctx, domain, inst); err != nil && r.logger != nil {
		r.logger.DebugContext(ctx, "institution cache write failed", "error", err)
	}
}

// MajorRelevant reports whether the institution's name matches the
// configured alias (case-insensitive substring).
func (r *Resolver) MajorRelevant(inst *Institution) bool {
	if inst == nil || r.majorAlias == "" {
		return false
	}
	return strings.Contains(strings.ToLower(inst.Name), strings.ToLower(r.majorAlias))
}

func (r *Resolver) degrade(ctx context.Context, piece string, err error) {
	r.metrics.IncSubFetchFailure(piece)
	if r.logger != nil {
		r.logger.WarnContext(ctx, "sub-fetch degraded to nil",
			"piece", piece,
			"error", err,
		)
	}
}
