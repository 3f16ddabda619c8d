package services

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/integrations"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
	ws "github.com/krshsl/staffline/websocket"
	"golang.org/x/sync/errgroup"
)

// ATSEndpoints serves accounts, jobs, candidates, submissions, interviews,
// offers, placements and timesheets.
type ATSEndpoints struct {
	repo     *repository.GORMRepository
	hub      *ws.Hub
	registry *integrations.Registry
	matcher  *MatchService
}

func NewATSEndpoints(repo *repository.GORMRepository, hub *ws.Hub, registry *integrations.Registry, matcher *MatchService) *ATSEndpoints {
	return &ATSEndpoints{
		repo:     repo,
		hub:      hub,
		registry: registry,
		matcher:  matcher,
	}
}

func (e *ATSEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/ats", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", e.ListAccountsHandler)
			r.Post("/", e.CreateAccountHandler)
			r.Get("/{id}/submissions", e.ListAccountSubmissionsHandler)
			r.Get("/{id}/placements", e.ListAccountPlacementsHandler)
		})

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", e.ListJobsHandler)
			r.Post("/", e.CreateJobHandler)
			r.Get("/{id}", e.GetJobHandler)
			r.Patch("/{id}", e.UpdateJobHandler)
			r.Get("/{id}/metrics", e.JobMetricsHandler)
		})

		r.Route("/candidates", func(r chi.Router) {
			r.Get("/", e.SearchCandidatesHandler)
			r.Post("/", e.CreateCandidateHandler)
			r.Get("/{id}", e.GetCandidateHandler)
			r.Patch("/{id}", e.UpdateCandidateHandler)
			r.Post("/{id}/link", e.LinkCandidateHandler)
		})

		e.registerSubmissionRoutes(r)
		e.registerInterviewRoutes(r)
		e.registerOfferRoutes(r)
		e.registerPlacementRoutes(r)
	})
}

type CreateAccountRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Industry string `json:"industry" validate:"max=100"`
}

func (e *ATSEndpoints) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := e.repo.ListAccounts(r.Context(), currentUser(r).OrgID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"accounts": accounts})
}

func (e *ATSEndpoints) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}
	account := &models.Account{
		OrgID:    currentUser(r).OrgID,
		Name:     strings.TrimSpace(req.Name),
		Industry: req.Industry,
		Status:   "active",
	}
	if err := e.repo.CreateAccount(r.Context(), account); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// Jobs

type CreateJobRequest struct {
	AccountID        *string    `json:"account_id" validate:"omitempty,uuid"`
	Title            string     `json:"title" validate:"required,max=255"`
	Description      string     `json:"description"`
	JobType          string     `json:"job_type" validate:"required,oneof=contract contract_to_hire full_time part_time"`
	RequiredSkills   []string   `json:"required_skills"`
	NiceToHaveSkills []string   `json:"nice_to_have_skills"`
	MinExperience    *int       `json:"min_experience_years" validate:"omitempty,gte=0,lte=50"`
	MaxExperience    *int       `json:"max_experience_years" validate:"omitempty,gte=0,lte=50"`
	VisaRequirements []string   `json:"visa_requirements"`
	Location         string     `json:"location" validate:"max=255"`
	IsRemote         bool       `json:"is_remote"`
	HybridDays       *int       `json:"hybrid_days" validate:"omitempty,gte=0,lte=5"`
	RateMin          *float64   `json:"rate_min" validate:"omitempty,gte=0"`
	RateMax          *float64   `json:"rate_max" validate:"omitempty,gte=0"`
	RateType         string     `json:"rate_type" validate:"omitempty,oneof=hourly daily weekly monthly annual"`
	Currency         string     `json:"currency" validate:"omitempty,len=3"`
	PositionsCount   int        `json:"positions_count" validate:"omitempty,gte=1"`
	Status           string     `json:"status" validate:"omitempty,oneof=draft open on_hold filled cancelled closed"`
	Urgency          string     `json:"urgency" validate:"omitempty,oneof=low medium high critical"`
	TargetFillDate   *time.Time `json:"target_fill_date"`
	OwnerID          *string    `json:"owner_id" validate:"omitempty,uuid"`
}

type UpdateJobRequest struct {
	Title            *string    `json:"title" validate:"omitempty,max=255"`
	Description      *string    `json:"description"`
	RequiredSkills   *[]string  `json:"required_skills"`
	NiceToHaveSkills *[]string  `json:"nice_to_have_skills"`
	MinExperience    *int       `json:"min_experience_years" col:"min_experience" validate:"omitempty,gte=0,lte=50"`
	MaxExperience    *int       `json:"max_experience_years" col:"max_experience" validate:"omitempty,gte=0,lte=50"`
	VisaRequirements *[]string  `json:"visa_requirements"`
	Location         *string    `json:"location" validate:"omitempty,max=255"`
	IsRemote         *bool      `json:"is_remote"`
	RateMin          *float64   `json:"rate_min" validate:"omitempty,gte=0"`
	RateMax          *float64   `json:"rate_max" validate:"omitempty,gte=0"`
	PositionsCount   *int       `json:"positions_count" validate:"omitempty,gte=1"`
	Status           *string    `json:"status" validate:"omitempty,oneof=draft open on_hold filled cancelled closed"`
	Urgency          *string    `json:"urgency" validate:"omitempty,oneof=low medium high critical"`
	TargetFillDate   *time.Time `json:"target_fill_date"`
	OwnerID          *string    `json:"owner_id" validate:"omitempty,uuid"`
}

func (e *ATSEndpoints) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	page := pageFromQuery(r, 50, 100)
	jobs, total, err := e.repo.ListJobs(r.Context(), currentUser(r).OrgID, repository.JobFilter{
		Page:      page,
		Status:    r.URL.Query().Get("status"),
		AccountID: r.URL.Query().Get("account_id"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: jobs, Total: total, Limit: page.Limit, Offset: page.Offset})
}

func (e *ATSEndpoints) GetJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := e.repo.GetJob(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (e *ATSEndpoints) CreateJobHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)

	job := &models.Job{
		OrgID:            user.OrgID,
		AccountID:        req.AccountID,
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		JobType:          req.JobType,
		RequiredSkills:   req.RequiredSkills,
		NiceToHaveSkills: req.NiceToHaveSkills,
		MinExperience:    req.MinExperience,
		MaxExperience:    req.MaxExperience,
		VisaRequirements: req.VisaRequirements,
		Location:         req.Location,
		IsRemote:         req.IsRemote,
		HybridDays:       req.HybridDays,
		RateMin:          req.RateMin,
		RateMax:          req.RateMax,
		RateType:         req.RateType,
		Currency:         req.Currency,
		PositionsCount:   req.PositionsCount,
		Status:           req.Status,
		Urgency:          req.Urgency,
		TargetFillDate:   req.TargetFillDate,
		OwnerID:          user.ID,
		CreatedBy:        user.ID,
	}
	if req.OwnerID != nil {
		job.OwnerID = *req.OwnerID
	}
	if job.Status == models.JobOpen {
		now := time.Now()
		job.PostedDate = &now
	}

	if err := e.repo.CreateJob(r.Context(), job); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (e *ATSEndpoints) UpdateJobHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateJobRequest
	if !decode(w, r, &req) {
		return
	}
	changes := changeSet(&req)
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	job, err := e.repo.UpdateJob(r.Context(), currentUser(r).OrgID, urlID(r), changes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type JobMetrics struct {
	JobID          string           `json:"job_id"`
	Submissions    map[string]int64 `json:"submissions_by_status"`
	Interviews     int64            `json:"interviews"`
	Offers         int64            `json:"offers"`
	TotalSubmitted int64            `json:"total_submissions"`
}

func (e *ATSEndpoints) JobMetricsHandler(w http.ResponseWriter, r *http.Request) {
	orgID := currentUser(r).OrgID
	jobID := urlID(r)
	if _, err := e.repo.GetJob(r.Context(), orgID, jobID); err != nil {
		handleError(w, r, err)
		return
	}

	metrics := JobMetrics{JobID: jobID}
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		counts, err := e.repo.SubmissionCountsByStatus(ctx, orgID, jobID)
		metrics.Submissions = counts
		return err
	})
	g.Go(func() error {
		n, err := e.repo.CountInterviewsForJob(ctx, orgID, jobID)
		metrics.Interviews = n
		return err
	})
	g.Go(func() error {
		n, err := e.repo.CountOffersForJob(ctx, orgID, jobID)
		metrics.Offers = n
		return err
	})
	if err := g.Wait(); err != nil {
		handleError(w, r, err)
		return
	}
	for _, n := range metrics.Submissions {
		metrics.TotalSubmitted += n
	}
	writeJSON(w, http.StatusOK, metrics)
}

// Candidates

type CreateCandidateRequest struct {
	FirstName         string   `json:"first_name" validate:"required,max=100"`
	LastName          string   `json:"last_name" validate:"required,max=100"`
	Email             string   `json:"email" validate:"required,email"`
	Phone             string   `json:"phone" validate:"max=50"`
	Skills            []string `json:"skills" validate:"required,min=1,dive,required"`
	ExperienceYears   *int     `json:"experience_years" validate:"omitempty,gte=0,lte=50"`
	VisaStatus        string   `json:"visa_status" validate:"required,oneof=USC GC GC_EAD H1B H4_EAD L2_EAD OPT CPT TN other"`
	Availability      string   `json:"availability" validate:"required,oneof=immediate 2_weeks 1_month"`
	HourlyRate        *float64 `json:"hourly_rate" validate:"omitempty,gte=0"`
	Location          string   `json:"location" validate:"max=255"`
	WillingToRelocate bool     `json:"willing_to_relocate"`
	ResumeURL         string   `json:"resume_url" validate:"omitempty,url"`
	AccountID         *string  `json:"account_id" validate:"omitempty,uuid"`
	JobID             *string  `json:"job_id" validate:"omitempty,uuid"`
}

type UpdateCandidateRequest struct {
	FirstName         *string   `json:"first_name" validate:"omitempty,max=100"`
	LastName          *string   `json:"last_name" validate:"omitempty,max=100"`
	Email             *string   `json:"email" validate:"omitempty,email"`
	Phone             *string   `json:"phone" validate:"omitempty,max=50"`
	Skills            *[]string `json:"skills" col:"candidate_skills" validate:"omitempty,min=1"`
	ExperienceYears   *int      `json:"experience_years" col:"candidate_experience_years" validate:"omitempty,gte=0,lte=50"`
	VisaStatus        *string   `json:"visa_status" col:"candidate_current_visa" validate:"omitempty,oneof=USC GC GC_EAD H1B H4_EAD L2_EAD OPT CPT TN other"`
	Availability      *string   `json:"availability" col:"candidate_availability" validate:"omitempty,oneof=immediate 2_weeks 1_month"`
	HourlyRate        *float64  `json:"hourly_rate" col:"candidate_hourly_rate" validate:"omitempty,gte=0"`
	Location          *string   `json:"location" col:"candidate_location" validate:"omitempty,max=255"`
	WillingToRelocate *bool     `json:"willing_to_relocate" col:"candidate_willing_to_relocate"`
	ResumeURL         *string   `json:"resume_url" col:"candidate_resume_url" validate:"omitempty,url"`
	Status            *string   `json:"status" col:"candidate_status" validate:"omitempty,oneof=active placed bench inactive blacklisted"`
}

type LinkCandidateRequest struct {
	AccountID string  `json:"account_id" validate:"required,uuid"`
	JobID     *string `json:"job_id" validate:"omitempty,uuid"`
}

var phoneReplacer = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// sanitizePhone strips the formatting characters people type into phone
// fields.
func sanitizePhone(phone string) string {
	return phoneReplacer.Replace(strings.TrimSpace(phone))
}

func (e *ATSEndpoints) SearchCandidatesHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	page := repository.Page{Limit: limit}.Normalize(20, 50)

	candidates, err := e.repo.SearchCandidates(r.Context(), currentUser(r).OrgID, repository.CandidateSearch{
		Query:        q.Get("query"),
		Skills:       queryList(r, "skills"),
		VisaTypes:    queryList(r, "visa_types"),
		Availability: q.Get("availability"),
		Limit:        page.Limit,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"candidates": candidates, "count": len(candidates)})
}

func (e *ATSEndpoints) GetCandidateHandler(w http.ResponseWriter, r *http.Request) {
	c, err := e.repo.GetCandidate(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (e *ATSEndpoints) CreateCandidateHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateCandidateRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)

	first := strings.TrimSpace(req.FirstName)
	last := strings.TrimSpace(req.LastName)
	status := models.CandidateActive
	c := &models.UserProfile{
		OrgID:                      user.OrgID,
		Email:                      strings.ToLower(strings.TrimSpace(req.Email)),
		FirstName:                  first,
		LastName:                   last,
		FullName:                   first + " " + last,
		Role:                       models.RoleCandidate,
		IsActive:                   true,
		CandidateStatus:            &status,
		CandidateSkills:            req.Skills,
		CandidateExperienceYears:   req.ExperienceYears,
		CandidateCurrentVisa:       &req.VisaStatus,
		CandidateAvailability:      &req.Availability,
		CandidateHourlyRate:        req.HourlyRate,
		CandidateWillingToRelocate: req.WillingToRelocate,
		CreatedBy:                  &user.ID,
	}
	if phone := sanitizePhone(req.Phone); phone != "" {
		c.Phone = &phone
	}
	if req.Location != "" {
		c.CandidateLocation = &req.Location
	}
	if req.ResumeURL != "" {
		c.CandidateResumeURL = &req.ResumeURL
	}

	sub, err := e.repo.CreateCandidate(r.Context(), c, req.AccountID, req.JobID, user.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"candidate": c, "submission": sub})
}

func (e *ATSEndpoints) UpdateCandidateHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateCandidateRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Phone != nil {
		phone := sanitizePhone(*req.Phone)
		req.Phone = &phone
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		req.Email = &email
	}
	changes := changeSet(&req)
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}

	orgID := currentUser(r).OrgID
	if req.FirstName != nil || req.LastName != nil {
		current, err := e.repo.GetCandidate(r.Context(), orgID, urlID(r))
		if err != nil {
			handleError(w, r, err)
			return
		}
		first, last := current.FirstName, current.LastName
		if req.FirstName != nil {
			first = strings.TrimSpace(*req.FirstName)
		}
		if req.LastName != nil {
			last = strings.TrimSpace(*req.LastName)
		}
		changes["full_name"] = first + " " + last
	}

	c, err := e.repo.UpdateCandidate(r.Context(), orgID, urlID(r), changes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (e *ATSEndpoints) LinkCandidateHandler(w http.ResponseWriter, r *http.Request) {
	var req LinkCandidateRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	sub, err := e.repo.LinkCandidateToAccount(r.Context(), user.OrgID, urlID(r), req.AccountID, req.JobID, user.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	slog.Info("Candidate linked to account", "candidate_id", urlID(r), "account_id", req.AccountID, "submission_id", sub.ID)
	writeJSON(w, http.StatusCreated, sub)
}
