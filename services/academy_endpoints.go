package services

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
)

type AcademyEndpoints struct {
	repo *repository.GORMRepository
}

func NewAcademyEndpoints(repo *repository.GORMRepository) *AcademyEndpoints {
	return &AcademyEndpoints{repo: repo}
}

var academyStaff = []string{models.RoleOwner, models.RoleAdmin, models.RoleTrainer}

func (e *AcademyEndpoints) RegisterRoutes(r chi.Router) {
	staff := RequireRole(academyStaff...)

	r.Route("/academy", func(r chi.Router) {
		r.Get("/courses", e.ListCoursesHandler)
		r.Get("/courses/slug/{slug}", e.GetCourseBySlugHandler)
		r.Get("/courses/{id}", e.GetCourseHandler)
		r.Get("/courses/{id}/prerequisites", e.MissingPrerequisitesHandler)
		r.Post("/courses/{id}/enroll", e.EnrollHandler)
		r.Get("/leaderboard", e.LeaderboardHandler)

		r.Get("/enrollments", e.MyEnrollmentsHandler)
		r.Get("/enrollments/{id}", e.GetEnrollmentHandler)
		r.Patch("/enrollments/{id}/progress", e.UpdateProgressHandler)
		r.Post("/enrollments/{id}/drop", e.DropEnrollmentHandler)
		r.Get("/enrollments/{id}/completions", e.ListCompletionsHandler)
		r.Post("/enrollments/{id}/topics/{topicID}/complete", e.CompleteTopicHandler)
		r.Get("/enrollments/{id}/graduation", e.CheckGraduationHandler)
		r.Post("/enrollments/{id}/capstone", e.SubmitCapstoneHandler)

		r.Group(func(r chi.Router) {
			r.Use(staff)
			r.Post("/courses", e.CreateCourseHandler)
			r.Patch("/courses/{id}", e.UpdateCourseHandler)
			r.Delete("/courses/{id}", e.DeleteCourseHandler)
			r.Post("/courses/{id}/publish", e.TogglePublishHandler)
			r.Post("/courses/{id}/duplicate", e.DuplicateCourseHandler)
			r.Get("/courses/{id}/enrollments", e.CourseEnrollmentsHandler)
			r.Get("/courses/{id}/analytics", e.CourseAnalyticsHandler)
			r.Post("/courses/{id}/modules", e.CreateModuleHandler)
			r.Post("/courses/{id}/modules/reorder", e.ReorderModulesHandler)
			r.Post("/modules/{id}/topics", e.CreateTopicHandler)
			r.Post("/modules/{id}/topics/reorder", e.ReorderTopicsHandler)
			r.Post("/enrollments/{id}/graduate", e.GraduateHandler)
			r.Post("/capstones/{id}/review", e.ReviewCapstoneHandler)
		})
	})
}

type CreateCourseRequest struct {
	Title                 string   `json:"title" validate:"required,max=255"`
	Slug                  string   `json:"slug" validate:"omitempty,max=255"`
	Subtitle              string   `json:"subtitle" validate:"max=500"`
	Description           string   `json:"description"`
	SkillLevel            string   `json:"skill_level" validate:"omitempty,oneof=beginner intermediate advanced"`
	PrerequisiteCourseIDs []string `json:"prerequisite_course_ids" validate:"omitempty,dive,uuid"`
	EstimatedHours        int      `json:"estimated_duration_hours" validate:"gte=0"`
	Price                 float64  `json:"price" validate:"gte=0"`
}

type UpdateCourseRequest struct {
	Title                 *string   `json:"title" validate:"omitempty,max=255"`
	Slug                  *string   `json:"slug" validate:"omitempty,max=255"`
	Subtitle              *string   `json:"subtitle" validate:"omitempty,max=500"`
	Description           *string   `json:"description"`
	SkillLevel            *string   `json:"skill_level" validate:"omitempty,oneof=beginner intermediate advanced"`
	PrerequisiteCourseIDs *[]string `json:"prerequisite_course_ids" validate:"omitempty,dive,uuid"`
	EstimatedHours        *int      `json:"estimated_duration_hours" col:"estimated_hours" validate:"omitempty,gte=0"`
	Price                 *float64  `json:"price" validate:"omitempty,gte=0"`
}

type CreateModuleRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description"`
}

type CreateTopicRequest struct {
	Title                string   `json:"title" validate:"required,max=255"`
	ContentType          string   `json:"content_type" validate:"omitempty,oneof=video reading quiz assignment lab"`
	ContentURL           string   `json:"content_url" validate:"omitempty,url"`
	EstimatedMinutes     int      `json:"estimated_minutes" validate:"gte=0"`
	PrerequisiteTopicIDs []string `json:"prerequisite_topic_ids" validate:"omitempty,dive,uuid"`
	XPReward             int      `json:"xp_reward" validate:"gte=0"`
}

type ReorderRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

type EnrollRequest struct {
	PaymentType   string  `json:"payment_type" validate:"required,oneof=stripe free scholarship sponsored"`
	PaymentAmount float64 `json:"payment_amount" validate:"gte=0"`
	PaymentID     string  `json:"payment_id" validate:"max=255"`
}

type UpdateProgressRequest struct {
	CurrentModuleID *string `json:"current_module_id" validate:"omitempty,uuid"`
	CurrentTopicID  *string `json:"current_topic_id" validate:"omitempty,uuid"`
}

type CompleteTopicRequest struct {
	TimeSpentSeconds int `json:"time_spent_seconds" validate:"gte=0"`
}

type SubmitCapstoneRequest struct {
	RepositoryURL string `json:"repository_url" validate:"required,url,max=500"`
}

type ReviewCapstoneRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected revision_requested"`
	Grade  *int   `json:"grade" validate:"omitempty,gte=0,lte=100"`
}

func isAcademyStaff(u *models.UserProfile) bool {
	return models.Contains(academyStaff, u.Role)
}

// courseSlug turns a title into a URL slug without the random suffix used
// for organisations; course slugs are unique per org and checked on insert.
func courseSlug(title string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(title), "-"), "-")
}

// Courses

func (e *AcademyEndpoints) ListCoursesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	publishedOnly := !isAcademyStaff(user) || r.URL.Query().Get("published") == "true"
	courses, err := e.repo.ListCourses(r.Context(), user.OrgID, publishedOnly)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"courses": courses})
}

func (e *AcademyEndpoints) GetCourseHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	c, err := e.repo.GetCourse(r.Context(), user.OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if !c.IsPublished && !isAcademyStaff(user) {
		handleError(w, r, repository.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (e *AcademyEndpoints) GetCourseBySlugHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	c, err := e.repo.GetCourseBySlug(r.Context(), user.OrgID, chi.URLParam(r, "slug"), isAcademyStaff(user))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (e *AcademyEndpoints) CreateCourseHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateCourseRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	slug := courseSlug(req.Slug)
	if slug == "" {
		slug = courseSlug(req.Title)
	}
	if slug == "" {
		writeError(w, http.StatusBadRequest, "title must contain letters or digits")
		return
	}
	c := &models.Course{
		OrgID:                 user.OrgID,
		Slug:                  slug,
		Title:                 req.Title,
		Subtitle:              req.Subtitle,
		Description:           req.Description,
		SkillLevel:            req.SkillLevel,
		PrerequisiteCourseIDs: req.PrerequisiteCourseIDs,
		EstimatedHours:        req.EstimatedHours,
		Price:                 req.Price,
		CreatedBy:             user.ID,
	}
	if err := e.repo.CreateCourse(r.Context(), c); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (e *AcademyEndpoints) UpdateCourseHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateCourseRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Slug != nil {
		s := courseSlug(*req.Slug)
		req.Slug = &s
	}
	changes := changeSet(&req)
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	c, err := e.repo.UpdateCourse(r.Context(), currentUser(r).OrgID, urlID(r), changes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (e *AcademyEndpoints) DeleteCourseHandler(w http.ResponseWriter, r *http.Request) {
	if err := e.repo.DeleteCourse(r.Context(), currentUser(r).OrgID, urlID(r)); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *AcademyEndpoints) TogglePublishHandler(w http.ResponseWriter, r *http.Request) {
	c, err := e.repo.TogglePublish(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (e *AcademyEndpoints) DuplicateCourseHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	c, err := e.repo.DuplicateCourse(r.Context(), user.OrgID, urlID(r), user.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (e *AcademyEndpoints) CourseEnrollmentsHandler(w http.ResponseWriter, r *http.Request) {
	out, err := e.repo.ListCourseEnrollments(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"enrollments": out})
}

func (e *AcademyEndpoints) CourseAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	a, err := e.repo.CourseAnalytics(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Outline

func (e *AcademyEndpoints) CreateModuleHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateModuleRequest
	if !decode(w, r, &req) {
		return
	}
	m := &models.CourseModule{
		OrgID:       currentUser(r).OrgID,
		CourseID:    urlID(r),
		Title:       req.Title,
		Description: req.Description,
	}
	if err := e.repo.CreateModule(r.Context(), m); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (e *AcademyEndpoints) ReorderModulesHandler(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decode(w, r, &req) {
		return
	}
	if err := e.repo.ReorderModules(r.Context(), currentUser(r).OrgID, urlID(r), req.IDs); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Modules reordered"})
}

func (e *AcademyEndpoints) CreateTopicHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateTopicRequest
	if !decode(w, r, &req) {
		return
	}
	t := &models.ModuleTopic{
		OrgID:                currentUser(r).OrgID,
		ModuleID:             urlID(r),
		Title:                req.Title,
		ContentType:          req.ContentType,
		ContentURL:           req.ContentURL,
		EstimatedMinutes:     req.EstimatedMinutes,
		PrerequisiteTopicIDs: req.PrerequisiteTopicIDs,
		XPReward:             req.XPReward,
	}
	if err := e.repo.CreateTopic(r.Context(), t); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (e *AcademyEndpoints) ReorderTopicsHandler(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decode(w, r, &req) {
		return
	}
	if err := e.repo.ReorderTopics(r.Context(), currentUser(r).OrgID, urlID(r), req.IDs); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Topics reordered"})
}

// Enrollments

func (e *AcademyEndpoints) MissingPrerequisitesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	missing, err := e.repo.MissingPrerequisites(r.Context(), user.OrgID, user.ID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"met": len(missing) == 0, "missing": missing})
}

func (e *AcademyEndpoints) EnrollHandler(w http.ResponseWriter, r *http.Request) {
	var req EnrollRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	en := &models.Enrollment{
		OrgID:         user.OrgID,
		UserID:        user.ID,
		CourseID:      urlID(r),
		PaymentType:   req.PaymentType,
		PaymentAmount: req.PaymentAmount,
		PaymentID:     req.PaymentID,
	}
	if err := e.repo.Enroll(r.Context(), en); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, en)
}

func (e *AcademyEndpoints) MyEnrollmentsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	out, err := e.repo.ListEnrollmentsForUser(r.Context(), user.OrgID, user.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"enrollments": out})
}

// enrollment loads the enrollment in the URL. Students only see their own.
func (e *AcademyEndpoints) enrollment(w http.ResponseWriter, r *http.Request) (*models.Enrollment, bool) {
	user := currentUser(r)
	en, err := e.repo.GetEnrollment(r.Context(), user.OrgID, urlID(r))
	if err == nil && en.UserID != user.ID && !isAcademyStaff(user) {
		err = repository.ErrNotFound
	}
	if err != nil {
		handleError(w, r, err)
		return nil, false
	}
	return en, true
}

func (e *AcademyEndpoints) GetEnrollmentHandler(w http.ResponseWriter, r *http.Request) {
	en, ok := e.enrollment(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, en)
}

func (e *AcademyEndpoints) UpdateProgressHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateProgressRequest
	if !decode(w, r, &req) {
		return
	}
	en, ok := e.enrollment(w, r)
	if !ok {
		return
	}
	out, err := e.repo.UpdateProgress(r.Context(), en.OrgID, en.ID, req.CurrentModuleID, req.CurrentTopicID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (e *AcademyEndpoints) DropEnrollmentHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	en, err := e.repo.DropEnrollment(r.Context(), user.OrgID, urlID(r), user.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, en)
}

func (e *AcademyEndpoints) ListCompletionsHandler(w http.ResponseWriter, r *http.Request) {
	en, ok := e.enrollment(w, r)
	if !ok {
		return
	}
	out, err := e.repo.ListTopicCompletions(r.Context(), en.OrgID, en.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"completions": out})
}

func (e *AcademyEndpoints) CompleteTopicHandler(w http.ResponseWriter, r *http.Request) {
	var req CompleteTopicRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	tc, en, err := e.repo.CompleteTopic(r.Context(), user.OrgID, urlID(r), chi.URLParam(r, "topicID"), user.ID, req.TimeSpentSeconds)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"completion": tc, "enrollment": en})
}

func (e *AcademyEndpoints) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	out, err := e.repo.Leaderboard(r.Context(), currentUser(r).OrgID, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"leaderboard": out})
}

// Graduation

func (e *AcademyEndpoints) CheckGraduationHandler(w http.ResponseWriter, r *http.Request) {
	en, ok := e.enrollment(w, r)
	if !ok {
		return
	}
	el, err := e.repo.CheckGraduation(r.Context(), en.OrgID, en.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, el)
}

func (e *AcademyEndpoints) GraduateHandler(w http.ResponseWriter, r *http.Request) {
	en, err := e.repo.ProcessGraduation(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, en)
}

func (e *AcademyEndpoints) SubmitCapstoneHandler(w http.ResponseWriter, r *http.Request) {
	var req SubmitCapstoneRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	c := &models.CapstoneSubmission{
		OrgID:         user.OrgID,
		EnrollmentID:  urlID(r),
		StudentID:     user.ID,
		RepositoryURL: req.RepositoryURL,
	}
	if err := e.repo.SubmitCapstone(r.Context(), c); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (e *AcademyEndpoints) ReviewCapstoneHandler(w http.ResponseWriter, r *http.Request) {
	var req ReviewCapstoneRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	c, err := e.repo.ReviewCapstone(r.Context(), user.OrgID, urlID(r), user.ID, req.Status, req.Grade)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
