package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/krshsl/staffline/models"
	"gorm.io/gorm"
)

const (
	defaultTopicXP   = 10
	passingGrade     = 70
	graduationTarget = 100
)

func (r *GORMRepository) ListCourses(ctx context.Context, orgID string, publishedOnly bool) ([]models.Course, error) {
	q := r.org(ctx, orgID)
	if publishedOnly {
		q = q.Where("is_published = ?", true)
	}
	var courses []models.Course
	if err := q.Order("title").Find(&courses).Error; err != nil {
		slog.Error("Failed to list courses", "error", err, "org_id", orgID)
		return nil, mapError(err)
	}
	return courses, nil
}

func (r *GORMRepository) courseWithOutline(ctx context.Context, orgID string) *gorm.DB {
	return r.org(ctx, orgID).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("module_number") }).
		Preload("Modules.Topics", func(db *gorm.DB) *gorm.DB { return db.Order("topic_number") })
}

func (r *GORMRepository) GetCourse(ctx context.Context, orgID, id string) (*models.Course, error) {
	var c models.Course
	if err := first(r.courseWithOutline(ctx, orgID).Where("id = ?", id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCourseBySlug hides unpublished courses unless includeDrafts is set.
func (r *GORMRepository) GetCourseBySlug(ctx context.Context, orgID, slug string, includeDrafts bool) (*models.Course, error) {
	q := r.courseWithOutline(ctx, orgID).Where("slug = ?", slug)
	if !includeDrafts {
		q = q.Where("is_published = ?", true)
	}
	var c models.Course
	if err := first(q, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GORMRepository) CreateCourse(ctx context.Context, c *models.Course) error {
	var n int64
	if err := r.org(ctx, c.OrgID).Model(&models.Course{}).Unscoped().Where("slug = ?", c.Slug).Count(&n).Error; err != nil {
		return mapError(err)
	}
	if n > 0 {
		return Conflict("a course with slug %q already exists", c.Slug)
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		slog.Error("Failed to create course", "error", err, "slug", c.Slug)
		return mapError(err)
	}
	slog.Info("Course created", "course_id", c.ID, "slug", c.Slug)
	return nil
}

func (r *GORMRepository) UpdateCourse(ctx context.Context, orgID, id string, changes map[string]interface{}) (*models.Course, error) {
	c, err := r.GetCourse(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if slug, ok := changes["slug"].(string); ok && slug != c.Slug {
		var n int64
		if err := r.org(ctx, orgID).Model(&models.Course{}).Unscoped().Where("slug = ?", slug).Count(&n).Error; err != nil {
			return nil, mapError(err)
		}
		if n > 0 {
			return nil, Conflict("a course with slug %q already exists", slug)
		}
	}
	if err := r.db.WithContext(ctx).Model(&models.Course{ID: c.ID}).Updates(changes).Error; err != nil {
		slog.Error("Failed to update course", "error", err, "course_id", id)
		return nil, mapError(err)
	}
	return r.GetCourse(ctx, orgID, id)
}

// TogglePublish flips the published flag. Empty courses cannot be published.
func (r *GORMRepository) TogglePublish(ctx context.Context, orgID, id string) (*models.Course, error) {
	c, err := r.GetCourse(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !c.IsPublished && c.TotalTopics == 0 {
		return nil, Invalid("a course needs at least one topic before it can be published")
	}
	return r.UpdateCourse(ctx, orgID, id, map[string]interface{}{"is_published": !c.IsPublished})
}

func (r *GORMRepository) DeleteCourse(ctx context.Context, orgID, id string) error {
	res := r.org(ctx, orgID).Where("id = ?", id).Delete(&models.Course{})
	if res.Error != nil {
		slog.Error("Failed to delete course", "error", res.Error, "course_id", id)
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	slog.Info("Course deleted", "course_id", id)
	return nil
}

// DuplicateCourse copies a course outline into a new unpublished course with
// a -copy slug suffix. Topic prerequisites are remapped to the new topics.
func (r *GORMRepository) DuplicateCourse(ctx context.Context, orgID, id, userID string) (*models.Course, error) {
	src, err := r.GetCourse(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	dup := models.Course{
		OrgID:                 orgID,
		Slug:                  src.Slug + "-copy",
		Title:                 src.Title + " (Copy)",
		Subtitle:              src.Subtitle,
		Description:           src.Description,
		SkillLevel:            src.SkillLevel,
		PrerequisiteCourseIDs: src.PrerequisiteCourseIDs,
		TotalModules:          src.TotalModules,
		TotalTopics:           src.TotalTopics,
		EstimatedHours:        src.EstimatedHours,
		Price:                 src.Price,
		CreatedBy:             userID,
	}
	err = r.Transaction(ctx, func(tx *GORMRepository) error {
		if err := tx.CreateCourse(ctx, &dup); err != nil {
			return err
		}
		topicIDs := map[string]string{}
		var topics []*models.ModuleTopic
		for _, m := range src.Modules {
			nm := models.CourseModule{OrgID: orgID, CourseID: dup.ID, Title: m.Title, Description: m.Description, ModuleNumber: m.ModuleNumber}
			if err := tx.db.Create(&nm).Error; err != nil {
				return mapError(err)
			}
			for _, t := range m.Topics {
				nt := &models.ModuleTopic{
					OrgID: orgID, CourseID: dup.ID, ModuleID: nm.ID,
					Title: t.Title, TopicNumber: t.TopicNumber, ContentType: t.ContentType,
					ContentURL: t.ContentURL, EstimatedMinutes: t.EstimatedMinutes,
					PrerequisiteTopicIDs: t.PrerequisiteTopicIDs, XPReward: t.XPReward,
				}
				if err := tx.db.Create(nt).Error; err != nil {
					return mapError(err)
				}
				topicIDs[t.ID] = nt.ID
				topics = append(topics, nt)
			}
		}
		for _, t := range topics {
			if len(t.PrerequisiteTopicIDs) == 0 {
				continue
			}
			mapped := make([]string, 0, len(t.PrerequisiteTopicIDs))
			for _, p := range t.PrerequisiteTopicIDs {
				if n, ok := topicIDs[p]; ok {
					mapped = append(mapped, n)
				}
			}
			t.PrerequisiteTopicIDs = mapped
			if err := tx.db.Model(t).Update("prerequisite_topic_ids", t.PrerequisiteTopicIDs).Error; err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to duplicate course", "error", err, "course_id", id)
		return nil, err
	}
	slog.Info("Course duplicated", "course_id", id, "copy_id", dup.ID)
	return r.GetCourse(ctx, orgID, dup.ID)
}

// syncCourseTotals recounts modules and topics onto the course row.
func (r *GORMRepository) syncCourseTotals(ctx context.Context, courseID string) error {
	var modules, topics int64
	if err := r.db.WithContext(ctx).Model(&models.CourseModule{}).Where("course_id = ?", courseID).Count(&modules).Error; err != nil {
		return mapError(err)
	}
	if err := r.db.WithContext(ctx).Model(&models.ModuleTopic{}).Where("course_id = ?", courseID).Count(&topics).Error; err != nil {
		return mapError(err)
	}
	return mapError(r.db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", courseID).
		Updates(map[string]interface{}{"total_modules": modules, "total_topics": topics}).Error)
}

func (r *GORMRepository) CreateModule(ctx context.Context, m *models.CourseModule) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		if _, err := tx.GetCourse(ctx, m.OrgID, m.CourseID); err != nil {
			return err
		}
		var max *int
		if err := tx.db.Model(&models.CourseModule{}).Where("course_id = ?", m.CourseID).
			Select("MAX(module_number)").Scan(&max).Error; err != nil {
			return mapError(err)
		}
		m.ModuleNumber = 1
		if max != nil {
			m.ModuleNumber = *max + 1
		}
		if err := tx.db.Create(m).Error; err != nil {
			return mapError(err)
		}
		return tx.syncCourseTotals(ctx, m.CourseID)
	})
}

// ReorderModules renumbers a course's modules 1..n in the order given.
func (r *GORMRepository) ReorderModules(ctx context.Context, orgID, courseID string, ids []string) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		var n int64
		if err := tx.org(ctx, orgID).Model(&models.CourseModule{}).Where("course_id = ?", courseID).Count(&n).Error; err != nil {
			return mapError(err)
		}
		if int(n) != len(ids) || len(dedupe(ids)) != len(ids) {
			return Invalid("ids must list every module of the course once")
		}
		for i, id := range ids {
			res := tx.org(ctx, orgID).Model(&models.CourseModule{}).
				Where("id = ? AND course_id = ?", id, courseID).
				Update("module_number", i+1)
			if res.Error != nil {
				return mapError(res.Error)
			}
			if res.RowsAffected == 0 {
				return Invalid("module %s is not part of the course", id)
			}
		}
		return nil
	})
}

func (r *GORMRepository) CreateTopic(ctx context.Context, t *models.ModuleTopic) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		var m models.CourseModule
		if err := first(tx.org(ctx, t.OrgID).Where("id = ?", t.ModuleID), &m); err != nil {
			return err
		}
		t.CourseID = m.CourseID
		var max *int
		if err := tx.db.Model(&models.ModuleTopic{}).Where("module_id = ?", t.ModuleID).
			Select("MAX(topic_number)").Scan(&max).Error; err != nil {
			return mapError(err)
		}
		t.TopicNumber = 1
		if max != nil {
			t.TopicNumber = *max + 1
		}
		if t.XPReward == 0 {
			t.XPReward = defaultTopicXP
		}
		if err := tx.db.Create(t).Error; err != nil {
			return mapError(err)
		}
		return tx.syncCourseTotals(ctx, t.CourseID)
	})
}

// ReorderTopics renumbers a module's topics 1..n in the order given.
func (r *GORMRepository) ReorderTopics(ctx context.Context, orgID, moduleID string, ids []string) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		var n int64
		if err := tx.org(ctx, orgID).Model(&models.ModuleTopic{}).Where("module_id = ?", moduleID).Count(&n).Error; err != nil {
			return mapError(err)
		}
		if int(n) != len(ids) || len(dedupe(ids)) != len(ids) {
			return Invalid("ids must list every topic of the module once")
		}
		for i, id := range ids {
			res := tx.org(ctx, orgID).Model(&models.ModuleTopic{}).
				Where("id = ? AND module_id = ?", id, moduleID).
				Update("topic_number", i+1)
			if res.Error != nil {
				return mapError(res.Error)
			}
			if res.RowsAffected == 0 {
				return Invalid("topic %s is not part of the module", id)
			}
		}
		return nil
	})
}

// MissingPrerequisites returns the prerequisite courses the user has not
// completed.
func (r *GORMRepository) MissingPrerequisites(ctx context.Context, orgID, userID, courseID string) ([]models.Course, error) {
	c, err := r.GetCourse(ctx, orgID, courseID)
	if err != nil {
		return nil, err
	}
	if len(c.PrerequisiteCourseIDs) == 0 {
		return []models.Course{}, nil
	}
	var done []string
	if err := r.org(ctx, orgID).Model(&models.Enrollment{}).
		Where("user_id = ? AND status = ? AND course_id IN ?", userID, models.EnrollmentCompleted, []string(c.PrerequisiteCourseIDs)).
		Pluck("course_id", &done).Error; err != nil {
		return nil, mapError(err)
	}
	completed := map[string]bool{}
	for _, id := range done {
		completed[id] = true
	}
	var missingIDs []string
	for _, id := range c.PrerequisiteCourseIDs {
		if !completed[id] {
			missingIDs = append(missingIDs, id)
		}
	}
	missing := []models.Course{}
	if len(missingIDs) > 0 {
		if err := r.org(ctx, orgID).Where("id IN ?", missingIDs).Find(&missing).Error; err != nil {
			return nil, mapError(err)
		}
	}
	return missing, nil
}

// Enroll signs a user up for a published course once its prerequisites are
// complete. Free and scholarship enrollments carry no payment amount.
func (r *GORMRepository) Enroll(ctx context.Context, e *models.Enrollment) error {
	if !models.Contains(models.PaymentTypes, e.PaymentType) {
		return Invalid("unknown payment type %q", e.PaymentType)
	}
	if e.PaymentType == "free" || e.PaymentType == "scholarship" {
		e.PaymentAmount = 0
	}
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		c, err := tx.GetCourse(ctx, e.OrgID, e.CourseID)
		if err != nil {
			return err
		}
		if !c.IsPublished {
			return Invalid("course is not published")
		}
		missing, err := tx.MissingPrerequisites(ctx, e.OrgID, e.UserID, e.CourseID)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return Invalid("prerequisites not met: %s", missing[0].Title)
		}

		var existing models.Enrollment
		err = tx.org(ctx, e.OrgID).Where("user_id = ? AND course_id = ?", e.UserID, e.CourseID).First(&existing).Error
		switch {
		case err == nil && (existing.Status == models.EnrollmentActive || existing.Status == models.EnrollmentCompleted || existing.Status == models.EnrollmentPending):
			return Conflict("already enrolled in this course")
		case err == nil:
			// dropped or expired: re-enroll on the same row
			e.ID = existing.ID
			e.CreatedAt = existing.CreatedAt
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return mapError(err)
		}

		now := time.Now()
		e.Status = models.EnrollmentActive
		e.EnrolledAt = now
		if e.StartsAt == nil {
			e.StartsAt = &now
		}
		e.CompletionPercentage = 0
		if e.ID != "" {
			// completions from the earlier attempt still count
			pct, err := tx.completion(ctx, e.ID, c.TotalTopics)
			if err != nil {
				return err
			}
			e.CompletionPercentage = pct
		}
		e.CompletedAt = nil
		e.DroppedAt = nil
		return mapError(tx.db.Save(e).Error)
	})
	if err != nil {
		slog.Error("Failed to enroll", "error", err, "user_id", e.UserID, "course_id", e.CourseID)
		return err
	}
	slog.Info("Enrollment created", "enrollment_id", e.ID, "user_id", e.UserID, "course_id", e.CourseID)
	return nil
}

func (r *GORMRepository) ListEnrollmentsForUser(ctx context.Context, orgID, userID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	if err := r.org(ctx, orgID).Preload("Course").Where("user_id = ?", userID).
		Order("enrolled_at DESC").Find(&out).Error; err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (r *GORMRepository) ListCourseEnrollments(ctx context.Context, orgID, courseID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	if err := r.org(ctx, orgID).Preload("User").Where("course_id = ?", courseID).
		Order("enrolled_at DESC").Find(&out).Error; err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (r *GORMRepository) GetEnrollment(ctx context.Context, orgID, id string) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := first(r.org(ctx, orgID).Preload("Course").Where("id = ?", id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateProgress records where the student is in the course.
func (r *GORMRepository) UpdateProgress(ctx context.Context, orgID, id string, moduleID, topicID *string) (*models.Enrollment, error) {
	e, err := r.GetEnrollment(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{"last_activity_at": time.Now()}
	if moduleID != nil {
		changes["current_module_id"] = *moduleID
	}
	if topicID != nil {
		changes["current_topic_id"] = *topicID
	}
	if err := r.db.WithContext(ctx).Model(&models.Enrollment{ID: e.ID}).Updates(changes).Error; err != nil {
		return nil, mapError(err)
	}
	return r.GetEnrollment(ctx, orgID, id)
}

// DropEnrollment lets the student leave a course they have not completed.
func (r *GORMRepository) DropEnrollment(ctx context.Context, orgID, id, userID string) (*models.Enrollment, error) {
	e, err := r.GetEnrollment(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if e.UserID != userID {
		return nil, ErrNotFound
	}
	if e.Status == models.EnrollmentCompleted {
		return nil, Invalid("a completed course cannot be dropped")
	}
	if e.Status == models.EnrollmentDropped {
		return e, nil
	}
	err = r.db.WithContext(ctx).Model(&models.Enrollment{ID: e.ID}).
		Updates(map[string]interface{}{"status": models.EnrollmentDropped, "dropped_at": time.Now()}).Error
	if err != nil {
		slog.Error("Failed to drop enrollment", "error", err, "enrollment_id", id)
		return nil, mapError(err)
	}
	slog.Info("Enrollment dropped", "enrollment_id", id)
	return r.GetEnrollment(ctx, orgID, id)
}

// CourseAnalytics summarises a course's enrollments.
type CourseAnalytics struct {
	ByStatus          map[string]int64 `json:"by_status"`
	Total             int64            `json:"total"`
	AverageCompletion float64          `json:"average_completion"`
	AtRisk            int64            `json:"at_risk"`
}

func (r *GORMRepository) CourseAnalytics(ctx context.Context, orgID, courseID string) (*CourseAnalytics, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := r.org(ctx, orgID).Model(&models.Enrollment{}).
		Select("status, count(*) AS count").Where("course_id = ?", courseID).
		Group("status").Scan(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	a := &CourseAnalytics{ByStatus: map[string]int64{}}
	for _, row := range rows {
		a.ByStatus[row.Status] = row.Count
		a.Total += row.Count
	}
	var avg *float64
	if err := r.org(ctx, orgID).Model(&models.Enrollment{}).
		Select("AVG(completion_percentage)").
		Where("course_id = ? AND status <> ?", courseID, models.EnrollmentDropped).
		Scan(&avg).Error; err != nil {
		return nil, mapError(err)
	}
	if avg != nil {
		a.AverageCompletion = *avg
	}
	if err := r.org(ctx, orgID).Model(&models.Enrollment{}).
		Where("course_id = ? AND at_risk = ?", courseID, true).Count(&a.AtRisk).Error; err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

// CompletionPercent is completed/total*100 rounded down, capped at 100.
func CompletionPercent(completed, total int) int {
	if total <= 0 {
		return 0
	}
	pct := completed * 100 / total
	if pct > 100 {
		return 100
	}
	return pct
}

// CompleteTopic marks a topic done for an active enrollment once all of the
// topic's prerequisites are done. Repeating it returns the existing
// completion without awarding more XP.
func (r *GORMRepository) CompleteTopic(ctx context.Context, orgID, enrollmentID, topicID, userID string, timeSpent int) (*models.TopicCompletion, *models.Enrollment, error) {
	var tc models.TopicCompletion
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		e, err := tx.GetEnrollment(ctx, orgID, enrollmentID)
		if err != nil {
			return err
		}
		if e.UserID != userID {
			return ErrNotFound
		}
		if e.Status != models.EnrollmentActive {
			return Invalid("enrollment is %s", e.Status)
		}
		var topic models.ModuleTopic
		if err := first(tx.org(ctx, orgID).Where("id = ? AND course_id = ?", topicID, e.CourseID), &topic); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Invalid("topic does not belong to this course")
			}
			return err
		}

		err = tx.db.Where("enrollment_id = ? AND topic_id = ?", e.ID, topic.ID).First(&tc).Error
		if err == nil {
			pct, err := tx.completion(ctx, e.ID, courseTopics(e))
			if err != nil || pct == e.CompletionPercentage {
				return err
			}
			return mapError(tx.db.Model(&models.Enrollment{ID: e.ID}).Update("completion_percentage", pct).Error)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return mapError(err)
		}

		if len(topic.PrerequisiteTopicIDs) > 0 {
			var done int64
			if err := tx.db.Model(&models.TopicCompletion{}).
				Where("enrollment_id = ? AND topic_id IN ?", e.ID, []string(topic.PrerequisiteTopicIDs)).
				Count(&done).Error; err != nil {
				return mapError(err)
			}
			if int(done) < len(topic.PrerequisiteTopicIDs) {
				return Invalid("topic is locked until its prerequisites are complete")
			}
		}

		xp := topic.XPReward
		if xp == 0 {
			xp = defaultTopicXP
		}
		now := time.Now()
		tc = models.TopicCompletion{
			OrgID: orgID, EnrollmentID: e.ID, TopicID: topic.ID, UserID: userID,
			TimeSpentSeconds: timeSpent, XPEarned: xp, CompletedAt: now,
		}
		if err := tx.db.Create(&tc).Error; err != nil {
			return mapError(err)
		}

		pct, err := tx.completion(ctx, e.ID, courseTopics(e))
		if err != nil {
			return err
		}
		return mapError(tx.db.Model(&models.Enrollment{ID: e.ID}).Updates(map[string]interface{}{
			"completion_percentage": pct,
			"current_module_id":     topic.ModuleID,
			"current_topic_id":      topic.ID,
			"last_activity_at":      now,
		}).Error)
	})
	if err != nil {
		slog.Error("Failed to complete topic", "error", err, "enrollment_id", enrollmentID, "topic_id", topicID)
		return nil, nil, err
	}
	e, err := r.GetEnrollment(ctx, orgID, enrollmentID)
	if err != nil {
		return nil, nil, err
	}
	return &tc, e, nil
}

func courseTopics(e *models.Enrollment) int {
	if e.Course == nil {
		return 0
	}
	return e.Course.TotalTopics
}

// completion derives completion_percentage from the enrollment's recorded
// topic completions.
func (r *GORMRepository) completion(ctx context.Context, enrollmentID string, totalTopics int) (int, error) {
	var completed int64
	if err := r.db.WithContext(ctx).Model(&models.TopicCompletion{}).
		Where("enrollment_id = ?", enrollmentID).Count(&completed).Error; err != nil {
		return 0, mapError(err)
	}
	return CompletionPercent(int(completed), totalTopics), nil
}

func (r *GORMRepository) ListTopicCompletions(ctx context.Context, orgID, enrollmentID string) ([]models.TopicCompletion, error) {
	var out []models.TopicCompletion
	if err := r.org(ctx, orgID).Where("enrollment_id = ?", enrollmentID).
		Order("completed_at").Find(&out).Error; err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// LeaderboardEntry is a user's total XP.
type LeaderboardEntry struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	TotalXP  int64  `json:"total_xp"`
	Topics   int64  `json:"topics_completed"`
}

func (r *GORMRepository) Leaderboard(ctx context.Context, orgID string, limit int) ([]LeaderboardEntry, error) {
	var out []LeaderboardEntry
	err := r.db.WithContext(ctx).Table("topic_completions AS tc").
		Select("tc.user_id, u.full_name, SUM(tc.xp_earned) AS total_xp, COUNT(*) AS topics").
		Joins("JOIN user_profiles u ON u.id = tc.user_id").
		Where("tc.org_id = ?", orgID).
		Group("tc.user_id, u.full_name").
		Order("total_xp DESC").
		Limit(limit).
		Scan(&out).Error
	if err != nil {
		slog.Error("Failed to build leaderboard", "error", err, "org_id", orgID)
		return nil, mapError(err)
	}
	return out, nil
}

// Eligibility explains whether an enrollment can graduate.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// GraduationEligibility needs full completion and, when a capstone was
// submitted, an approved one graded at least 70.
func GraduationEligibility(completion int, capstone *models.CapstoneSubmission) Eligibility {
	reasons := []string{}
	if completion < graduationTarget {
		reasons = append(reasons, fmt.Sprintf("course is %d%% complete", completion))
	}
	if capstone != nil {
		if capstone.Status != models.CapstoneApproved {
			reasons = append(reasons, "capstone is "+capstone.Status)
		} else if capstone.Grade == nil || *capstone.Grade < passingGrade {
			reasons = append(reasons, fmt.Sprintf("capstone grade below %d", passingGrade))
		}
	}
	return Eligibility{Eligible: len(reasons) == 0, Reasons: reasons}
}

func (r *GORMRepository) latestCapstone(ctx context.Context, enrollmentID string) (*models.CapstoneSubmission, error) {
	var c models.CapstoneSubmission
	err := r.db.WithContext(ctx).Where("enrollment_id = ?", enrollmentID).Order("created_at DESC").First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

func (r *GORMRepository) CheckGraduation(ctx context.Context, orgID, enrollmentID string) (*Eligibility, error) {
	e, err := r.GetEnrollment(ctx, orgID, enrollmentID)
	if err != nil {
		return nil, err
	}
	capstone, err := r.latestCapstone(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	el := GraduationEligibility(e.CompletionPercentage, capstone)
	return &el, nil
}

// ProcessGraduation completes an eligible, active enrollment.
func (r *GORMRepository) ProcessGraduation(ctx context.Context, orgID, enrollmentID string) (*models.Enrollment, error) {
	e, err := r.GetEnrollment(ctx, orgID, enrollmentID)
	if err != nil {
		return nil, err
	}
	if e.Status == models.EnrollmentCompleted {
		return nil, Conflict("enrollment has already graduated")
	}
	if e.Status != models.EnrollmentActive {
		return nil, Invalid("enrollment is %s", e.Status)
	}
	el, err := r.CheckGraduation(ctx, orgID, enrollmentID)
	if err != nil {
		return nil, err
	}
	if !el.Eligible {
		return nil, Invalid("not eligible to graduate: %s", el.Reasons[0])
	}
	res := r.db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("id = ? AND status = ?", enrollmentID, models.EnrollmentActive).
		Updates(map[string]interface{}{"status": models.EnrollmentCompleted, "completed_at": time.Now()})
	if res.Error != nil {
		slog.Error("Failed to graduate enrollment", "error", res.Error, "enrollment_id", enrollmentID)
		return nil, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Conflict("enrollment changed while graduating")
	}
	slog.Info("Enrollment graduated", "enrollment_id", enrollmentID)
	return r.GetEnrollment(ctx, orgID, enrollmentID)
}

func (r *GORMRepository) SubmitCapstone(ctx context.Context, c *models.CapstoneSubmission) error {
	e, err := r.GetEnrollment(ctx, c.OrgID, c.EnrollmentID)
	if err != nil {
		return err
	}
	if e.UserID != c.StudentID {
		return ErrNotFound
	}
	c.Status = "submitted"
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return mapError(err)
	}
	slog.Info("Capstone submitted", "capstone_id", c.ID, "enrollment_id", c.EnrollmentID)
	return nil
}

var capstoneReviews = []string{models.CapstoneApproved, "rejected", "revision_requested"}

func (r *GORMRepository) ReviewCapstone(ctx context.Context, orgID, id, reviewerID, status string, grade *int) (*models.CapstoneSubmission, error) {
	if !models.Contains(capstoneReviews, status) {
		return nil, Invalid("unknown review status %q", status)
	}
	if grade != nil && (*grade < 0 || *grade > 100) {
		return nil, Invalid("grade must be between 0 and 100")
	}
	var c models.CapstoneSubmission
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &c); err != nil {
		return nil, err
	}
	now := time.Now()
	changes := map[string]interface{}{"status": status, "reviewer_id": reviewerID, "reviewed_at": now}
	if grade != nil {
		changes["grade"] = *grade
	}
	if err := r.db.WithContext(ctx).Model(&c).Updates(changes).Error; err != nil {
		return nil, mapError(err)
	}
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}
