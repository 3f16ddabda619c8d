package services

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

//go:embed seed_data.yaml
var defaultSeedData []byte

// SeedData is the shape of seed_data.yaml.
type SeedData struct {
	IntegrationTypes []seedIntegrationType `yaml:"integration_types"`
	Organization     seedOrganization      `yaml:"organization"`
	Password         string                `yaml:"password"`
	Users            []seedUser            `yaml:"users"`
	Accounts         []seedAccount         `yaml:"accounts"`
	Pods             []seedPod             `yaml:"pods"`
	Courses          []seedCourse          `yaml:"courses"`
}

type seedIntegrationType struct {
	Provider    string `yaml:"provider"`
	Category    string `yaml:"category"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	ConfigKeys  string `yaml:"config_keys"`
}

type seedOrganization struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug"`
	Plan string `yaml:"plan"`
}

type seedUser struct {
	Email     string `yaml:"email"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Role      string `yaml:"role"`
}

type seedAccount struct {
	Name     string    `yaml:"name"`
	Industry string    `yaml:"industry"`
	Jobs     []seedJob `yaml:"jobs"`
}

type seedJob struct {
	Title            string   `yaml:"title"`
	JobType          string   `yaml:"job_type"`
	Location         string   `yaml:"location"`
	Remote           bool     `yaml:"remote"`
	RequiredSkills   []string `yaml:"required_skills"`
	NiceToHaveSkills []string `yaml:"nice_to_have_skills"`
	RateMin          *float64 `yaml:"rate_min"`
	RateMax          *float64 `yaml:"rate_max"`
}

type seedPod struct {
	Name    string   `yaml:"name"`
	PodType string   `yaml:"pod_type"`
	Region  string   `yaml:"region"`
	Manager string   `yaml:"manager"`
	Members []string `yaml:"members"`
}

type seedCourse struct {
	Title          string       `yaml:"title"`
	Subtitle       string       `yaml:"subtitle"`
	SkillLevel     string       `yaml:"skill_level"`
	EstimatedHours int          `yaml:"estimated_hours"`
	Published      bool         `yaml:"published"`
	Modules        []seedModule `yaml:"modules"`
}

type seedModule struct {
	Title  string      `yaml:"title"`
	Topics []seedTopic `yaml:"topics"`
}

type seedTopic struct {
	Title       string `yaml:"title"`
	ContentType string `yaml:"content_type"`
	Minutes     int    `yaml:"minutes"`
}

// ParseSeedData decodes seed YAML and rejects documents without an org.
func ParseSeedData(raw []byte) (*SeedData, error) {
	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	if data.Organization.Slug == "" {
		return nil, errors.New("seed data has no organization slug")
	}
	if data.Password == "" {
		return nil, errors.New("seed data has no password")
	}
	return &data, nil
}

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo *repository.GORMRepository
	data *SeedData
}

// NewDatabaseSeeder creates a seeder for the embedded seed_data.yaml.
func NewDatabaseSeeder(repo *repository.GORMRepository) (*DatabaseSeeder, error) {
	data, err := ParseSeedData(defaultSeedData)
	if err != nil {
		return nil, err
	}
	return &DatabaseSeeder{repo: repo, data: data}, nil
}

// SeedDatabase seeds the database (idempotent). The integration catalog is
// always refreshed; demo data is only written when the demo org is missing.
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	for _, t := range s.data.IntegrationTypes {
		it := models.IntegrationType{
			Provider:    t.Provider,
			Category:    t.Category,
			DisplayName: t.DisplayName,
			Description: t.Description,
			ConfigKeys:  t.ConfigKeys,
			IsAvailable: true,
		}
		if err := s.repo.UpsertIntegrationType(ctx, &it); err != nil {
			return fmt.Errorf("failed to seed integration type %s: %w", t.Provider, err)
		}
	}
	slog.Info("Integration catalog seeded", "count", len(s.data.IntegrationTypes))

	if _, err := s.repo.GetOrganizationBySlug(ctx, s.data.Organization.Slug); err == nil {
		slog.Info("Database seeding already completed, skipping", "org", s.data.Organization.Slug)
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("error checking organization: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(s.data.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.Transaction(ctx, func(tx *repository.GORMRepository) error {
		org := &models.Organization{
			Name:     s.data.Organization.Name,
			Slug:     s.data.Organization.Slug,
			Plan:     s.data.Organization.Plan,
			IsActive: true,
		}
		if err := tx.CreateOrganization(ctx, org); err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}

		users := map[string]*models.UserProfile{}
		var owner *models.UserProfile
		for _, u := range s.data.Users {
			user, err := s.seedUser(ctx, tx, org.ID, u, string(hashedPassword))
			if err != nil {
				return err
			}
			users[strings.ToLower(u.Email)] = user
			if owner == nil && (u.Role == models.RoleOwner || u.Role == models.RoleAdmin) {
				owner = user
			}
		}
		if owner == nil {
			return errors.New("seed data has no owner or admin user")
		}

		if err := s.seedAccounts(ctx, tx, org.ID, owner.ID); err != nil {
			return err
		}
		if err := s.seedPods(ctx, tx, org.ID, users); err != nil {
			return err
		}
		if err := s.seedCourses(ctx, tx, org.ID, owner.ID); err != nil {
			return err
		}
		slog.Info("Database seeding completed successfully", "org_id", org.ID)
		return nil
	})
}

// seedUser creates a user unless the address is already taken.
func (s *DatabaseSeeder) seedUser(ctx context.Context, tx *repository.GORMRepository, orgID string, u seedUser, hash string) (*models.UserProfile, error) {
	existing, err := tx.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user %s: %w", u.Email, err)
	}
	if existing != nil {
		slog.Info("User already exists, skipping", "email", u.Email)
		return existing, nil
	}
	user := &models.UserProfile{
		OrgID:     orgID,
		Email:     strings.ToLower(u.Email),
		Password:  hash,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  strings.TrimSpace(u.FirstName + " " + u.LastName),
		Role:      u.Role,
		IsActive:  true,
	}
	if err := tx.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user %s: %w", u.Email, err)
	}
	return user, nil
}

func (s *DatabaseSeeder) seedAccounts(ctx context.Context, tx *repository.GORMRepository, orgID, ownerID string) error {
	now := time.Now()
	for _, a := range s.data.Accounts {
		account := &models.Account{OrgID: orgID, Name: a.Name, Industry: a.Industry, Status: "active"}
		if err := tx.CreateAccount(ctx, account); err != nil {
			return fmt.Errorf("failed to create account %s: %w", a.Name, err)
		}
		for _, j := range a.Jobs {
			job := &models.Job{
				OrgID:            orgID,
				AccountID:        &account.ID,
				Title:            j.Title,
				JobType:          j.JobType,
				Location:         j.Location,
				IsRemote:         j.Remote,
				RequiredSkills:   j.RequiredSkills,
				NiceToHaveSkills: j.NiceToHaveSkills,
				RateMin:          j.RateMin,
				RateMax:          j.RateMax,
				Status:           models.JobOpen,
				PostedDate:       &now,
				OwnerID:          ownerID,
				CreatedBy:        ownerID,
			}
			if err := tx.CreateJob(ctx, job); err != nil {
				return fmt.Errorf("failed to create job %s: %w", j.Title, err)
			}
		}
	}
	return nil
}

func (s *DatabaseSeeder) seedPods(ctx context.Context, tx *repository.GORMRepository, orgID string, users map[string]*models.UserProfile) error {
	for _, p := range s.data.Pods {
		pod := &models.Pod{OrgID: orgID, Name: p.Name, PodType: p.PodType, Region: p.Region, IsActive: true}
		if m, ok := users[strings.ToLower(p.Manager)]; ok {
			pod.ManagerID = &m.ID
		}
		var memberIDs []string
		for _, email := range p.Members {
			if m, ok := users[strings.ToLower(email)]; ok {
				memberIDs = append(memberIDs, m.ID)
			}
		}
		if err := tx.CreatePod(ctx, pod, memberIDs); err != nil {
			return fmt.Errorf("failed to create pod %s: %w", p.Name, err)
		}
	}
	return nil
}

func (s *DatabaseSeeder) seedCourses(ctx context.Context, tx *repository.GORMRepository, orgID, authorID string) error {
	for _, c := range s.data.Courses {
		course := &models.Course{
			OrgID:          orgID,
			Slug:           courseSlug(c.Title),
			Title:          c.Title,
			Subtitle:       c.Subtitle,
			SkillLevel:     c.SkillLevel,
			EstimatedHours: c.EstimatedHours,
			IsPublished:    c.Published,
			CreatedBy:      authorID,
		}
		if err := tx.CreateCourse(ctx, course); err != nil {
			return fmt.Errorf("failed to create course %s: %w", c.Title, err)
		}
		for _, m := range c.Modules {
			module := &models.CourseModule{OrgID: orgID, CourseID: course.ID, Title: m.Title}
			if err := tx.CreateModule(ctx, module); err != nil {
				return fmt.Errorf("failed to create module %s: %w", m.Title, err)
			}
			for _, t := range m.Topics {
				topic := &models.ModuleTopic{
					OrgID:            orgID,
					ModuleID:         module.ID,
					Title:            t.Title,
					ContentType:      t.ContentType,
					EstimatedMinutes: t.Minutes,
				}
				if err := tx.CreateTopic(ctx, topic); err != nil {
					return fmt.Errorf("failed to create topic %s: %w", t.Title, err)
				}
			}
		}
	}
	return nil
}
