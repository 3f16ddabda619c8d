package models

import (
	"time"

	"gorm.io/gorm"
)

type PayPeriod struct {
	ID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID       string    `gorm:"type:uuid;not null;index" json:"org_id"`
	PeriodType  string    `gorm:"size:20;not null;default:'biweekly'" json:"period_type"`
	PeriodStart time.Time `gorm:"type:date;not null;index" json:"period_start"`
	PeriodEnd   time.Time `gorm:"type:date;not null" json:"period_end"`
	PayDate     time.Time `gorm:"type:date;not null" json:"pay_date"`
	Status      string    `gorm:"size:20;not null;default:'open'" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PayRun aggregates the pay items for one period. Money columns are rounded
// to cents when written.
type PayRun struct {
	ID                 string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID              string         `gorm:"type:uuid;not null;index;uniqueIndex:idx_pay_run_number,priority:1" json:"org_id"`
	PayPeriodID        string         `gorm:"type:uuid;not null;index" json:"pay_period_id"`
	RunNumber          string         `gorm:"size:50;not null;uniqueIndex:idx_pay_run_number,priority:2" json:"run_number"`
	RunType            string         `gorm:"size:20;not null;default:'regular'" json:"run_type"`
	Status             string         `gorm:"size:30;not null;default:'draft';index" json:"status"`
	CheckDate          time.Time      `gorm:"type:date;not null" json:"check_date"`
	TotalGross         float64        `gorm:"type:numeric(14,2);default:0" json:"total_gross"`
	TotalEmployeeTaxes float64        `gorm:"type:numeric(14,2);default:0" json:"total_employee_taxes"`
	TotalEmployerTaxes float64        `gorm:"type:numeric(14,2);default:0" json:"total_employer_taxes"`
	TotalDeductions    float64        `gorm:"type:numeric(14,2);default:0" json:"total_deductions"`
	TotalNet           float64        `gorm:"type:numeric(14,2);default:0" json:"total_net"`
	TotalEmployerCost  float64        `gorm:"type:numeric(14,2);default:0" json:"total_employer_cost"`
	EmployeeCount      int            `gorm:"default:0" json:"employee_count"`
	ContractorCount    int            `gorm:"default:0" json:"contractor_count"`
	CalculatedAt       *time.Time     `json:"calculated_at,omitempty"`
	ApprovedAt         *time.Time     `json:"approved_at,omitempty"`
	ApprovedBy         *string        `gorm:"type:uuid" json:"approved_by,omitempty"`
	SubmittedAt        *time.Time     `json:"submitted_at,omitempty"`
	ProcessedAt        *time.Time     `json:"processed_at,omitempty"`
	PayrollProvider    string         `gorm:"size:50" json:"payroll_provider,omitempty"`
	ExternalRunID      *string        `gorm:"size:100;index" json:"external_run_id,omitempty"`
	Notes              string         `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy          string         `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`

	PayPeriod *PayPeriod `gorm:"foreignKey:PayPeriodID" json:"pay_period,omitempty"`
	Items     []PayItem  `gorm:"foreignKey:PayRunID" json:"items,omitempty"`
}

// PayItem is one worker's line on a pay run.
type PayItem struct {
	ID                 string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OrgID              string    `gorm:"type:uuid;not null;index" json:"org_id"`
	PayRunID           string    `gorm:"type:uuid;not null;index" json:"pay_run_id"`
	WorkerID           string    `gorm:"type:uuid;not null;index" json:"worker_id"`
	PlacementID        *string   `gorm:"type:uuid" json:"placement_id,omitempty"`
	WorkerType         string    `gorm:"size:20;not null;default:'w2'" json:"worker_type"`
	RegularHours       float64   `gorm:"type:numeric(8,2);default:0" json:"regular_hours"`
	OvertimeHours      float64   `gorm:"type:numeric(8,2);default:0" json:"overtime_hours"`
	DoubleTimeHours    float64   `gorm:"type:numeric(8,2);default:0" json:"double_time_hours"`
	PTOHours           float64   `gorm:"type:numeric(8,2);default:0" json:"pto_hours"`
	HolidayHours       float64   `gorm:"type:numeric(8,2);default:0" json:"holiday_hours"`
	RegularRate        float64   `gorm:"type:numeric(10,2);default:0" json:"regular_rate"`
	OvertimeRate       float64   `gorm:"type:numeric(10,2);default:0" json:"overtime_rate"`
	DoubleTimeRate     float64   `gorm:"type:numeric(10,2);default:0" json:"double_time_rate"`
	RegularEarnings    float64   `gorm:"type:numeric(12,2);default:0" json:"regular_earnings"`
	OvertimeEarnings   float64   `gorm:"type:numeric(12,2);default:0" json:"overtime_earnings"`
	DoubleTimeEarnings float64   `gorm:"type:numeric(12,2);default:0" json:"double_time_earnings"`
	PTOEarnings        float64   `gorm:"type:numeric(12,2);default:0" json:"pto_earnings"`
	HolidayEarnings    float64   `gorm:"type:numeric(12,2);default:0" json:"holiday_earnings"`
	GrossPay           float64   `gorm:"type:numeric(12,2);default:0" json:"gross_pay"`
	FederalIncomeTax   float64   `gorm:"type:numeric(12,2);default:0" json:"federal_income_tax"`
	StateIncomeTax     float64   `gorm:"type:numeric(12,2);default:0" json:"state_income_tax"`
	SocialSecurityTax  float64   `gorm:"type:numeric(12,2);default:0" json:"social_security_tax"`
	MedicareTax        float64   `gorm:"type:numeric(12,2);default:0" json:"medicare_tax"`
	TotalEmployeeTaxes float64   `gorm:"type:numeric(12,2);default:0" json:"total_employee_taxes"`
	EmployerSSTax      float64   `gorm:"type:numeric(12,2);default:0" json:"employer_ss_tax"`
	EmployerMedicare   float64   `gorm:"type:numeric(12,2);default:0" json:"employer_medicare_tax"`
	FUTATax            float64   `gorm:"type:numeric(12,2);default:0" json:"futa_tax"`
	SUTATax            float64   `gorm:"type:numeric(12,2);default:0" json:"suta_tax"`
	TotalEmployerTaxes float64   `gorm:"type:numeric(12,2);default:0" json:"total_employer_taxes"`
	NetPay             float64   `gorm:"type:numeric(12,2);default:0" json:"net_pay"`
	TimesheetIDs       string    `gorm:"type:text" json:"timesheet_ids,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	Worker *UserProfile `gorm:"foreignKey:WorkerID" json:"worker,omitempty"`
}
