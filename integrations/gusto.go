package integrations

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/krshsl/staffline/models"
)

const (
	gustoProductionURL = "https://api.gusto.com"
	gustoDemoURL       = "https://api.gusto-demo.com"
	gustoAPIVersion    = "2024-04-01"
	gustoDateLayout    = "2006-01-02"
)

// GustoProvider talks to the Gusto embedded payroll API for one company.
type GustoProvider struct {
	client    *Client
	companyID string
}

func newGusto(ctx context.Context, in *models.Integration, opts ClientOptions) (Provider, error) {
	companyID := in.Config.String("company_id")
	if companyID == "" {
		return nil, fmt.Errorf("gusto: company_id: %w", ErrMissingConfig)
	}
	ts, err := TokenSource(ctx, in.Credentials, "Bearer")
	if err != nil {
		return nil, fmt.Errorf("gusto: %w", err)
	}
	base := in.Config.String("base_url")
	if base == "" {
		base = gustoProductionURL
		if env := in.Config.String("environment"); env == "demo" || env == "sandbox" {
			base = gustoDemoURL
		}
	}
	return NewGusto(NewClient(ProviderGusto, base, ts, opts), companyID), nil
}

func NewGusto(client *Client, companyID string) *GustoProvider {
	client.SetHeader("X-Gusto-API-Version", gustoAPIVersion)
	return &GustoProvider{client: client, companyID: companyID}
}

func (g *GustoProvider) Name() string { return ProviderGusto }
func (g *GustoProvider) Type() string { return TypePayroll }

func (g *GustoProvider) TestConnection(ctx context.Context) error {
	_, err := g.GetCompany(NoCache(ctx))
	return err
}

type GustoCompany struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	EIN  string `json:"ein,omitempty"`
}

type GustoEmployee struct {
	UUID       string `json:"uuid"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Onboarded  bool   `json:"onboarded"`
	Terminated bool   `json:"terminated"`
}

type GustoEmployeeInput struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
}

type GustoPayroll struct {
	UUID          string                      `json:"uuid"`
	OffCycle      bool                        `json:"off_cycle"`
	Processed     bool                        `json:"processed"`
	CheckDate     string                      `json:"check_date"`
	Version       string                      `json:"version,omitempty"`
	PayPeriod     GustoPayPeriod              `json:"pay_period"`
	Compensations []GustoEmployeeCompensation `json:"employee_compensations,omitempty"`
}

type GustoPayPeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type GustoEmployeeCompensation struct {
	EmployeeUUID        string                    `json:"employee_uuid"`
	HourlyCompensations []GustoHourlyCompensation `json:"hourly_compensations,omitempty"`
	PaidTimeOff         []GustoPaidTimeOff        `json:"paid_time_off,omitempty"`
}

type GustoHourlyCompensation struct {
	Name  string `json:"name"`
	Hours string `json:"hours"`
}

type GustoPaidTimeOff struct {
	Name  string `json:"name"`
	Hours string `json:"hours"`
}

type GustoOffCyclePayroll struct {
	OffCycle       bool     `json:"off_cycle"`
	OffCycleReason string   `json:"off_cycle_reason"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	CheckDate      string   `json:"check_date"`
	EmployeeUUIDs  []string `json:"employee_uuids,omitempty"`
}

func (g *GustoProvider) companyPath(suffix string) string {
	return "/v1/companies/" + url.PathEscape(g.companyID) + suffix
}

func (g *GustoProvider) GetCompany(ctx context.Context) (*GustoCompany, error) {
	var out GustoCompany
	if err := g.client.Get(ctx, "get_company", g.companyPath(""), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *GustoProvider) ListEmployees(ctx context.Context) ([]GustoEmployee, error) {
	var out []GustoEmployee
	if err := g.client.Get(ctx, "list_employees", g.companyPath("/employees"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GustoProvider) CreateEmployee(ctx context.Context, in GustoEmployeeInput) (*GustoEmployee, error) {
	var out GustoEmployee
	if err := g.client.Post(ctx, "create_employee", g.companyPath("/employees"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *GustoProvider) CreateOffCyclePayroll(ctx context.Context, in GustoOffCyclePayroll) (*GustoPayroll, error) {
	in.OffCycle = true
	var out GustoPayroll
	if err := g.client.Post(ctx, "create_payroll", g.companyPath("/payrolls"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePayroll replaces employee compensations. Gusto requires the
// payroll's current version for optimistic locking.
func (g *GustoProvider) UpdatePayroll(ctx context.Context, payrollID, version string, comps []GustoEmployeeCompensation) (*GustoPayroll, error) {
	body := map[string]interface{}{
		"version":                version,
		"employee_compensations": comps,
	}
	var out GustoPayroll
	if err := g.client.Put(ctx, "update_payroll", g.companyPath("/payrolls/"+url.PathEscape(payrollID)), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *GustoProvider) SubmitPayroll(ctx context.Context, payrollID string) error {
	return g.client.Put(ctx, "submit_payroll", g.companyPath("/payrolls/"+url.PathEscape(payrollID)+"/submit"), struct{}{}, nil)
}

func (g *GustoProvider) GetPayroll(ctx context.Context, payrollID string) (*GustoPayroll, error) {
	var out GustoPayroll
	if err := g.client.Get(ctx, "get_payroll", g.companyPath("/payrolls/"+url.PathEscape(payrollID)), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitPayRun creates an off-cycle payroll for the run's workers, fills in
// their hours and submits it. It returns the Gusto payroll uuid.
func (g *GustoProvider) SubmitPayRun(ctx context.Context, req PayRunRequest) (string, error) {
	employees, err := g.ListEmployees(ctx)
	if err != nil {
		return "", err
	}
	byEmail := make(map[string]string, len(employees))
	for _, e := range employees {
		if !e.Terminated {
			byEmail[strings.ToLower(e.Email)] = e.UUID
		}
	}

	comps := make([]GustoEmployeeCompensation, 0, len(req.Lines))
	uuids := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		id, ok := byEmail[strings.ToLower(line.WorkerEmail)]
		if !ok {
			return "", fmt.Errorf("gusto: no active employee with email %s", line.WorkerEmail)
		}
		uuids = append(uuids, id)
		comps = append(comps, gustoCompensation(id, line))
	}

	payroll, err := g.CreateOffCyclePayroll(ctx, GustoOffCyclePayroll{
		OffCycleReason: "Correction",
		StartDate:      req.PeriodStart.Format(gustoDateLayout),
		EndDate:        req.PeriodEnd.Format(gustoDateLayout),
		CheckDate:      req.CheckDate.Format(gustoDateLayout),
		EmployeeUUIDs:  uuids,
	})
	if err != nil {
		return "", err
	}
	if _, err := g.UpdatePayroll(ctx, payroll.UUID, payroll.Version, comps); err != nil {
		return "", err
	}
	if err := g.SubmitPayroll(ctx, payroll.UUID); err != nil {
		return "", err
	}
	return payroll.UUID, nil
}

func gustoCompensation(employeeID string, line PayLine) GustoEmployeeCompensation {
	hours := func(h float64) string { return fmt.Sprintf("%.2f", h) }
	c := GustoEmployeeCompensation{EmployeeUUID: employeeID}
	for _, hc := range []struct {
		name  string
		hours float64
	}{
		{"Regular Hours", line.RegularHours},
		{"Overtime", line.OvertimeHours},
		{"Double overtime", line.DoubleHours},
	} {
		if hc.hours > 0 {
			c.HourlyCompensations = append(c.HourlyCompensations, GustoHourlyCompensation{Name: hc.name, Hours: hours(hc.hours)})
		}
	}
	if line.PTOHours > 0 {
		c.PaidTimeOff = append(c.PaidTimeOff, GustoPaidTimeOff{Name: "Vacation Hours", Hours: hours(line.PTOHours)})
	}
	if line.HolidayHours > 0 {
		c.PaidTimeOff = append(c.PaidTimeOff, GustoPaidTimeOff{Name: "Holiday Hours", Hours: hours(line.HolidayHours)})
	}
	return c
}
