// Package payroll computes pay run lines from approved timesheet hours using
// flat, simplified tax rates. It is pure: storage lives in repository.
package payroll

import (
	"math"
	"sort"
)

// Flat rates applied to every line. They are not real tax tables.
const (
	FederalRate  = 0.22
	StateRate    = 0.05
	SSRate       = 0.062
	SSWageBase   = 160200.0
	MedicareRate = 0.0145
	FUTARate     = 0.006
	SUTARate     = 0.027
	UIWageBase   = 7000.0

	OvertimeMultiplier   = 1.5
	DoubleTimeMultiplier = 2.0
)

// Entry is one approved timesheet with the rates of its placement.
type Entry struct {
	TimesheetID string
	WorkerID    string
	PlacementID string

	Regular    float64
	Overtime   float64
	DoubleTime float64
	PTO        float64
	Holiday    float64

	PayRate        float64
	OvertimeRate   *float64
	DoubleTimeRate *float64
}

// Line is the computed pay for one worker.
type Line struct {
	WorkerID     string
	PlacementID  string
	TimesheetIDs []string

	RegularHours    float64
	OvertimeHours   float64
	DoubleTimeHours float64
	PTOHours        float64
	HolidayHours    float64

	RegularRate    float64
	OvertimeRate   float64
	DoubleTimeRate float64

	RegularEarnings    float64
	OvertimeEarnings   float64
	DoubleTimeEarnings float64
	PTOEarnings        float64
	HolidayEarnings    float64
	Gross              float64

	FederalTax  float64
	StateTax    float64
	SSTax       float64
	MedicareTax float64
	EmployeeTax float64

	EmployerSS       float64
	EmployerMedicare float64
	FUTA             float64
	SUTA             float64
	EmployerTax      float64

	Net float64
}

// Result is the full calculation for a run.
type Result struct {
	Lines        []Line
	Gross        float64
	EmployeeTax  float64
	EmployerTax  float64
	Net          float64
	EmployerCost float64
}

// Calculate groups entries by worker and computes earnings and taxes. Rates
// come from the first entry seen for each worker; overtime and double time
// default to 1.5x and 2x the pay rate. Lines are sorted by worker id.
func Calculate(entries []Entry) Result {
	byWorker := map[string]*Line{}
	var order []string

	for _, e := range entries {
		if e.WorkerID == "" {
			continue
		}
		l, ok := byWorker[e.WorkerID]
		if !ok {
			l = &Line{
				WorkerID:       e.WorkerID,
				PlacementID:    e.PlacementID,
				RegularRate:    e.PayRate,
				OvertimeRate:   rateOr(e.OvertimeRate, e.PayRate*OvertimeMultiplier),
				DoubleTimeRate: rateOr(e.DoubleTimeRate, e.PayRate*DoubleTimeMultiplier),
			}
			byWorker[e.WorkerID] = l
			order = append(order, e.WorkerID)
		}
		l.TimesheetIDs = append(l.TimesheetIDs, e.TimesheetID)
		l.RegularHours += e.Regular
		l.OvertimeHours += e.Overtime
		l.DoubleTimeHours += e.DoubleTime
		l.PTOHours += e.PTO
		l.HolidayHours += e.Holiday
	}

	sort.Strings(order)
	var res Result
	for _, id := range order {
		l := byWorker[id]
		price(l)
		res.Lines = append(res.Lines, *l)
		res.Gross += l.Gross
		res.EmployeeTax += l.EmployeeTax
		res.EmployerTax += l.EmployerTax
		res.Net += l.Net
	}
	res.Gross = Round(res.Gross)
	res.EmployeeTax = Round(res.EmployeeTax)
	res.EmployerTax = Round(res.EmployerTax)
	res.Net = Round(res.Net)
	res.EmployerCost = Round(res.Gross + res.EmployerTax)
	return res
}

func price(l *Line) {
	l.RegularEarnings = Round(l.RegularHours * l.RegularRate)
	l.OvertimeEarnings = Round(l.OvertimeHours * l.OvertimeRate)
	l.DoubleTimeEarnings = Round(l.DoubleTimeHours * l.DoubleTimeRate)
	l.PTOEarnings = Round(l.PTOHours * l.RegularRate)
	l.HolidayEarnings = Round(l.HolidayHours * l.RegularRate)
	l.Gross = Round(l.RegularEarnings + l.OvertimeEarnings + l.DoubleTimeEarnings + l.PTOEarnings + l.HolidayEarnings)

	l.FederalTax = Round(l.Gross * FederalRate)
	l.StateTax = Round(l.Gross * StateRate)
	l.SSTax = Round(math.Min(l.Gross*SSRate, SSWageBase*SSRate))
	l.MedicareTax = Round(l.Gross * MedicareRate)
	l.EmployeeTax = Round(l.FederalTax + l.StateTax + l.SSTax + l.MedicareTax)

	l.EmployerSS = l.SSTax
	l.EmployerMedicare = l.MedicareTax
	l.FUTA = Round(math.Min(l.Gross*FUTARate, UIWageBase*FUTARate))
	l.SUTA = Round(math.Min(l.Gross*SUTARate, UIWageBase*SUTARate))
	l.EmployerTax = Round(l.EmployerSS + l.EmployerMedicare + l.FUTA + l.SUTA)

	l.Net = Round(l.Gross - l.EmployeeTax)
}

func rateOr(rate *float64, fallback float64) float64 {
	if rate != nil && *rate > 0 {
		return *rate
	}
	return fallback
}

// Round rounds to cents, halves away from zero.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
