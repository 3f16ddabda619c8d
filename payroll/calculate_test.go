package payroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestCalculateSingleWorker(t *testing.T) {
	res := Calculate([]Entry{{
		TimesheetID: "ts-1",
		WorkerID:    "w-1",
		PlacementID: "p-1",
		Regular:     40,
		Overtime:    5,
		PayRate:     50,
	}})

	require.Len(t, res.Lines, 1)
	l := res.Lines[0]
	assert.Equal(t, 2000.0, l.RegularEarnings)
	assert.Equal(t, 75.0, l.OvertimeRate)
	assert.Equal(t, 375.0, l.OvertimeEarnings)
	assert.Equal(t, 2375.0, l.Gross)

	assert.Equal(t, 522.5, l.FederalTax)
	assert.Equal(t, 118.75, l.StateTax)
	assert.Equal(t, 147.25, l.SSTax)
	assert.Equal(t, 34.44, l.MedicareTax)
	assert.Equal(t, 822.94, l.EmployeeTax)
	assert.Equal(t, 1552.06, l.Net)

	assert.Equal(t, 14.25, l.FUTA)
	assert.Equal(t, 64.13, l.SUTA)
	assert.Equal(t, 260.07, l.EmployerTax)

	assert.Equal(t, 2375.0, res.Gross)
	assert.Equal(t, 2635.07, res.EmployerCost)
}

func TestCalculateGroupsByWorker(t *testing.T) {
	res := Calculate([]Entry{
		{TimesheetID: "ts-2", WorkerID: "w-b", Regular: 10, PayRate: 20},
		{TimesheetID: "ts-1", WorkerID: "w-a", Regular: 8, PayRate: 30, DoubleTime: 2},
		{TimesheetID: "ts-3", WorkerID: "w-b", Regular: 5, PTO: 8, Holiday: 8, PayRate: 99},
		{TimesheetID: "ts-4", WorkerID: "", Regular: 40, PayRate: 10},
	})

	require.Len(t, res.Lines, 2)
	assert.Equal(t, "w-a", res.Lines[0].WorkerID)
	assert.Equal(t, 60.0, res.Lines[0].DoubleTimeRate)
	assert.Equal(t, 360.0, res.Lines[0].Gross)

	b := res.Lines[1]
	assert.Equal(t, []string{"ts-2", "ts-3"}, b.TimesheetIDs)
	assert.Equal(t, 15.0, b.RegularHours)
	assert.Equal(t, 20.0, b.RegularRate, "rates come from the first timesheet")
	assert.Equal(t, 160.0, b.PTOEarnings)
	assert.Equal(t, 160.0, b.HolidayEarnings)
	assert.Equal(t, 620.0, b.Gross)
	assert.Equal(t, 980.0, res.Gross)
}

func TestCalculateExplicitRates(t *testing.T) {
	res := Calculate([]Entry{{
		WorkerID: "w", Overtime: 1, DoubleTime: 1, PayRate: 10,
		OvertimeRate: ptr(18), DoubleTimeRate: ptr(25),
	}})
	assert.Equal(t, 43.0, res.Lines[0].Gross)
}

func TestCalculateCaps(t *testing.T) {
	res := Calculate([]Entry{{WorkerID: "w", Regular: 2000, PayRate: 100}})
	l := res.Lines[0]
	assert.Equal(t, 200000.0, l.Gross)
	assert.Equal(t, Round(SSWageBase*SSRate), l.SSTax)
	assert.Equal(t, 42.0, l.FUTA)
	assert.Equal(t, 189.0, l.SUTA)
}

func TestCalculateEmpty(t *testing.T) {
	res := Calculate(nil)
	assert.Empty(t, res.Lines)
	assert.Zero(t, res.Gross)
}
