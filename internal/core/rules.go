package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"alquimist/pkg/domain"
)

// Rule names reported in violations.
const (
	RuleInventoryStatus     = "inventory_status_consistency"
	RuleParameterRange      = "parameter_reference_range"
	RuleMachineAvailability = "machine_availability"
)

// NewDefaultRulesEngine registers the built-in consistency checks. They only
// warn: statuses stay operator-set and the warning surfaces alongside the
// committed record.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(InventoryStatusRule(nil))
	engine.Register(ParameterRangeRule())
	engine.Register(MachineAvailabilityRule())
	return engine
}

// InventoryStatusRule warns when an item's status disagrees with its quantity,
// minimum stock or expiration date. A nil clock uses time.Now.
func InventoryStatusRule(now func() time.Time) Rule {
	if now == nil {
		now = time.Now
	}
	return inventoryStatusRule{now: now}
}

type inventoryStatusRule struct {
	now func() time.Time
}

func (inventoryStatusRule) Name() string { return RuleInventoryStatus }

func (r inventoryStatusRule) Evaluate(_ context.Context, _ TransactionView, changes []Change) (Result, error) {
	var res Result
	for _, change := range changes {
		if change.Entity != EntityInventoryItem || change.Action == domain.ActionDelete {
			continue
		}
		item, ok := change.After.(domain.InventoryItem)
		if !ok {
			continue
		}
		expected := ExpectedInventoryStatus(item, r.now())
		if expected == item.Status {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     RuleInventoryStatus,
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("estado %q no coincide con el calculado %q", item.Status, expected),
			Entity:   EntityInventoryItem,
			EntityID: item.ID,
		})
	}
	return res, nil
}

// ExpectedInventoryStatus derives the status implied by stock level and
// expiration. Unparseable dates are ignored.
func ExpectedInventoryStatus(item domain.InventoryItem, now time.Time) domain.InventoryStatus {
	if exp, err := time.Parse(time.DateOnly, strings.TrimSpace(item.ExpirationDate)); err == nil && exp.Before(now.Truncate(24*time.Hour)) {
		return domain.InventoryExpired
	}
	switch {
	case item.Quantity <= 0:
		return domain.InventoryDepleted
	case item.Quantity <= item.MinStock:
		return domain.InventoryLowStock
	default:
		return domain.InventoryAvailable
	}
}

// ParameterRangeRule warns when a numeric parameter's status disagrees with
// its reference range.
func ParameterRangeRule() Rule { return parameterRangeRule{} }

type parameterRangeRule struct{}

func (parameterRangeRule) Name() string { return RuleParameterRange }

func (parameterRangeRule) Evaluate(_ context.Context, _ TransactionView, changes []Change) (Result, error) {
	var res Result
	for _, change := range changes {
		if change.Action == domain.ActionDelete {
			continue
		}
		var (
			params []domain.Parameter
			id     string
		)
		switch after := change.After.(type) {
		case domain.TestRecord:
			params, id = after.Parameters, after.ID
		case domain.ClientTest:
			params, id = after.Results, after.ID
		default:
			continue
		}
		for _, p := range params {
			expected, ok := ExpectedParameterStatus(p)
			if !ok || expected == p.Status {
				continue
			}
			res.Violations = append(res.Violations, Violation{
				Rule:     RuleParameterRange,
				Severity: SeverityWarn,
				Message:  fmt.Sprintf("parámetro %s: estado %q, valor %s fuera de lo esperado (%q)", p.Name, p.Status, p.Value, expected),
				Entity:   change.Entity,
				EntityID: id,
			})
		}
	}
	return res, nil
}

// ExpectedParameterStatus classifies a numeric value against its reference
// range. It reports false for non-numeric values or an empty range.
func ExpectedParameterStatus(p domain.Parameter) (domain.ParameterStatus, bool) {
	if p.ReferenceMin == 0 && p.ReferenceMax == 0 {
		return "", false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 64)
	if err != nil {
		return "", false
	}
	switch {
	case v < p.ReferenceMin:
		return domain.ParameterLow, true
	case v > p.ReferenceMax:
		return domain.ParameterHigh, true
	default:
		return domain.ParameterNormal, true
	}
}

// MachineAvailabilityRule warns when a test record is created on a machine
// marked unavailable.
func MachineAvailabilityRule() Rule { return machineAvailabilityRule{} }

type machineAvailabilityRule struct{}

func (machineAvailabilityRule) Name() string { return RuleMachineAvailability }

func (machineAvailabilityRule) Evaluate(_ context.Context, view TransactionView, changes []Change) (Result, error) {
	var res Result
	for _, change := range changes {
		if change.Entity != EntityTestRecord || change.Action != domain.ActionCreate {
			continue
		}
		record, ok := change.After.(domain.TestRecord)
		if !ok {
			continue
		}
		machine, found := view.FindMachine(record.LabID, record.MachineID)
		if !found || machine.Status != domain.MachineUnavailable {
			continue
		}
		res.Violations = append(res.Violations, Violation{
			Rule:     RuleMachineAvailability,
			Severity: SeverityWarn,
			Message:  fmt.Sprintf("la máquina %s no está disponible", machine.Name),
			Entity:   EntityTestRecord,
			EntityID: record.ID,
		})
	}
	return res, nil
}
