package core

import (
	"errors"
	"testing"

	"alquimist/internal/validation"
	"alquimist/pkg/domain"
)

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	out := make(map[string]string, len(verr.Fields))
	for _, f := range verr.Fields {
		out[f.Field] = f.Message
	}
	return out
}

func TestClientTestInputReportsNestedResultPaths(t *testing.T) {
	bad := domain.ParameterStatus("altísimo")
	name, value, unit := "Glucosa", "90", "mg/dL"
	lo, hi := 70.0, 100.0
	testName := "Glucosa"
	in := ClientTestInput{
		TestName: &testName,
		Results: &[]ParameterInput{
			{Name: &name, Value: &value, Unit: &unit, ReferenceMin: &lo, ReferenceMax: &hi, Status: &bad},
		},
	}
	fields := fieldsOf(t, in.Validate(true))
	if _, ok := fields["results[0].status"]; !ok {
		t.Fatalf("expected results[0].status error, got %v", fields)
	}
	if len(fields) != 1 {
		t.Fatalf("partial validation should only check supplied fields, got %v", fields)
	}
}

func TestMachineInputNormalizesLegacyStatus(t *testing.T) {
	legacy := domain.MachineStatus("no disponible")
	in := MachineInput{Status: &legacy}
	if err := in.Validate(true); err != nil {
		t.Fatalf("legacy status should be accepted: %v", err)
	}
	var m domain.Machine
	in.apply(&m)
	if m.Status != domain.MachineUnavailable {
		t.Fatalf("expected normalized status, got %q", m.Status)
	}
}

func TestFullValidationReportsEveryMissingField(t *testing.T) {
	fields := fieldsOf(t, InventoryInput{}.Validate(false))
	for _, f := range []string{"name", "category", "quantity", "unit", "minStock", "expirationDate", "supplier", "status"} {
		if _, ok := fields[f]; !ok {
			t.Fatalf("expected %s reported, got %v", f, fields)
		}
	}
}

func TestParametersDefaultIDs(t *testing.T) {
	id := "hb"
	out := parameters([]ParameterInput{{ID: &id}, {}})
	if out[0].ID != "hb" || out[1].ID != "p2" {
		t.Fatalf("unexpected ids %q %q", out[0].ID, out[1].ID)
	}
}
