package errors

import (
	stdErrors "errors"
	"testing"

	"github.com/lib/pq"
)

func TestDumpNil(t *testing.T) {
	d := Dump(nil)
	if d.TopMessage != "" || d.Code != "" || d.Chain != nil {
		t.Fatalf("expected zero dump for nil error, got %+v", d)
	}
}

func TestDumpPlainChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("connection refused"), "reaching database")

	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two links in the chain, got %v", d.Chain)
	}
	if d.PGCode != "" {
		t.Fatalf("expected no driver detail for a plain error, got %s", d.PGCode)
	}
}

func TestDumpSurfacesDriverDetail(t *testing.T) {
	cause := &pq.Error{
		Code:       "23505",
		Constraint: "uidx_aggregate_version",
		Table:      "event_store",
		Detail:     "Key (aggregate_id, aggregate_type, aggregate_version) already exists.",
		Message:    "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeConflict, cause, "aggregate version already claimed")

	d := Dump(err)
	if d.Code != CodeConflict {
		t.Fatalf("expected conflict code, got %s", d.Code)
	}
	if d.PGCode != "23505" {
		t.Fatalf("expected sqlstate 23505, got %s", d.PGCode)
	}
	if d.PGConstraint != "uidx_aggregate_version" {
		t.Fatalf("expected constraint name, got %s", d.PGConstraint)
	}
	if d.PGTable != "event_store" {
		t.Fatalf("expected table name, got %s", d.PGTable)
	}
}
