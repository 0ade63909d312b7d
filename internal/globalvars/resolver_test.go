// ABOUTME: Tests for global-variable resolution, including cycle detection

package globalvars

import "testing"

func TestResolveSimpleValues(t *testing.T) {
	vars, err := Resolve(map[string]string{"GREETING": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vars["GREETING"] != "hello" {
		t.Errorf("unexpected value: %+v", vars)
	}
}

func TestResolveNestedReference(t *testing.T) {
	vars, err := Resolve(map[string]string{
		"NAME":    "world",
		"MESSAGE": "hello @NAME@",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vars["MESSAGE"] != "hello world" {
		t.Errorf("expected \"hello world\", got %q", vars["MESSAGE"])
	}
}

func TestResolveTransitiveReference(t *testing.T) {
	vars, err := Resolve(map[string]string{
		"A": "@B@-a",
		"B": "@C@-b",
		"C": "base",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vars["A"] != "base-b-a" {
		t.Errorf("expected \"base-b-a\", got %q", vars["A"])
	}
}

func TestResolveDirectCycleErrors(t *testing.T) {
	_, err := Resolve(map[string]string{
		"A": "@B@",
		"B": "@A@",
	})
	if err == nil {
		t.Fatalf("expected a cycle error")
	}
	if _, ok := err.(*CycleError); !ok {
		t.Errorf("expected *CycleError, got %T", err)
	}
}

func TestResolveSelfCycleErrors(t *testing.T) {
	_, err := Resolve(map[string]string{"A": "@A@"})
	if err == nil {
		t.Fatalf("expected a cycle error")
	}
}

func TestResolveUndefinedReferenceErrors(t *testing.T) {
	_, err := Resolve(map[string]string{"A": "@MISSING@"})
	if err == nil {
		t.Fatalf("expected an error for an undefined reference")
	}
}
