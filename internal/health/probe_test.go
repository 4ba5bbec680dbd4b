package health

import (
	"context"
	"errors"
	"testing"
)

func TestFixed(t *testing.T) {
	if err := Fixed(true, "").Check(context.Background()); err != nil {
		t.Errorf("Fixed(true) = %v, want nil", err)
	}
	err := Fixed(false, "no theme loaded").Check(context.Background())
	if err == nil || err.Error() != "no theme loaded" {
		t.Errorf("Fixed(false, reason) = %v", err)
	}
	if err := Fixed(false, "").Check(context.Background()); err == nil || err.Error() != "unhealthy" {
		t.Errorf("Fixed(false) default reason = %v", err)
	}
}

func TestAll(t *testing.T) {
	ok := CheckFunc(func(context.Context) error { return nil })
	bad := CheckFunc(func(context.Context) error { return errors.New("down") })

	if err := All(ok, nil, ok).Check(context.Background()); err != nil {
		t.Errorf("All(ok) = %v", err)
	}
	if err := All(ok, bad, ok).Check(context.Background()); err == nil {
		t.Error("All with failing probe should fail")
	}
	if err := All().Check(context.Background()); err != nil {
		t.Errorf("All() with no probes = %v, want nil", err)
	}
}

func TestShutdownGate(t *testing.T) {
	var g ShutdownGate
	p := g.Probe()

	if err := p.Check(context.Background()); err != nil {
		t.Errorf("fresh gate = %v, want nil", err)
	}

	g.Set("draining")
	if err := p.Check(context.Background()); err == nil || err.Error() != "draining" {
		t.Errorf("closed gate = %v, want draining", err)
	}

	g.Clear()
	if err := p.Check(context.Background()); err != nil {
		t.Errorf("cleared gate = %v, want nil", err)
	}
}
