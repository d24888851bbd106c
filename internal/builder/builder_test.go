package builder

import (
	"testing"

	"github.com/pearProgrammr/mil-tools/internal/diagnostics"
	"github.com/pearProgrammr/mil-tools/internal/mil"
	"github.com/pearProgrammr/mil-tools/internal/types"
)

func TestWildcardShared(t *testing.T) {
	b := New(mil.NewContext(), types.NewTyconEnv(64))
	if b.Temp("_", nil) != b.Wildcard() {
		t.Errorf("underscore temps should share the wildcard object")
	}
	if !b.Wildcard().IsWildcard() {
		t.Errorf("wildcard lost its marker")
	}
}

func TestFreshBlockNames(t *testing.T) {
	b := New(mil.NewContext(), types.NewTyconEnv(64))
	b1 := b.Block("", nil, b.Done(b.Return()))
	b2 := b.Block("", nil, b.Done(b.Return()))
	if b1.Id == b2.Id || b1.Id == "" {
		t.Errorf("anonymous blocks got ids %q and %q", b1.Id, b2.Id)
	}
}

func TestDuplicateDeclarationFails(t *testing.T) {
	b := New(mil.NewContext(), types.NewTyconEnv(64))
	d := &types.DataName{Id: "Pair", KindVal: types.Star}
	if err := b.DeclareTycon(d); err != nil {
		t.Fatalf("first declaration: %v", err)
	}
	err := b.DeclareTycon(&types.DataName{Id: "Pair", KindVal: types.Star})
	f, ok := err.(*diagnostics.Failure)
	if !ok || f.Code != diagnostics.ErrMultipleDecls {
		t.Errorf("err = %v, want %s", err, diagnostics.ErrMultipleDecls)
	}
}
