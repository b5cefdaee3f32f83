package hyperliquid

import "testing"

func TestCloidForIsDeterministicAndReversible(t *testing.T) {
	t.Parallel()

	r := NewCloidRegistry()
	cloid1 := r.CloidFor("A1")
	cloid2 := r.CloidFor("A1")
	if cloid1 != cloid2 {
		t.Fatalf("CloidFor not deterministic: %q vs %q", cloid1, cloid2)
	}

	clID, ok := r.ClIDForCloid(cloid1)
	if !ok || clID != "A1" {
		t.Fatalf("ClIDForCloid(%q) = %q, %v, want A1, true", cloid1, clID, ok)
	}
}

func TestCloidForDistinctClIDsYieldDistinctCloids(t *testing.T) {
	t.Parallel()

	r := NewCloidRegistry()
	c1 := r.CloidFor("A1")
	c2 := r.CloidFor("A2")
	if c1 == c2 {
		t.Error("expected distinct cl_ids to map to distinct cloids")
	}
}

func TestSetRoleAndRoleFor(t *testing.T) {
	t.Parallel()

	r := NewCloidRegistry()
	cloid := r.CloidFor("BRACKET-1")
	r.SetRole(cloid, RoleTakeProfit)

	role, ok := r.RoleFor(cloid)
	if !ok || role != RoleTakeProfit {
		t.Fatalf("RoleFor = %q, %v, want tp, true", role, ok)
	}
}

func TestForgetRemovesAllMappings(t *testing.T) {
	t.Parallel()

	r := NewCloidRegistry()
	cloid := r.CloidFor("A1")
	r.SetRole(cloid, RoleStopLoss)

	r.Forget("A1")

	if _, ok := r.CloidForClID("A1"); ok {
		t.Error("expected CloidForClID to be forgotten")
	}
	if _, ok := r.ClIDForCloid(cloid); ok {
		t.Error("expected ClIDForCloid to be forgotten")
	}
	if _, ok := r.RoleFor(cloid); ok {
		t.Error("expected role to be forgotten")
	}
}
