package pricing

import (
	"math"
	"testing"
)

func TestResolveZeroDiscountIdentity(t *testing.T) {
	prices := []Money{0, 1, 999.99, 125000}
	for _, p := range prices {
		if got := Resolve(p, 0, DiscountPercentage); got != p {
			t.Fatalf("percentage identity: expected %v, got %v", p, got)
		}
		if got := Resolve(p, 0, DiscountFixed); got != p {
			t.Fatalf("fixed identity: expected %v, got %v", p, got)
		}
	}
}

func TestResolvePercentage(t *testing.T) {
	if got := Resolve(1000, 20, DiscountPercentage); got != 800 {
		t.Fatalf("expected 800, got %v", got)
	}
}

func TestResolveFixedClampedAtZero(t *testing.T) {
	if got := Resolve(1000, 1500, DiscountFixed); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
}

func TestResolveFixed(t *testing.T) {
	if got := Resolve(1000, 150, DiscountFixed); got != 850 {
		t.Fatalf("expected 850, got %v", got)
	}
}

func TestComputeInstallation(t *testing.T) {
	area, amount, ok := ComputeInstallation(1000, 1000, 130)
	if !ok {
		t.Fatal("expected charge to be computable")
	}
	if math.Abs(area-10.7639) > 0.01 {
		t.Fatalf("expected area ~10.7639, got %v", area)
	}
	if math.Abs(amount-1399.31) > 0.01 {
		t.Fatalf("expected amount ~1399.31, got %v", amount)
	}
}

func TestComputeInstallationNotComputable(t *testing.T) {
	cases := []struct {
		name   string
		width  float64
		height float64
	}{
		{"zero width", 0, 1000},
		{"zero height", 1000, 0},
		{"negative width", -10, 1000},
		{"both zero", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, ok := ComputeInstallation(tc.width, tc.height, 130); ok {
				t.Fatalf("expected not computable for %s", tc.name)
			}
		})
	}
}
