package reorder

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestDecide(t *testing.T) {
	rule := domain.ReorderRule{MaterialID: "M-1", ReorderPoint: 150, OrderQuantity: 50, Vendor: "ACME", LeadTimeDays: 7}

	tests := []struct {
		name     string
		stock    float64
		forecast float64
		rules    []domain.ReorderRule
		want     []domain.OrderDraft
	}{
		{
			name:     "below reorder point uses rule quantity",
			stock:    100,
			forecast: 40,
			rules:    []domain.ReorderRule{rule},
			want: []domain.OrderDraft{{
				MaterialID: "M-1", Quantity: 50, Vendor: "ACME",
				ExpectedDelivery: now.AddDate(0, 0, 7),
			}},
		},
		{
			name:     "buffered forecast exceeds rule quantity",
			stock:    100,
			forecast: 60,
			rules:    []domain.ReorderRule{rule},
			want: []domain.OrderDraft{{
				MaterialID: "M-1", Quantity: 66, Vendor: "ACME",
				ExpectedDelivery: now.AddDate(0, 0, 7),
			}},
		},
		{
			name:     "at reorder point triggers",
			stock:    150,
			forecast: 0,
			rules:    []domain.ReorderRule{rule},
			want: []domain.OrderDraft{{
				MaterialID: "M-1", Quantity: 50, Vendor: "ACME",
				ExpectedDelivery: now.AddDate(0, 0, 7),
			}},
		},
		{
			name:     "above reorder point",
			stock:    151,
			forecast: 500,
			rules:    []domain.ReorderRule{rule},
		},
		{
			name:     "zero reorder point ignores zero stock",
			stock:    0,
			forecast: 10,
			rules:    []domain.ReorderRule{{MaterialID: "M-2", OrderQuantity: 5}},
		},
		{
			name:     "zero reorder point handles backorder",
			stock:    -3,
			forecast: 10,
			rules:    []domain.ReorderRule{{MaterialID: "M-2", OrderQuantity: 5}},
			want: []domain.OrderDraft{{
				MaterialID: "M-2", Quantity: 11, ExpectedDelivery: now,
			}},
		},
		{
			name:     "negative forecast adds no buffer",
			stock:    10,
			forecast: -80,
			rules:    []domain.ReorderRule{rule},
			want: []domain.OrderDraft{{
				MaterialID: "M-1", Quantity: 50, Vendor: "ACME",
				ExpectedDelivery: now.AddDate(0, 0, 7),
			}},
		},
		{
			name:     "rules evaluated in given order",
			stock:    5,
			forecast: 0,
			rules: []domain.ReorderRule{
				{MaterialID: "B", ReorderPoint: 10, OrderQuantity: 1},
				{MaterialID: "A", ReorderPoint: 10, OrderQuantity: 2},
			},
			want: []domain.OrderDraft{
				{MaterialID: "B", Quantity: 1, ExpectedDelivery: now},
				{MaterialID: "A", Quantity: 2, ExpectedDelivery: now},
			},
		},
		{
			name:     "duplicate material keeps the last rule",
			stock:    100,
			forecast: 40,
			rules: []domain.ReorderRule{
				rule,
				{MaterialID: "B", ReorderPoint: 150, OrderQuantity: 1},
				{MaterialID: "M-1", ReorderPoint: 150, OrderQuantity: 80, Vendor: "Globex", LeadTimeDays: 2},
			},
			want: []domain.OrderDraft{
				{MaterialID: "M-1", Quantity: 80, Vendor: "Globex", ExpectedDelivery: now.AddDate(0, 0, 2)},
				{MaterialID: "B", Quantity: 44, ExpectedDelivery: now},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(now, tt.stock, tt.forecast, tt.rules)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decide() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecide_Deterministic(t *testing.T) {
	rules := []domain.ReorderRule{
		{MaterialID: "M-1", ReorderPoint: 20, OrderQuantity: 10, LeadTimeDays: 3},
		{MaterialID: "M-2", ReorderPoint: 20, OrderQuantity: 4, LeadTimeDays: 1},
	}
	first := Decide(now, 12, 9.3, rules)
	second := Decide(now, 12, 9.3, rules)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Decide() not deterministic: %+v vs %+v", first, second)
	}
}

func TestDemandAndShortage(t *testing.T) {
	if got := Demand(-12.5); got != 12.5 {
		t.Errorf("Demand(-12.5) = %v, want 12.5", got)
	}
	if got := Demand(4); got != 0 {
		t.Errorf("Demand(4) = %v, want 0", got)
	}

	tests := []struct {
		required, available, want float64
	}{
		{100, 40, 60},
		{40, 100, 0},
		{30, -10, 30},
		{-5, 0, 0},
	}
	for _, tt := range tests {
		if got := Shortage(tt.required, tt.available); got != tt.want {
			t.Errorf("Shortage(%v, %v) = %v, want %v", tt.required, tt.available, got, tt.want)
		}
	}
}

func TestRuleSet_LastWriteWinsKeepsPosition(t *testing.T) {
	s := NewRuleSet()
	if err := s.Register(
		domain.ReorderRule{MaterialID: "A", ReorderPoint: 1, OrderQuantity: 1},
		domain.ReorderRule{MaterialID: "B", ReorderPoint: 2, OrderQuantity: 2},
	); err != nil {
		t.Fatal(err)
	}
	if err := s.Register(domain.ReorderRule{MaterialID: " A ", ReorderPoint: 9, OrderQuantity: 9}); err != nil {
		t.Fatal(err)
	}

	got := s.List()
	if len(got) != 2 || got[0].MaterialID != "A" || got[1].MaterialID != "B" {
		t.Fatalf("List() order = %+v", got)
	}
	if got[0].ReorderPoint != 9 {
		t.Errorf("rule A reorder point = %v, want 9", got[0].ReorderPoint)
	}
	if r := s.ForMaterial("B"); len(r) != 1 || r[0].OrderQuantity != 2 {
		t.Errorf("ForMaterial(B) = %+v", r)
	}
	if r := s.ForMaterial("missing"); r != nil {
		t.Errorf("ForMaterial(missing) = %+v, want nil", r)
	}
}

func TestRuleSet_RejectsInvalidBatch(t *testing.T) {
	s := NewRuleSet()
	err := s.Register(
		domain.ReorderRule{MaterialID: "A", ReorderPoint: 1, OrderQuantity: 1},
		domain.ReorderRule{MaterialID: "B", ReorderPoint: -1, OrderQuantity: 1},
	)
	if !errors.Is(err, domain.ErrInvalidRule) {
		t.Fatalf("Register() error = %v, want ErrInvalidRule", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after rejected batch", s.Len())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		rule    domain.ReorderRule
		wantErr bool
	}{
		{"valid", domain.ReorderRule{MaterialID: "A", ReorderPoint: 10, OrderQuantity: 5}, false},
		{"missing id", domain.ReorderRule{ReorderPoint: 10, OrderQuantity: 5}, true},
		{"negative min stock", domain.ReorderRule{MaterialID: "A", MinStock: -1, OrderQuantity: 5}, true},
		{"zero quantity", domain.ReorderRule{MaterialID: "A", ReorderPoint: 10}, true},
		{"negative lead time", domain.ReorderRule{MaterialID: "A", OrderQuantity: 5, LeadTimeDays: -2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.rule); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
