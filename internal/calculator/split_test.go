package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sum(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

func TestCeilDiv(t *testing.T) {
	tests := []struct {
		amount string
		n      int64
		scale  int32
		want   string
	}{
		{"100000", 3, 0, "33334"},
		{"100000", 4, 0, "25000"},
		{"10000", 3, 0, "3334"},
		{"1", 2, 0, "1"},
		{"10.00", 3, 2, "3.34"},
		{"0.01", 3, 2, "0.01"},
		{"0", 5, 0, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.amount+"/"+decimal.NewFromInt(tt.n).String(), func(t *testing.T) {
			got := CeilDiv(d(tt.amount), tt.n, tt.scale)
			if !got.Equal(d(tt.want)) {
				t.Errorf("CeilDiv(%s, %d, %d) = %s, want %s", tt.amount, tt.n, tt.scale, got, tt.want)
			}
		})
	}
}

func TestFloorDiv(t *testing.T) {
	if got := FloorDiv(d("100000"), 3, 0); !got.Equal(d("33333")) {
		t.Errorf("FloorDiv = %s, want 33333", got)
	}
	if got := FloorDiv(d("-10"), 3, 0); !got.Equal(d("-4")) {
		t.Errorf("FloorDiv negative = %s, want -4", got)
	}
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name         string
		total        string
		n            int
		scale        int32
		wantErr      bool
		validateFunc func(t *testing.T, parts []decimal.Decimal)
	}{
		{
			name:  "ceiling then remainder",
			total: "100000",
			n:     3,
			validateFunc: func(t *testing.T, parts []decimal.Decimal) {
				want := []string{"33334", "33334", "33332"}
				for i, w := range want {
					if !parts[i].Equal(d(w)) {
						t.Errorf("part %d = %s, want %s", i+1, parts[i], w)
					}
				}
			},
		},
		{
			name:  "even split",
			total: "100000",
			n:     2,
			validateFunc: func(t *testing.T, parts []decimal.Decimal) {
				for i, p := range parts {
					if !p.Equal(d("50000")) {
						t.Errorf("part %d = %s, want 50000", i+1, p)
					}
				}
			},
		},
		{
			name:  "ceiling would starve last part",
			total: "10",
			n:     6,
			validateFunc: func(t *testing.T, parts []decimal.Decimal) {
				// ceil(10/6)=2 leaves 0 for the last part, so floor is used: 1×5 + 5
				for i := 0; i < 5; i++ {
					if !parts[i].Equal(d("1")) {
						t.Errorf("part %d = %s, want 1", i+1, parts[i])
					}
				}
				if !parts[5].Equal(d("5")) {
					t.Errorf("last part = %s, want 5", parts[5])
				}
			},
		},
		{
			name:  "cents",
			total: "100.00",
			n:     3,
			scale: 2,
			validateFunc: func(t *testing.T, parts []decimal.Decimal) {
				if !parts[0].Equal(d("33.34")) || !parts[2].Equal(d("33.32")) {
					t.Errorf("parts = %v, want [33.34 33.34 33.32]", parts)
				}
			},
		},
		{
			name:  "exactly one unit each",
			total: "3",
			n:     3,
			validateFunc: func(t *testing.T, parts []decimal.Decimal) {
				for i, p := range parts {
					if !p.Equal(d("1")) {
						t.Errorf("part %d = %s, want 1", i+1, p)
					}
				}
			},
		},
		{
			name:    "fewer units than parts",
			total:   "1",
			n:       2,
			wantErr: true,
		},
		{
			name:    "zero parts",
			total:   "100",
			n:       0,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, err := Partition(d(tt.total), tt.n, tt.scale)
			if (err != nil) != tt.wantErr {
				t.Errorf("Partition() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if len(parts) != tt.n {
				t.Fatalf("expected %d parts, got %d", tt.n, len(parts))
			}
			if !sum(parts).Equal(d(tt.total)) {
				t.Errorf("parts sum to %s, want %s", sum(parts), tt.total)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, parts)
			}
		})
	}
}

func TestPartition_SumIsExact(t *testing.T) {
	totals := []string{"2", "7", "99", "100", "101", "99999", "100000", "123457", "1000001"}
	for _, total := range totals {
		for n := 2; n <= 20; n++ {
			if d(total).LessThan(decimal.NewFromInt(int64(n))) {
				continue
			}
			parts, err := Partition(d(total), n, 0)
			if err != nil {
				t.Fatalf("Partition(%s, %d) failed: %v", total, n, err)
			}
			if !sum(parts).Equal(d(total)) {
				t.Errorf("Partition(%s, %d) sums to %s", total, n, sum(parts))
			}
			for i, p := range parts {
				if p.Sign() <= 0 {
					t.Errorf("Partition(%s, %d) part %d = %s, want positive", total, n, i+1, p)
				}
			}
		}
	}
}

func TestShares_SharedItem(t *testing.T) {
	shares, err := Shares(d("10000"), 3, 0)
	if err != nil {
		t.Fatalf("Shares failed: %v", err)
	}
	if !shares[0].Equal(d("3334")) || !shares[1].Equal(d("3334")) || !shares[2].Equal(d("3332")) {
		t.Errorf("shares = %v, want [3334 3334 3332]", shares)
	}
	if !sum(shares).Equal(d("10000")) {
		t.Errorf("shares sum to %s, want 10000", sum(shares))
	}

	// Fewer units than shares is allowed and yields zero shares.
	shares, err = Shares(d("1"), 3, 0)
	if err != nil {
		t.Fatalf("Shares failed: %v", err)
	}
	if !sum(shares).Equal(d("1")) {
		t.Errorf("shares sum to %s, want 1", sum(shares))
	}
}

func TestAllocateCharges(t *testing.T) {
	tests := []struct {
		name         string
		items        []Item
		subtotal     string
		total        string
		wantErr      bool
		validateFunc func(t *testing.T, totals []decimal.Decimal)
	}{
		{
			name: "proportional tax",
			items: []Item{
				{LineID: "pizza", Subtotal: d("20000")},
				{LineID: "salad", Subtotal: d("10000")},
			},
			subtotal: "30000",
			total:    "33000",
			validateFunc: func(t *testing.T, totals []decimal.Decimal) {
				if !totals[0].Equal(d("22000")) {
					t.Errorf("pizza total = %s, want 22000", totals[0])
				}
				if !totals[1].Equal(d("11000")) {
					t.Errorf("salad total = %s, want 11000", totals[1])
				}
			},
		},
		{
			name: "rounding remainder goes to last item",
			items: []Item{
				{Subtotal: d("10000")},
				{Subtotal: d("10000")},
				{Subtotal: d("10000")},
			},
			subtotal: "30000",
			total:    "33001",
			validateFunc: func(t *testing.T, totals []decimal.Decimal) {
				if !sum(totals).Equal(d("33001")) {
					t.Errorf("totals sum to %s, want 33001", sum(totals))
				}
			},
		},
		{
			name:     "zero subtotal should error",
			items:    []Item{{Subtotal: d("10")}},
			subtotal: "0",
			total:    "10",
			wantErr:  true,
		},
		{
			name:     "no items should error",
			items:    nil,
			subtotal: "10",
			total:    "10",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			totals, err := AllocateCharges(tt.items, d(tt.subtotal), d(tt.total), 0)
			if (err != nil) != tt.wantErr {
				t.Errorf("AllocateCharges() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.validateFunc != nil {
				tt.validateFunc(t, totals)
			}
		})
	}
}

func TestLineTotal(t *testing.T) {
	got, err := LineTotal(d("50000"), d("100000"), d("110000"), 0)
	if err != nil {
		t.Fatalf("LineTotal failed: %v", err)
	}
	if !got.Equal(d("55000")) {
		t.Errorf("LineTotal = %s, want 55000", got)
	}
}
