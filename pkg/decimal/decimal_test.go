package decimal

import "testing"

func TestRoundingModes(t *testing.T) {
	t.Parallel()

	d := MustParse("1.2368")

	if got := d.Round(2, HalfUp); got.String() != "1.24" {
		t.Errorf("HalfUp(1.2368, 2) = %s, want 1.24", got)
	}
	if got := d.Round(2, Floor); got.String() != "1.23" {
		t.Errorf("Floor(1.2368, 2) = %s, want 1.23", got)
	}
}

func TestDivRoundFloorQuantity(t *testing.T) {
	t.Parallel()

	notional := MustParse("100")
	price := MustParse("3")

	got := notional.DivRound(price, 4, Floor)
	if got.String() != "33.3333" {
		t.Errorf("DivRound(100,3,4,Floor) = %s, want 33.3333", got)
	}
}

func TestComparisonsNeverUseFloat(t *testing.T) {
	t.Parallel()

	a := MustParse("0.1")
	b := MustParse("0.1").Add(MustParse("0.0")) // still exactly 0.1 in decimal
	if !a.Equal(b) {
		t.Errorf("expected exact decimal equality, got %s != %s", a, b)
	}
}

func TestMinMax(t *testing.T) {
	t.Parallel()

	a, b := MustParse("1.5"), MustParse("2.5")
	if got := a.Min(b); !got.Equal(a) {
		t.Errorf("Min = %s, want %s", got, a)
	}
	if got := a.Max(b); !got.Equal(b) {
		t.Errorf("Max = %s, want %s", got, b)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	t.Parallel()

	d := MustParse("42.1234")
	b, err := d.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}

	var out Decimal
	if err := out.UnmarshalJSON(b); err != nil {
		t.Fatalf("UnmarshalJSON: %v", err)
	}
	if !out.Equal(d) {
		t.Errorf("round trip = %s, want %s", out, d)
	}
}
