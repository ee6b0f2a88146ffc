package fees

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"masterpay/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestCalculateSplit(t *testing.T) {
	cases := []struct {
		name       string
		amount     string
		feePercent string
		wantFee    string
		wantMaster string
	}{
		{"five thousand at ten percent", "5000", "10", "500", "4500"},
		{"default platform fee", "1000", "5", "50", "950"},
		{"zero fee", "1000", "0", "0", "1000"},
		{"full fee", "1000", "100", "1000", "0"},
		{"fractional amount", "99.99", "5", "4.99", "95"},
		{"rounding favors master", "100.01", "3", "3", "97.01"},
		{"sub-cent fee floors to zero", "0.10", "5", "0", "0.10"},
		{"zero amount", "0", "5", "0", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			split, err := Calculate(dec(tc.amount), dec(tc.feePercent), models.CurrencyUAH)
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			if !split.PlatformFee.Equal(dec(tc.wantFee)) {
				t.Errorf("platform fee = %s, want %s", split.PlatformFee, tc.wantFee)
			}
			if !split.MasterReceive.Equal(dec(tc.wantMaster)) {
				t.Errorf("master receive = %s, want %s", split.MasterReceive, tc.wantMaster)
			}
			sum := split.PlatformFee.Add(split.MasterReceive)
			if !sum.Equal(dec(tc.amount)) {
				t.Errorf("fee + master = %s, want %s", sum, tc.amount)
			}
		})
	}
}

func TestCalculateMasterNeverShortChanged(t *testing.T) {
	// Any rounding remainder must land on the master's side.
	amounts := []string{"0.01", "1", "3.33", "17.77", "249.99", "5000", "123456.78"}
	percents := []string{"0.5", "1", "2.5", "5", "7.77", "10", "33.33", "99"}

	for _, a := range amounts {
		for _, p := range percents {
			split, err := Calculate(dec(a), dec(p), models.CurrencyEUR)
			if err != nil {
				t.Fatalf("Calculate(%s, %s): %v", a, p, err)
			}
			exact := dec(a).Mul(dec(p)).Div(decimal.NewFromInt(100))
			if split.PlatformFee.GreaterThan(exact) {
				t.Errorf("fee %s for amount=%s pct=%s exceeds exact %s", split.PlatformFee, a, p, exact)
			}
			if !split.PlatformFee.Add(split.MasterReceive).Equal(dec(a)) {
				t.Errorf("split of %s at %s%% does not sum back", a, p)
			}
		}
	}
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	if _, err := Calculate(dec("-1"), dec("5"), models.CurrencyUAH); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("negative amount: got %v, want ErrNegativeAmount", err)
	}
	if _, err := Calculate(dec("100"), dec("-1"), models.CurrencyUAH); !errors.Is(err, ErrInvalidPercent) {
		t.Errorf("negative percent: got %v, want ErrInvalidPercent", err)
	}
	if _, err := Calculate(dec("100"), dec("101"), models.CurrencyUAH); !errors.Is(err, ErrInvalidPercent) {
		t.Errorf("percent above 100: got %v, want ErrInvalidPercent", err)
	}
}
