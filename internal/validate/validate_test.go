package validate

import (
	"strings"
	"testing"
	"time"
)

func TestCPF(t *testing.T) {
	t.Run("RepeatedDigitsRejected", func(t *testing.T) {
		for d := '0'; d <= '9'; d++ {
			raw := strings.Repeat(string(d), 11)
			if CPF(raw) {
				t.Errorf("expected %s to be invalid", raw)
			}
		}
	})

	t.Run("KnownValid", func(t *testing.T) {
		for _, raw := range []string{"11144477735", "52998224725", "111.444.777-35", " 529.982.247-25 "} {
			if !CPF(raw) {
				t.Errorf("expected %q to be valid", raw)
			}
		}
	})

	t.Run("SingleDigitAlteration", func(t *testing.T) {
		base := []byte("11144477735")
		for i := range base {
			for d := byte('0'); d <= '9'; d++ {
				if d == base[i] {
					continue
				}
				altered := append([]byte(nil), base...)
				altered[i] = d
				if CPF(string(altered)) {
					t.Errorf("expected altered CPF %s to be invalid", altered)
				}
			}
		}
	})

	t.Run("FormattingInsensitive", func(t *testing.T) {
		pairs := [][2]string{
			{"111.444.777-35", "11144477735"},
			{"111.444.777-36", "11144477736"},
		}
		for _, p := range pairs {
			if CPF(p[0]) != CPF(p[1]) {
				t.Errorf("%q and %q validated differently", p[0], p[1])
			}
		}
	})

	t.Run("WrongLength", func(t *testing.T) {
		for _, raw := range []string{"", "abc", "1114447773", "111444777350", "CPF"} {
			if CPF(raw) {
				t.Errorf("expected %q to be invalid", raw)
			}
		}
	})
}

func TestCNPJ(t *testing.T) {
	t.Run("AnyFourteenDigits", func(t *testing.T) {
		for _, raw := range []string{"12345678000100", "11.222.333/0001-81", "00000000000000", "99999999999999"} {
			if !CNPJ(raw) {
				t.Errorf("expected %q to pass the length check", raw)
			}
		}
	})

	t.Run("OtherLengths", func(t *testing.T) {
		for _, raw := range []string{"", "1234567800010", "123456780001000", "11.222.333/0001"} {
			if CNPJ(raw) {
				t.Errorf("expected %q to be invalid", raw)
			}
		}
	})
}

func TestCNPJChecksum(t *testing.T) {
	valid := []string{"11.222.333/0001-81", "11222333000181"}
	for _, raw := range valid {
		if !CNPJChecksum(raw) {
			t.Errorf("expected %q to have valid check digits", raw)
		}
	}

	invalid := []string{"11.222.333/0001-82", "11222333000191", "12345678000100", "00000000000000", "1122233300018"}
	for _, raw := range invalid {
		if CNPJChecksum(raw) {
			t.Errorf("expected %q to fail the checksum", raw)
		}
	}
}

func TestDate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("KnownValid", func(t *testing.T) {
		for _, raw := range []string{"01/01/2020", "2020-01-01", "01-01-2020", "12/31/2019", " 15/06/2025 "} {
			if !DateAt(raw, now) {
				t.Errorf("expected %q to be valid", raw)
			}
		}
	})

	t.Run("FutureRejectedForEveryLayout", func(t *testing.T) {
		future := now.AddDate(1, 0, 0)
		for _, layout := range []string{"02/01/2006", "2006-01-02", "02-01-2006", "01/02/2006"} {
			raw := future.Format(layout)
			if DateAt(raw, now) {
				t.Errorf("expected future date %q (%s) to be invalid", raw, layout)
			}
		}
	})

	t.Run("DayFirstPrecedence", func(t *testing.T) {
		parsed, ok := ParseDate("01/02/2020", time.UTC)
		if !ok {
			t.Fatal("expected 01/02/2020 to parse")
		}
		if parsed.Month() != time.February || parsed.Day() != 1 {
			t.Errorf("expected 1 February, got %s", parsed.Format("2006-01-02"))
		}
	})

	t.Run("MonthDayFallback", func(t *testing.T) {
		parsed, ok := ParseDate("12/31/2019", time.UTC)
		if !ok {
			t.Fatal("expected 12/31/2019 to parse")
		}
		if parsed.Month() != time.December || parsed.Day() != 31 {
			t.Errorf("expected 31 December, got %s", parsed.Format("2006-01-02"))
		}
	})

	t.Run("Unparseable", func(t *testing.T) {
		for _, raw := range []string{"", "ontem", "31/02/2020", "2020/01/01", "13/13/2020"} {
			if DateAt(raw, now) {
				t.Errorf("expected %q to be invalid", raw)
			}
		}
	})

	t.Run("TodayIsValid", func(t *testing.T) {
		if !Date(time.Now().Format("02/01/2006")) {
			t.Error("expected today to be valid")
		}
	})
}
