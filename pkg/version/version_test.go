package version

import (
	"errors"
	"testing"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  ProtocolVersion
	}{
		{"0.1.0", ProtocolVersion{0, 1, 0}},
		{"1.0.0", ProtocolVersion{1, 0, 0}},
		{"2.10.3", ProtocolVersion{2, 10, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if v != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, v, tt.want)
			}
			if v.String() != tt.input {
				t.Errorf("String() = %q, want %q", v.String(), tt.input)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"1",
		"1.0",
		"abc",
		"1.0.0.0",
		"1.x.0",
		"-1.0.0",
		"1..0",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if !errors.Is(err, ggerr.Parse) {
				t.Errorf("Parse(%q) = %v, want PARSE error", input, err)
			}
		})
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"0.1.0", "0.1.0", true},
		{"0.1.0", "0.1.7", true},
		{"0.1.0", "0.2.0", false},
		{"0.1.0", "1.1.0", false},
		{"1.0.0", "1.4.0", true},
		{"1.0.0", "2.0.0", false},
	}

	for _, tt := range tests {
		if got := MustParse(tt.a).Compatible(MustParse(tt.b)); got != tt.want {
			t.Errorf("%s.Compatible(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCheck(t *testing.T) {
	if err := Check(Current); err != nil {
		t.Errorf("Check(Current) = %v", err)
	}
	if err := Check(""); err != nil {
		t.Errorf("Check(\"\") = %v, want nil", err)
	}
	if err := Check("1.0.0"); !errors.Is(err, ggerr.Unsupported) {
		t.Errorf("Check(1.0.0) = %v, want UNSUPPORTED", err)
	}
	if err := Check("bogus"); !errors.Is(err, ggerr.Parse) {
		t.Errorf("Check(bogus) = %v, want PARSE", err)
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse did not panic")
		}
	}()
	MustParse("nope")
}
