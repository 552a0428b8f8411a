package masterdata

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Abisko":                "abisko",
		"Skogaryd Research":     "skogaryd_research",
		"  Röbäcksdalen  ":      "robacksdalen",
		"Lönnstorp / Field-2":   "lonnstorp_field_2",
		"Grimsö":                "grimso",
		"Svartberget__Forest!!": "svartberget_forest",
		"Øresund Æble":          "oresund_aeble",
		"---":                   "",
	}
	for input, want := range cases {
		if got := NormalizeName(input); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestParseInstrumentTypeAliases(t *testing.T) {
	cases := map[string]InstrumentType{
		"Phenocam":             InstrumentPhenocam,
		"MS":                   InstrumentMultispectral,
		"Multispectral Sensor": InstrumentMultispectral,
		"ndvi":                 InstrumentNDVI,
		"PRI Sensor":           InstrumentPRI,
		"HYP":                  InstrumentHyperspectral,
	}
	for input, want := range cases {
		got, ok := ParseInstrumentType(input)
		if !ok || got != want {
			t.Fatalf("ParseInstrumentType(%q) = %q, %v", input, got, ok)
		}
	}
	if _, ok := ParseInstrumentType("lidar"); ok {
		t.Fatalf("expected lidar to be rejected")
	}
}

func TestInstrumentTypeRules(t *testing.T) {
	nadir := 120.0
	problems := InstrumentPhenocam.Validate(Instrument{DegreesFromNadir: &nadir})
	if len(problems) != 1 {
		t.Fatalf("expected phenocam nadir problem, got %v", problems)
	}

	problems = InstrumentNDVI.Validate(Instrument{CameraBrand: "Nikon", CameraModel: "D1"})
	if len(problems) != 2 {
		t.Fatalf("expected camera fields rejected, got %v", problems)
	}

	zenith := 170.0
	problems = InstrumentPRI.Validate(Instrument{ViewingDirection: "Zenith", DegreesFromNadir: &zenith})
	if len(problems) != 1 {
		t.Fatalf("expected zenith problem, got %v", problems)
	}
}
