package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	masterdata "sites-spectral/internal/masterdata/domain"
)

func seedStore(t *testing.T) (*Store, masterdata.Station, masterdata.Platform, masterdata.Instrument) {
	t.Helper()
	ctx := context.Background()
	s := NewStore()
	station := masterdata.Station{NormalizedName: "svartberget", DisplayName: "Svartberget", Acronym: "SVB", Status: "Active"}
	if err := s.CreateStation(ctx, &station); err != nil {
		t.Fatalf("station: %v", err)
	}
	platform := masterdata.Platform{StationID: station.ID, NormalizedName: "SVB_FOR_PL01", LocationCode: "PL01", EcosystemCode: "FOR"}
	if err := s.CreatePlatform(ctx, &platform); err != nil {
		t.Fatalf("platform: %v", err)
	}
	instrument := masterdata.Instrument{PlatformID: platform.ID, NormalizedName: "SVB_FOR_PL01_PHE01", InstrumentType: "phenocam", LegacyAcronym: "SVB-FOR-P-PL01"}
	if err := s.CreateInstrument(ctx, &instrument); err != nil {
		t.Fatalf("instrument: %v", err)
	}
	roi := masterdata.ROI{InstrumentID: instrument.ID, ROIName: "ROI_01", Points: json.RawMessage(`[[0,0],[1,0],[1,1]]`)}
	if err := s.CreateROI(ctx, &roi); err != nil {
		t.Fatalf("roi: %v", err)
	}
	return s, station, platform, instrument
}

func TestStoreEnforcesUniqueAndParents(t *testing.T) {
	s, station, _, _ := seedStore(t)
	ctx := context.Background()

	dup := masterdata.Station{NormalizedName: "other", DisplayName: "Other", Acronym: "SVB"}
	if err := s.CreateStation(ctx, &dup); !errors.Is(err, masterdata.ErrUniqueViolation) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	sameCode := masterdata.Platform{StationID: station.ID, NormalizedName: "SVB_MIR_PL01", LocationCode: "PL01", EcosystemCode: "MIR"}
	if err := s.CreatePlatform(ctx, &sameCode); !errors.Is(err, masterdata.ErrUniqueViolation) {
		t.Fatalf("expected location code violation, got %v", err)
	}
	orphan := masterdata.Platform{StationID: 999, NormalizedName: "X_MIR_PL01", LocationCode: "PL01", EcosystemCode: "MIR"}
	if err := s.CreatePlatform(ctx, &orphan); !errors.Is(err, masterdata.ErrInvalidParent) {
		t.Fatalf("expected invalid parent, got %v", err)
	}
	if err := s.UpdateStation(ctx, 999, masterdata.Changes{"country": "SE"}); !errors.Is(err, masterdata.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStoreEnrichesReadsWithCurrentParents(t *testing.T) {
	s, station, _, instrument := seedStore(t)
	ctx := context.Background()

	if err := s.UpdateStation(ctx, station.ID, masterdata.Changes{"normalized_name": "svartberget_field"}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, err := s.GetInstrument(ctx, instrument.ID)
	if err != nil || got == nil {
		t.Fatalf("get: %+v, %v", got, err)
	}
	if got.StationNormalizedName != "svartberget_field" || got.PlatformNormalizedName != "SVB_FOR_PL01" {
		t.Fatalf("stale enrichment %+v", got)
	}

	byLegacy, err := s.FindInstrument(ctx, "SVB-FOR-P-PL01")
	if err != nil || byLegacy == nil || byLegacy.ID != instrument.ID {
		t.Fatalf("legacy acronym lookup: %+v, %v", byLegacy, err)
	}
}

func TestStoreCascadesDeletes(t *testing.T) {
	s, station, platform, _ := seedStore(t)
	ctx := context.Background()

	counts, err := s.CountDependencies(ctx, masterdata.KindPlatform, platform.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[masterdata.KindInstrument] != 1 || counts[masterdata.KindROI] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}

	if err := s.DeleteStation(ctx, station.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rois, err := s.ListROIs(ctx, masterdata.ROIFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rois) != 0 {
		t.Fatalf("cascade left %d rois", len(rois))
	}
}

func TestFindPlatformSharedNameIsStable(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	var want int64
	for i, acronym := range []string{"SVB", "ANS", "LON", "GRI"} {
		station := masterdata.Station{NormalizedName: "station_" + acronym, DisplayName: acronym, Acronym: acronym, Status: "Active"}
		if err := s.CreateStation(ctx, &station); err != nil {
			t.Fatalf("station: %v", err)
		}
		platform := masterdata.Platform{StationID: station.ID, NormalizedName: "tower", LocationCode: "PL01", EcosystemCode: "FOR"}
		if err := s.CreatePlatform(ctx, &platform); err != nil {
			t.Fatalf("platform: %v", err)
		}
		if i == 0 {
			want = platform.ID
		}
	}

	for i := 0; i < 100; i++ {
		p, err := s.FindPlatform(ctx, "tower")
		if err != nil || p == nil {
			t.Fatalf("find: %v %v", p, err)
		}
		if p.ID != want || p.StationNormalizedName != "station_SVB" {
			t.Fatalf("lookup %d resolved to platform %d of %s, want %d", i, p.ID, p.StationNormalizedName, want)
		}
	}
}
