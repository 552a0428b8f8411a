package postgres_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus/hooks/test"

	"sites-spectral/internal/auth"
	"sites-spectral/internal/masterdata/application"
	masterdata "sites-spectral/internal/masterdata/domain"
	"sites-spectral/internal/masterdata/infrastructure/postgres"
	"sites-spectral/migrations"
)

func TestCatalogAgainstPostgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	logger, _ := test.NewNullLogger()
	if err := migrations.Apply(ctx, db, logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE stations RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	catalog, err := application.NewCatalog(postgres.NewStore(db))
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	admin := auth.WithClaims(ctx, &auth.Claims{Username: "root", Role: string(auth.RoleAdmin)})

	create := func(kind masterdata.ResourceKind, input map[string]any) masterdata.Ref {
		t.Helper()
		resource, err := catalog.Create(admin, kind, input)
		if err != nil {
			t.Fatalf("create %s: %v", kind, err)
		}
		return resource.Ref()
	}
	create(masterdata.KindStation, map[string]any{"display_name": "Lönnstorp", "acronym": "LON"})
	create(masterdata.KindPlatform, map[string]any{"station_id": "LON", "display_name": "Field", "location_code": "PL01", "ecosystem_code": "AGR"})
	instrument := create(masterdata.KindInstrument, map[string]any{"platform_id": "LON_AGR_PL01", "instrument_type": "phenocam", "deployment_date": "2021-04-01"})
	if instrument.Name != "LON_AGR_PL01_PHE01" {
		t.Fatalf("unexpected instrument name %q", instrument.Name)
	}
	create(masterdata.KindROI, map[string]any{"instrument_id": instrument.Name, "points_json": `[{"x":0,"y":0},{"x":5,"y":0},{"x":5,"y":5}]`})

	station, err := catalog.Get(admin, masterdata.KindStation, "lonnstorp")
	if err != nil {
		t.Fatalf("resolve folded name: %v", err)
	}
	if station.Ref().StationAcronym != "LON" {
		t.Fatalf("unexpected station %+v", station)
	}

	_, err = catalog.Create(admin, masterdata.KindPlatform, map[string]any{"station_id": "LON", "display_name": "Dup", "location_code": "PL01", "ecosystem_code": "AGR"})
	var conflict *masterdata.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := catalog.Update(admin, masterdata.KindInstrument, instrument.Name, map[string]any{"deployment_date": ""}); err != nil {
		t.Fatalf("clear date: %v", err)
	}

	result, err := catalog.Delete(admin, masterdata.KindStation, "LON", application.DeleteOptions{ForceCascade: true})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if result.DependenciesDeleted["rois"] != 1 || result.DependenciesDeleted["instruments"] != 1 {
		t.Fatalf("unexpected cascade %v", result.DependenciesDeleted)
	}
	var left int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM instrument_rois").Scan(&left); err != nil || left != 0 {
		t.Fatalf("cascade left %d rois (%v)", left, err)
	}
}
