package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sites-spectral/internal/auth"
	"sites-spectral/internal/export"
	"sites-spectral/migrations"
)

// cliClaims are the claims command-line operations run under.
var cliClaims = &auth.Claims{Username: "cli", Role: string(auth.RoleAdmin)}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.db.Close()
			return migrations.Apply(cmd.Context(), rt.db, rt.log)
		},
	}
}

// stationUser fills the station fields of user from a station identifier.
func (rt *appEnv) stationUser(ctx context.Context, user *auth.User, station string) error {
	if user.Role != auth.RoleStation {
		return nil
	}
	if station == "" {
		return errors.New("--station is required for the station role")
	}
	catalog, err := rt.catalog()
	if err != nil {
		return err
	}
	s, err := catalog.Resolver().ResolveStation(ctx, station)
	if err != nil {
		return err
	}
	if s == nil {
		return fmt.Errorf("station %q not found", station)
	}
	user.StationID = s.ID
	user.StationAcronym = s.Acronym
	user.StationNormalizedName = s.NormalizedName
	return nil
}

func parseRole(value string) (auth.Role, error) {
	role, ok := auth.NormalizeRole(strings.ToLower(value))
	if !ok {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}

func tokenCommand() *cobra.Command {
	var username, role, station string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.db.Close()
			if rt.cfg.Auth.JWTSecret == "" {
				return errors.New("AUTH_JWT_SECRET is required")
			}
			user := auth.User{Username: username, Role: r}
			if err := rt.stationUser(cmd.Context(), &user, station); err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = rt.cfg.Auth.TokenTTL
			}
			issuer, err := auth.NewTokenIssuer([]byte(rt.cfg.Auth.JWTSecret), ttl)
			if err != nil {
				return err
			}
			token, claims, err := issuer.Issue(user)
			if err != nil {
				return err
			}
			rt.log.WithField("username", username).WithField("expires_at", claims.ExpiresAt.Time).Info("token issued")
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "token subject")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleReadonly), "admin, station or readonly")
	cmd.Flags().StringVar(&station, "station", "", "station identifier for the station role")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from config)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func userCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage login accounts"}

	var username, password, role, station string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a login account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv("SPECTRAL_USER_PASSWORD")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.db.Close()
			user := auth.User{Username: username, PasswordHash: hash, Role: r, Active: true}
			if err := rt.stationUser(cmd.Context(), &user, station); err != nil {
				return err
			}
			if err := user.Validate(); err != nil {
				return err
			}
			if err := auth.NewPostgresUserRepository(rt.db).CreateUser(cmd.Context(), &user); err != nil {
				return err
			}
			rt.log.WithField("username", username).WithField("role", r).Info("user created")
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "login name")
	create.Flags().StringVar(&password, "password", "", "password (default $SPECTRAL_USER_PASSWORD)")
	create.Flags().StringVar(&role, "role", string(auth.RoleReadonly), "admin, station or readonly")
	create.Flags().StringVar(&station, "station", "", "station identifier for the station role")
	_ = create.MarkFlagRequired("username")
	cmd.AddCommand(create)
	return cmd
}

func exportCommand() *cobra.Command {
	var station, format, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one station with its descendants",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			rt, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.db.Close()
			catalog, err := rt.catalog()
			if err != nil {
				return err
			}
			tree, err := catalog.StationTree(auth.WithClaims(cmd.Context(), cliClaims), station)
			if err != nil {
				return err
			}
			doc := export.NewDocument(*tree, time.Now(), cliClaims.Username)
			data, err := export.Render(f, doc)
			if err != nil {
				return err
			}
			if out == "" {
				out = doc.Filename(f)
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			rt.log.WithField("station", tree.Station.NormalizedName).WithField("file", out).Info("export written")
			return nil
		},
	}
	cmd.Flags().StringVar(&station, "station", "", "station id, normalized name or acronym")
	cmd.Flags().StringVar(&format, "format", "json", "json, csv, xlsx or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout (default <station>_export_<date>.<format>)")
	_ = cmd.MarkFlagRequired("station")
	return cmd
}
