// Package webapi exposes the core's catalog operations as plain Go
// service functions — ListSystems, ListGames, ListRoms, ListRomfiles,
// UpdateSetting, PurgeSystem — for any transport to call. The core never
// imports an HTTP framework or a GraphQL library of its own; the
// `server` CLI subcommand (server.go) is one concrete transport wired on
// top, modeled on the teacher's internal/app/web.go.
package webapi

import (
	"context"

	"github.com/xxxsen/romvault/internal/app"
	"github.com/xxxsen/romvault/internal/config"
	"github.com/xxxsen/romvault/internal/model"
)

// Service binds the shared Deps every service function needs. Built once
// by the server subcommand from app.CurrentDeps(), mirroring every other
// runner's PreRun fallback.
type Service struct {
	Deps *app.Deps
}

// ListSystems returns every System in the catalog.
func (s *Service) ListSystems(ctx context.Context) ([]model.System, error) {
	return s.Deps.Store.Systems.List(ctx)
}

// ListGames returns every Game belonging to systemID.
func (s *Service) ListGames(ctx context.Context, systemID int64) ([]model.Game, error) {
	return s.Deps.Store.Games.ListBySystem(ctx, systemID)
}

// ListRoms returns every Rom belonging to gameID.
func (s *Service) ListRoms(ctx context.Context, gameID int64) ([]model.Rom, error) {
	return s.Deps.Store.Roms.ListByGame(ctx, gameID)
}

// ListRomfiles resolves one Romfile by id, the detail a UI fetches after
// ListRoms to render path/size.
func (s *Service) ListRomfiles(ctx context.Context, romfileID int64) (model.Romfile, error) {
	return s.Deps.Store.Romfiles.GetByID(ctx, romfileID)
}

// UpdateSetting sets one catalog-level Setting, reusing the same
// validation path `config -s` drives through app.RunConfig so the HTTP
// transport and the CLI never diverge on what's a legal value.
func (s *Service) UpdateSetting(ctx context.Context, key, value string) (string, error) {
	return app.RunConfig(ctx, s.Deps, app.ConfigOptions{
		Action: app.ConfigSet,
		Key:    key,
		Value:  value,
	})
}

// PurgeSystem removes one System if it has zero Games left, the
// single-target counterpart to the CLI's PurgeSystems sweep.
func (s *Service) PurgeSystem(ctx context.Context, systemID int64) error {
	games, err := s.Deps.Store.Games.ListBySystem(ctx, systemID)
	if err != nil {
		return err
	}
	if len(games) > 0 {
		return nil
	}
	return s.Deps.Store.Systems.Delete(ctx, systemID)
}

// SettingDefault exposes config.DefaultValue for a JSON transport that
// needs to render unset keys the same way `config -l` does.
func SettingDefault(key string) string {
	return config.DefaultValue(config.SettingKey(key))
}
