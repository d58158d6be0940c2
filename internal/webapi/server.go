package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/romvault/internal/app"
)

// ServerOptions carries the server flag surface (spec.md §6 "server
// [-b BIND]"), the optional JSON-over-HTTP transport for the webapi
// service functions.
type ServerOptions struct {
	Bind string
}

// ServerCommand runs `server`: wires Service's functions to a minimal
// net/http.ServeMux transport, modeled on the teacher's
// internal/app/web.go (stdlib only, no router library, method+path
// dispatch, struct-tagged JSON request/response types). When a Postgres
// DSN is configured it also mirrors the catalog into Postgres once, on
// startup; changes made by later requests are not mirrored.
type ServerCommand struct {
	deps   *app.Deps
	opts   ServerOptions
	svc    *Service
	mirror *PgMirror
	server *http.Server
}

func NewServerCommand(deps *app.Deps, opts ServerOptions) *ServerCommand {
	return &ServerCommand{deps: deps, opts: opts}
}

func (c *ServerCommand) Name() string { return "server" }

func (c *ServerCommand) Desc() string {
	return "Serve the webapi service functions over JSON-over-HTTP"
}

func (c *ServerCommand) Init(fs *pflag.FlagSet) {
	fs.StringVarP(&c.opts.Bind, "bind", "b", ":8090", "HTTP listen address")
}

func (c *ServerCommand) PreRun(ctx context.Context) error {
	if c.deps == nil {
		c.deps = app.CurrentDeps()
	}
	if c.deps == nil {
		return errors.New("server: app not initialized")
	}
	c.svc = &Service{Deps: c.deps}

	if c.deps.Cfg != nil && c.deps.Cfg.Postgres != nil && c.deps.Cfg.Postgres.DSN != "" {
		mirror, err := NewPgMirror(ctx, c.deps.Cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		if err := mirror.SyncAll(ctx, c.svc); err != nil {
			mirror.Close()
			return err
		}
		c.mirror = mirror
	}
	return nil
}

func (c *ServerCommand) PostRun(ctx context.Context) error {
	if c.mirror != nil {
		c.mirror.Close()
	}
	if c.server != nil {
		return c.server.Close()
	}
	return nil
}

// Run starts the HTTP listener and blocks until it's closed from
// PostRun or fails.
func (c *ServerCommand) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/systems", c.handleSystems)
	mux.HandleFunc("/api/games", c.handleGames)
	mux.HandleFunc("/api/roms", c.handleRoms)
	mux.HandleFunc("/api/settings", c.handleUpdateSetting)
	mux.HandleFunc("/api/systems/purge", c.handlePurgeSystem)
	mux.HandleFunc("/api/settings/defaults", c.handleSettingDefault)

	c.server = &http.Server{Addr: c.opts.Bind, Handler: mux}

	logger := logutil.GetLogger(ctx)
	logger.Info("webapi server ready", zap.String("addr", c.opts.Bind), zap.Bool("postgres_mirror", c.mirror != nil))

	if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	http.Error(w, err.Error(), status)
}

func (c *ServerCommand) handleSystems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	systems, err := c.svc.ListSystems(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, systems)
}

func (c *ServerCommand) handleGames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	systemID, err := parseQueryInt64(r, "system_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	games, err := c.svc.ListGames(r.Context(), systemID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, games)
}

func (c *ServerCommand) handleRoms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	gameID, err := parseQueryInt64(r, "game_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	roms, err := c.svc.ListRoms(r.Context(), gameID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, roms)
}

type updateSettingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (c *ServerCommand) handleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req updateSettingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := c.svc.UpdateSetting(r.Context(), req.Key, req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, map[string]string{"result": out})
}

func (c *ServerCommand) handlePurgeSystem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	systemID, err := parseQueryInt64(r, "system_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := c.svc.PurgeSystem(r.Context(), systemID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *ServerCommand) handleSettingDefault(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	key := strings.TrimSpace(r.URL.Query().Get("key"))
	if key == "" {
		writeError(w, http.StatusBadRequest, errors.New("key is required"))
		return
	}
	writeJSON(w, map[string]string{"default": SettingDefault(key)})
}

func parseQueryInt64(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, errors.New(key + " is required")
	}
	return strconv.ParseInt(raw, 10, 64)
}

func init() {
	app.RegisterRunner("server", func() app.IRunner { return &ServerCommand{} })
}
