// Package app owns the process-scoped state of OneVerse. Everything is
// built once from storage in New and handed to the UI as one value.
package app

import (
	"database/sql"
	"log/slog"

	"oneverse/internal/config"
	"oneverse/internal/export"
	"oneverse/internal/gateway"
	"oneverse/internal/kv"
	"oneverse/internal/lifecycle"
	"oneverse/internal/models"
	"oneverse/internal/notes"
	"oneverse/internal/planner"
	"oneverse/internal/prefs"
	"oneverse/internal/session"
)

const DefaultTitle = "OneVerse AI"

type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	KV         *kv.Store
	Sessions   *session.Store
	Planner    *planner.Store
	Notes      *notes.Store
	Prefs      *prefs.Prefs
	Gateway    *gateway.Gateway
	Controller *lifecycle.Controller
	Exporter   *export.Exporter
}

// New loads every store from conn and wires the gateway and controller.
// The stored credential wins over the one from the environment.
func New(cfg *config.Config, conn *sql.DB, logger *slog.Logger, factory gateway.BackendFactory, opts ...lifecycle.Option) *App {
	if logger == nil {
		logger = slog.Default()
	}

	store := kv.New(conn, logger)
	a := &App{
		Config:   cfg,
		Logger:   logger,
		KV:       store,
		Sessions: session.NewStore(store, logger),
		Planner:  planner.NewStore(store, logger),
		Notes:    notes.NewStore(store, logger),
		Prefs:    prefs.Load(store, logger),
		Exporter: export.New(cfg.ExportDir, logger),
	}

	a.Gateway = gateway.New(factory, gateway.Models{
		Chat:   cfg.ChatModel,
		Writer: cfg.WriterModel,
		Code:   cfg.CodeModel,
		Image:  cfg.ImageModel,
	}, cfg.RequestTimeout, logger)

	key := a.Prefs.Credential()
	if key == "" {
		key = cfg.APIKey
	}
	a.Gateway.SetCredential(key)

	a.Controller = lifecycle.New(a.Gateway, a.Sessions, logger, opts...)

	logger.Info("app initialized",
		"backend", cfg.Backend,
		"sessions", a.Sessions.Len(),
		"credential", a.Gateway.HasCredential(),
	)
	return a
}

// SubmitCredential persists key and hands it to the gateway
func (a *App) SubmitCredential(key string) bool {
	if !a.Prefs.SetCredential(key) {
		return false
	}
	a.Gateway.SetCredential(a.Prefs.Credential())
	a.Logger.Info("credential updated")
	return true
}

// Logout forgets the credential in storage and in the gateway
func (a *App) Logout() {
	a.Prefs.ClearCredential()
	a.Gateway.SetCredential("")
	a.Logger.Info("credential cleared")
}

func (a *App) NeedsCredential() bool {
	return !a.Gateway.HasCredential()
}

// ActiveTool is the tool of the last message in the active session
func (a *App) ActiveTool() models.Tool {
	sess, ok := a.Sessions.Active()
	if !ok || len(sess.Messages) == 0 {
		return models.ToolChat
	}
	return sess.Messages[len(sess.Messages)-1].ToolOrDefault()
}

// HeaderTitle names the tool of the last user message in the active session
func (a *App) HeaderTitle() string {
	sess, ok := a.Sessions.Active()
	if !ok {
		return DefaultTitle
	}
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if m := sess.Messages[i]; m.Sender == models.SenderUser {
			return string(m.ToolOrDefault())
		}
	}
	return string(models.ToolChat)
}
