package main

import (
	"net/http"
	"time"

	"github.com/matryer/way"
	log "github.com/sirupsen/logrus"

	"asylum-lite/apps/server/internal/auth"
	"asylum-lite/apps/server/internal/career"
	"asylum-lite/apps/server/internal/config"
	"asylum-lite/apps/server/internal/gateway"
	"asylum-lite/apps/server/internal/ledger"
	"asylum-lite/apps/server/internal/lobby"
	"asylum-lite/apps/server/internal/store"
	"asylum-lite/asylum/npc"
)

func openStore(cfg config.Config) (*store.DB, error) {
	switch cfg.AuthMode {
	case config.AuthModeSQLite:
		path := cfg.SQLitePath
		if path == "" {
			p, err := store.DefaultSQLitePath("asylum_local.db")
			if err != nil {
				return nil, err
			}
			path = p
		}
		log.Infof("[Server] SQLite path: %s", path)
		return store.OpenSQLite(path)
	case config.AuthModePostgres:
		return store.OpenPostgres(cfg.DatabaseURL)
	}
	return nil, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Server] Invalid config: %v", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	db, err := openStore(cfg)
	if err != nil {
		log.Fatalf("[Server] Failed to open store: %v", err)
	}
	if db != nil {
		defer db.Close()
	}

	authService, err := auth.NewService(db, cfg.SessionTTL)
	if err != nil {
		log.Fatalf("[Server] Failed to init auth manager: %v", err)
	}
	defer authService.Close()
	ledgerService, ledgerMode, err := ledger.NewService(db, cfg.HistoryLimit, cfg.HistoryCacheSize)
	if err != nil {
		log.Fatalf("[Server] Failed to init ledger service: %v", err)
	}
	defer ledgerService.Close()
	careerService, careerMode, err := career.NewService(db)
	if err != nil {
		log.Fatalf("[Server] Failed to init career service: %v", err)
	}
	defer careerService.Close()

	cards, err := lobby.LoadDoctorCards(cfg.DoctorCardsPath)
	if err != nil {
		log.Fatalf("[Server] Failed to load doctor cards: %v", err)
	}
	personas := npc.DefaultRegistry()
	if cfg.NPCPersonasPath != "" {
		if err := personas.LoadFromFile(cfg.NPCPersonasPath); err != nil {
			log.Fatalf("[Server] Failed to load NPC personas: %v", err)
		}
	}

	opts := lobby.DefaultOptions()
	opts.Table.Tick = cfg.TableTick
	opts.Table.NPCThinkDelay = cfg.NPCThinkDelay
	lby := lobby.New(opts, cards, ledgerService, personas)
	gw := gateway.New(lby)
	lby.SetBroadcaster(gw.SendToPlayer)
	lby.AddEndHook(career.EndHook(careerService))

	router := way.NewRouter()
	router.HandleFunc(http.MethodGet, "/ws", gw.HandleWebSocket)
	router.HandleFunc(http.MethodGet, "/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	auth.NewHTTPHandler(authService).RegisterRoutes(router)
	ledger.NewHTTPHandler(authService, ledgerService).RegisterRoutes(router)
	lobby.NewHTTPHandler(authService, lby).RegisterRoutes(router)
	career.NewHTTPHandler(authService, careerService).RegisterRoutes(router)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if n := lby.Reap(cfg.RoomIdleTTL); n > 0 {
				log.Infof("[Server] Reaped %d idle rooms", n)
			}
		}
	}()

	log.Infof("[Server] Auth mode: %s", cfg.AuthMode)
	log.Infof("[Server] Ledger mode: %s", ledgerMode)
	log.Infof("[Server] Career mode: %s", careerMode)
	log.Infof("[Server] Loaded %d doctor cards, %d NPC personas", len(cards), personas.Count())
	log.Infof("[Server] Starting server on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("[Server] Failed to start: %v", err)
	}
}
