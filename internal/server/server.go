// Package server wires the attestation service, the L402 and x402 payment
// gates, and the DLC sub-oracle into three Fiber listeners, mirroring the
// reference deployment's three independent processes (plain attestation
// backend, L402 proxy, x402 proxy) inside one binary.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"sho/internal/attest"
	"sho/internal/config"
	"sho/internal/db"
	"sho/internal/dlc"
	"sho/internal/fetchers"
	"sho/internal/l402"
	"sho/internal/middleware"
	"sho/internal/settlement"
	"sho/internal/signer"
	"sho/internal/x402gate"
)

// Server owns the three listeners and every component they share.
type Server struct {
	cfg *config.Config

	plainApp *fiber.App
	l402App  *fiber.App
	x402App  *fiber.App

	attestSvc *attest.Service
	dlcStore  *dlc.Store
	registry  *config.Registry

	settlementWorker *settlement.Worker
}

// New builds a Server. registry is the loaded pair table; sources maps
// each registry route to its fetcher table (cross-rate routes need none).
// database is optional: a nil database disables the settlement audit log
// and its retry worker, the x402 gate still settles payments synchronously.
func New(cfg *config.Config, registry *config.Registry, sgnr *signer.Signer, sources map[string][]fetchers.Source, dlcStore *dlc.Store, database *db.DB) (*Server, error) {
	attestSvc := attest.NewService(registry, sgnr)
	for route, table := range sources {
		attestSvc.RegisterSources(route, table)
	}

	s := &Server{
		cfg:       cfg,
		attestSvc: attestSvc,
		dlcStore:  dlcStore,
		registry:  registry,
	}

	s.plainApp = s.buildPlainApp()

	l402Gate, err := buildL402Gate(cfg)
	if err != nil {
		return nil, fmt.Errorf("server: build L402 gate: %w", err)
	}
	s.l402App = s.buildL402App(l402Gate)

	x402Gate, err := x402gate.NewGate(&cfg.X402)
	if err != nil {
		return nil, fmt.Errorf("server: build x402 gate: %w", err)
	}

	if database != nil {
		store := db.NewSettlementStore(database)
		x402Gate.SetAuditLog(store)
		s.settlementWorker = settlement.NewWorker(store, x402Gate.Facilitator(), nil)
	}

	s.x402App = s.buildX402App(x402Gate)

	return s, nil
}

func buildL402Gate(cfg *config.Config) (*l402.Gate, error) {
	lnd, err := l402.NewLNDClient(cfg.Lightning.RESTHost, cfg.Lightning.TLSCertPath, cfg.Lightning.MacaroonPath)
	if err != nil {
		return nil, err
	}
	return l402.NewGate(lnd, []byte(cfg.Lightning.MacaroonSecret)), nil
}

func baseApp(name string) *fiber.App {
	app := fiber.New(fiber.Config{AppName: name, ErrorHandler: errorHandler})
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.SecurityHeaders())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-PAYMENT", "X-PAYMENT-RESPONSE", "Authorization"},
		ExposeHeaders:    []string{"X-PAYMENT-RESPONSE"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	return app
}

// buildPlainApp serves the unauthenticated attestation surface: health,
// per-pair status, and the DLC sub-oracle's read-only HTTP API.
func (s *Server) buildPlainApp() *fiber.App {
	app := baseApp("sho-oracle")
	rl := middleware.NewRateLimitMiddleware(&s.cfg.RateLimit)
	app.Use(rl.Middleware())

	app.Get("/health", s.handleHealth)
	app.Get("/health/live", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/health/ready", s.handleHealthReady)
	app.Get("/oracle/status", s.handleOracleStatus)

	app.Get("/dlc/oracle/pubkey", s.handleDLCPubkey)
	app.Get("/dlc/oracle/announcements", s.handleDLCAnnouncements)
	app.Get("/dlc/oracle/announcements/:eventID", s.handleDLCAnnouncement)
	app.Get("/dlc/oracle/attestations/:eventID", s.handleDLCAttestation)
	app.Get("/dlc/oracle/status", s.handleDLCStatus)

	return app
}

// buildL402App fronts every pair route with the Lightning payment gate.
func (s *Server) buildL402App(gate *l402.Gate) *fiber.App {
	app := baseApp("sho-oracle-l402")
	for _, route := range l402.Routes {
		route := route
		app.Get(route.Path, gate.RequireL402(route), s.handleAttest(route.PairRoute, signer.SchemeSecp256k1))
	}
	return app
}

// buildX402App fronts every pair route with the USDC payment gate and
// serves the public oracle-metadata/enforcement-status surface.
func (s *Server) buildX402App(gate *x402gate.Gate) *fiber.App {
	app := baseApp("sho-oracle-x402")
	rl := middleware.NewRateLimitMiddleware(&s.cfg.RateLimit)
	app.Use(rl.Middleware())

	for _, route := range s.registry.Routes() {
		spec, _ := s.registry.Get(route)
		priceAtomic := fmt.Sprintf("%d", int64(spec.USDCPriceMicro()))
		app.Get("/oracle/"+route, gate.RequirePayment(priceAtomic), s.handleAttest(route, signer.SchemeEd25519))
	}

	app.Get("/sho/info", s.handleShoInfo)
	app.Get("/sho/enforcement/:address", func(c fiber.Ctx) error {
		tier, cooldown := gate.EnforcementStatus(c.Params("address"))
		return c.JSON(fiber.Map{"address": c.Params("address"), "tier": tier, "cooldown_remaining_seconds": cooldown})
	})

	return app
}

// handleAttest returns a handler that produces and returns one signed
// attestation for route, using the given signing scheme.
func (s *Server) handleAttest(route string, scheme signer.Scheme) fiber.Handler {
	return func(c fiber.Ctx) error {
		resp, err := s.attestSvc.Attest(c.Context(), route, scheme)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "AGGREGATION_FAILED",
				"message": err.Error(),
			})
		}
		return c.JSON(resp)
	}
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": "1"})
}

func (s *Server) handleHealthReady(c fiber.Ctx) error {
	if !s.cfg.X402.HasPayments() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready", "reason": "no x402 wallet configured"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (s *Server) handleOracleStatus(c fiber.Ctx) error {
	type routeStatus struct {
		Route             string `json:"route"`
		OK                bool   `json:"ok"`
		Error             string `json:"error,omitempty"`
		Degraded          bool   `json:"degraded,omitempty"`
		StablecoinDropped bool   `json:"stablecoin_dropped,omitempty"`
	}
	statuses := make([]routeStatus, 0, len(s.registry.Routes()))
	for _, route := range s.registry.Routes() {
		resp, err := s.attestSvc.Attest(c.Context(), route, signer.SchemeEd25519)
		if err != nil {
			statuses = append(statuses, routeStatus{Route: route, OK: false, Error: err.Error()})
			continue
		}
		statuses = append(statuses, routeStatus{
			Route:             route,
			OK:                true,
			Degraded:          resp.Degraded,
			StablecoinDropped: resp.StablecoinDropped,
		})
	}
	return c.JSON(fiber.Map{"pairs": statuses})
}

func (s *Server) handleShoInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"routes":          s.registry.Routes(),
		"evm_wallet":      s.cfg.X402.EVMWalletAddress,
		"solana_wallet":   s.cfg.X402.SolanaWalletAddress,
		"usdc_contract":   s.cfg.X402.USDCContractAddress,
		"networks":        s.cfg.X402.Networks,
		"depeg_threshold": s.cfg.X402.DepegThreshold,
	})
}

func (s *Server) handleDLCPubkey(c fiber.Ctx) error {
	ann, ok := s.latestDLCAnnouncement()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "NO_ANNOUNCEMENTS"})
	}
	return c.JSON(fiber.Map{"pubkey": ann.OraclePubkey})
}

func (s *Server) handleDLCAnnouncements(c fiber.Ctx) error {
	announcements, err := s.dlcStore.ListAnnouncements()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "LIST_FAILED"})
	}

	summaries := make([]fiber.Map, 0, len(announcements))
	for _, a := range announcements {
		summaries = append(summaries, fiber.Map{
			"event_id":   a.EventID,
			"pair":       a.Pair,
			"maturity":   a.Maturity,
			"num_digits": a.NumDigits,
			"created_at": a.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"count": len(summaries), "announcements": summaries})
}

func (s *Server) handleDLCAnnouncement(c fiber.Ctx) error {
	ann, err := s.dlcStore.LoadAnnouncement(c.Params("eventID"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "NOT_FOUND"})
	}
	return c.JSON(ann)
}

func (s *Server) handleDLCAttestation(c fiber.Ctx) error {
	eventID := c.Params("eventID")
	if !s.dlcStore.AnnouncementExists(eventID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "NOT_FOUND"})
	}
	att, err := s.dlcStore.LoadAttestation(eventID)
	if err != nil {
		return c.Status(fiber.StatusTooEarly).JSON(fiber.Map{"error": "NOT_YET_ATTESTED"})
	}
	return c.JSON(att)
}

func (s *Server) handleDLCStatus(c fiber.Ctx) error {
	eventID := dlc.EventID(s.cfg.DLC.Pair, dlc.CurrentHour(time.Now()))
	return c.JSON(fiber.Map{
		"pair":              s.cfg.DLC.Pair,
		"current_event_id":  eventID,
		"current_attested":  s.dlcStore.AttestationExists(eventID),
		"current_announced": s.dlcStore.AnnouncementExists(eventID),
	})
}

// latestDLCAnnouncement looks up the current hour's announcement as a
// representative sample for publishing the oracle's DLC pubkey.
func (s *Server) latestDLCAnnouncement() (dlc.Announcement, bool) {
	eventID := dlc.EventID(s.cfg.DLC.Pair, dlc.CurrentHour(time.Now()))
	ann, err := s.dlcStore.LoadAnnouncement(eventID)
	if err != nil {
		return dlc.Announcement{}, false
	}
	return ann, true
}

// Start runs all three listeners, and the settlement retry worker if one is
// configured, until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s.settlementWorker != nil {
		s.settlementWorker.Start(ctx)
	}

	errCh := make(chan error, 3)
	go func() { errCh <- s.plainApp.Listen(":" + s.cfg.Server.Port) }()
	go func() { errCh <- s.l402App.Listen(":" + s.cfg.Server.L402Port) }()
	go func() { errCh <- s.x402App.Listen(":" + s.cfg.Server.X402Port) }()

	slog.Info("oracle listening", "plain", s.cfg.Server.Port, "l402", s.cfg.Server.L402Port, "x402", s.cfg.Server.X402Port)

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops all three listeners and the settlement worker.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.settlementWorker != nil {
		s.settlementWorker.Stop()
	}
	for _, app := range []*fiber.App{s.plainApp, s.l402App, s.x402App} {
		if err := app.ShutdownWithContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": message, "status": code})
}
