package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/mubarokah/id-server/auth"
	consentrepofake "github.com/mubarokah/id-server/auth/consent/repofake"
	sessionrepofake "github.com/mubarokah/id-server/auth/sessions/repofake"
	fakeclientrepo "github.com/mubarokah/id-server/clients/fakerepo"
	grantrepofake "github.com/mubarokah/id-server/grants/repofake"
	"github.com/mubarokah/id-server/internal/config"
	"github.com/mubarokah/id-server/internal/storage/gormstore"
	"github.com/mubarokah/id-server/server"
	"github.com/mubarokah/id-server/token"
	tokenrepofake "github.com/mubarokah/id-server/token/repofake"
	fakeuserrepo "github.com/mubarokah/id-server/users/repofake"
)

func main() {
	_ = godotenv.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "mubarokah-id").Logger()

	for {
		if err := run(logger); err != nil {
			logger.Fatal().Err(err).Msg("server error")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	logger.Info().Msg("server stopped")
}

func run(logger zerolog.Logger) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	displayAppname(c.GetAppName())

	repos, tokens, err := buildRepos(c, logger)
	if err != nil {
		return fmt.Errorf("buildRepos: %w", err)
	}

	signingSecret := c.GetSigningSecret()
	if signingSecret == "" {
		return errors.New("OAUTH_SIGNING_SECRET must be set")
	}

	tokenManager := token.New(
		tokens.access,
		tokens.refresh,
		token.NewHMACSigner(signingSecret),
		token.WithIssuer(c.GetBaseURL()),
		token.WithAudience(c.GetAudience()),
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()),
		token.WithRefreshRotation(c.GetRefreshRotation()),
	)

	authService, err := auth.NewAuthorizationService(repos, tokenManager,
		auth.WithCodeTTL(c.GetAuthCodeTTL()))
	if err != nil {
		return fmt.Errorf("auth.NewAuthorizationService: %w", err)
	}

	authenticator := &server.HeaderAuthenticator{Header: c.GetTrustedUserHeader()}

	httpServer := &http.Server{
		Addr:    c.GetPort(),
		Handler: server.New(c, authService, authenticator, logger),
	}

	go listenAndServe(httpServer, logger)
	waitForStopSignal()
	return shutdown(httpServer)
}

type tokenRepos struct {
	access  token.AccessTokenRepo
	refresh token.RefreshTokenRepo
}

// buildRepos selects the storage backend: in-memory fakes for development,
// Postgres via GORM when STORAGE_BACKEND=postgres.
func buildRepos(c config.Config, logger zerolog.Logger) (auth.Repos, tokenRepos, error) {
	switch backend := c.GetStorageBackend(); backend {
	case "postgres":
		db, err := gormstore.Open(c.GetDatabaseDSN(), c.GetEnv() == "DEV")
		if err != nil {
			return auth.Repos{}, tokenRepos{}, fmt.Errorf("gormstore.Open: %w", err)
		}
		store := gormstore.New(db)
		logger.Info().Str("backend", backend).Msg("storage initialized")
		return auth.Repos{
				Clients:  store.Clients,
				Grants:   store.Grants,
				Users:    store.Users,
				Sessions: store.Sessions,
				Consents: store.Consents,
			}, tokenRepos{
				access:  store.AccessTokens,
				refresh: store.RefreshTokens,
			}, nil
	case "memory":
		logger.Warn().Msg("using in-memory storage, state is lost on restart")
		return auth.Repos{
				Clients:  fakeclientrepo.NewFakeClientRepo(),
				Grants:   grantrepofake.NewFakeGrantRepo(),
				Users:    fakeuserrepo.NewFakeUserRepo(),
				Sessions: sessionrepofake.NewFakeSessionRepo(),
				Consents: consentrepofake.NewFakeConsentRepo(),
			}, tokenRepos{
				access:  tokenrepofake.NewFakeAccessTokenRepo(),
				refresh: tokenrepofake.NewFakeRefreshTokenRepo(),
			}, nil
	default:
		return auth.Repos{}, tokenRepos{}, fmt.Errorf("unknown storage backend %q", backend)
	}
}

func listenAndServe(httpServer *http.Server, logger zerolog.Logger) {
	logger.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
