// Command sheets-auth runs the OAuth consent flow once and stores the user
// token the mirror worker exports to Google Sheets with.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"

	"eventboard/internal/cli"
	"eventboard/internal/log"
	gsheet "eventboard/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentSheets)

	cfg, ok, err := gsheet.OAuthConfigFromEnv()
	if err != nil {
		logger.Error("OAuth client configuration invalid", log.FieldError, err)
		os.Exit(1)
	}
	if !ok {
		logger.Error("Set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
		os.Exit(1)
	}

	// The OAuth client must list this URI among its authorized redirects.
	port := os.Getenv("OAUTH_REDIRECT_PORT")
	if port == "" {
		port = "8085"
	}
	cfg.RedirectURL = "http://localhost:" + port + "/callback"

	ctx, stop := cli.SignalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	state := uuid.NewString()
	codeCh := make(chan string, 1)

	r := mux.NewRouter()
	r.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			http.Error(w, "OAuth error: "+e, http.StatusBadRequest)
			return
		}
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprintln(w, "You may close this window and return to the terminal.")
		select {
		case codeCh <- q.Get("code"):
		default:
		}
	}).Methods(http.MethodGet)

	srv := &http.Server{Addr: ":" + port, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback server failed", log.FieldError, err)
			cancel()
		}
	}()
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		logger.Error("Authorization did not complete", log.FieldError, ctx.Err())
		os.Exit(1)
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		logger.Error("Token exchange failed", log.FieldError, err)
		os.Exit(1)
	}
	out := gsheet.TokenFile()
	if err := gsheet.SaveToken(out, tok); err != nil {
		logger.Error("Saving token failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Saved token", "path", out)
}
