package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/jimmylelievre/billed/internal/app"
	"github.com/jimmylelievre/billed/internal/bill"
	"github.com/jimmylelievre/billed/internal/session"
	"github.com/jimmylelievre/billed/internal/store"
	"github.com/jimmylelievre/billed/internal/views"
	"github.com/jimmylelievre/billed/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Error loading .env file", "error", err)
	}

	fs := ff.NewFlagSet("billed")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "billed.db", "Database file path")
		storagePath = fs.StringLong("storage", "./justificatifs", "Receipt storage directory path")
		apiURL      = fs.StringLong("api-url", "", "Remote bills API base URL (default: serve bills locally)")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BILLED"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	slog.Info("Initializing database...")
	db, err := bill.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("Initializing storage...")
	fileStorage, err := bill.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	billService := bill.NewService(db, fileStorage)

	sessionStore, err := session.NewBoltStore(*dbPath + ".session")
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer sessionStore.Close()
	sessionCtx := session.NewContext(sessionStore)

	// The controllers talk to the bills API through the DataStore contract:
	// in-process by default, over HTTP when --api-url points elsewhere
	var dataStore store.Store
	if *apiURL != "" {
		slog.Info("Using remote bills API", "url", *apiURL)
		dataStore = store.NewRemote(*apiURL)
	} else {
		dataStore = store.NewLocal(billService)
	}

	renderer, err := views.NewRenderer()
	if err != nil {
		slog.Error("Failed to initialize renderer", "error", err)
		os.Exit(1)
	}

	display := &app.ScreenBuffer{}
	modal := &web.PreviewModal{}
	nav := app.NewNavigationContext()
	router := app.NewRouter(nav, sessionCtx, dataStore, renderer, display, modal)

	server := web.NewServer(billService, router, sessionCtx, display, modal)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
