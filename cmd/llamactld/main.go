package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"llamactld/internal/common/fsutil"
	"llamactld/internal/config"
	"llamactld/internal/gpu"
	"llamactld/internal/httpapi"
	"llamactld/internal/manager"
	"llamactld/internal/proxy"
	"llamactld/internal/registry"
)

func main() {
	// Flags with environment variable defaults
	addr := flag.String("addr", envOr("LLAMACTLD_ADDR", ":8080"), "HTTP listen address, e.g. :8080")
	cfgPath := flag.String("config", envOr("LLAMACTLD_CONFIG", ""), "Path to config file (.yaml/.json/.toml)")
	modelsDir := flag.String("models-dir", envOr("LLAMACTLD_MODELS_DIR", "~/models/llm"), "Directory to scan for *.gguf model files")
	llamaBin := flag.String("llama-bin", envOr("LLAMACTLD_LLAMA_BIN", "llama-server"), "Path to the llama-server binary")
	logLevel := flag.String("log-level", envOr("LLAMACTLD_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	mockGPU := flag.String("mock-gpu", envOr("LLAMACTLD_MOCK_GPU", ""), "Path to captured nvidia-smi output; enables the mock probe backend")
	flag.Parse()

	log := newLogger(*logLevel)

	var cfg config.Config
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *cfgPath).Msg("load config")
		}
	}
	// Flags fill in whatever the file left unset.
	if cfg.Addr == "" {
		cfg.Addr = *addr
	}
	if cfg.ModelsDir == "" {
		cfg.ModelsDir = *modelsDir
	}
	if cfg.Llama.Bin == "" {
		cfg.Llama.Bin = *llamaBin
	}
	if cfg.LogLevel != "" && cfg.LogLevel != *logLevel {
		log = newLogger(cfg.LogLevel)
	}
	if *mockGPU != "" {
		cfg.GPU.MockMode = true
		cfg.GPU.MockDataPath = *mockGPU
	}

	models, err := registry.LoadDir(cfg.ModelsDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.ModelsDir).Msg("model scan failed, using declared models only")
	}
	models = registry.Merge(models, cfg.Models)
	if len(models) == 0 {
		log.Warn().Msg("no models available; load requests will fail until models exist")
	}
	for _, m := range models {
		if m.Path != "" && !fsutil.PathExists(m.Path) {
			log.Warn().Str("model", m.ID).Str("path", m.Path).Msg("model file missing")
		}
	}

	var prober gpu.Prober
	if cfg.GPU.MockMode {
		prober = &gpu.FileProber{Path: cfg.GPU.MockDataPath}
		log.Info().Str("path", cfg.GPU.MockDataPath).Msg("mock gpu backend enabled")
	} else {
		prober = &gpu.SMIProber{Path: cfg.GPU.SMIPath}
	}

	mgr := manager.New(manager.Config{
		Models:            models,
		LlamaBin:          cfg.Llama.Bin,
		LlamaHost:         cfg.Llama.Host,
		GPU0Port:          cfg.Llama.GPU0Port,
		GPU1Port:          cfg.Llama.GPU1Port,
		ThresholdMiB:      cfg.GPU.ThresholdMiB,
		MaxRestarts:       cfg.Restart.MaxRestarts,
		RestartBackoff:    time.Duration(cfg.Restart.BackoffSeconds) * time.Second,
		RestartBackoffCap: time.Duration(cfg.Restart.BackoffCapSeconds) * time.Second,
		StartupDeadline:   time.Duration(cfg.Restart.StartupDeadlineSeconds) * time.Second,
		HealthInterval:    time.Duration(cfg.Health.IntervalSeconds) * time.Second,
		HealthTimeout:     time.Duration(cfg.Health.TimeoutSeconds) * time.Second,
		StopGrace:         time.Duration(cfg.Health.StopGraceSeconds) * time.Second,
		Prober:            prober,
		Logger:            log,
	})

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(baseCtx)
	httpapi.SetLogger(log)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders)

	router := proxy.New(mgr, log)
	mux := httpapi.NewMux(mgr, router)
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Int("models", len(models)).
			Msg("llamactld listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancelBase()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	mgr.Close()
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
