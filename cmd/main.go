package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"

	"kakapo-chat/handler"
	"kakapo-chat/internal/integrations/assistant"
	"kakapo-chat/internal/integrations/paramstore"
	"kakapo-chat/internal/preferences"
	"kakapo-chat/internal/render"
	"kakapo-chat/internal/repository"
	"kakapo-chat/internal/session"
	"kakapo-chat/internal/usecase"
	"kakapo-chat/internal/voice"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()
	setupLogging(os.Getenv("LOG_LEVEL"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	endpoint := os.Getenv("KAKAPO_ENDPOINT")
	paramPrefix := os.Getenv("KAKAPO_PARAM_PREFIX")
	prefsBackend := envString("KAKAPO_PREFS_BACKEND", "sqlite")
	loadingDelay := envDuration("KAKAPO_LOADING_DELAY", handler.DefaultLoadingDelay)
	retryDelay := envDuration("KAKAPO_RETRY_DELAY", handler.DefaultRetryDelay)
	httpTimeout := envDuration("KAKAPO_HTTP_TIMEOUT", 0)
	ttsCommand := os.Getenv("KAKAPO_TTS_COMMAND")
	sttCommand := os.Getenv("KAKAPO_STT_COMMAND")
	ttsVoices := parseVoices(os.Getenv("KAKAPO_TTS_VOICES"))
	speechRate := envFloat("KAKAPO_SPEECH_RATE", voice.DefaultSettings().Rate)
	speechPitch := envFloat("KAKAPO_SPEECH_PITCH", voice.DefaultSettings().Pitch)
	bell := envInt("KAKAPO_BELL", 1) != 0
	tmux := os.Getenv("TMUX") != ""

	// ---- AWS SDK config (only when a cloud component is enabled) ----
	var cfg aws.Config
	if paramPrefix != "" || prefsBackend == "dynamodb" {
		var err error
		cfg, err = config.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
	}

	// ---- Stores ----
	prefStore, closeStore := openPreferenceStore(cfg, prefsBackend)
	defer closeStore()
	prefs, err := preferences.New(prefStore)
	if err != nil {
		slog.Error("failed to create preferences", "err", err)
		os.Exit(1)
	}
	// Session tokens are tab scoped: they live only as long as this process.
	identity, err := session.NewIdentity(repository.NewMemoryStore())
	if err != nil {
		slog.Error("failed to create session identity", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	gatewayOpts := []assistant.Option{}
	if endpoint != "" {
		gatewayOpts = append(gatewayOpts, assistant.WithEndpoint(endpoint))
	}
	if httpTimeout > 0 {
		gatewayOpts = append(gatewayOpts, assistant.WithHTTPClient(&http.Client{Timeout: httpTimeout}))
	}
	if paramPrefix != "" {
		ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		gatewayOpts = append(gatewayOpts, assistant.WithParamStore(ssmClient, paramPrefix))
	}
	gateway, err := assistant.NewClient(gatewayOpts...)
	if err != nil {
		slog.Error("failed to create assistant client", "err", err)
		os.Exit(1)
	}

	// ---- Devices ----
	settings := voice.DefaultSettings()
	settings.Rate = speechRate
	settings.Pitch = speechPitch
	synth := voice.NewExecSynthesizer(ttsCommand, ttsVoices)
	widgetOpts := []usecase.Option{
		usecase.WithClipboard(voice.NewOSC52Clipboard(os.Stdout, tmux)),
		usecase.WithCues(voice.NewBellPlayer(os.Stdout, bell)),
		usecase.WithVoiceSettings(settings, synth.Voices()),
	}
	if ttsCommand != "" {
		speaker := voice.NewSpeaker(synth)
		defer speaker.Cancel()
		widgetOpts = append(widgetOpts, usecase.WithSpeaker(speaker))
	}
	if sttCommand != "" {
		widgetOpts = append(widgetOpts, usecase.WithRecognizer(voice.NewExecRecognizer(sttCommand)))
	}

	// ---- Widget and terminal ----
	widget, err := usecase.NewWidget(ctx, gateway, identity, prefs, widgetOpts...)
	if err != nil {
		slog.Error("failed to create widget", "err", err)
		os.Exit(1)
	}
	view := render.NewTerminal(os.Stdout, widget.DarkMode())
	h, err := handler.NewHandler(widget, view, os.Stdin, handler.WithDelays(loadingDelay, retryDelay))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	if err := h.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("terminal session ended with error", "err", err)
		os.Exit(1)
	}
}

// openPreferenceStore picks the long-lived store for name and theme.
func openPreferenceStore(cfg aws.Config, backend string) (preferences.Store, func()) {
	switch backend {
	case "memory":
		return repository.NewMemoryStore(), func() {}
	case "dynamodb":
		table := mustEnv("KAKAPO_PREFS_TABLE")
		profileID := envString("KAKAPO_PROFILE_ID", defaultProfileID())
		store, err := repository.NewDynamoStore(awsdynamodb.NewFromConfig(cfg), table, profileID)
		if err != nil {
			slog.Error("failed to create preference table client", "err", err)
			os.Exit(1)
		}
		return store, func() {}
	case "sqlite":
		path := envString("KAKAPO_PREFS_PATH", defaultPrefsPath())
		store, err := repository.OpenSQLiteStore(path)
		if err != nil {
			slog.Error("failed to open preference database", "path", path, "err", err)
			os.Exit(1)
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("failed to close preference database", "err", err)
			}
		}
	}
	slog.Error("unknown preference backend", "backend", backend)
	os.Exit(1)
	return nil, nil
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "kakapo-chat", "prefs.db")
}

func defaultProfileID() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

// parseVoices reads "name[:lang]" pairs separated by commas.
func parseVoices(raw string) []voice.Voice {
	var out []voice.Voice
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, lang, _ := strings.Cut(part, ":")
		out = append(out, voice.Voice{Name: name, Lang: lang})
	}
	return out
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
