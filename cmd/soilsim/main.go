package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/afroash/soilsim/internal/config"
	"github.com/afroash/soilsim/internal/device"
	"github.com/afroash/soilsim/internal/models"
	"github.com/afroash/soilsim/internal/publish"
	"github.com/afroash/soilsim/internal/sim"
	"github.com/afroash/soilsim/internal/storage"
	"github.com/afroash/soilsim/internal/stream"
)

const version = "v0.1.0"

// sinks holds whichever outputs are enabled for this run
type sinks struct {
	csv         *storage.CSVWriter
	sqliteStore *storage.SQLiteStore
	dbWriter    *storage.DBWriter
	cleaner     *storage.RetentionCleaner
	influx      *storage.InfluxWriter
	publisher   *publish.Publisher
	broadcaster *stream.Broadcaster
	httpServer  *http.Server
}

func main() {
	configPath := flag.String("config", "configs/soilsim.yaml", "path to config file")
	mode := flag.String("mode", "", "override run mode: batch or live")
	seed := flag.Int64("seed", 0, "override noise seed")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *mode != "" {
		cfg.Run.Mode = *mode
	}
	if *seed != 0 {
		cfg.Run.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger := newLogger(cfg.Logging)
	logger.Info().
		Str("version", version).
		Str("mode", cfg.Run.Mode).
		Int64("seed", cfg.Run.Seed).
		Str("device", cfg.Device.ID).
		Dur("duration", cfg.Site.Duration).
		Dur("interval", cfg.Site.SampleInterval).
		Msg("Starting soil-monitor simulator")

	engine, err := sim.NewEngine(&cfg.Site, cfg.Device.ID, cfg.Run.Seed)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to build simulation engine")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := setupSinks(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to set up outputs")
	}
	defer out.shutdown(logger)

	// Handle SIGINT/SIGTERM by cancelling the run
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
		cancel()
	}()

	emit := func(reading *models.Reading) error {
		return out.write(ctx, reading, logger)
	}

	switch cfg.Run.Mode {
	case "live":
		err = runLive(ctx, cfg, engine, emit, logger)
	default:
		err = engine.Run(ctx, emit)
	}
	if err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("Simulation failed")
	}

	logger.Info().
		Int64("ticks", engine.Ticks()).
		Float64("sim_time", engine.SimTime()).
		Msg("Simulation finished")
}

// runLive paces the engine against wall-clock time via the device reader
func runLive(ctx context.Context, cfg *config.Config, engine *sim.Engine, emit func(*models.Reading) error, logger zerolog.Logger) error {
	info := models.NewDeviceInfo(cfg.Device.ID, cfg.Device.SiteName, cfg.Device.Model, version)
	reader := device.NewReader(engine, info, cfg.Site.SampleInterval, logger)

	go reader.Start(ctx)

	for reading := range reader.Readings() {
		if err := emit(reading); err != nil {
			return err
		}
	}
	return nil
}

// newLogger builds the process logger from config
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// setupSinks initializes every enabled output
func setupSinks(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*sinks, error) {
	out := &sinks{}

	if cfg.Outputs.CSV.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Outputs.CSV.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create csv directory: %w", err)
		}
		csvWriter, err := storage.NewCSVWriter(cfg.Outputs.CSV.Path, logger)
		if err != nil {
			return nil, err
		}
		out.csv = csvWriter
	}

	if cfg.Outputs.SQLite.Enabled {
		sq := cfg.Outputs.SQLite
		if err := os.MkdirAll(filepath.Dir(sq.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := storage.NewSQLiteStore(sq.Path, logger)
		if err != nil {
			return nil, err
		}
		out.sqliteStore = store
		out.dbWriter = storage.NewDBWriter(store, storage.DBWriterConfig{
			BatchSize:   sq.BatchSize,
			FlushPeriod: sq.FlushPeriod,
			ChannelSize: sq.ChannelSize,
		}, logger)
		out.cleaner = storage.NewRetentionCleaner(store, storage.RetentionCleanerConfig{
			RetentionDays: sq.RetentionDays,
			CleanupPeriod: sq.CleanupPeriod,
		}, logger)
	}

	if cfg.Outputs.Influx.Enabled {
		influx, err := storage.NewInfluxWriter(cfg.Outputs.Influx, logger)
		if err != nil {
			return nil, err
		}
		out.influx = influx
	}

	if cfg.Outputs.MQTT.Enabled {
		client, err := publish.Connect(ctx, cfg.Outputs.MQTT, logger)
		if err != nil {
			return nil, err
		}
		out.publisher = publish.NewPublisher(client, cfg.Outputs.MQTT, logger)
	}

	if cfg.Outputs.Stream.Enabled {
		st := cfg.Outputs.Stream
		out.broadcaster = stream.NewBroadcaster(st.AuthToken, logger, st.AllowedOrigins...)

		mux := http.NewServeMux()
		mux.HandleFunc("/stream", out.broadcaster.ServeHTTP)
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"status":"ok","version":"%s"}`, version)
		})

		out.httpServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", st.Host, st.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", out.httpServer.Addr).Msg("Stream endpoint listening")
			if err := out.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Stream endpoint failed")
			}
		}()
	}

	return out, nil
}

// write fans one reading out to every enabled sink
func (out *sinks) write(ctx context.Context, reading *models.Reading, logger zerolog.Logger) error {
	if out.csv != nil {
		if err := out.csv.Write(reading); err != nil {
			return err
		}
	}
	if out.dbWriter != nil {
		out.dbWriter.Write(reading)
	}
	if out.influx != nil {
		if err := out.influx.Write(ctx, reading); err != nil {
			logger.Warn().Err(err).Msg("Influx write failed")
		}
	}
	if out.publisher != nil {
		if err := out.publisher.Publish(reading); err != nil {
			logger.Warn().Err(err).Msg("MQTT publish failed, reading buffered")
		}
	}
	if out.broadcaster != nil {
		if err := out.broadcaster.Broadcast(reading); err != nil {
			logger.Warn().Err(err).Msg("Stream broadcast failed")
		}
	}
	return nil
}

// shutdown closes the sinks in dependency order
func (out *sinks) shutdown(logger zerolog.Logger) {
	if out.dbWriter != nil {
		out.dbWriter.Stop()
	}
	if out.cleaner != nil {
		out.cleaner.Stop()
	}
	if out.sqliteStore != nil {
		out.sqliteStore.Close()
	}
	if out.csv != nil {
		if err := out.csv.Close(); err != nil {
			logger.Error().Err(err).Msg("CSV close failed")
		}
	}
	if out.influx != nil {
		out.influx.Close()
	}
	if out.publisher != nil {
		out.publisher.Close()
	}
	if out.broadcaster != nil {
		out.broadcaster.Close()
	}
	if out.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		out.httpServer.Shutdown(shutdownCtx)
	}
	logger.Info().Msg("Outputs closed")
}
