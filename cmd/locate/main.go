package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/evyataryagoni/ipglobe/internal/cache"
	"github.com/evyataryagoni/ipglobe/internal/config"
	"github.com/evyataryagoni/ipglobe/internal/logger"
	"github.com/evyataryagoni/ipglobe/internal/models"
	"github.com/evyataryagoni/ipglobe/internal/provider"
	"github.com/evyataryagoni/ipglobe/internal/service"
	"github.com/evyataryagoni/ipglobe/internal/store"
)

// This tool resolves a list of IPs once and prints the outcomes and clusters as JSON
// Usage: go run ./cmd/locate -file ips.txt -provider auto
// The cache store is taken from the same environment as the server (CACHE_STORE_TYPE etc.)
func main() {
	appConfig := config.Load()

	file := flag.String("file", "-", "file with one IP per line, '-' reads stdin")
	mode := flag.String("provider", appConfig.Provider, "'auto' or a single provider name")
	bypass := flag.Bool("bypass-cache", false, "always call the provider")
	threshold := flag.Float64("threshold", appConfig.ClusterThreshold, "cluster distance threshold in degrees")
	verbose := flag.Bool("v", false, "log every outcome to stderr")
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	log := logger.NewWriter(os.Stderr, level)

	input, err := readInput(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to read input")
	}

	cacheStore, err := store.New(store.Config{
		Type:          appConfig.StoreType,
		FilePath:      appConfig.StorePath,
		MySQLDSN:      appConfig.MySQLDSN,
		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cache store")
	}
	defer cacheStore.Close()

	locationCache := cache.New(cacheStore, log, cache.WithTTL(appConfig.CacheTTL))
	chain := provider.NewDefaultChain(provider.Config{
		Timeout:     appConfig.ProviderTimeout,
		UserAgent:   appConfig.UserAgent,
		IPInfoToken: appConfig.IPInfoToken,
	}, locationCache, log, nil)

	svc, err := service.NewLocateService(locationCache, chain, service.Config{
		DefaultProvider: appConfig.Provider,
		PaceInterval:    appConfig.PacerInterval,
		Threshold:       appConfig.ClusterThreshold,
		RefreshWindow:   appConfig.RefreshWindow,
	}, nil, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize locate service")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run, err := svc.Locate(ctx, models.BatchRequest{
		Input:       input,
		Provider:    *mode,
		BypassCache: *bypass,
		Threshold:   *threshold,
	}, &progressSink{log: log, total: len(service.ParseInput(input))})
	if err != nil {
		log.Fatal().Err(err).Msg("Batch rejected")
	}

	out := struct {
		Batch    models.BatchStatus   `json:"batch"`
		Clusters models.ClusterUpdate `json:"clusters"`
	}{
		Batch:    run.Status(service.Filter{}),
		Clusters: run.Clusters(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatal().Err(err).Msg("Failed to write output")
	}
}

func readInput(path string) (string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// progressSink prints a line per outcome to stderr
type progressSink struct {
	log   *logger.Logger
	total int
}

func (s *progressSink) OnOutcome(index int, o models.Outcome) {
	event := s.log.Debug()
	if !o.Succeeded() {
		event = s.log.Warn().Str("error", o.Error)
	} else {
		event = event.Str("city", o.Location.City).Str("country", o.Location.Country).Str("source", o.Source)
	}
	event.Str("ip", o.IP).Msgf("[%d/%d]", index+1, s.total)
}

func (s *progressSink) OnClusters(u models.ClusterUpdate) {
	if !u.Final {
		return
	}
	s.log.Info().
		Int("clusters", len(u.Clusters)).
		Int("resolved", u.ResolvedCount).
		Msg("Clustering done")
}
