package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"intelliquery/internal/cache"
	"intelliquery/internal/config"
	"intelliquery/internal/db"
	"intelliquery/internal/embedding"
	"intelliquery/internal/expand"
	"intelliquery/internal/helper"
	"intelliquery/internal/ingest"
	"intelliquery/internal/media"
	"intelliquery/internal/models"
	"intelliquery/internal/parser"
	"intelliquery/internal/rag"
	"intelliquery/internal/report"
	"intelliquery/internal/server"
	"intelliquery/internal/vectorstore"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	serve := flag.Bool("serve", false, "Run the HTTP server")
	filePath := flag.String("file", "", "Path to a document file to ingest")
	query := flag.String("query", "", "Question to be answered")
	reportPath := flag.String("report", "", "Write the conversation PDF to this path")
	dryRun := flag.Bool("dry-run", false, "Parse the file and print chunks without indexing")
	drop := flag.Bool("drop", false, "Drop the registry tables and the vector index")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	if *dryRun && *filePath != "" {
		dryRunParse(*filePath, cfg)
		return
	}

	switch {
	case *serve:
		runServer(cfg)
	case *filePath != "":
		ingestFile(context.Background(), cfg, *filePath)
	case *query != "":
		askQuestion(context.Background(), cfg, *query)
	case *reportPath != "":
		writeReport(context.Background(), cfg, *reportPath)
	case *drop:
		dropAll(context.Background(), cfg)
	default:
		log.Fatal().Msg("Provide -serve, -file, -query, -report, or -drop")
	}
}

func dryRunParse(filePath string, cfg *config.Config) {
	chunks, err := parser.ParseToMarkdown(filePath, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}
	log.Info().Int("chunks", len(chunks)).Msg("Parsed content")
	helper.PrettyPrint(chunks)
}

type components struct {
	ingestor *ingest.Ingestor
	rag      *rag.RAG
	store    *vectorstore.Manager
	registry *bun.DB
	cache    *cache.Cache
}

func build(ctx context.Context, cfg *config.Config) *components {
	if err := helper.CreateFolder(cfg.Server.UploadDir); err != nil {
		log.Fatal().Err(err).Msg("Error creating upload folder")
	}

	store, err := vectorstore.NewManager(&cfg.VectorStore)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}

	embedder, err := embedding.NewEmbedder(ctx, &cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	expander, err := expand.NewExpander(&cfg.Expansion)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing query expander")
	}

	var registry *bun.DB
	if cfg.Database.Enabled {
		sqldb, err := db.ConnectDB(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Error connecting to database")
		}
		registry = db.NewDB(sqldb, cfg.Database.Debug)
		if err := db.InitDB(ctx, registry); err != nil {
			log.Fatal().Err(err).Msg("Error initializing database")
		}
	}

	c := cache.New(&cfg.Cache)
	transcriber := media.NewTranscriber(&cfg.Transcription)
	ingestor := ingest.NewIngestor(cfg, store, embedder, transcriber, c, registry)

	return &components{
		ingestor: ingestor,
		rag:      rag.NewRAG(store, embedder, expander, c, cfg),
		store:    store,
		registry: registry,
		cache:    c,
	}
}

func runServer(cfg *config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps := build(ctx, cfg)
	defer closeAll(comps)

	srv := server.NewServer(cfg, comps.ingestor, comps.rag, comps.registry)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server error")
	}
}

func ingestFile(ctx context.Context, cfg *config.Config, filePath string) {
	comps := build(ctx, cfg)
	defer closeAll(comps)

	result, err := comps.ingestor.Ingest(ctx, filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting file")
	}
	log.Info().
		Str("file", result.Filename).
		Str("media_type", string(result.MediaType)).
		Int("chunks", result.ChunkCount).
		Msg("File ingested")
}

func askQuestion(ctx context.Context, cfg *config.Config, query string) {
	comps := build(ctx, cfg)
	defer closeAll(comps)

	response, err := comps.rag.Query(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	fmt.Printf("Query:\n%s\n\n", response.Query)
	fmt.Printf("Source:\n%s\n\n", response.Source)
	fmt.Printf("Assistant:\n%s\n\n", response.Content)

	if comps.registry != nil {
		if err := db.StoreExchange(ctx, comps.registry, response.Query, response.Content, response.Source); err != nil {
			log.Warn().Err(err).Msg("Could not persist exchange")
		}
	}
}

func writeReport(ctx context.Context, cfg *config.Config, path string) {
	comps := build(ctx, cfg)
	defer closeAll(comps)

	var exchanges []models.Exchange
	var fileNames []string
	if comps.registry != nil {
		rows, err := db.ListExchanges(ctx, comps.registry, 0)
		if err != nil {
			log.Fatal().Err(err).Msg("Error loading history")
		}
		for _, row := range rows {
			exchanges = append(exchanges, models.Exchange{
				Question:  row.Question,
				Answer:    row.Answer,
				Source:    row.Source,
				CreatedAt: row.CreatedAt,
			})
		}
		uploads, err := db.ListUploads(ctx, comps.registry)
		if err != nil {
			log.Fatal().Err(err).Msg("Error loading uploads")
		}
		for _, u := range uploads {
			fileNames = append(fileNames, u.Filename)
		}
	}

	data, err := report.NewBuilder(&cfg.Report, fileNames).Build(exchanges)
	if err != nil {
		log.Fatal().Err(err).Msg("Error generating report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Fatal().Err(err).Msg("Error writing report")
	}
	log.Info().Str("path", path).Msg("Report written")
}

// dropAll clears the vector index, the registry tables, and the cache so
// the next ingest starts from nothing.
func dropAll(ctx context.Context, cfg *config.Config) {
	comps := build(ctx, cfg)
	defer closeAll(comps)

	if err := comps.store.Reset(); err != nil {
		log.Fatal().Err(err).Msg("Error resetting vector index")
	}
	if comps.registry != nil {
		if err := db.DropAll(ctx, comps.registry); err != nil {
			log.Fatal().Err(err).Msg("Error dropping registry tables")
		}
	}
	comps.cache.Flush(ctx)
	log.Info().Msg("Index and registry dropped")
}

func closeAll(comps *components) {
	if comps.cache != nil {
		_ = comps.cache.Close()
	}
	if comps.registry != nil {
		_ = comps.registry.Close()
	}
}
