package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/micro"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flarexio/docrag"
	"github.com/flarexio/docrag/blob"
	"github.com/flarexio/docrag/embedding"
	"github.com/flarexio/docrag/llm"
	"github.com/flarexio/docrag/persistence/chromem"
	"github.com/flarexio/docrag/persistence/filesystem"
	"github.com/flarexio/docrag/persistence/objectstore"
	"github.com/flarexio/docrag/persistence/qdrant"
	"github.com/flarexio/docrag/persistence/sqlite"
	"github.com/flarexio/docrag/vector"

	mcpE "github.com/flarexio/docrag/mcp"
	httpT "github.com/flarexio/docrag/transport/http"
	natsT "github.com/flarexio/docrag/transport/nats"
)

func main() {
	cmd := &cli.Command{
		Name:  "docrag",
		Usage: "DocRAG document question answering service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Path to the DocRAG service home",
			},
			&cli.StringFlag{
				Name:    "nats",
				Usage:   "NATS server URL, leave empty to disable the NATS transport",
				Sources: cli.EnvVars("NATS_URL"),
			},
			&cli.BoolFlag{
				Name:  "http",
				Usage: "Enable HTTP transport",
				Value: true,
			},
			&cli.StringFlag{
				Name:    "http-addr",
				Usage:   "HTTP server address",
				Value:   ":8080",
				Sources: cli.EnvVars("DOCRAG_HTTP_ADDR"),
			},
			&cli.BoolFlag{
				Name:  "production",
				Usage: "Use the production logger",
			},
		},
		Action: run,
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func loadConfig(path string) (docrag.Config, error) {
	var cfg docrag.Config

	f, err := os.Open(filepath.Join(path, "config.yaml"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return cfg, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		path = filepath.Join(homeDir, ".flarex", "docrag")
	}

	// best effort, the environment may already be populated
	godotenv.Load(filepath.Join(path, ".env"))
	godotenv.Load()

	var (
		log *zap.Logger
		err error
	)

	if cmd.Bool("production") {
		log, err = zap.NewProduction()
	} else {
		log, err = zap.NewDevelopment()
	}

	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(path, "docrag.db")
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(path, "uploads")
	}

	if cfg.Vector.Path == "" {
		cfg.Vector.Path = filepath.Join(path, "vectors")
	}

	apiKey := os.Getenv("OPENAI_API_KEY")

	if cfg.LLM.Provider == llm.ProviderOpenAI && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = apiKey
	}

	if cfg.Embedding.Provider == embedding.ProviderOpenAI && cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = apiKey
	}

	cfg.ApplyDefaults()

	var nc *nats.Conn

	natsURL := cmd.String("nats")
	if natsURL != "" {
		opts := []nats.Option{
			nats.Name("DocRAG Server"),
		}

		creds := filepath.Join(path, "user.creds")
		if _, err := os.Stat(creds); err == nil {
			opts = append(opts, nats.UserCredentials(creds))
		}

		nc, err = nats.Connect(natsURL, opts...)
		if err != nil {
			return err
		}
		defer nc.Drain()
	}

	store, err := sqlite.NewStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	var blobs blob.Store
	switch cfg.Storage.Provider {
	case blob.ProviderNATS:
		if nc == nil {
			return errors.New("nats storage requires a NATS connection")
		}

		blobs, err = objectstore.NewBlobStore(ctx, nc, cfg.Storage.Bucket)

	default:
		blobs, err = filesystem.NewBlobStore(cfg.Storage.Path)
	}

	if err != nil {
		return err
	}

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return err
	}

	var vectors vector.VectorDB
	switch cfg.Vector.Provider {
	case vector.ProviderQdrant:
		vectors, err = qdrant.NewQdrantVectorDB(cfg.Vector, embedder)

	default:
		vectors, err = chromem.NewChromemVectorDB(cfg.Vector, embedder)
	}

	if err != nil {
		return err
	}

	svc, err := docrag.NewService(ctx, cfg, docrag.Components{
		Documents: store.DocumentRepository(),
		Chats:     store.ChatRepository(),
		Models:    store.ModelRepository(),
		Blobs:     blobs,
		Vectors:   vectors,
		Embedder:  embedder,
	})
	if err != nil {
		return err
	}

	svc = docrag.LoggingMiddleware(log)(svc)
	defer svc.Close()

	endpoints := docrag.MakeEndpoints(svc)

	// Add NATS Transport
	if nc != nil {
		srv, err := micro.AddService(nc, micro.Config{
			Name:    "docrag",
			Version: "1.0.0",
		})

		if err != nil {
			return err
		}
		defer srv.Stop()

		topic := "docrag"
		if id, err := os.ReadFile(filepath.Join(path, "id")); err == nil {
			topic = "edges." + strings.TrimSpace(string(id)) + ".docrag"
		}

		root := srv.AddGroup(topic)
		natsT.AddEndpoints(root, endpoints)

		log.Info("nats transport enabled", zap.String("topic", topic))
	}

	if cmd.Bool("http") {
		r := gin.Default()
		httpT.AddRouters(r, endpoints)

		endpoints := make(map[mcp.MCPMethod]mcpE.MCPEndpoint)
		endpoints[mcp.MethodInitialize] = mcpE.InitializeEndpoint(svc)
		endpoints[mcp.MethodPing] = mcpE.PingEndpoint(svc)
		endpoints[mcp.MethodToolsList] = mcpE.ListToolsEndpoint(svc)
		endpoints[mcp.MethodToolsCall] = mcpE.CallToolEndpoint(svc)
		httpT.AddStreamableRouters(r, endpoints)

		httpAddr := cmd.String("http-addr")
		go r.Run(httpAddr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))
	return nil
}
