package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/memoriakit/memoria/internal/chunking"
	"github.com/memoriakit/memoria/internal/config"
	"github.com/memoriakit/memoria/internal/embedder"
	"github.com/memoriakit/memoria/internal/notes"
	"github.com/memoriakit/memoria/internal/repository"
	"github.com/memoriakit/memoria/internal/storage"
	"github.com/memoriakit/memoria/internal/vectorindex"
	"github.com/memoriakit/memoria/internal/versions"
	"github.com/memoriakit/memoria/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "memoria"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the persistence engine's dependencies
type Server struct {
	mcp         *server.MCPServer
	store       *storage.Store
	notes       *repository.Repository[*notes.Note]
	versionRepo *versions.Repository
	service     *chunking.Service
	cfg         *config.Config
	logger      *zap.Logger
}

// NewServer creates a new MCP server instance wired to the configured
// database and embedding provider.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Create database directory if it doesn't exist
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Initialize storage
	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Create embedder (shared between the chunking service and lifecycle hooks)
	emb, err := newEmbedder(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	service := chunking.NewService(vectorindex.NewMemory(), emb)
	if err := registerProfiles(service, cfg); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register chunking profiles: %w", err)
	}
	versionRepo := versions.NewRepository()
	noteRepo := notes.NewRepository(store, service, emb, versionRepo, logger)

	// Create MCP server
	mcpServer := server.NewMCPServer(
		ServerName,
		ServerVersion,
	)

	s := &Server{
		mcp:         mcpServer,
		store:       store,
		notes:       noteRepo,
		versionRepo: versionRepo,
		service:     service,
		cfg:         cfg,
		logger:      logger,
	}

	// Register tools
	if err := s.registerTools(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	// The vector index is in-memory; rebuild it from the stored notes so
	// search works immediately after a restart.
	if count, err := noteRepo.RebuildIndex(context.Background()); err != nil {
		logger.Warn("failed to rebuild semantic index at startup", zap.Error(err))
	} else {
		logger.Info("semantic index ready", zap.Int("chunks", count))
	}

	return s, nil
}

// newEmbedder builds the embedding provider from the config, falling back to
// environment detection when the config names no provider.
func newEmbedder(cfg *config.Config) (embedder.Embedder, error) {
	if cfg.Embedding.Provider == "" {
		return embedder.NewFromEnv()
	}
	return embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    os.Getenv(embedder.EnvOpenAIAPIKey),
		Model:     cfg.Embedding.Model,
		BaseURL:   cfg.Embedding.BaseURL,
		CacheSize: cfg.Embedding.CacheSize,
	})
}

// registerProfiles adds the configured chunking profiles to the service.
func registerProfiles(service *chunking.Service, cfg *config.Config) error {
	for name, profile := range cfg.Chunking.Profiles {
		err := service.RegisterProfile(name, chunking.Profile{
			Parent: chunkingConfig(name+"-parent", profile.Parent),
			Child:  chunkingConfig(name+"-child", profile.Child),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func chunkingConfig(name string, settings config.ChunkSettings) types.ChunkingConfig {
	return types.ChunkingConfig{
		Name:                name,
		WindowSize:          settings.WindowSize,
		Overlap:             settings.Overlap,
		MinChunkSize:        settings.MinChunkSize,
		MaxChunkSize:        settings.MaxChunkSize,
		SimilarityThreshold: settings.SimilarityThreshold,
	}
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(saveNoteTool(), s.handleSaveNote)
	s.mcp.AddTool(getNoteTool(), s.handleGetNote)
	s.mcp.AddTool(deleteNoteTool(), s.handleDeleteNote)
	s.mcp.AddTool(searchMemoryTool(), s.handleSearchMemory)
	s.mcp.AddTool(noteHistoryTool(), s.handleNoteHistory)
	s.mcp.AddTool(reconstructNoteTool(), s.handleReconstructNote)
	s.mcp.AddTool(rebuildIndexTool(), s.handleRebuildIndex)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)

	return nil
}
