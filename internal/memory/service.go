// Package memory implements the contextual memory service: durable turn
// recording, profile enrichment, and similarity-based context retrieval.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftlock/recall/internal/llm"
	"github.com/driftlock/recall/internal/profile"
	"github.com/driftlock/recall/internal/profilestore"
	"github.com/driftlock/recall/internal/vectorstore"
	"github.com/driftlock/recall/pkg/types"
)

// Config tunes the enrichment worker pool.
type Config struct {
	NumWorkers      int           // default: 2
	QueueSize       int           // default: 100
	ShutdownTimeout time.Duration // default: 10s
}

func (c *Config) applyDefaults() {
	if c.NumWorkers == 0 {
		c.NumWorkers = 2
	}
	if c.QueueSize == 0 {
		c.QueueSize = 100
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Service is the memory subsystem facade. Writes to the vector store are
// durable and fail closed; retrieval and enrichment fail open so a memory
// outage never blocks a conversation.
type Service struct {
	profiles  profilestore.Store
	vectors   *vectorstore.Manager
	embedder  llm.Embedder
	generator llm.TextGenerator
	config    Config

	enrichmentQueue chan types.Turn
	workerWaitGroup sync.WaitGroup
	started         bool
	mu              sync.Mutex

	// onProfileUpdated fires after an enrichment pass persists a profile.
	onProfileUpdated func(ownerID string)
}

// NewService wires the memory service together.
func NewService(profiles profilestore.Store, vectors *vectorstore.Manager, embedder llm.Embedder, generator llm.TextGenerator, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		profiles:        profiles,
		vectors:         vectors,
		embedder:        embedder,
		generator:       generator,
		config:          cfg,
		enrichmentQueue: make(chan types.Turn, cfg.QueueSize),
	}
}

// OnProfileUpdated registers a callback invoked after enrichment persists a
// profile. Set it before Start.
func (s *Service) OnProfileUpdated(fn func(ownerID string)) {
	s.onProfileUpdated = fn
}

// Start launches the enrichment worker pool.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	for i := 0; i < s.config.NumWorkers; i++ {
		s.workerWaitGroup.Add(1)
		go s.enrichmentWorker(ctx, i)
	}
	log.Printf("memory: started %d enrichment workers", s.config.NumWorkers)
}

// Stop closes the enrichment queue and waits for workers to drain, up to the
// shutdown timeout.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	close(s.enrichmentQueue)

	done := make(chan struct{})
	go func() {
		s.workerWaitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("memory: all enrichment workers finished gracefully")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		log.Printf("memory: shutdown timeout reached, %d enrichment jobs may be dropped", len(s.enrichmentQueue))
		return nil
	case <-ctx.Done():
		log.Printf("memory: context cancelled, %d enrichment jobs may be dropped", len(s.enrichmentQueue))
		return ctx.Err()
	}
}

// ProvisionStorage ensures vector storage for the owner, dedicated or
// shared. Provisioning failures surface to the caller and are safe to retry.
func (s *Service) ProvisionStorage(ctx context.Context, ownerID string, dedicated bool) (types.IndexDescriptor, error) {
	return s.vectors.EnsureStorage(ctx, ownerID, dedicated)
}

// StorageExists reports whether the owner's vector storage is present and
// which mode governs it.
func (s *Service) StorageExists(ctx context.Context, ownerID string) (bool, types.IndexMode, error) {
	return s.vectors.StorageExists(ctx, ownerID)
}

// TeardownStorage removes the owner's vectors and profile.
func (s *Service) TeardownStorage(ctx context.Context, ownerID string) error {
	if err := s.vectors.TeardownStorage(ctx, ownerID); err != nil {
		return err
	}
	return s.profiles.Delete(ctx, ownerID)
}

// GetProfile loads the owner's profile, returning a fresh empty profile for
// owners that have never been enriched.
func (s *Service) GetProfile(ctx context.Context, ownerID string) (*types.Profile, error) {
	p, err := s.profiles.Get(ctx, ownerID)
	if err != nil {
		if errors.Is(err, profilestore.ErrNotFound) {
			return types.NewProfile(ownerID), nil
		}
		return nil, err
	}
	return p, nil
}

// DeleteProfile removes the owner's profile. Missing profiles are a no-op.
func (s *Service) DeleteProfile(ctx context.Context, ownerID string) error {
	return s.profiles.Delete(ctx, ownerID)
}

// RecordTurn durably stores both sides of a conversation turn, then queues
// profile enrichment. The assistant message is stamped one millisecond after
// the user message so chronological ordering is stable within a turn.
// Storage errors fail the call; enrichment never does.
func (s *Service) RecordTurn(ctx context.Context, turn types.Turn) error {
	if turn.OwnerID == "" {
		return fmt.Errorf("owner ID is required")
	}
	if turn.Timestamp == 0 {
		turn.Timestamp = time.Now().UnixMilli()
	}

	userVec, err := s.embedder.Embed(ctx, turn.UserText)
	if err != nil {
		return fmt.Errorf("failed to embed user message: %w", err)
	}
	assistantVec, err := s.embedder.Embed(ctx, turn.AssistantText)
	if err != nil {
		return fmt.Errorf("failed to embed assistant message: %w", err)
	}

	records := []types.VectorRecord{
		{
			ID:        uuid.New().String(),
			Vector:    userVec,
			Role:      types.RoleUser,
			Text:      turn.UserText,
			Timestamp: turn.Timestamp,
			OwnerID:   turn.OwnerID,
		},
		{
			ID:        uuid.New().String(),
			Vector:    assistantVec,
			Role:      types.RoleAssistant,
			Text:      turn.AssistantText,
			Timestamp: turn.Timestamp + 1,
			OwnerID:   turn.OwnerID,
		},
	}

	if err := s.vectors.Upsert(ctx, turn.OwnerID, records); err != nil {
		return fmt.Errorf("failed to store turn: %w", err)
	}

	s.scheduleEnrichment(turn)
	return nil
}

// scheduleEnrichment queues a turn for background profile enrichment. The
// enqueue never blocks; when the queue is full the job is dropped and logged.
func (s *Service) scheduleEnrichment(turn types.Turn) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		log.Printf("memory: enrichment workers not running, dropping job for owner %s", turn.OwnerID)
		return
	}

	select {
	case s.enrichmentQueue <- turn:
	default:
		log.Printf("memory: enrichment queue full, dropping job for owner %s", turn.OwnerID)
	}
}

func (s *Service) enrichmentWorker(ctx context.Context, workerID int) {
	defer s.workerWaitGroup.Done()

	log.Printf("memory: enrichment worker %d started", workerID)
	for turn := range s.enrichmentQueue {
		s.processEnrichment(ctx, workerID, turn)
	}
	log.Printf("memory: enrichment worker %d stopped", workerID)
}

// processEnrichment runs one read-generate-merge-write pass over the owner's
// profile. Concurrent passes for the same owner are last-write-wins; the
// merge is additive so a lost update costs at most one delta.
func (s *Service) processEnrichment(ctx context.Context, workerID int, turn types.Turn) {
	// Database work uses a background context so in-flight jobs survive
	// request cancellation during shutdown.
	dbCtx := context.Background()

	existing, err := s.GetProfile(dbCtx, turn.OwnerID)
	if err != nil {
		log.Printf("memory: worker %d failed to load profile for %s: %v", workerID, turn.OwnerID, err)
		return
	}

	delta := s.generateDelta(ctx, workerID, existing, turn)

	ts := time.UnixMilli(turn.Timestamp)
	merged := profile.Merge(existing, delta, ts)

	if err := s.profiles.Put(dbCtx, merged); err != nil {
		log.Printf("memory: worker %d failed to persist profile for %s: %v", workerID, turn.OwnerID, err)
		return
	}

	log.Printf("memory: worker %d enriched profile for %s (interactions=%d)",
		workerID, turn.OwnerID, merged.InteractionCount)

	if s.onProfileUpdated != nil {
		s.onProfileUpdated(turn.OwnerID)
	}
}

// generateDelta asks the LLM for a profile delta. Any failure, including
// malformed output, degrades to an empty delta so the interaction counters
// still advance.
func (s *Service) generateDelta(ctx context.Context, workerID int, existing *types.Profile, turn types.Turn) types.Delta {
	prompt := llm.DeltaSystemPrompt() + "\n\n" + llm.BuildDeltaPrompt(existing, turn)

	raw, err := s.generator.Complete(ctx, prompt)
	if err != nil {
		log.Printf("memory: worker %d delta generation failed for %s: %v", workerID, turn.OwnerID, err)
		return types.Delta{}
	}

	delta, err := llm.ParseDeltaResponse(raw)
	if err != nil {
		log.Printf("memory: worker %d delta parse failed for %s: %v", workerID, turn.OwnerID, err)
		return types.Delta{}
	}
	return delta
}
