package main

import (
	"context"
	"fmt"
	"time"

	"github.com/psychoticproxy/heidi/pkg/agent"
	"github.com/psychoticproxy/heidi/pkg/bus"
	"github.com/psychoticproxy/heidi/pkg/channels"
	"github.com/psychoticproxy/heidi/pkg/config"
	"github.com/psychoticproxy/heidi/pkg/memory"
	"github.com/psychoticproxy/heidi/pkg/persona"
	"github.com/psychoticproxy/heidi/pkg/providers"
	"github.com/psychoticproxy/heidi/pkg/queue"
	"github.com/psychoticproxy/heidi/pkg/quota"
	"github.com/psychoticproxy/heidi/pkg/sched"
	"github.com/psychoticproxy/heidi/pkg/summarizer"
)

// botRuntime wires the full stack once; gateway and chat differ only in
// which channel adapters get registered and which one queue delivery
// targets.
type botRuntime struct {
	cfg       *config.Config
	bus       *bus.MessageBus
	store     *memory.SQLiteStore
	queueDB   *queue.Store
	queueMgr  *queue.Manager
	engine    *agent.Engine
	manager   *channels.Manager
	summarize *summarizer.Summarizer
	reflector *persona.Reflector
	scheduler *sched.Scheduler
}

func buildRuntime(cfg *config.Config, deliverChannel string) (*botRuntime, error) {
	completer, err := providers.NewOpenRouterClient(
		cfg.Provider.APIBase,
		cfg.Provider.APIKey,
		time.Duration(cfg.Provider.TimeoutSeconds)*time.Second,
	)
	if err != nil {
		return nil, err
	}

	store, err := memory.NewSQLiteStore(cfg.MemoryDBPath(), cfg.Memory.TurnCap, persona.DefaultPersona)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	queueDB, err := queue.NewStore(cfg.QueueDBPath())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	msgBus := bus.NewMessageBus()
	gate := quota.NewGate(cfg.Quota.DailyLimit)
	convo := memory.NewConversationMemory(store, cfg.Memory.RingCapacity)
	composer := persona.NewComposer(store, convo, cfg.Discord.CreatorID,
		cfg.Memory.RecentWindow, cfg.Memory.ContextHints)
	manager := channels.NewManager(msgBus)
	summarize := summarizer.New(store, completer, gate, cfg.Provider.SummaryModel)
	reflector := persona.NewReflector(store, completer, gate, cfg.Provider.ReflectionModel, 10)

	// The engine and the queue manager reference each other: delivery
	// regenerates replies through the engine. The closure resolves after
	// both are constructed and before anything runs.
	var engine *agent.Engine
	queueMgr := queue.NewManager(queueDB, func(ctx context.Context, job queue.Job) error {
		deliver := engine.DeliverJob(func(channelID, content string) error {
			return manager.Send(ctx, deliverChannel, channelID, content)
		})
		return deliver(ctx, job)
	}, queue.Options{
		InitialBackoff: time.Duration(cfg.Queue.InitialBackoffSeconds) * time.Second,
		MaxBackoff:     time.Duration(cfg.Queue.MaxBackoffSeconds) * time.Second,
		MaxAttempts:    cfg.Queue.MaxAttempts,
		ReloadInterval: time.Duration(cfg.Queue.ReloadSeconds) * time.Second,
	})

	engine = agent.NewEngine(msgBus, completer, gate, store, convo, composer, queueMgr, summarize,
		agent.Options{
			Model:          cfg.Provider.Model,
			Temperature:    cfg.Provider.Temperature,
			MaxTokens:      cfg.Provider.MaxTokens,
			Cooldown:       time.Duration(cfg.Reply.CooldownSeconds) * time.Second,
			TypingDelayMin: time.Duration(cfg.Reply.TypingDelayMinMS) * time.Millisecond,
			TypingDelayMax: time.Duration(cfg.Reply.TypingDelayMaxMS) * time.Millisecond,
			CreatorID:      cfg.Discord.CreatorID,
			Admins:         cfg.Discord.Admins,
		})

	scheduler := sched.New()
	if err := scheduler.AddCron("summarize", cfg.Schedules.SummarizeCron, summarize.SweepAll); err != nil {
		_ = store.Close()
		_ = queueDB.Close()
		return nil, err
	}
	if err := scheduler.AddCron("reflect", cfg.Schedules.ReflectCron, reflector.Reflect); err != nil {
		_ = store.Close()
		_ = queueDB.Close()
		return nil, err
	}
	scheduler.AddEvery("context-hints",
		time.Duration(cfg.Schedules.ContextCacheMinutes)*time.Minute,
		func(ctx context.Context) {
			memory.RefreshContextHints(ctx, store, cfg.Memory.RecentWindow, 5)
		})

	return &botRuntime{
		cfg:       cfg,
		bus:       msgBus,
		store:     store,
		queueDB:   queueDB,
		queueMgr:  queueMgr,
		engine:    engine,
		manager:   manager,
		summarize: summarize,
		reflector: reflector,
		scheduler: scheduler,
	}, nil
}

// start launches the background loops. Channel adapters must already be
// registered.
func (rt *botRuntime) start(ctx context.Context) error {
	if err := rt.manager.StartAll(ctx); err != nil {
		return err
	}
	go rt.engine.Run(ctx)
	go rt.queueMgr.Run(ctx)
	go rt.scheduler.Run(ctx)
	return nil
}

func (rt *botRuntime) shutdown(ctx context.Context) {
	rt.manager.StopAll(ctx)
	rt.bus.Close()
	_ = rt.queueDB.Close()
	_ = rt.store.Close()
}
