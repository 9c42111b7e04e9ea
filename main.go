package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pairtalk/app/api"
	"pairtalk/app/client/badgerdb"
	"pairtalk/app/client/llm"
	"pairtalk/app/config"
	"pairtalk/app/service/conversation"
	"pairtalk/app/service/coordinator"
	"pairtalk/app/service/finalizer"
	"pairtalk/app/service/notify"
	"pairtalk/app/service/queue"
	"pairtalk/app/service/store"
	"pairtalk/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	if cfg.Storage.Backend == "badger" {
		do.Provide(di, badgerdb.NewClient)
	}
	do.Provide(di, store.New)
	do.Provide(di, notify.New)
	do.Provide(di, queue.New)
	do.Provide(di, llm.NewClient)
	do.Provide(di, coordinator.New)
	do.Provide(di, conversation.New)
	do.Provide(di, finalizer.New)
	do.Provide(di, api.New)

	slog.Info("Service started",
		"storage", cfg.Storage.Backend,
		"llm", cfg.LLM.Provider)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	group, groupCtx := errgroup.WithContext(appCtx)

	group.Go(func() error {
		do.MustInvoke[*finalizer.Service](di).Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		return do.MustInvoke[*api.Server](di).Run(groupCtx)
	})

	if err = group.Wait(); err != nil {
		slog.Error("Service stopped with error", "error", err)
	}
}
