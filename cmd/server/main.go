package main

import (
    "context"
    "flag"
    "log"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/minirail/train-seat-reservation/internal/config"
    "github.com/minirail/train-seat-reservation/internal/database"
    "github.com/minirail/train-seat-reservation/internal/handler"
    "github.com/minirail/train-seat-reservation/internal/ledger"
    "github.com/minirail/train-seat-reservation/internal/lock"
    "github.com/minirail/train-seat-reservation/internal/model"
    "github.com/minirail/train-seat-reservation/internal/queue"
    "github.com/minirail/train-seat-reservation/internal/repository"
    "github.com/minirail/train-seat-reservation/internal/router"
    "github.com/minirail/train-seat-reservation/internal/seatmap"
    "github.com/minirail/train-seat-reservation/internal/service"
)

func main() {
    // A .env file is a convenience for local development; in deployment the
    // variables come from the environment directly.
    _ = godotenv.Load()

    seed := flag.Bool("seed", false, "seed the stock ledger from the database before serving")
    flag.Parse()

    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Redis backs the stock ledger, the lock manager and the change
    // mappings.  With no Redis configured the in-memory backends keep a
    // single node working, but counters and in-flight changes do not
    // survive a restart and a second node would race the first.  A
    // configured Redis that does not answer fails startup.
    var (
        stock      ledger.Ledger
        locks      lock.Manager
        changeMaps service.ChangeMapStore
        onRelease  func(ledger.ReleaseFunc)
    )
    rdb, err := config.NewRedisClient()
    if err != nil {
        log.Fatalf("redis: %v", err)
    }
    if rdb != nil {
        rl := ledger.NewRedisLedger(rdb)
        stock = rl
        onRelease = rl.OnRelease
        locks = lock.NewRedisManager(rdb)
        changeMaps = ledger.NewChangeMappings(rdb)
    } else {
        log.Println("[main] no redis configured, using in-memory ledger and locks (single node only)")
        ml := ledger.NewMemoryLedger()
        stock = ml
        onRelease = ml.OnRelease
        locks = lock.NewMemoryManager()
        changeMaps = ledger.NewMemoryChangeMappings()
    }

    trainRepo := repository.NewTrainRepo(db)
    seatRepo := repository.NewSeatRepo(db)
    relations := repository.NewRelationRepo(db)
    allocator := seatmap.NewAllocator(seatRepo, trainRepo)

    ticketStore := service.NewSQLTicketStore(db)
    inventoryStore := service.NewSQLInventoryStore(db)
    waitlistStore := service.NewSQLWaitlistStore(db)

    conflicts := service.NewTimeConflict(ticketStore, trainRepo)
    ticketSvc := service.NewTicketService(ticketStore, inventoryStore, relations, conflicts,
        stock, locks, allocator, allocator, changeMaps, queue.PublishOrderCreated)
    paymentSvc := service.NewPaymentService(ticketStore, stock, allocator, changeMaps)
    waitlistSvc := service.NewWaitlistService(waitlistStore, ticketStore, inventoryStore, relations, stock)
    waitlistSvc.SetExpiry(time.Duration(cfg.WaitlistExpiryHours) * time.Hour)
    inventorySvc := service.NewInventoryService(inventoryStore, stock)

    materializer := service.NewMaterializer(ticketStore, inventoryStore, allocator, locks)
    reconciler := service.NewReconciler(inventoryStore, stock,
        time.Duration(cfg.ReconcileIntervalSec)*time.Second)
    reaper := service.NewReaper(ticketStore, stock, allocator, locks,
        time.Duration(cfg.OrderTimeoutMin)*time.Minute,
        time.Duration(cfg.ReapIntervalSec)*time.Second)

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    if *seed {
        if err := reconciler.SeedFromDatabase(ctx); err != nil {
            log.Fatalf("seed: %v", err)
        }
        log.Println("[main] ledger seeded from database")
    }

    // Every returned seat wakes the waitlist for its key.
    onRelease(func(key model.InventoryKey) {
        waitlistSvc.FulfillReleased(context.Background(), key)
    })

    go queue.StartOrderConsumer(ctx, materializer.HandleOrder)
    go reconciler.Run(ctx)
    go reaper.Run(ctx)

    e := echo.New()
    e.HideBanner = true
    router.RegisterRoutes(e,
        handler.NewTicketHandler(ticketSvc, paymentSvc),
        handler.NewWaitlistHandler(waitlistSvc),
        handler.NewInventoryHandler(inventorySvc))

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    go func() {
        if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
            log.Fatalf("server: %v", err)
        }
    }()

    <-ctx.Done()
    log.Println("[main] shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := e.Shutdown(shutdownCtx); err != nil {
        log.Printf("[main] shutdown: %v", err)
    }
}
