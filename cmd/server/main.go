package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/falconpay/falcon/broker"
	"github.com/falconpay/falcon/db"
	"github.com/falconpay/falcon/db/migrations"
	"github.com/falconpay/falcon/lib"
	"github.com/falconpay/falcon/lib/service"
	"github.com/falconpay/falcon/lib/transport"
	"github.com/falconpay/falcon/rabbitmq"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/uptrace/bun/migrate"
)

func main() {
	c := &service.Config{}

	// Load configuration from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configured log file
	logger := lib.Logger(c.LogFilePath)

	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}
	defer dbConn.Close()

	// Migrate the DB
	startupCtx := context.Background()
	migrator := migrate.NewMigrator(dbConn, migrations.Migrations)
	err = migrator.Init(startupCtx)
	if err != nil {
		logger.Fatalf("Error initializing db migrator: %v", err)
	}
	_, err = migrator.Migrate(startupCtx)
	if err != nil {
		logger.Fatalf("Error migrating database: %v", err)
	}

	// Setup exception tracking with Sentry if configured
	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:          c.SentryDSN,
			IgnoreErrors: []string{"401"},
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
	}

	// Broker client for quotes, deposit addresses, balances and transfers
	brokerClient := broker.NewRESTClient(broker.RESTOptions{
		BaseURL: c.BrokerUrl,
		KeyID:   c.BrokerKeyID,
		Secret:  c.BrokerKey,
		Timeout: c.TransferTimeout,
	}, logger)

	// If no RABBITMQ_URI was provided we will not attempt to create a client
	// and no order events will be published.
	var rabbitmqClient rabbitmq.Client
	if c.RabbitMQUri != "" {
		amqpClient, err := rabbitmq.DialAMQP(c.RabbitMQUri)
		if err != nil {
			logger.Fatal(err)
		}

		rabbitmqClient, err = rabbitmq.NewClient(amqpClient,
			rabbitmq.WithLogger(logger),
			rabbitmq.WithOrderExchange(c.RabbitMQOrderExchange),
		)
		if err != nil {
			logger.Fatal(err)
		}

		// close the connection gently at the end of the runtime
		defer rabbitmqClient.Close()
	}

	svc := service.NewFalconService(c, db.NewOrderStore(dbConn), brokerClient, logger, rabbitmqClient)

	// init echo server
	e := transport.InitEcho(c)
	strictRateLimitMiddleware := transport.CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)
	secured := e.Group("", transport.BasicAuthMiddleware(c))
	transport.RegisterEndpoints(svc, e, secured, strictRateLimitMiddleware)

	var backgroundWg sync.WaitGroup
	backGroundCtx, _ := signal.NotifyContext(context.Background(), os.Interrupt)

	// Reconcile open orders against the broker in the background
	backgroundWg.Add(1)
	go func() {
		err = svc.StartReconciliationRoutine(backGroundCtx)
		if err != nil {
			sentry.CaptureException(err)
			// we want to restart in case of an error here
			svc.Logger.Fatal(err)
		}
		svc.Logger.Info("Reconciliation routine done")
		backgroundWg.Done()
	}()

	// Start server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-backGroundCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
	// Wait for graceful shutdown of background routines
	backgroundWg.Wait()
	svc.Logger.Info("FALCON exiting gracefully. Goodbye.")
}
