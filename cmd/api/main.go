package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/thinlam/otp-server/internal/config"
	"github.com/thinlam/otp-server/internal/directory"
	"github.com/thinlam/otp-server/internal/infrastructure/dynamo"
	"github.com/thinlam/otp-server/internal/infrastructure/gcip"
	jwtinfra "github.com/thinlam/otp-server/internal/infrastructure/jwt"
	"github.com/thinlam/otp-server/internal/infrastructure/smtp"
	snsinfra "github.com/thinlam/otp-server/internal/infrastructure/sns"
	"github.com/thinlam/otp-server/internal/otp"
	"github.com/thinlam/otp-server/internal/tenant"
	transporthttp "github.com/thinlam/otp-server/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx := context.Background()

	// The tenant set is fatal at startup: serving with no brands
	// configured would make every request fail anyway.
	tenants, err := tenant.NewRegistry(cfg)
	if err != nil {
		log.Fatalf("tenant registry: %v", err)
	}

	// DynamoDB backs the durable OTP store and the local directory
	// backend; the client is skipped entirely when neither is selected.
	var store otp.Store
	var dirs []directory.Directory
	if cfg.OTPStore == config.StoreDynamo || cfg.DirectoryBackend == config.DirectoryDynamo {
		client := dynamo.NewClient(cfg)
		dynamo.Bootstrap(ctx, client, cfg)
		if cfg.OTPStore == config.StoreDynamo {
			store = dynamo.NewChallengeStore(client, cfg.ChallengeTable)
		}
		if cfg.DirectoryBackend == config.DirectoryDynamo {
			for _, tc := range cfg.Tenants {
				dirs = append(dirs, dynamo.NewUserDirectory(client, tc.DirectoryTable, tc.Key))
			}
		}
	}
	if store == nil {
		store = otp.NewMemStore()
	}

	// Hosted identity provider: one Identity Platform project per tenant.
	// Tenants without a service account are left out of the candidate set.
	if cfg.DirectoryBackend == config.DirectoryGCIP {
		for _, tc := range cfg.Tenants {
			if tc.ServiceAccount == "" {
				log.Printf("WARN: tenant %s has no service account, skipping its directory", tc.Key)
				continue
			}
			d, err := gcip.NewDirectory(ctx, tc.Key, tc.ServiceAccount)
			if err != nil {
				log.Fatalf("identity directory for tenant %s: %v", tc.Key, err)
			}
			dirs = append(dirs, d)
		}
	}

	mailer := smtp.NewMailer(cfg)

	// SNS delivery-failure alerts, optional.
	var alerts otp.AlertPublisher
	if cfg.SNSAlertTopicARN != "" {
		if p, err := snsinfra.NewPublisher(cfg); err == nil {
			alerts = p
		} else {
			log.Printf("WARN: SNS alert publisher not available: %v", err)
		}
	}

	// Verification receipt signer, optional.
	var receipts otp.ReceiptSigner
	if cfg.JWTPrivateKeyPath != "" {
		if p, err := jwtinfra.NewProvider(cfg); err == nil {
			receipts = p
		} else {
			log.Printf("WARN: receipt signer not available: %v", err)
		}
	}

	if cfg.EchoCode {
		log.Printf("WARN: OTP_ECHO_CODE is enabled, generated codes are returned in responses (env=%s)", cfg.AppEnv)
	}

	otpSvc := otp.NewService(otp.ServiceDeps{
		Store:                   store,
		Tenants:                 tenants,
		Mailer:                  mailer,
		Alerts:                  alerts,
		Receipts:                receipts,
		TTL:                     cfg.OTPTTL,
		Cooldown:                cfg.OTPCooldown,
		EchoCode:                cfg.EchoCode,
		RevokeOnDeliveryFailure: cfg.RevokeOnDeliveryFailure,
	})

	resetSvc := directory.NewResetService(tenants, dirs)

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		OTPService:   otpSvc,
		ResetService: resetSvc,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, store=%s, tenants=%d)", cfg.AppPort, cfg.AppEnv, cfg.OTPStore, len(cfg.Tenants))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
