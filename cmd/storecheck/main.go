// Command storecheck wires the configured backend and runs a create, read,
// list, revoke round trip against it. Intended for verifying deployments and
// local backends.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/arklim/token-vault/internal/core/domain"
	"github.com/arklim/token-vault/internal/infra/app"
	"github.com/arklim/token-vault/internal/infra/config"
	"github.com/arklim/token-vault/internal/repository"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	if err := run(ctx, application); err != nil {
		log.Printf("store check failed: %v", err)
		os.Exit(1)
	}

	log.Println("store check passed")
}

func run(ctx context.Context, application *app.Application) error {
	store := application.Store()

	tokenID := uuid.NewString()
	userID := "storecheck-" + uuid.NewString()

	created, err := store.CreateToken(ctx, tokenID, domain.Token{
		UserID:    userID,
		ExpiresAt: time.Now().Add(5 * time.Minute),
		Version:   domain.SchemaV3,
	})
	if err != nil {
		return err
	}

	fetched, err := store.GetToken(ctx, created.ID)
	if err != nil {
		return err
	}
	if fetched.UserID != userID {
		return errors.New("fetched token carries the wrong user id")
	}

	ids, err := store.ListTokens(ctx, domain.TokenFilter{UserID: userID})
	if err != nil {
		return err
	}
	if len(ids) != 1 || ids[0] != tokenID {
		return errors.New("owner index does not list the created token")
	}

	if err := store.DeleteToken(ctx, tokenID); err != nil {
		return err
	}
	if _, err := store.GetToken(ctx, tokenID); !errors.Is(err, repository.ErrNotFound) {
		return errors.New("revoked token is still readable")
	}

	revoked, err := store.ListRevokedTokens(ctx)
	if err != nil {
		return err
	}
	for _, entry := range revoked {
		if entry.TokenID == tokenID {
			return nil
		}
	}
	return errors.New("revocation ledger does not list the revoked token")
}
