package main

import (
	"context"
	"flag"
	"fmt"
	"lp-tracker/internal/config"
	"lp-tracker/internal/constants"
	"lp-tracker/internal/database"
	"lp-tracker/internal/db"
	"lp-tracker/internal/domain"
	"lp-tracker/internal/logger"
	"lp-tracker/internal/repository"
	"os"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// link-account registers a tracked account and issues a bearer token for the
// snapshot and stats endpoints.
func main() {
	userID := flag.String("user", "", "user id the account belongs to")
	puuid := flag.String("puuid", "", "Riot puuid of the account")
	platform := flag.String("platform", "na1", "platform region, e.g. na1 or euw1")
	token := flag.String("token", "", "bearer token to issue (generated when empty)")
	tokenOnly := flag.Bool("token-only", false, "only issue a new token for an existing account")
	flag.Parse()

	log := logger.New()

	if *userID == "" || (*puuid == "" && !*tokenOnly) {
		fmt.Fprintln(os.Stderr, "usage: link-account -user=<id> -puuid=<puuid> [-platform=na1] [-token=<token>]")
		os.Exit(2)
	}

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	sqlDB, err := database.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer sqlDB.Close()

	accounts := repository.NewAccountRepository(sqlDB, db.New(sqlDB), log)

	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()

	if !*tokenOnly {
		err := accounts.Create(ctx, &domain.TrackedAccount{
			UserID:         *userID,
			Puuid:          *puuid,
			PlatformRegion: strings.ToLower(*platform),
		})
		if err != nil {
			log.Fatal().Err(err).Str("user_id", *userID).Msg("failed to create account")
		}
		log.Info().Str("user_id", *userID).Str("platform", *platform).Msg("account linked")
	}

	if *token == "" {
		*token, err = gonanoid.New(32)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to generate token")
		}
	}
	if err := accounts.AddToken(ctx, *userID, *token); err != nil {
		log.Fatal().Err(err).Str("user_id", *userID).Msg("failed to store token")
	}

	fmt.Println(*token)
}
