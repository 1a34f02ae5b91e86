package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hanzong05/aimddlwr/internal/repository"
	"github.com/hanzong05/aimddlwr/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedEmail string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the starter training examples for a user with none",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := repository.NewUserRepository(db, log).GetByEmail(cmd.Context(), strings.ToLower(strings.TrimSpace(seedEmail)))
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("no user with email %q", seedEmail)
		}
		if err != nil {
			return err
		}

		seeder := service.NewSeeder(repository.NewTrainingDataRepository(db, log), log)
		n, err := seeder.SeedUser(cmd.Context(), user.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			log.Info("User already has training data, nothing seeded", zap.String("user_id", user.ID))
			return nil
		}
		log.Info("Seeded training examples", zap.String("user_id", user.ID), zap.Int("count", n))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedEmail, "email", "", "email of the user to seed")
	_ = seedCmd.MarkFlagRequired("email")
}
