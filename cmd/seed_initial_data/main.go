package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"learnrank/internal/config"
	"learnrank/internal/database"
	"learnrank/internal/domain"
	"learnrank/internal/logger"
	"learnrank/internal/repository"
	"learnrank/internal/service"
	"learnrank/internal/util"

	"go.uber.org/zap"
)

const seedFilePath = "config/seed_data/initial_learning_data.json"

// seedFile is the on-disk shape of the demo dataset.
type seedFile struct {
	Users []struct {
		Email    string `json:"email"`
		FullName string `json:"full_name"`
	} `json:"users"`
	Lessons []struct {
		Title string `json:"title"`
	} `json:"lessons"`
	Attempts []struct {
		UserEmail   string  `json:"user_email"`
		LessonTitle string  `json:"lesson_title"`
		Score       float64 `json:"score"`
		TimeSpent   int64   `json:"time_spent"`
	} `json:"attempts"`
}

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	log.Info("Starting initial data seeding process...")
	db, err := database.NewSQLXOracleDB(cfg.GetDSN())
	if err != nil {
		log.Fatal("Failed to connect to Oracle database", zap.Error(err))
	}
	defer db.Close()

	log.Info("Loading seed data from file", zap.String("path", seedFilePath))
	byteValue, err := os.ReadFile(seedFilePath)
	if err != nil {
		log.Fatal("Failed to read seed file", zap.String("path", seedFilePath), zap.Error(err))
	}
	var seed seedFile
	if err := json.Unmarshal(byteValue, &seed); err != nil {
		log.Fatal("Failed to parse seed file", zap.Error(err))
	}

	userIDs := make(map[string]string, len(seed.Users))
	for _, u := range seed.Users {
		id := util.NewULID()
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (ID, EMAIL, FULL_NAME, TOTAL_SCORE, TOTAL_TIME, IS_ACTIVE, CREATED_AT, UPDATED_AT)
			 VALUES (:1, :2, :3, 0, 0, 1, SYSTIMESTAMP, SYSTIMESTAMP)`,
			id, u.Email, u.FullName)
		if err != nil {
			log.Fatal("Failed to insert user", zap.String("email", u.Email), zap.Error(err))
		}
		userIDs[u.Email] = id
	}
	log.Info("Seeded users", zap.Int("count", len(userIDs)))

	lessonIDs := make(map[string]string, len(seed.Lessons))
	for _, l := range seed.Lessons {
		id := util.NewULID()
		_, err := db.ExecContext(ctx,
			`INSERT INTO lessons (ID, TITLE, CREATED_AT, UPDATED_AT) VALUES (:1, :2, SYSTIMESTAMP, SYSTIMESTAMP)`,
			id, l.Title)
		if err != nil {
			log.Fatal("Failed to insert lesson", zap.String("title", l.Title), zap.Error(err))
		}
		lessonIDs[l.Title] = id
	}
	log.Info("Seeded lessons", zap.Int("count", len(lessonIDs)))

	// Attempts go through the real completion pipeline so totals and every
	// ranking partition end up consistent without a separate backfill.
	rankingRepo := repository.NewSQLXRankingRepository(db)
	userRepo := repository.NewSQLXUserRepository(db)
	progressRepo := repository.NewSQLXProgressRepository(db)
	txManager := repository.NewTransactionManagerAdapter(db)
	rankingSvc := service.NewRankingService(rankingRepo, userRepo, progressRepo, txManager, nil, cfg)
	completionSvc := service.NewCompletionService(progressRepo, userRepo, rankingSvc, txManager, cfg)

	seeded := 0
	for _, a := range seed.Attempts {
		userID, ok := userIDs[a.UserEmail]
		if !ok {
			log.Warn("Attempt references unknown user, skipping", zap.String("email", a.UserEmail))
			continue
		}
		lessonID, ok := lessonIDs[a.LessonTitle]
		if !ok {
			log.Warn("Attempt references unknown lesson, skipping", zap.String("title", a.LessonTitle))
			continue
		}
		event := domain.CompletionEvent{
			UserID:     userID,
			LessonID:   lessonID,
			ScoreDelta: a.Score,
			TimeDelta:  a.TimeSpent,
		}
		if err := completionSvc.RecordCompletion(ctx, event); err != nil {
			log.Fatal("Failed to record seed attempt",
				zap.String("user", a.UserEmail),
				zap.String("lesson", a.LessonTitle),
				zap.Error(err))
		}
		seeded++
	}

	log.Info("Initial data seeding completed", zap.Int("attempts", seeded))
}
