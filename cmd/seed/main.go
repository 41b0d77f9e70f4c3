package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/exstem-papers/internal/config"
	"github.com/stemsi/exstem-papers/internal/database"
	"github.com/stemsi/exstem-papers/internal/logger"
	"github.com/stemsi/exstem-papers/internal/model"
	"github.com/stemsi/exstem-papers/internal/repository"
	"github.com/stemsi/exstem-papers/internal/service"
)

const (
	demoTeacherID = 1
	demoCategory  = 1
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	examRepo := repository.NewExamRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	paperRepo := repository.NewPaperRepository(pool)
	paperService := service.NewPaperService(paperRepo, questionRepo, examRepo, service.NewPaperViewBuilder(paperRepo), log)

	fmt.Println("=== Seeding demo exam ===")

	questions := demoQuestions()
	if err := questionRepo.CreateBatch(ctx, questions); err != nil {
		log.Fatal().Err(err).Msg("Failed to insert questions")
	}
	fmt.Printf("Inserted %d questions into category %d\n", len(questions), demoCategory)

	now := time.Now()
	exam := &model.Exam{
		Title:           "Demo Science Quiz",
		DurationMinutes: 45,
		StartTime:       now.Add(-10 * time.Minute),
		EndTime:         now.Add(3 * time.Hour),
		Status:          model.ExamStatusOngoing,
		OwnerID:         demoTeacherID,
	}
	if err := examRepo.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}
	fmt.Printf("Created exam %s\n", exam.ID)

	teacher := service.Caller{UserID: demoTeacherID, Role: service.RoleTeacher}
	category := demoCategory
	choice, fill := model.QuestionTypeChoice, model.QuestionTypeFillBlank
	paper, err := paperService.Generate(ctx, teacher, model.GeneratePaperRequest{
		ExamID: exam.ID,
		Title:  "Demo Science Quiz - Paper A",
		Rules: []model.SelectionRule{
			{CategoryID: &category, QuestionType: &choice, Count: 4, ScorePerQuestion: 5},
			{CategoryID: &category, QuestionType: &fill, Count: 2, ScorePerQuestion: 10},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to generate paper")
	}
	if paper, err = paperService.Publish(ctx, teacher, paper.ID); err != nil {
		log.Fatal().Err(err).Msg("Failed to publish paper")
	}

	fmt.Printf("\nSeed completed! Paper %s: %d questions, %d points.\n", paper.ID, paper.TotalQuestions, paper.TotalScore)
	fmt.Printf("Issue tokens with: go run ./cmd/issue-token teacher %d\n", demoTeacherID)
}

func demoQuestions() []model.Question {
	choice := func(title, key string, difficulty int) model.Question {
		return model.Question{
			Type:       model.QuestionTypeChoice,
			Difficulty: difficulty,
			CategoryID: demoCategory,
			Title:      title,
			Options:    []byte(`[{"key":"A","text":"1"},{"key":"B","text":"2"},{"key":"C","text":"3"},{"key":"D","text":"4"}]`),
			AnswerKey:  key,
			BaseScore:  5,
		}
	}
	fill := func(title, key string) model.Question {
		return model.Question{
			Type:       model.QuestionTypeFillBlank,
			Difficulty: 2,
			CategoryID: demoCategory,
			Title:      title,
			AnswerKey:  key,
			BaseScore:  10,
		}
	}
	return []model.Question{
		choice("How many protons does helium have?", "B", 1),
		choice("How many hydrogen atoms are in a water molecule?", "B", 1),
		choice("How many states of matter are commonly taught?", "C", 1),
		choice("How many chambers does the human heart have?", "D", 2),
		choice("How many moons does Mars have?", "B", 3),
		fill("The chemical symbol of sodium is ___.", "Na"),
		fill("Water boils at ___ degrees Celsius at sea level.", "100"),
		fill("Plants absorb ___ and release ___.", "CO2|O2"),
		{
			Type:       model.QuestionTypeShortAnswer,
			Difficulty: 3,
			CategoryID: demoCategory,
			Title:      "Explain why ice floats on water.",
			BaseScore:  15,
		},
	}
}
