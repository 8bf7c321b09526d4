package service

import (
	"context"
	"fmt"
	"time"

	"rydz/internal/repository"
)

// TextGenerator is the external AI text-generation collaborator: structured
// prompt in, structured text out. The core never calls it; only the assist
// glue below does.
type TextGenerator interface {
	Generate(ctx context.Context, prompt GeneratePrompt) (string, error)
}

// GeneratePrompt is the structured input handed to the generator.
type GeneratePrompt struct {
	Task    string
	Context map[string]string
}

// AssistService builds structured prompts from the user's real schedule data
// and hands them to the generator. Carpool suggestions and help text are a
// convenience layer; failures here never affect ride state.
type AssistService struct {
	aggregator *AggregatorService
	profiles   repository.ProfileRepository
	generator  TextGenerator
}

// NewAssistService creates a new AssistService.
func NewAssistService(aggregator *AggregatorService, profiles repository.ProfileRepository, generator TextGenerator) *AssistService {
	return &AssistService{aggregator: aggregator, profiles: profiles, generator: generator}
}

// SuggestCarpool asks the generator for a carpool suggestion based on the
// user's upcoming schedule.
func (s *AssistService) SuggestCarpool(ctx context.Context, userID string) (string, error) {
	if s.generator == nil {
		return "", E(KindValidation, "carpool suggestions are not configured")
	}

	days, err := s.aggregator.GetUpcomingSchedule(ctx, userID, DefaultScheduleHorizonDays)
	if err != nil {
		return "", err
	}

	promptCtx := map[string]string{"user_id": userID}
	for _, day := range days {
		for i, item := range day.Items {
			key := fmt.Sprintf("%s#%d", day.Date, i)
			promptCtx[key] = fmt.Sprintf("%s at %s", item.Title, item.Time.Format(time.Kitchen))
		}
	}

	text, err := s.generator.Generate(ctx, GeneratePrompt{
		Task:    "suggest_carpool",
		Context: promptCtx,
	})
	if err != nil {
		return "", wrap(err, "generate carpool suggestion")
	}
	return text, nil
}

// Help asks the generator to answer a free-form help question.
func (s *AssistService) Help(ctx context.Context, userID, question string) (string, error) {
	if s.generator == nil {
		return "", E(KindValidation, "help assistant is not configured")
	}
	if question == "" {
		return "", E(KindValidation, "question is empty")
	}

	text, err := s.generator.Generate(ctx, GeneratePrompt{
		Task:    "help",
		Context: map[string]string{"user_id": userID, "question": question},
	})
	if err != nil {
		return "", wrap(err, "generate help answer")
	}
	return text, nil
}
