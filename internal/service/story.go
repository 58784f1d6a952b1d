package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
	"github.com/sakif/videohub/internal/scheduler"
	"github.com/sakif/videohub/internal/validation"
)

const banner = "=================================================="

type StoryInput struct {
	Title        string `form:"title"         validate:"notblank,max=200"`
	Content      string `form:"content"       validate:"notblank"`
	PublishAfter int    `form:"publish_after" validate:"gte=0,lte=2592000"`
}

// StoryService stores stories and prints each one once its delay passes.
type StoryService struct {
	stories repository.StoryRepository
	sched   Scheduler
	out     io.Writer
	logger  *slog.Logger
	now     func() time.Time
}

// NewStoryService prints to out (stdout in production).
func NewStoryService(stories repository.StoryRepository, sched Scheduler, out io.Writer, logger *slog.Logger) *StoryService {
	return &StoryService{
		stories: stories,
		sched:   sched,
		out:     out,
		logger:  logger,
		now:     time.Now,
	}
}

// Create saves the story and schedules its print. It returns as soon as
// the task is recorded.
func (s *StoryService) Create(ctx context.Context, in StoryInput) (*model.Story, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	st := &model.Story{
		Title:        in.Title,
		Content:      in.Content,
		PublishAfter: in.PublishAfter,
		Status:       model.StatusPending,
	}
	if err := s.stories.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("creating story: %w", err)
	}

	taskID, err := s.sched.Schedule(ctx, TaskPrintStory, workPayload{ID: st.ID}, delayOf(st.PublishAfter))
	if err != nil {
		s.fail(ctx, st.ID, "Error scheduling story", err)
		return nil, fmt.Errorf("scheduling story %s: %w", st.ID, err)
	}

	s.logger.Info("story scheduled",
		slog.String("storyID", st.ID),
		slog.String("taskID", taskID),
		slog.Int("delaySeconds", st.PublishAfter),
	)
	return st, nil
}

func (s *StoryService) List(ctx context.Context, page int) ([]model.Story, error) {
	stories, err := s.stories.List(ctx, repository.Page(page, 50))
	if err != nil {
		return nil, fmt.Errorf("listing stories: %w", err)
	}
	return stories, nil
}

// PrintTask is the TaskPrintStory handler.
func (s *StoryService) PrintTask(ctx context.Context, payload []byte) error {
	p, err := scheduler.Decode[workPayload](payload)
	if err != nil {
		return err
	}

	st, err := s.stories.GetByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("story gone before print", slog.String("storyID", p.ID))
		}
		return fmt.Errorf("loading story: %w", err)
	}
	if st.Status == model.StatusCompleted {
		return nil
	}

	if err := s.stories.UpdateStatus(ctx, st.ID, model.StatusProcessing, nil); err != nil {
		s.fail(ctx, st.ID, "Error starting print", err)
		return fmt.Errorf("printing story: %w", err)
	}

	now := s.now().UTC()
	if err := s.print(st, now); err != nil {
		s.fail(ctx, st.ID, "Error printing story", err)
		return fmt.Errorf("printing story: %w", err)
	}

	if err := s.stories.UpdateStatus(ctx, st.ID, model.StatusCompleted, &now); err != nil {
		s.fail(ctx, st.ID, "Error saving print result", err)
		return fmt.Errorf("printing story: %w", err)
	}

	s.logger.Info("story printed",
		slog.String("storyID", st.ID),
		slog.String("title", st.Title),
	)
	return nil
}

// fail leaves the story failed with a reason the stories page shows.
func (s *StoryService) fail(ctx context.Context, id, what string, cause error) {
	reason := what + ": " + cause.Error()
	if err := s.stories.MarkFailed(context.WithoutCancel(ctx), id, reason); err != nil {
		s.logger.Error("marking story failed",
			slog.String("storyID", id),
			slog.String("reason", reason),
			slog.Any("error", err),
		)
	}
}

func (s *StoryService) print(st *model.Story, at time.Time) error {
	_, err := fmt.Fprintf(s.out,
		"\n%s\nSCHEDULED STORY PRINT - %s\nStory ID: %s\nTitle: %s\nDelay: %s\nContent:\n%s\n%s\n%s\n\n",
		banner, at.Format(time.RFC3339), st.ID, st.Title, FormatDelay(st.PublishAfter),
		strings.Repeat("-", len(banner)), st.Content, banner,
	)
	return err
}
