package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/extract"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
	"github.com/sakif/videohub/internal/scheduler"
	"github.com/sakif/videohub/internal/validation"
)

const extractErrorPrefix = "Error extracting text: "

// DocumentConfig holds the upload limits.
type DocumentConfig struct {
	UploadDir      string
	MaxUploadBytes int64
}

// UploadInput is one multipart upload. File is read once.
type UploadInput struct {
	Title        string    `form:"title"         validate:"notblank,max=255"`
	ProcessAfter int       `form:"process_after" validate:"gte=0,lte=2592000"`
	File         io.Reader `form:"-"`
	Filename     string    `form:"-"`
	Size         int64     `form:"-"`
}

// StatusView is the polling response for a document.
type StatusView struct {
	Status    model.WorkStatus `json:"status"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// DocumentService stores uploaded PDFs and extracts their text in the
// background.
type DocumentService struct {
	docs      repository.DocumentRepository
	sched     Scheduler
	extractor extract.Extractor
	webhook   *Webhook
	cfg       DocumentConfig
	out       io.Writer
	logger    *slog.Logger
	now       func() time.Time
}

// NewDocumentService wires the service. webhook may be nil.
func NewDocumentService(
	docs repository.DocumentRepository,
	sched Scheduler,
	extractor extract.Extractor,
	webhook *Webhook,
	cfg DocumentConfig,
	out io.Writer,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		docs:      docs,
		sched:     sched,
		extractor: extractor,
		webhook:   webhook,
		cfg:       cfg,
		out:       out,
		logger:    logger,
		now:       time.Now,
	}
}

// Upload writes the file under the upload dir, saves the document and
// schedules extraction.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*model.PDFDocument, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validateUpload(&in); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	path, err := s.store(id, in.File)
	if err != nil {
		return nil, err
	}

	doc := &model.PDFDocument{
		ID:           id,
		Title:        in.Title,
		FilePath:     path,
		OriginalName: filepath.Base(in.Filename),
		ProcessAfter: in.ProcessAfter,
		Status:       model.StatusPending,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("saving document: %w", err)
	}

	taskID, err := s.sched.Schedule(ctx, TaskExtractDocument, workPayload{ID: doc.ID}, delayOf(doc.ProcessAfter))
	if err != nil {
		s.fail(ctx, doc.ID, err)
		return nil, fmt.Errorf("scheduling extraction of %s: %w", doc.ID, err)
	}

	s.logger.Info("document extraction scheduled",
		slog.String("documentID", doc.ID),
		slog.String("taskID", taskID),
		slog.Int("delaySeconds", doc.ProcessAfter),
	)
	return doc, nil
}

func (s *DocumentService) validateUpload(in *UploadInput) error {
	errs := apperror.NewValidationErrors()
	if err := validation.Struct(in); err != nil {
		if fields := apperror.FieldErrors(err); fields != nil {
			for field, msgs := range fields {
				for _, m := range msgs {
					errs.Add(field, m)
				}
			}
		} else {
			return err
		}
	}

	switch {
	case in.File == nil || in.Filename == "":
		errs.Add("file", "This field is required.")
	case !strings.EqualFold(filepath.Ext(in.Filename), ".pdf"):
		errs.Add("file", "Only PDF files are allowed.")
	case in.Size > s.cfg.MaxUploadBytes:
		errs.Add("file", s.sizeMessage())
	}
	return errs.OrNil()
}

func (s *DocumentService) sizeMessage() string {
	return fmt.Sprintf("File size must be under %dMB.", s.cfg.MaxUploadBytes/(1024*1024))
}

// store copies r to <UploadDir>/<id>.pdf. The declared size is not trusted;
// the copy stops one byte past the limit.
func (s *DocumentService) store(id string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o750); err != nil {
		return "", fmt.Errorf("creating upload dir: %w", err)
	}
	path := filepath.Join(s.cfg.UploadDir, id+".pdf")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("creating upload file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, s.cfg.MaxUploadBytes+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(path)
		return "", fmt.Errorf("writing upload: %w", err)
	case closeErr != nil:
		os.Remove(path)
		return "", fmt.Errorf("writing upload: %w", closeErr)
	case n > s.cfg.MaxUploadBytes:
		os.Remove(path)
		return "", apperror.ValidationFailed("file", s.sizeMessage())
	}
	return path, nil
}

func (s *DocumentService) Status(ctx context.Context, id string) (StatusView, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return StatusView{}, fmt.Errorf("document status: %w", err)
	}
	return StatusView{Status: doc.Status, UpdatedAt: doc.UpdatedAt}, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*model.PDFDocument, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, page int) ([]model.PDFDocument, error) {
	docs, err := s.docs.List(ctx, repository.Page(page, 50))
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return docs, nil
}

// ExtractTask is the TaskExtractDocument handler. Extraction failures are
// recorded on the document; the returned error only marks the task row.
func (s *DocumentService) ExtractTask(ctx context.Context, payload []byte) error {
	p, err := scheduler.Decode[workPayload](payload)
	if err != nil {
		return err
	}

	doc, err := s.docs.GetByID(ctx, p.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("document gone before extraction", slog.String("documentID", p.ID))
		}
		return fmt.Errorf("loading document: %w", err)
	}
	if doc.Status == model.StatusCompleted {
		return nil
	}

	if err := s.docs.UpdateStatus(ctx, doc.ID, model.StatusProcessing); err != nil {
		err = fmt.Errorf("starting extraction: %w", err)
		s.fail(ctx, doc.ID, err)
		return err
	}

	text, err := extract.Text(ctx, s.extractor, doc.FilePath)
	if err != nil {
		s.fail(ctx, doc.ID, err)
		s.logger.Warn("document extraction failed",
			slog.String("documentID", doc.ID),
			slog.Any("error", err),
		)
		return fmt.Errorf("extracting document: %w", err)
	}

	if err := s.docs.SaveResult(ctx, doc.ID, model.StatusCompleted, text); err != nil {
		err = fmt.Errorf("saving extracted text: %w", err)
		s.fail(ctx, doc.ID, err)
		return err
	}

	now := s.now().UTC()
	fmt.Fprintf(s.out, "\n%s\nPDF TEXT EXTRACTION - %s\nDocument ID: %s\nFile: %s\nText Length: %d characters\n%s\n\n",
		banner, now.Format(time.RFC3339), doc.ID, doc.OriginalName, len([]rune(text)), banner)
	s.logger.Info("document extracted",
		slog.String("documentID", doc.ID),
		slog.Int("characters", len([]rune(text))),
	)

	if err := s.webhook.Notify(ctx, doc, text, now); err != nil {
		s.logger.Warn("document webhook failed",
			slog.String("documentID", doc.ID),
			slog.Any("error", err),
		)
	}
	return nil
}

// fail stores cause as the document's text with the failed status, which
// is how the status page reports an extraction error.
func (s *DocumentService) fail(ctx context.Context, id string, cause error) {
	if err := s.docs.SaveResult(context.WithoutCancel(ctx), id, model.StatusFailed, extractErrorPrefix+cause.Error()); err != nil {
		s.logger.Error("recording extraction failure",
			slog.String("documentID", id),
			slog.String("cause", cause.Error()),
			slog.Any("error", err),
		)
	}
}
