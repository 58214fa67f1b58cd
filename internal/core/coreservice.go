package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jo-hoe/reviewdesk/internal/backend/commandstructure"
	"github.com/jo-hoe/reviewdesk/internal/backend/database"
	"github.com/jo-hoe/reviewdesk/internal/imagesource"
	"github.com/jo-hoe/reviewdesk/internal/review"

	// registers the preview commands in commandstructure.DefaultRegistry
	_ "github.com/jo-hoe/reviewdesk/internal/backend/commands"
)

var (
	ErrAlreadyReviewed = review.ErrAlreadyReviewed
	ErrNoReviews       = errors.New("no reviews available yet")
)

// ReviewInput is what the review and edit forms submit.
type ReviewInput struct {
	ImageName      string
	Condition      string
	DiagnosticNote string
	Feedback       string
}

type CoreService struct {
	config          *ServiceConfig
	images          imagesource.Source
	store           *review.Store
	databaseService database.DatabaseService
	pipeline        *commandstructure.CommandInvoker
	signature       string

	watcher *imagesource.WatchedFolder
	cancel  context.CancelFunc
}

func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	store, err := review.NewStore(config.DataFolder, config.MasterFileName)
	if err != nil {
		return nil, err
	}

	pipeline, err := commandstructure.NewCommandInvokerFromConfigs(config.commandConfigs())
	if err != nil {
		return nil, fmt.Errorf("failed to build preview pipeline: %w", err)
	}

	service := &CoreService{
		config:    config,
		images:    imagesource.NewFolder(config.ImageFolder),
		store:     store,
		pipeline:  pipeline,
		signature: config.pipelineSignature(),
	}

	if config.Database.Type != "" {
		service.databaseService, err = getDatabaseService(config)
		if err != nil {
			return nil, err
		}
	}

	if config.WatchImages {
		watcher, err := imagesource.NewWatchedFolder(config.ImageFolder)
		if err != nil {
			// The plain folder still works; it just rescans on every request.
			slog.Warn("image folder watcher disabled", "path", config.ImageFolder, "error", err)
		} else {
			ctx, cancel := context.WithCancel(context.Background())
			watcher.Start(ctx)
			service.watcher = watcher
			service.cancel = cancel
			service.images = watcher
		}
	}

	return service, nil
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize preview cache: %w", err)
	}
	slog.Info("preview cache initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

// Close releases the watcher and the preview cache.
func (service *CoreService) Close() error {
	var errs []error
	if service.cancel != nil {
		service.cancel()
	}
	if service.watcher != nil {
		errs = append(errs, service.watcher.Close())
	}
	if service.databaseService != nil {
		errs = append(errs, service.databaseService.Close())
	}
	return errors.Join(errs...)
}

// NormalizeReviewerID validates a reviewer name or ID against the data folder
// layout, including the configured master file name.
func (service *CoreService) NormalizeReviewerID(raw string) (string, error) {
	return service.store.NormalizeReviewerID(raw)
}

func (service *CoreService) Store() *review.Store {
	return service.store
}

// Session loads the reviewer's state for one page view. Rows referencing
// images that left the folder are pruned and the reviewer file is rewritten.
// A reviewer file that cannot be read is reported through Session.LoadError
// and treated as empty.
func (service *CoreService) Session(reviewer string) (*Session, error) {
	return service.loadSession(reviewer, true)
}

func (service *CoreService) loadSession(reviewer string, prune bool) (*Session, error) {
	reviewer, err := service.store.NormalizeReviewerID(reviewer)
	if err != nil {
		return nil, err
	}

	images, err := service.images.List()
	if err != nil {
		return nil, err
	}

	reviewed, loadErr := service.store.LoadReviewer(reviewer)
	if loadErr != nil {
		slog.Warn("could not read reviewer file; starting fresh", "reviewer", reviewer, "error", loadErr)
		reviewed = review.NewTable()
	}

	session := newSession(reviewer, images, reviewed, prune)
	session.LoadError = loadErr

	if len(session.MissingImages) > 0 {
		slog.Warn("dropping reviews of images missing from the image folder",
			"reviewer", reviewer, "images", session.MissingImages)
		if err := service.store.SaveReviewer(reviewer, reviewed); err != nil {
			return nil, fmt.Errorf("rewrite reviewer file after pruning: %w", err)
		}
	}
	return session, nil
}

// Submit records a new review and appends it to the reviewer and master files.
// A second submit for the same image fails with ErrAlreadyReviewed.
func (service *CoreService) Submit(reviewer string, input ReviewInput) (review.Record, error) {
	session, err := service.Session(reviewer)
	if err != nil {
		return review.Record{}, err
	}
	rec, err := session.record(input)
	if err != nil {
		return review.Record{}, err
	}
	if err := service.store.AppendNew(rec); err != nil {
		return review.Record{}, err
	}
	slog.Info("review saved", "reviewer", rec.Reviewer, "image", rec.ImageName, "condition", rec.Condition)
	return rec, nil
}

// Update edits an existing review in place, rewrites the reviewer file and
// rebuilds the master file from all reviewer files.
func (service *CoreService) Update(reviewer string, input ReviewInput) (review.Record, error) {
	session, err := service.Session(reviewer)
	if err != nil {
		return review.Record{}, err
	}
	rec, err := session.record(input)
	if err != nil {
		return review.Record{}, err
	}

	if err := session.Reviewed.Update(rec); err != nil {
		return review.Record{}, err
	}
	if err := service.store.SaveReviewer(session.Reviewer, session.Reviewed); err != nil {
		return review.Record{}, fmt.Errorf("save reviewer file: %w", err)
	}
	if _, err := service.store.RebuildMaster(); err != nil {
		return review.Record{}, err
	}
	slog.Info("review updated", "reviewer", rec.Reviewer, "image", rec.ImageName, "condition", rec.Condition)
	return rec, nil
}

// record validates form input against the session.
func (session *Session) record(input ReviewInput) (review.Record, error) {
	condition, err := review.ParseCondition(input.Condition)
	if err != nil {
		return review.Record{}, err
	}
	if !session.HasImage(input.ImageName) {
		return review.Record{}, fmt.Errorf("%w: %s", imagesource.ErrImageNotFound, input.ImageName)
	}
	return review.Record{
		Reviewer:       session.Reviewer,
		ImageName:      input.ImageName,
		Condition:      condition,
		DiagnosticNote: strings.TrimSpace(input.DiagnosticNote),
		Feedback:       strings.TrimSpace(input.Feedback),
	}, nil
}

// Export writes the reviewer's own CSV to w.
func (service *CoreService) Export(reviewer string, w io.Writer) error {
	reviewer, err := service.store.NormalizeReviewerID(reviewer)
	if err != nil {
		return err
	}
	if !service.store.ReviewerFileExists(reviewer) {
		return fmt.Errorf("%w: %s", ErrNoReviews, reviewer)
	}
	return service.store.ExportReviewer(reviewer, w)
}

// ExportTable returns the reviewer's file as a table for display.
func (service *CoreService) ExportTable(reviewer string) (*review.Table, error) {
	reviewer, err := service.store.NormalizeReviewerID(reviewer)
	if err != nil {
		return nil, err
	}
	if !service.store.ReviewerFileExists(reviewer) {
		return nil, fmt.Errorf("%w: %s", ErrNoReviews, reviewer)
	}
	return service.store.ReadReviewer(reviewer)
}

func (service *CoreService) RebuildMaster() (int, error) {
	return service.store.RebuildMaster()
}
