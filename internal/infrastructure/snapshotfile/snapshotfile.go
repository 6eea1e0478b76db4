// Package snapshotfile reads a trainee's records from a YAML or JSON file so
// the engine can run without a database. The file shape is validated before
// any record reaches the engine; consistency between records (unknown EPAs,
// duplicate activities, out-of-scale scores) is left to the engine.
package snapshotfile

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/catalog"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/epa"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/portfolio"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/shared"
	"github.com/eyd-portfolio/portfolio-analytics/internal/domain/survey"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ══════════════════════════════════════════════════════════════════════════════
// FILE SHAPE
// ══════════════════════════════════════════════════════════════════════════════

// File is the document layout.
type File struct {
	TraineeID string          `yaml:"trainee_id" validate:"required,max=64"`
	EPAs      []EPAEntry      `yaml:"epas" validate:"dive"`
	Links     []LinkEntry     `yaml:"links" validate:"dive"`
	Portfolio *PortfolioEntry `yaml:"portfolio"`

	// Surveys is keyed by questionnaire code.
	Surveys map[string]SurveyEntry `yaml:"surveys" validate:"dive,keys,required,lowercase,endkeys"`
}

// EPAEntry is one EPA of the framework.
type EPAEntry struct {
	ID          int64  `yaml:"id" validate:"required,gt=0"`
	Code        string `yaml:"code" validate:"required"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// LinkEntry is one activity with the EPAs it maps to.
type LinkEntry struct {
	Type            string    `yaml:"type" validate:"required"`
	ID              int64     `yaml:"id" validate:"required"`
	Title           string    `yaml:"title"`
	CreatedAt       time.Time `yaml:"created_at" validate:"required"`
	ActionReference string    `yaml:"action_reference"`
	EPAIDs          []int64   `yaml:"epa_ids" validate:"required,min=1"`
}

// PortfolioEntry carries category counts and review sign-offs.
type PortfolioEntry struct {
	Counts     portfolio.Counts     `yaml:"counts"`
	Milestones portfolio.Milestones `yaml:"milestones"`
}

// SurveyEntry carries the responses of one instrument.
type SurveyEntry struct {
	TotalSubmitted int             `yaml:"total_submitted" validate:"min=0"`
	Responses      []ResponseEntry `yaml:"responses" validate:"dive"`
}

// ResponseEntry is one submitted response.
type ResponseEntry struct {
	ID          string            `yaml:"id"`
	SubmittedAt time.Time         `yaml:"submitted_at" validate:"required"`
	Scores      map[string]int    `yaml:"scores"`
	Comments    map[string]string `yaml:"comments"`
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADING
// ══════════════════════════════════════════════════════════════════════════════

// Decode parses and validates a document. JSON is accepted as YAML.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, shared.NewDomainError("snapshotfile", "Decode", shared.ErrInvalidInput, "empty document")
		}
		return nil, shared.WrapError("snapshotfile", "Decode", shared.ErrInvalidInput, "malformed document", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, shared.WrapError("snapshotfile", "Decode", shared.ErrInvalidInput, describe(err), err)
	}
	return &f, nil
}

// Load reads and validates the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.WrapError("snapshotfile", "Load", shared.ErrInputUnavailable, "cannot read "+path, err)
	}
	return Decode(bytes.NewReader(data))
}

func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// ══════════════════════════════════════════════════════════════════════════════
// CONVERSION
// ══════════════════════════════════════════════════════════════════════════════

// CoverageSnapshot converts the EPA and link sections.
func (f *File) CoverageSnapshot() *epa.CoverageSnapshot {
	snap := &epa.CoverageSnapshot{
		TraineeID: f.TraineeID,
		EPAs:      make([]epa.EPA, 0, len(f.EPAs)),
		Links:     make([]epa.ActivityLink, 0, len(f.Links)),
	}
	for _, e := range f.EPAs {
		snap.EPAs = append(snap.EPAs, epa.EPA{ID: e.ID, Code: e.Code, Title: e.Title, Description: e.Description})
	}
	for _, l := range f.Links {
		snap.Links = append(snap.Links, epa.ActivityLink{
			Activity: epa.Activity{
				ID:              l.ID,
				Type:            catalog.ActivityType(l.Type),
				Title:           l.Title,
				CreatedAt:       l.CreatedAt.UTC(),
				ActionReference: l.ActionReference,
			},
			EPAIDs: append([]int64(nil), l.EPAIDs...),
		})
	}
	return snap
}

// PortfolioSnapshot converts the portfolio section. A missing section is an
// empty portfolio.
func (f *File) PortfolioSnapshot() *portfolio.Snapshot {
	snap := &portfolio.Snapshot{TraineeID: f.TraineeID}
	if f.Portfolio != nil {
		snap.Counts = f.Portfolio.Counts
		snap.Milestones = f.Portfolio.Milestones
	}
	return snap
}

// ResponseSet converts the responses of one instrument. Responses without a
// code belong to the instrument they are filed under.
func (f *File) ResponseSet(code string) survey.ResponseSet {
	entry, ok := f.Surveys[strings.ToLower(code)]
	if !ok {
		return survey.ResponseSet{}
	}
	set := survey.ResponseSet{
		TotalSubmitted: entry.TotalSubmitted,
		Responses:      make([]survey.Response, 0, len(entry.Responses)),
	}
	for _, r := range entry.Responses {
		set.Responses = append(set.Responses, survey.Response{
			ID:                r.ID,
			QuestionnaireCode: strings.ToLower(code),
			SubmittedAt:       r.SubmittedAt.UTC(),
			Scores:            r.Scores,
			Comments:          r.Comments,
		})
	}
	return set
}

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT SOURCES
// ══════════════════════════════════════════════════════════════════════════════

// Source serves one file through the engine's snapshot source interfaces, so
// the application handlers run unchanged against it.
type Source struct {
	file *File
}

// NewSource wraps a decoded file.
func NewSource(f *File) *Source {
	return &Source{file: f}
}

var (
	_ epa.SnapshotSource       = (*Source)(nil)
	_ portfolio.SnapshotSource = (*Source)(nil)
	_ survey.SnapshotSource    = (*Source)(nil)
)

func (s *Source) check(traineeID string) error {
	if traineeID != s.file.TraineeID {
		return shared.ErrTraineeNotFound
	}
	return nil
}

// LoadCoverageSnapshot implements epa.SnapshotSource.
func (s *Source) LoadCoverageSnapshot(_ context.Context, traineeID string) (*epa.CoverageSnapshot, error) {
	if err := s.check(traineeID); err != nil {
		return nil, err
	}
	return s.file.CoverageSnapshot(), nil
}

// LoadPortfolioSnapshot implements portfolio.SnapshotSource.
func (s *Source) LoadPortfolioSnapshot(_ context.Context, traineeID string) (*portfolio.Snapshot, error) {
	if err := s.check(traineeID); err != nil {
		return nil, err
	}
	return s.file.PortfolioSnapshot(), nil
}

// LoadResponses implements survey.SnapshotSource.
func (s *Source) LoadResponses(_ context.Context, traineeID, code string) (survey.ResponseSet, error) {
	if err := s.check(traineeID); err != nil {
		return survey.ResponseSet{}, err
	}
	return s.file.ResponseSet(code), nil
}

// ListActiveTrainees returns the file's single trainee.
func (s *Source) ListActiveTrainees(context.Context) ([]string, error) {
	return []string{s.file.TraineeID}, nil
}
