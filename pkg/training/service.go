package training

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maternal-risk/platform/pkg/common/logger"
	"github.com/maternal-risk/platform/pkg/common/models"
	"github.com/maternal-risk/platform/pkg/observability/metrics"
	"github.com/maternal-risk/platform/pkg/serving/predictor"
	"github.com/maternal-risk/platform/pkg/tabular"
	"gorm.io/datatypes"
)

var ErrInvalidJob = errors.New("invalid training job")

type Service struct {
	repo        JobStore
	defaults    Options
	artifactDir string
	datasetDir  string
	workerSem   chan struct{}
	wg          sync.WaitGroup
}

// NewService trains from datasets under datasetDir and writes artifacts to
// artifactDir.
func NewService(repo JobStore, defaults Options, artifactDir, datasetDir string, maxWorkers int) (*Service, error) {
	root, err := filepath.Abs(datasetDir)
	if err != nil {
		return nil, fmt.Errorf("dataset dir: %w", err)
	}
	s := &Service{
		repo:        repo,
		defaults:    defaults.withDefaults(),
		artifactDir: artifactDir,
		datasetDir:  root,
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	s.workerSem = make(chan struct{}, maxWorkers)
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, err
	}
	return s, nil
}

// Create records a queued job and starts it once a worker slot is free.
func (s *Service) Create(ctx context.Context, input CreateJobInput) (models.TrainingJob, error) {
	input.DatasetPath = strings.TrimSpace(input.DatasetPath)
	if input.DatasetPath == "" {
		return models.TrainingJob{}, fmt.Errorf("%w: dataset_path is required", ErrInvalidJob)
	}
	if input.ModelName == "" {
		input.ModelName = s.defaults.ModelName
	}
	if !predictor.ValidModelName(input.ModelName) {
		return models.TrainingJob{}, fmt.Errorf("%w: model_name may only contain letters, digits, '-' and '_'", ErrInvalidJob)
	}
	dataset, err := s.resolveDataset(input.DatasetPath)
	if err != nil {
		return models.TrainingJob{}, err
	}
	input.DatasetPath = dataset
	opts, err := s.options(input)
	if err != nil {
		return models.TrainingJob{}, err
	}

	now := time.Now().UTC()
	job := &JobModel{
		ID:          uuid.New(),
		ModelName:   input.ModelName,
		DatasetPath: input.DatasetPath,
		Config:      datatypes.JSONMap(input.Config),
		Status:      StatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return models.TrainingJob{}, err
	}

	s.wg.Add(1)
	go s.run(job.ID, input.DatasetPath, opts)
	return toDomain(job), nil
}

// resolveDataset places path under the dataset root. Relative paths are taken
// from the root; anything that ends up outside it is rejected.
func (s *Service) resolveDataset(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.datasetDir, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(s.datasetDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: dataset_path must be inside the dataset directory", ErrInvalidJob)
	}
	return path, nil
}

// Wait blocks until every started job has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.TrainingJob, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.TrainingJob{}, err
	}
	return toDomain(job), nil
}

func (s *Service) List(ctx context.Context, modelName string, limit int) ([]models.TrainingJob, error) {
	jobs, err := s.repo.List(ctx, modelName, limit)
	if err != nil {
		return nil, err
	}
	results := make([]models.TrainingJob, 0, len(jobs))
	for _, job := range jobs {
		copy := job
		results = append(results, toDomain(&copy))
	}
	return results, nil
}

func (s *Service) GetArtifact(ctx context.Context, id uuid.UUID) (Artifact, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return Artifact{}, err
	}
	values := map[string]interface{}{}
	if job.Metrics != nil {
		values = map[string]interface{}(job.Metrics)
	}
	return Artifact{JobID: job.ID, Path: job.ArtifactPath, Metrics: values}, nil
}

// Latest returns the most recent completed job of a model.
func (s *Service) Latest(ctx context.Context, modelName string) (models.TrainingJob, error) {
	if modelName == "" {
		modelName = s.defaults.ModelName
	}
	job, err := s.repo.LatestCompleted(ctx, modelName)
	if err != nil {
		return models.TrainingJob{}, err
	}
	return toDomain(job), nil
}

func (s *Service) run(jobID uuid.UUID, datasetPath string, opts Options) {
	defer s.wg.Done()
	s.workerSem <- struct{}{}
	defer func() { <-s.workerSem }()

	ctx := context.Background()
	log := logger.Log.WithFields(map[string]interface{}{
		"job_id": jobID,
		"model":  opts.ModelName,
	})
	start := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, jobID, StatusRunning, nil, "", ""); err != nil {
		log.WithError(err).Error("failed to mark job running")
	}
	if err := s.repo.SetTimestamps(ctx, jobID, &start, nil); err != nil {
		log.WithError(err).Error("failed to set start timestamp")
	}

	raw, err := loadDataset(datasetPath)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("dataset load failed: %w", err))
		return
	}

	artifact, report, err := Train(raw, opts)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("training failed: %w", err))
		return
	}
	jobMetrics := report.Metrics()
	jobMetrics["duration_seconds"] = time.Since(start).Seconds()

	artifactPath, err := s.writeArtifact(jobID, artifact)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("artifact write failed: %w", err))
		return
	}

	if err := s.repo.UpdateStatus(ctx, jobID, StatusCompleted, jobMetrics, artifactPath, ""); err != nil {
		log.WithError(err).Error("failed to mark job complete")
	}
	completed := time.Now().UTC()
	if err := s.repo.SetTimestamps(ctx, jobID, nil, &completed); err != nil {
		log.WithError(err).Error("failed to set completion timestamp")
	}
	metrics.ObserveTrainingJob(true)
	log.WithFields(map[string]interface{}{
		"train_samples": report.TrainSamples,
		"accuracy":      report.Accuracy,
		"macro_f1":      report.MacroF1,
	}).Info("training job completed")
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, err error) {
	logger.Log.WithError(err).WithField("job_id", jobID).Error("training job failed")
	metrics.ObserveTrainingJob(false)
	_ = s.repo.UpdateStatus(ctx, jobID, StatusFailed, nil, "", err.Error())
	completed := time.Now().UTC()
	_ = s.repo.SetTimestamps(ctx, jobID, nil, &completed)
}

// writeArtifact stores the artifact under the job id and promotes it to the
// model's latest artifact.
func (s *Service) writeArtifact(jobID uuid.UUID, artifact predictor.Artifact) (string, error) {
	path := filepath.Join(s.artifactDir, fmt.Sprintf("%s.json", jobID.String()))
	if err := artifact.Save(path); err != nil {
		return "", err
	}
	latest := predictor.LatestPath(s.artifactDir, artifact.ModelName)
	tmp := latest + ".tmp"
	if err := artifact.Save(tmp); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, latest); err != nil {
		return "", err
	}
	return path, nil
}

// options overlays job config on the service defaults.
func (s *Service) options(input CreateJobInput) (Options, error) {
	opts := s.defaults
	opts.ModelName = input.ModelName
	for key, value := range input.Config {
		f, ok := value.(float64)
		if !ok {
			if i, isInt := value.(int); isInt {
				f, ok = float64(i), true
			}
		}
		if !ok {
			return Options{}, fmt.Errorf("%w: config %s must be numeric", ErrInvalidJob, key)
		}
		switch key {
		case "seed":
			opts.Seed = int64(f)
		case "epochs":
			opts.Epochs = int(f)
		case "learning_rate":
			opts.LearningRate = f
		case "l2":
			opts.L2 = f
		case "test_ratio":
			if f <= 0 || f >= 1 {
				return Options{}, fmt.Errorf("%w: test_ratio must be between 0 and 1", ErrInvalidJob)
			}
			opts.TestRatio = f
		default:
			return Options{}, fmt.Errorf("%w: unknown config key %s", ErrInvalidJob, key)
		}
	}
	return opts, nil
}

func loadDataset(path string) (models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Table{}, err
	}
	defer f.Close()
	return tabular.Read(path, f)
}

func toDomain(job *JobModel) models.TrainingJob {
	result := models.TrainingJob{
		ID:           job.ID,
		ModelName:    job.ModelName,
		DatasetPath:  job.DatasetPath,
		Status:       job.Status,
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ArtifactPath: job.ArtifactPath,
		ErrorMessage: job.ErrorMessage,
	}
	if job.Config != nil {
		result.Config = map[string]interface{}(job.Config)
	}
	if job.Metrics != nil {
		result.Metrics = map[string]interface{}(job.Metrics)
	}
	return result
}
