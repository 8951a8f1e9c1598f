// Package pipeline runs the asynchronous story-generation state
// machine: claim, generate, render media, complete or fail.
package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"ananse-ntentan/backend/internal/ai"
	"ananse-ntentan/backend/internal/imagegen"
	"ananse-ntentan/backend/internal/media"
	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/pkg/logger"
	"ananse-ntentan/backend/pkg/metrics"
)

// StoryStore is the persistence surface the pipeline needs.
type StoryStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Story, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	SetTranscription(ctx context.Context, id uuid.UUID, text string) error
	Complete(ctx context.Context, id uuid.UUID, visual models.VisualNarrative, audio models.AudioNarrative, templateID *uuid.UUID, elapsed time.Duration) error
	Fail(ctx context.Context, id uuid.UUID, message string, elapsed time.Duration) error
}

// StyleResolver resolves templates and styles for a run.
type StyleResolver interface {
	ActiveTemplate(ctx context.Context, storyType string) (*models.PromptTemplate, error)
	ArtisticStyle(ctx context.Context, id uuid.UUID) (*models.ArtisticStyle, error)
	AudioStyle(ctx context.Context, id uuid.UUID) (*models.AudioStyle, error)
}

// Generator is the text/vision provider surface.
type Generator interface {
	GenerateStory(ctx context.Context, userContent, templateText string, modifiers []string, sensory *ai.SensoryInput) (*ai.StoryData, string, error)
	TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error)
	AnalyzeImage(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ImageRenderer renders panel images.
type ImageRenderer interface {
	GenerateAllPanelImages(ctx context.Context, panels []models.Panel, modifiers []string) []*imagegen.Image
}

// VideoAssembler renders a story video from panel images.
type VideoAssembler interface {
	GenerateStoryVideo(ctx context.Context, panelImages [][]byte, audio []byte, styleName string) ([]byte, float64, error)
}

// Options tune a pipeline instance.
type Options struct {
	EnableImages     bool
	EnableVideo      bool
	VideoProbability float64 // already clamped to [0,1] by config
	TextTimeout      time.Duration
	ImageTimeout     time.Duration
	VideoTimeout     time.Duration
}

// Service orchestrates story processing runs.
type Service struct {
	stories StoryStore
	styles  StyleResolver
	gen     Generator
	images  ImageRenderer
	video   VideoAssembler
	files   media.Store
	opts    Options
	draw    func() float64 // video probability draw, injectable
	log     *logger.Logger
}

// New creates a pipeline Service.
func New(stories StoryStore, styles StyleResolver, gen Generator, images ImageRenderer, video VideoAssembler, files media.Store, opts Options, log *logger.Logger) *Service {
	if opts.TextTimeout == 0 {
		opts.TextTimeout = 60 * time.Second
	}
	if opts.ImageTimeout == 0 {
		opts.ImageTimeout = 120 * time.Second
	}
	if opts.VideoTimeout == 0 {
		opts.VideoTimeout = 300 * time.Second
	}
	return &Service{
		stories: stories,
		styles:  styles,
		gen:     gen,
		images:  images,
		video:   video,
		files:   files,
		opts:    opts,
		draw:    rand.Float64,
		log:     log,
	}
}

// Process runs the full pipeline for one story. It is the goroutine
// entry point: all failures are absorbed into the story record and
// never propagate.
func (s *Service) Process(storyID uuid.UUID) {
	ctx := context.Background()
	start := time.Now()
	log := s.log.WithStoryID(storyID.String())

	claimed, err := s.stories.Claim(ctx, storyID)
	if err != nil {
		log.LogError(err, "Failed to claim story for processing")
		return
	}
	if !claimed {
		log.Warn("Story already claimed, skipping duplicate run")
		return
	}

	story, err := s.stories.Get(ctx, storyID)
	if err != nil {
		log.LogError(err, "Failed to load claimed story")
		return
	}

	err = s.run(ctx, story, start, log)
	elapsed := time.Since(start)

	if err != nil {
		log.LogError(err, "Story processing failed", "elapsed_ms", elapsed.Milliseconds())
		if failErr := s.stories.Fail(ctx, storyID, err.Error(), elapsed); failErr != nil {
			log.LogError(failErr, "Failed to record story failure")
		}
		metrics.StoriesProcessed.WithLabelValues(models.StatusFailed).Inc()
		return
	}

	log.Info("Story processed", "elapsed_ms", elapsed.Milliseconds())
	metrics.StoriesProcessed.WithLabelValues(models.StatusComplete).Inc()
	metrics.StoryProcessingSeconds.Observe(elapsed.Seconds())
}

// run executes the precursor stage for the submission type, then the
// shared generation stage. Returned errors become the story's failure
// message, so precursors wrap theirs with a stage prefix.
func (s *Service) run(ctx context.Context, story *models.Story, start time.Time, log *logger.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during story processing: %v", r)
		}
	}()

	var text string
	var sensory *ai.SensoryInput

	switch story.Type {
	case models.StoryTypeWrite:
		text = story.OriginalContent.Text

	case models.StoryTypeSpeak:
		text, sensory, err = s.transcribeStage(ctx, story, log)
		if err != nil {
			return fmt.Errorf("Transcription failed: %v", err)
		}

	case models.StoryTypeSketch:
		text, sensory, err = s.analyzeStage(ctx, story, log)
		if err != nil {
			return fmt.Errorf("Image analysis failed: %v", err)
		}

	default:
		return fmt.Errorf("unknown story type: %s", story.Type)
	}

	return s.generate(ctx, story, text, sensory, start, log)
}

// transcribeStage turns the uploaded audio into text and keeps the
// raw audio as sensory input for the generation call.
func (s *Service) transcribeStage(ctx context.Context, story *models.Story, log *logger.Logger) (string, *ai.SensoryInput, error) {
	if story.OriginalContent.AudioFileID == nil {
		return "", nil, fmt.Errorf("no audio file on speak story")
	}

	file, err := s.files.Get(ctx, *story.OriginalContent.AudioFileID)
	if err != nil {
		return "", nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.TextTimeout)
	defer cancel()

	transcript, err := s.gen.TranscribeAudio(callCtx, file.Data, file.ContentType)
	if err != nil {
		return "", nil, err
	}
	log.Info("Audio transcribed", "chars", len(transcript))

	if err := s.stories.SetTranscription(ctx, story.ID, transcript); err != nil {
		return "", nil, err
	}

	return transcript, &ai.SensoryInput{Data: file.Data, MIMEType: file.ContentType}, nil
}

// analyzeStage describes the uploaded sketch and keeps the raw image
// as sensory input for the generation call.
func (s *Service) analyzeStage(ctx context.Context, story *models.Story, log *logger.Logger) (string, *ai.SensoryInput, error) {
	if story.OriginalContent.ImageFileID == nil {
		return "", nil, fmt.Errorf("no image file on sketch story")
	}

	file, err := s.files.Get(ctx, *story.OriginalContent.ImageFileID)
	if err != nil {
		return "", nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.TextTimeout)
	defer cancel()

	description, err := s.gen.AnalyzeImage(callCtx, file.Data, file.ContentType)
	if err != nil {
		return "", nil, err
	}
	log.Info("Sketch analyzed", "chars", len(description))

	if err := s.stories.SetTranscription(ctx, story.ID, description); err != nil {
		return "", nil, err
	}

	return description, &ai.SensoryInput{Data: file.Data, MIMEType: file.ContentType}, nil
}

// generate is the shared main stage: template, story generation,
// narration, optional panel images and optional video, then the
// completion write. start is when this run began processing, so the
// recorded time covers the run itself and not however long the story
// sat pending.
func (s *Service) generate(ctx context.Context, story *models.Story, text string, sensory *ai.SensoryInput, start time.Time, log *logger.Logger) error {
	// A missing template is fatal; a missing style degrades to default.
	template, err := s.styles.ActiveTemplate(ctx, story.Type)
	if err != nil {
		return err
	}

	visualStyleName := "default"
	var modifiers []string
	if story.VisualStyleID != nil {
		if style, err := s.styles.ArtisticStyle(ctx, *story.VisualStyleID); err != nil {
			log.Warn("Visual style lookup failed, using default", "error", err.Error())
		} else {
			visualStyleName = style.Name
			modifiers = style.PromptModifiers
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.TextTimeout)
	storyData, thoughtSignature, err := s.gen.GenerateStory(callCtx, text, template.PromptText, modifiers, sensory)
	cancel()
	if err != nil {
		return err
	}
	if thoughtSignature != "" {
		log.Debug("Captured thought signature")
	}

	panels := make([]models.Panel, len(storyData.Panels))
	for i, p := range storyData.Panels {
		panels[i] = models.Panel{
			Number:      p.Number,
			Scene:       p.Scene,
			Description: p.Description,
			Dialogue:    p.Dialogue,
		}
	}

	narration := storyData.Narration
	if narration == "" {
		narration = storyData.Script
	}
	if narration == "" {
		narration = NarrationFromPanels(panels)
	}

	audioStyleName := "default"
	if story.AudioStyleID != nil {
		if style, err := s.styles.AudioStyle(ctx, *story.AudioStyleID); err != nil {
			log.Warn("Audio style lookup failed, using default", "error", err.Error())
		} else {
			audioStyleName = style.Name
		}
	}

	// Narration audio synthesis is currently disabled: the script is
	// kept but no audio file is produced.
	audioNarrative := models.AudioNarrative{
		Script:   narration,
		Duration: 0,
		Style:    audioStyleName,
	}

	var panelImages [][]byte
	if s.opts.EnableImages && len(panels) > 0 {
		panelImages = s.renderPanels(ctx, story.ID, panels, modifiers, log)
	}

	visual := models.VisualNarrative{
		Panels: panels,
		Style:  visualStyleName,
	}

	if fileID, duration, ok := s.maybeRenderVideo(ctx, story.ID, panelImages, log); ok {
		visual.VideoFileID = &fileID
		visual.VideoDuration = duration
	}

	templateID := template.ID
	return s.stories.Complete(ctx, story.ID, visual, audioNarrative, &templateID, time.Since(start))
}

// renderPanels generates and persists panel images, updating each
// panel's file reference in place. A single failed panel leaves a nil
// slot and the run continues.
func (s *Service) renderPanels(ctx context.Context, storyID uuid.UUID, panels []models.Panel, modifiers []string, log *logger.Logger) [][]byte {
	images := s.images.GenerateAllPanelImages(ctx, panels, modifiers)

	raw := make([][]byte, len(panels))
	stored := 0
	for i, img := range images {
		if i >= len(panels) || img == nil {
			continue
		}
		fileID, err := s.files.Put(ctx, img.Data,
			fmt.Sprintf("story-%s-panel-%d.png", storyID, panels[i].Number),
			media.Meta{
				ContentType: img.ContentType,
				Kind:        models.MediaKindPanelImage,
				StoryID:     &storyID,
				PanelNumber: panels[i].Number,
			})
		if err != nil {
			log.LogError(err, "Failed to store panel image", "panel", panels[i].Number)
			continue
		}
		panels[i].ImageFileID = &fileID
		raw[i] = img.Data
		stored++
	}

	log.Info("Panel images rendered", "stored", stored, "panels", len(panels))
	return raw
}

// maybeRenderVideo runs the optional video stage: feature flag, at
// least one panel image, and a probability draw must all pass. Any
// failure is logged and the story still completes.
func (s *Service) maybeRenderVideo(ctx context.Context, storyID uuid.UUID, panelImages [][]byte, log *logger.Logger) (uuid.UUID, float64, bool) {
	if !s.opts.EnableVideo {
		return uuid.Nil, 0, false
	}

	hasImages := false
	for _, img := range panelImages {
		if len(img) > 0 {
			hasImages = true
			break
		}
	}
	if !hasImages {
		return uuid.Nil, 0, false
	}

	if s.draw() >= s.opts.VideoProbability {
		log.Debug("Video draw skipped")
		return uuid.Nil, 0, false
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.VideoTimeout)
	defer cancel()

	video, duration, err := s.video.GenerateStoryVideo(callCtx, panelImages, nil, "")
	if err != nil {
		log.LogError(err, "Video generation failed, continuing without video")
		return uuid.Nil, 0, false
	}

	fileID, err := s.files.Put(ctx, video,
		fmt.Sprintf("story-%s-video.mp4", storyID),
		media.Meta{
			ContentType: "video/mp4",
			Kind:        models.MediaKindStoryVideo,
			StoryID:     &storyID,
		})
	if err != nil {
		log.LogError(err, "Failed to store story video")
		return uuid.Nil, 0, false
	}

	log.Info("Story video rendered", "duration_s", duration)
	return fileID, duration, true
}
