package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ananse-ntentan/backend/internal/ai"
	"ananse-ntentan/backend/internal/imagegen"
	"ananse-ntentan/backend/internal/media"
	"ananse-ntentan/backend/internal/models"
	"ananse-ntentan/backend/pkg/logger"
)

func TestNarrationFromPanels(t *testing.T) {
	tests := []struct {
		name   string
		panels []models.Panel
		want   string
	}{
		{"empty", nil, "No narration available."},
		{
			"description and dialogue",
			[]models.Panel{
				{Description: "A", Dialogue: "B"},
				{Description: "C"},
			},
			"A. B C",
		},
		{
			"dialogue only",
			[]models.Panel{{Dialogue: "Hello there"}},
			"Hello there",
		},
		{
			"blank panel contributes nothing but the separator",
			[]models.Panel{{Description: "First"}, {}, {Description: "Third"}},
			"First  Third",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NarrationFromPanels(tt.panels))
		})
	}
}

// fakeStore records lifecycle transitions in memory.
type fakeStore struct {
	story        *models.Story
	claimOK      bool
	claimCalls   int
	completed    bool
	completedIn  time.Duration
	visual       models.VisualNarrative
	audio        models.AudioNarrative
	failed       bool
	failMessage  string
	transcribed  string
	templateUsed *uuid.UUID
}

func (f *fakeStore) Get(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	if f.story == nil {
		return nil, errors.New("not found")
	}
	return f.story, nil
}

func (f *fakeStore) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	f.claimCalls++
	return f.claimOK, nil
}

func (f *fakeStore) SetTranscription(ctx context.Context, id uuid.UUID, text string) error {
	f.transcribed = text
	return nil
}

func (f *fakeStore) Complete(ctx context.Context, id uuid.UUID, visual models.VisualNarrative, audio models.AudioNarrative, templateID *uuid.UUID, elapsed time.Duration) error {
	f.completed = true
	f.completedIn = elapsed
	f.visual = visual
	f.audio = audio
	f.templateUsed = templateID
	return nil
}

func (f *fakeStore) Fail(ctx context.Context, id uuid.UUID, message string, elapsed time.Duration) error {
	f.failed = true
	f.failMessage = message
	return nil
}

type fakeStyles struct {
	template    *models.PromptTemplate
	templateErr error
	artistic    *models.ArtisticStyle
	audio       *models.AudioStyle
}

func (f *fakeStyles) ActiveTemplate(ctx context.Context, storyType string) (*models.PromptTemplate, error) {
	if f.templateErr != nil {
		return nil, f.templateErr
	}
	return f.template, nil
}

func (f *fakeStyles) ArtisticStyle(ctx context.Context, id uuid.UUID) (*models.ArtisticStyle, error) {
	if f.artistic == nil {
		return nil, errors.New("not found")
	}
	return f.artistic, nil
}

func (f *fakeStyles) AudioStyle(ctx context.Context, id uuid.UUID) (*models.AudioStyle, error) {
	if f.audio == nil {
		return nil, errors.New("not found")
	}
	return f.audio, nil
}

type fakeGenerator struct {
	storyData      *ai.StoryData
	storyErr       error
	transcript     string
	transcribeErr  error
	description    string
	analyzeErr     error
	lastContent    string
	lastSensory    *ai.SensoryInput
	lastModifiers  []string
	transcribeHits int
}

func (f *fakeGenerator) GenerateStory(ctx context.Context, userContent, templateText string, modifiers []string, sensory *ai.SensoryInput) (*ai.StoryData, string, error) {
	f.lastContent = userContent
	f.lastSensory = sensory
	f.lastModifiers = modifiers
	if f.storyErr != nil {
		return nil, "", f.storyErr
	}
	return f.storyData, "sig-1", nil
}

func (f *fakeGenerator) TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.transcribeHits++
	return f.transcript, f.transcribeErr
}

func (f *fakeGenerator) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	return f.description, f.analyzeErr
}

type fakeRenderer struct {
	images [][]byte
	calls  int
}

func (f *fakeRenderer) GenerateAllPanelImages(ctx context.Context, panels []models.Panel, modifiers []string) []*imagegen.Image {
	f.calls++
	out := make([]*imagegen.Image, len(panels))
	for i := range panels {
		if i < len(f.images) && f.images[i] != nil {
			out[i] = &imagegen.Image{Data: f.images[i], ContentType: "image/png"}
		}
	}
	return out
}

type fakeVideo struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeVideo) GenerateStoryVideo(ctx context.Context, panelImages [][]byte, audio []byte, styleName string) ([]byte, float64, error) {
	f.calls++
	return f.data, 12.5, f.err
}

type fakeFiles struct {
	puts  map[uuid.UUID]media.Meta
	blobs map[uuid.UUID]*models.MediaFile
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		puts:  map[uuid.UUID]media.Meta{},
		blobs: map[uuid.UUID]*models.MediaFile{},
	}
}

func (f *fakeFiles) Put(ctx context.Context, data []byte, filename string, meta media.Meta) (uuid.UUID, error) {
	id := uuid.New()
	f.puts[id] = meta
	f.blobs[id] = &models.MediaFile{ID: id, Data: data, ContentType: meta.ContentType}
	return id, nil
}

func (f *fakeFiles) Get(ctx context.Context, id uuid.UUID) (*models.MediaFile, error) {
	file, ok := f.blobs[id]
	if !ok {
		return nil, media.ErrNotFound
	}
	return file, nil
}

func (f *fakeFiles) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, string, error) {
	return nil, "", media.ErrNotFound
}

func (f *fakeFiles) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func newTestService(store *fakeStore, styles *fakeStyles, gen *fakeGenerator, images *fakeRenderer, video *fakeVideo, files *fakeFiles, opts Options) *Service {
	return New(store, styles, gen, images, video, files, opts, testLogger())
}

func writeStory() *models.Story {
	return &models.Story{
		ID:              uuid.New(),
		Type:            models.StoryTypeWrite,
		OriginalContent: models.OriginalContent{Text: "a fox and a crow"},
		Status:          models.StatusPending,
		CreatedAt:       time.Now(),
	}
}

func defaultStoryData() *ai.StoryData {
	return &ai.StoryData{
		Title: "The Fox and the Crow",
		Panels: []ai.Panel{
			{Number: 1, Scene: "forest", Description: "A fox spots a crow", Dialogue: "What a voice you must have!"},
			{Number: 2, Scene: "tree", Description: "The crow drops the cheese"},
		},
	}
}

func TestProcessWriteStoryCompletes(t *testing.T) {
	store := &fakeStore{story: writeStory(), claimOK: true}
	styles := &fakeStyles{template: &models.PromptTemplate{ID: uuid.New(), Type: models.StoryTypeWrite, PromptText: "Make a story."}}
	gen := &fakeGenerator{storyData: defaultStoryData()}
	svc := newTestService(store, styles, gen, &fakeRenderer{}, &fakeVideo{}, newFakeFiles(), Options{})

	svc.Process(store.story.ID)

	require.True(t, store.completed)
	assert.False(t, store.failed)
	assert.Len(t, store.visual.Panels, 2)
	assert.Equal(t, "default", store.visual.Style)
	require.NotNil(t, store.templateUsed)
	assert.Equal(t, styles.template.ID, *store.templateUsed)
	// No narration or script from the model, so the fallback applies.
	assert.Equal(t, "A fox spots a crow. What a voice you must have! The crow drops the cheese", store.audio.Script)
	assert.Equal(t, int64(0), store.audio.Duration)
	assert.Equal(t, "a fox and a crow", gen.lastContent)
	assert.Nil(t, gen.lastSensory)
}

func TestProcessRecordsRunTimeNotPendingWait(t *testing.T) {
	story := writeStory()
	story.CreatedAt = time.Now().Add(-time.Hour)

	store := &fakeStore{story: story, claimOK: true}
	styles := &fakeStyles{template: &models.PromptTemplate{ID: uuid.New(), PromptText: "Make a story."}}
	gen := &fakeGenerator{storyData: defaultStoryData()}
	svc := newTestService(store, styles, gen, &fakeRenderer{}, &fakeVideo{}, newFakeFiles(), Options{})

	svc.Process(story.ID)

	require.True(t, store.completed)
	assert.GreaterOrEqual(t, store.completedIn, time.Duration(0))
	assert.Less(t, store.completedIn, time.Minute,
		"processing time covers the run, not how long the story sat pending")
}

func TestProcessClaimRejectedDoesNothing(t *testing.T) {
	store := &fakeStore{story: writeStory(), claimOK: false}
	gen := &fakeGenerator{storyData: defaultStoryData()}
	svc := newTestService(store, &fakeStyles{}, gen, &fakeRenderer{}, &fakeVideo{}, newFakeFiles(), Options{})

	svc.Process(store.story.ID)

	assert.Equal(t, 1, store.claimCalls)
	assert.False(t, store.completed)
	assert.False(t, store.failed)
	assert.Empty(t, gen.lastContent)
}

func TestProcessMissingTemplateFails(t *testing.T) {
	store := &fakeStore{story: writeStory(), claimOK: true}
	styles := &fakeStyles{templateErr: errors.New("no active prompt template found for write stories")}
	svc := newTestService(store, styles, &fakeGenerator{}, &fakeRenderer{}, &fakeVideo{}, newFakeFiles(), Options{})

	svc.Process(store.story.ID)

	assert.False(t, store.completed)
	require.True(t, store.failed)
	assert.Contains(t, store.failMessage, "no active prompt template")
}

func TestProcessSpeakStoryTranscribes(t *testing.T) {
	files := newFakeFiles()
	audioID, err := files.Put(context.Background(), []byte("fake-audio"), "story.mp3", media.Meta{ContentType: "audio/mp3"})
	require.NoError(t, err)

	story := writeStory()
	story.Type = models.StoryTypeSpeak
	story.OriginalContent = models.OriginalContent{AudioFileID: &audioID}

	store := &fakeStore{story: story, claimOK: true}
	styles := &fakeStyles{template: &models.PromptTemplate{ID: uuid.New(), Type: models.StoryTypeSpeak, PromptText: "Make a story."}}
	gen := &fakeGenerator{storyData: defaultStoryData(), transcript: "once upon a time"}
	svc := newTestService(store, styles, gen, &fakeRenderer{}, &fakeVideo{}, files, Options{})

	svc.Process(story.ID)

	require.True(t, store.completed)
	assert.Equal(t, "once upon a time", store.transcribed)
	assert.Equal(t, "once upon a time", gen.lastContent)
	require.NotNil(t, gen.lastSensory)
	assert.Equal(t, "audio/mp3", gen.lastSensory.MIMEType)
}

func TestProcessSpeakTranscriptionFailureMessage(t *testing.T) {
	files := newFakeFiles()
	audioID, err := files.Put(context.Background(), []byte("fake-audio"), "story.mp3", media.Meta{ContentType: "audio/mp3"})
	require.NoError(t, err)

	story := writeStory()
	story.Type = models.StoryTypeSpeak
	story.OriginalContent = models.OriginalContent{AudioFileID: &audioID}

	store := &fakeStore{story: story, claimOK: true}
	gen := &fakeGenerator{transcribeErr: errors.New("provider unavailable")}
	svc := newTestService(store, &fakeStyles{}, gen, &fakeRenderer{}, &fakeVideo{}, files, Options{})

	svc.Process(story.ID)

	require.True(t, store.failed)
	assert.Contains(t, store.failMessage, "Transcription failed: ")
	assert.Contains(t, store.failMessage, "provider unavailable")
}

func TestProcessSketchAnalysisFailureMessage(t *testing.T) {
	files := newFakeFiles()
	imageID, err := files.Put(context.Background(), []byte("fake-image"), "sketch.png", media.Meta{ContentType: "image/png"})
	require.NoError(t, err)

	story := writeStory()
	story.Type = models.StoryTypeSketch
	story.OriginalContent = models.OriginalContent{ImageFileID: &imageID}

	store := &fakeStore{story: story, claimOK: true}
	gen := &fakeGenerator{analyzeErr: errors.New("provider unavailable")}
	svc := newTestService(store, &fakeStyles{}, gen, &fakeRenderer{}, &fakeVideo{}, files, Options{})

	svc.Process(story.ID)

	require.True(t, store.failed)
	assert.Contains(t, store.failMessage, "Image analysis failed: ")
}

func TestProcessStyleLookupFailureDegradesToDefault(t *testing.T) {
	story := writeStory()
	styleID := uuid.New()
	story.VisualStyleID = &styleID

	store := &fakeStore{story: story, claimOK: true}
	styles := &fakeStyles{template: &models.PromptTemplate{ID: uuid.New(), PromptText: "Make a story."}}
	gen := &fakeGenerator{storyData: defaultStoryData()}
	svc := newTestService(store, styles, gen, &fakeRenderer{}, &fakeVideo{}, newFakeFiles(), Options{})

	svc.Process(story.ID)

	require.True(t, store.completed)
	assert.Equal(t, "default", store.visual.Style)
	assert.Nil(t, gen.lastModifiers)
}

func TestProcessPanelImagesStoredWithNilSlots(t *testing.T) {
	store := &fakeStore{story: writeStory(), claimOK: true}
	styles := &fakeStyles{template: &models.PromptTemplate{ID: uuid.New(), PromptText: "Make a story."}}
	gen := &fakeGenerator{storyData: defaultStoryData()}
	images := &fakeRenderer{images: [][]byte{[]byte("png-1"), nil}}
	files := newFakeFiles()
	svc := newTestService(store, styles, gen, images, &fakeVideo{}, files, Options{EnableImages: true})

	svc.Process(store.story.ID)

	require.True(t, store.completed)
	assert.Equal(t, 1, images.calls)
	require.Len(t, store.visual.Panels, 2)
	assert.NotNil(t, store.visual.Panels[0].ImageFileID)
	assert.Nil(t, store.visual.Panels[1].ImageFileID)
	assert.Len(t, files.puts, 1)
	for _, meta := range files.puts {
		assert.Equal(t, models.MediaKindPanelImage, meta.Kind)
	}
}

func TestProcessVideoProbabilityDraw(t *testing.T) {
	run := func(p float64, draw float64) (*fakeStore, *fakeVideo) {
		store := &fakeStore{story: writeStory(), claimOK: true}
		styles := &fakeStyles{template: &models.PromptTemplate{ID: uuid.New(), PromptText: "Make a story."}}
		gen := &fakeGenerator{storyData: defaultStoryData()}
		images := &fakeRenderer{images: [][]byte{[]byte("png-1"), []byte("png-2")}}
		video := &fakeVideo{data: []byte("mp4-bytes")}
		svc := newTestService(store, styles, gen, images, video, newFakeFiles(), Options{
			EnableImages:     true,
			EnableVideo:      true,
			VideoProbability: p,
		})
		svc.draw = func() float64 { return draw }
		svc.Process(store.story.ID)
		return store, video
	}

	// p=1 always renders.
	store, video := run(1.0, 0.99)
	require.True(t, store.completed)
	assert.Equal(t, 1, video.calls)
	assert.NotNil(t, store.visual.VideoFileID)
	assert.Equal(t, 12.5, store.visual.VideoDuration)

	// p=0 never renders.
	store, video = run(0.0, 0.0)
	require.True(t, store.completed)
	assert.Equal(t, 0, video.calls)
	assert.Nil(t, store.visual.VideoFileID)
}

func TestProcessVideoFailureStillCompletes(t *testing.T) {
	store := &fakeStore{story: writeStory(), claimOK: true}
	styles := &fakeStyles{template: &models.PromptTemplate{ID: uuid.New(), PromptText: "Make a story."}}
	gen := &fakeGenerator{storyData: defaultStoryData()}
	images := &fakeRenderer{images: [][]byte{[]byte("png-1"), []byte("png-2")}}
	video := &fakeVideo{err: errors.New("ffmpeg exited 1")}
	svc := newTestService(store, styles, gen, images, video, newFakeFiles(), Options{
		EnableImages:     true,
		EnableVideo:      true,
		VideoProbability: 1.0,
	})
	svc.draw = func() float64 { return 0 }

	svc.Process(store.story.ID)

	require.True(t, store.completed)
	assert.Equal(t, 1, video.calls)
	assert.Nil(t, store.visual.VideoFileID)
	assert.False(t, store.failed)
}

func TestProcessVideoSkippedWithoutImages(t *testing.T) {
	store := &fakeStore{story: writeStory(), claimOK: true}
	styles := &fakeStyles{template: &models.PromptTemplate{ID: uuid.New(), PromptText: "Make a story."}}
	gen := &fakeGenerator{storyData: defaultStoryData()}
	video := &fakeVideo{data: []byte("mp4-bytes")}
	svc := newTestService(store, styles, gen, &fakeRenderer{}, video, newFakeFiles(), Options{
		EnableVideo:      true,
		VideoProbability: 1.0,
	})
	svc.draw = func() float64 { return 0 }

	svc.Process(store.story.ID)

	require.True(t, store.completed)
	assert.Equal(t, 0, video.calls)
}

func TestProcessNarrationPrefersModelScript(t *testing.T) {
	data := defaultStoryData()
	data.Narration = "The narrator speaks."

	store := &fakeStore{story: writeStory(), claimOK: true}
	styles := &fakeStyles{template: &models.PromptTemplate{ID: uuid.New(), PromptText: "Make a story."}}
	svc := newTestService(store, styles, &fakeGenerator{storyData: data}, &fakeRenderer{}, &fakeVideo{}, newFakeFiles(), Options{})

	svc.Process(store.story.ID)

	require.True(t, store.completed)
	assert.Equal(t, "The narrator speaks.", store.audio.Script)
}
