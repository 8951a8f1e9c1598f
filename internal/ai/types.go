package ai

// Thinking levels for generateContent requests.
const (
	ThinkingHigh = "HIGH"
	ThinkingLow  = "LOW"
)

// generateContent wire types. Only the fields this client reads and
// writes are modelled.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string      `json:"text,omitempty"`
	InlineData       *inlineData `json:"inlineData,omitempty"`
	ThoughtSignature string      `json:"thoughtSignature,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ThinkingConfig     *thinkingConfig `json:"thinkingConfig,omitempty"`
	ResponseModalities []string        `json:"responseModalities,omitempty"`
	ImageConfig        *imageConfig    `json:"imageConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingLevel string `json:"thinkingLevel"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

type candidate struct {
	Content          content `json:"content"`
	ThoughtSignature string  `json:"thoughtSignature,omitempty"`
	FinishReason     string  `json:"finishReason,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// SensoryInput is raw user media attached to a generation request so
// the model can pick up tone and style, not just the words.
type SensoryInput struct {
	Data     []byte
	MIMEType string
}

// StoryData is the parsed story document returned by the model.
type StoryData struct {
	Title     string  `json:"title"`
	Panels    []Panel `json:"panels"`
	Narration string  `json:"narration,omitempty"`
	Script    string  `json:"script,omitempty"`
}

// Panel mirrors the model's panel output before it is persisted.
type Panel struct {
	Number      int    `json:"number"`
	Scene       string `json:"scene"`
	Description string `json:"description"`
	Dialogue    string `json:"dialogue"`
}
