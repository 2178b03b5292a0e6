package docrag

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flarexio/docrag/blob"
	"github.com/flarexio/docrag/chunk"
	"github.com/flarexio/docrag/embedding"
	"github.com/flarexio/docrag/extract"
	"github.com/flarexio/docrag/llm"
	"github.com/flarexio/docrag/vector"
)

var (
	ErrDocumentNotFound        = errors.New("document not found")
	ErrModelNotFound           = errors.New("model not found")
	ErrModelInactive           = errors.New("model is inactive")
	ErrInvalidModel            = errors.New("name, provider and model name are required")
	ErrEmptyFile               = errors.New("empty file")
	ErrMissingFilename         = errors.New("no file provided")
	ErrUnsupportedFileType     = errors.New("unsupported file type")
	ErrFileTooLarge            = errors.New("file too large")
	ErrEmptyQuery              = errors.New("query is required")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrQueueFull               = errors.New("ingestion queue is full")
	ErrNotRetryable            = errors.New("only failed documents can be retried")
	ErrUnsupportedProvider     = errors.New("unsupported provider")
)

type Config struct {
	Storage   blob.Config      `yaml:"storage"`
	Database  DatabaseConfig   `yaml:"database"`
	Vector    vector.Config    `yaml:"vector"`
	Embedding embedding.Config `yaml:"embedding"`
	LLM       llm.Config       `yaml:"llm"`
	Chunking  ChunkingConfig   `yaml:"chunking"`
	Retrieval RetrievalConfig  `yaml:"retrieval"`
	Ingestion IngestionConfig  `yaml:"ingestion"`
	Upload    UploadConfig     `yaml:"upload"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type ChunkingConfig struct {
	Size int `yaml:"size"`

	// Overlap is nil when unset; an explicit 0 disables overlapping.
	Overlap *int `yaml:"overlap,omitempty"`
}

type RetrievalConfig struct {
	TopK        int      `yaml:"topK"`
	MinScore    float64  `yaml:"minScore"`
	StreamDelay Duration `yaml:"streamDelay"`
}

type IngestionConfig struct {
	Workers   int    `yaml:"workers"`
	QueueSize int    `yaml:"queueSize"`
	WorkDir   string `yaml:"workDir"`
}

type UploadConfig struct {
	MaxSize    int64    `yaml:"maxSize"`
	Extensions []string `yaml:"extensions"`
}

const (
	DefaultCollection  = "documents"
	DefaultTopK        = 5
	DefaultMinScore    = 0.2
	DefaultStreamDelay = 20 * time.Millisecond
	DefaultWorkers     = 2
	DefaultQueueSize   = 100
	DefaultMaxSize     = 10 << 20
)

var DefaultExtensions = []string{
	".pdf", ".docx", ".txt", ".md", ".markdown", ".csv", ".json", ".log",
}

// ApplyDefaults fills every unset field with its default.
func (cfg *Config) ApplyDefaults() {
	if cfg.Vector.Collection == "" {
		cfg.Vector.Collection = DefaultCollection
	}

	if cfg.Chunking.Size <= 0 {
		cfg.Chunking.Size = chunk.DefaultSize
	}

	if cfg.Chunking.Overlap == nil || *cfg.Chunking.Overlap < 0 {
		overlap := min(chunk.DefaultOverlap, cfg.Chunking.Size/5)
		cfg.Chunking.Overlap = &overlap
	}

	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = DefaultTopK
	}

	if cfg.Retrieval.MinScore <= 0 {
		cfg.Retrieval.MinScore = DefaultMinScore
	}

	if cfg.Retrieval.StreamDelay <= 0 {
		cfg.Retrieval.StreamDelay = Duration(DefaultStreamDelay)
	}

	if cfg.Ingestion.Workers <= 0 {
		cfg.Ingestion.Workers = DefaultWorkers
	}

	if cfg.Ingestion.QueueSize <= 0 {
		cfg.Ingestion.QueueSize = DefaultQueueSize
	}

	if cfg.Upload.MaxSize <= 0 {
		cfg.Upload.MaxSize = DefaultMaxSize
	}

	if len(cfg.Upload.Extensions) == 0 {
		cfg.Upload.Extensions = DefaultExtensions
	}
}

type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	str := d.Duration().String()
	return json.Marshal(str)
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration().String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var str string
	if err := value.Decode(&str); err != nil {
		return err
	}

	duration, err := time.ParseDuration(str)
	if err != nil {
		return err
	}

	*d = Duration(duration)
	return nil
}

type DocumentStatus string

const (
	StatusUploading  DocumentStatus = "uploading"
	StatusProcessing DocumentStatus = "processing"
	StatusEmbedding  DocumentStatus = "embedding"
	StatusCompleted  DocumentStatus = "completed"
	StatusError      DocumentStatus = "error"
)

// Progress is the percentage reached when a document enters the status.
func (s DocumentStatus) Progress() int {
	switch s {
	case StatusProcessing:
		return 25
	case StatusEmbedding:
		return 75
	case StatusCompleted:
		return 100
	default:
		return 0
	}
}

// CanTransitionTo reports whether the ingestion state machine allows
// moving from s to next. A failed document may only restart from the
// beginning.
func (s DocumentStatus) CanTransitionTo(next DocumentStatus) bool {
	switch s {
	case StatusUploading:
		return next == StatusProcessing || next == StatusError
	case StatusProcessing:
		return next == StatusEmbedding || next == StatusError
	case StatusEmbedding:
		return next == StatusCompleted || next == StatusError
	case StatusError:
		return next == StatusUploading
	default:
		return false
	}
}

type Document struct {
	ID                 string         `json:"id"`
	Filename           string         `json:"filename"`
	FilePath           string         `json:"file_path"`
	FileSize           int64          `json:"file_size"`
	UploaderID         string         `json:"uploader_id,omitempty"`
	UploadedAt         time.Time      `json:"uploaded_at"`
	StorageType        string         `json:"storage_type"`
	VectorCollectionID string         `json:"vector_collection_id,omitempty"`
	Status             DocumentStatus `json:"status"`
	Progress           int            `json:"progress"`
	ChunkCount         int            `json:"chunk_count"`
	Message            string         `json:"message,omitempty"`
	Error              string         `json:"error,omitempty"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// FileType is the upper-cased extension, or UNKNOWN.
func (d *Document) FileType() string {
	ext := strings.TrimPrefix(filepath.Ext(d.Filename), ".")
	if ext == "" {
		return "UNKNOWN"
	}

	return strings.ToUpper(ext)
}

func (d *Document) View() DocumentView {
	uploader := d.UploaderID
	if uploader == "" {
		uploader = "Anonymous"
	}

	return DocumentView{
		ID:                 d.ID,
		Name:               d.Filename,
		FileSize:           d.FileSize,
		FileType:           d.FileType(),
		UploadedBy:         uploader,
		UploadDate:         d.UploadedAt.Format(time.RFC3339),
		FilePath:           d.FilePath,
		StorageType:        d.StorageType,
		VectorCollectionID: d.VectorCollectionID,
		Status:             d.Status,
		Progress:           d.Progress,
	}
}

func (d *Document) ProcessingStatus() *ProcessingStatus {
	return &ProcessingStatus{
		ID:       d.ID,
		Status:   d.Status,
		Progress: float64(d.Progress),
		Message:  d.Message,
		Error:    d.Error,
	}
}

type DocumentView struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	FileSize           int64          `json:"file_size"`
	FileType           string         `json:"file_type"`
	UploadedBy         string         `json:"uploaded_by"`
	UploadDate         string         `json:"upload_date"`
	FilePath           string         `json:"file_path"`
	StorageType        string         `json:"storage_type"`
	VectorCollectionID string         `json:"vector_collection_id,omitempty"`
	Status             DocumentStatus `json:"status"`
	Progress           int            `json:"progress"`
}

type ProcessingStatus struct {
	ID                  string         `json:"id"`
	Status              DocumentStatus `json:"status"`
	Progress            float64        `json:"progress"`
	Message             string         `json:"message"`
	Error               string         `json:"error,omitempty"`
	EstimatedCompletion *time.Time     `json:"estimated_completion,omitempty"`
}

type DocumentContent struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type UploadRequest struct {
	Filename   string `json:"filename"`
	Data       []byte `json:"-"`
	UploaderID string `json:"uploader_id,omitempty"`
}

// Validate rejects uploads that can never be ingested.
func (req UploadRequest) Validate(cfg UploadConfig) error {
	if strings.TrimSpace(req.Filename) == "" {
		return ErrMissingFilename
	}

	if len(req.Data) == 0 {
		return ErrEmptyFile
	}

	if cfg.MaxSize > 0 && int64(len(req.Data)) > cfg.MaxSize {
		return ErrFileTooLarge
	}

	if len(cfg.Extensions) == 0 {
		return nil
	}

	ext := extract.Ext(req.Filename)
	for _, allowed := range cfg.Extensions {
		if strings.EqualFold(ext, allowed) {
			return nil
		}
	}

	return ErrUnsupportedFileType
}

type ChatMessage struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id,omitempty"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	Timestamp   time.Time `json:"timestamp"`
	ModelUsed   string    `json:"model_used"`
}

type ChatRequest struct {
	UserMessage string `json:"user_message" binding:"required"`
	SessionID   string `json:"session_id,omitempty"`
	ModelID     string `json:"model_id,omitempty"`
	DocumentID  string `json:"document_id,omitempty"`
	TopK        int    `json:"top_k,omitempty"`
}

type ChatQuery struct {
	SessionID string `json:"session_id,omitempty" form:"session_id"`
	Skip      int    `json:"skip,omitempty" form:"skip"`
	Limit     int    `json:"limit,omitempty" form:"limit"`
}

type LLMModel struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Provider   string         `json:"provider"`
	ModelName  string         `json:"model_name"`
	APIKey     string         `json:"api_key,omitempty"`
	BaseURL    string         `json:"base_url,omitempty"`
	IsActive   bool           `json:"is_active"`
	Parameters map[string]any `json:"parameters"`
	CreatedBy  string         `json:"created_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Used is the identifier recorded on chat messages answered by the model.
func (m *LLMModel) Used() string {
	return m.Provider + "/" + m.ModelName
}

func (m *LLMModel) GeneratorConfig() (llm.Config, error) {
	provider, err := llm.ParseProvider(m.Provider)
	if err != nil {
		return llm.Config{}, errors.Join(ErrUnsupportedProvider, err)
	}

	return llm.Config{
		Provider: provider,
		Model:    m.ModelName,
		BaseURL:  m.BaseURL,
		APIKey:   m.APIKey,
		Options:  llm.ParseOptions(m.Parameters),
	}, nil
}

type CreateModelRequest struct {
	Name       string         `json:"name"`
	Provider   string         `json:"provider"`
	ModelName  string         `json:"model_name"`
	APIKey     string         `json:"api_key,omitempty"`
	BaseURL    string         `json:"base_url,omitempty"`
	IsActive   *bool          `json:"is_active,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	CreatedBy  string         `json:"created_by,omitempty"`
}

// LLMModelUpdate carries a partial update: nil fields stay unchanged.
type LLMModelUpdate struct {
	Name       *string        `json:"name,omitempty"`
	Provider   *string        `json:"provider,omitempty"`
	ModelName  *string        `json:"model_name,omitempty"`
	APIKey     *string        `json:"api_key,omitempty"`
	BaseURL    *string        `json:"base_url,omitempty"`
	IsActive   *bool          `json:"is_active,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

func (u LLMModelUpdate) Apply(m *LLMModel) {
	if u.Name != nil {
		m.Name = *u.Name
	}

	if u.Provider != nil {
		m.Provider = *u.Provider
	}

	if u.ModelName != nil {
		m.ModelName = *u.ModelName
	}

	if u.APIKey != nil {
		m.APIKey = *u.APIKey
	}

	if u.BaseURL != nil {
		m.BaseURL = *u.BaseURL
	}

	if u.IsActive != nil {
		m.IsActive = *u.IsActive
	}

	if u.Parameters != nil {
		m.Parameters = u.Parameters
	}
}

type SearchRequest struct {
	Query      string `json:"query" form:"query"`
	TopK       int    `json:"top_k,omitempty" form:"top_k"`
	DocumentID string `json:"document_id,omitempty" form:"document_id"`
}

type SearchResult struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Source     string  `json:"source"`
	Text       string  `json:"text"`
	Distance   float64 `json:"distance"`
	Score      float64 `json:"score"`
	Rank       int     `json:"rank"`
}

type AnswerRequest struct {
	Query         string  `json:"query" form:"query"`
	TopK          int     `json:"top_k,omitempty" form:"top_k"`
	MinScore      float64 `json:"min_score,omitempty" form:"min_score"`
	DocumentID    string  `json:"document_id,omitempty" form:"document_id"`
	ModelID       string  `json:"model_id,omitempty" form:"model_id"`
	ReturnContext bool    `json:"return_context,omitempty" form:"return_context"`
}

type AnswerStrategy string

const (
	StrategyNoResults     AnswerStrategy = "no_results"
	StrategyLowConfidence AnswerStrategy = "low_confidence"
	StrategyGenerated     AnswerStrategy = "generated"
	StrategyErrorFallback AnswerStrategy = "error_fallback"
)

type Source struct {
	DocumentID string  `json:"document_id"`
	ChunkID    string  `json:"chunk_id"`
	Source     string  `json:"source"`
	Page       string  `json:"page"`
	Score      float64 `json:"score"`
	Preview    string  `json:"preview"`
}

type Answer struct {
	Answer     string         `json:"answer"`
	Sources    []Source       `json:"sources"`
	Confidence float64        `json:"confidence"`
	Strategy   AnswerStrategy `json:"strategy"`
	Model      string         `json:"model,omitempty"`
	Context    string         `json:"context,omitempty"`
}

type StreamEventType string

const (
	EventSearchComplete StreamEventType = "search_complete"
	EventSources        StreamEventType = "sources"
	EventContent        StreamEventType = "content"
	EventDone           StreamEventType = "done"
	EventError          StreamEventType = "error"
)

type StreamEvent struct {
	Type         StreamEventType `json:"type"`
	ResultsFound *int            `json:"results_found,omitempty"`
	Sources      []Source        `json:"sources,omitempty"`
	Content      string          `json:"content,omitempty"`
	Error        string          `json:"error,omitempty"`
}

type Stats struct {
	TotalVectors   int    `json:"total_vectors"`
	TotalDocuments int    `json:"total_documents"`
	EmbeddingModel string `json:"embedding_model"`
}
