package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultLLMBaseURL       = "http://localhost:11434/v1"
	DefaultLLMModel         = "llama3.1"
	DefaultEmbeddingModel   = "nomic-embed-text"
	DefaultProbeConfidence  = 0.6
	DefaultEmpathyThreshold = 0.6
	DefaultAnchorSimilarity = 0.45
	DefaultShortInputMax    = 50
	DefaultHistoryLimit     = 10
	DefaultStructuralWindow = 5
	DefaultQueueName        = "mindyard:tasks"
)

// Config holds the application configuration
type Config struct {
	// LLM (fast tier, used by classification and handler nodes)
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	// Deep tier model for structural analysis; empty = same as LLMModel
	LLMDeepModel string

	EmbeddingBaseURL string
	EmbeddingModel   string

	// Routing thresholds
	ProbeConfidence  float64 // below this, route to probe
	EmpathyThreshold float64 // max emotion intensity that suppresses analysis
	AnchorSimilarity float64 // semantic router acceptance threshold
	ShortInputMax    int     // max chars for the semantic router fast path
	HistoryLimit     int     // thread history window for reply generation
	StructuralWindow int     // history window for structural analysis

	// Storage / queue
	DBPath    string
	RedisAddr string // empty = in-memory scheduler
	QueueName string

	LogLevel string
	LogFile  string

	ConfigPath  string
	MindyardDir string
}

type fileConfig struct {
	LLM struct {
		BaseURL   string `toml:"base_url"`
		APIKey    string `toml:"api_key"`
		Model     string `toml:"model"`
		DeepModel string `toml:"deep_model"`
	} `toml:"llm"`
	Embedding struct {
		BaseURL string `toml:"base_url"`
		Model   string `toml:"model"`
	} `toml:"embedding"`
	Routing struct {
		ProbeConfidence  float64 `toml:"probe_confidence"`
		EmpathyThreshold float64 `toml:"empathy_threshold"`
		AnchorSimilarity float64 `toml:"anchor_similarity"`
		ShortInputMax    int     `toml:"short_input_max_chars"`
		HistoryLimit     int     `toml:"history_limit"`
		StructuralWindow int     `toml:"structural_window"`
	} `toml:"routing"`
	Storage struct {
		DBPath string `toml:"db_path"`
	} `toml:"storage"`
	Queue struct {
		RedisAddr string `toml:"redis_addr"`
		Name      string `toml:"name"`
	} `toml:"queue"`
	Logging struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"logging"`
}

// LoadConfig loads configuration from file, environment variables, and defaults
func LoadConfig() (*Config, error) {
	mindyardDir, err := resolveMindyardDir()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(mindyardDir, "config.toml")

	cfg := &Config{
		LLMBaseURL:       DefaultLLMBaseURL,
		LLMModel:         DefaultLLMModel,
		EmbeddingModel:   DefaultEmbeddingModel,
		ProbeConfidence:  DefaultProbeConfidence,
		EmpathyThreshold: DefaultEmpathyThreshold,
		AnchorSimilarity: DefaultAnchorSimilarity,
		ShortInputMax:    DefaultShortInputMax,
		HistoryLimit:     DefaultHistoryLimit,
		StructuralWindow: DefaultStructuralWindow,
		DBPath:           filepath.Join(mindyardDir, "store.sqlite3"),
		QueueName:        DefaultQueueName,
		LogLevel:         "info",
		LogFile:          filepath.Join(mindyardDir, "logs", "mindyard.log"),
		ConfigPath:       configPath,
		MindyardDir:      mindyardDir,
	}

	embeddingBaseURLSet := false
	if _, err := os.Stat(configPath); err == nil {
		fileData, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		var parsed fileConfig
		if err := toml.Unmarshal(fileData, &parsed); err != nil {
			return nil, err
		}

		if parsed.LLM.BaseURL != "" {
			cfg.LLMBaseURL = parsed.LLM.BaseURL
		}
		if parsed.LLM.APIKey != "" {
			cfg.LLMAPIKey = parsed.LLM.APIKey
		}
		if parsed.LLM.Model != "" {
			cfg.LLMModel = parsed.LLM.Model
		}
		if parsed.LLM.DeepModel != "" {
			cfg.LLMDeepModel = parsed.LLM.DeepModel
		}
		if parsed.Embedding.BaseURL != "" {
			cfg.EmbeddingBaseURL = parsed.Embedding.BaseURL
			embeddingBaseURLSet = true
		}
		if parsed.Embedding.Model != "" {
			cfg.EmbeddingModel = parsed.Embedding.Model
		}
		if parsed.Routing.ProbeConfidence > 0 {
			cfg.ProbeConfidence = parsed.Routing.ProbeConfidence
		}
		if parsed.Routing.EmpathyThreshold > 0 {
			cfg.EmpathyThreshold = parsed.Routing.EmpathyThreshold
		}
		if parsed.Routing.AnchorSimilarity > 0 {
			cfg.AnchorSimilarity = parsed.Routing.AnchorSimilarity
		}
		if parsed.Routing.ShortInputMax > 0 {
			cfg.ShortInputMax = parsed.Routing.ShortInputMax
		}
		if parsed.Routing.HistoryLimit > 0 {
			cfg.HistoryLimit = parsed.Routing.HistoryLimit
		}
		if parsed.Routing.StructuralWindow > 0 {
			cfg.StructuralWindow = parsed.Routing.StructuralWindow
		}
		if parsed.Storage.DBPath != "" {
			cfg.DBPath = parsed.Storage.DBPath
		}
		if parsed.Queue.RedisAddr != "" {
			cfg.RedisAddr = parsed.Queue.RedisAddr
		}
		if parsed.Queue.Name != "" {
			cfg.QueueName = parsed.Queue.Name
		}
		if parsed.Logging.Level != "" {
			cfg.LogLevel = parsed.Logging.Level
		}
		if parsed.Logging.File != "" {
			cfg.LogFile = parsed.Logging.File
		}
	}

	// Environment variable overrides
	if baseURL := os.Getenv("MINDYARD_LLM_BASE_URL"); baseURL != "" {
		cfg.LLMBaseURL = baseURL
	}
	if apiKey := os.Getenv("MINDYARD_LLM_API_KEY"); apiKey != "" {
		cfg.LLMAPIKey = apiKey
	}
	if model := os.Getenv("MINDYARD_LLM_MODEL"); model != "" {
		cfg.LLMModel = model
	}
	if deepModel := os.Getenv("MINDYARD_LLM_DEEP_MODEL"); deepModel != "" {
		cfg.LLMDeepModel = deepModel
	}
	if embedBaseURL := os.Getenv("MINDYARD_EMBEDDING_BASE_URL"); embedBaseURL != "" {
		cfg.EmbeddingBaseURL = embedBaseURL
		embeddingBaseURLSet = true
	}
	if embedModel := os.Getenv("MINDYARD_EMBEDDING_MODEL"); embedModel != "" {
		cfg.EmbeddingModel = embedModel
	}
	if v := os.Getenv("MINDYARD_PROBE_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.ProbeConfidence = f
		}
	}
	if v := os.Getenv("MINDYARD_EMPATHY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.EmpathyThreshold = f
		}
	}
	if v := os.Getenv("MINDYARD_ANCHOR_SIMILARITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.AnchorSimilarity = f
		}
	}
	if v := os.Getenv("MINDYARD_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryLimit = n
		}
	}
	if dbPath := os.Getenv("MINDYARD_DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if addr := os.Getenv("MINDYARD_REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}
	if name := os.Getenv("MINDYARD_QUEUE_NAME"); name != "" {
		cfg.QueueName = name
	}
	if level := os.Getenv("MINDYARD_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if logFile := os.Getenv("MINDYARD_LOG_FILE"); logFile != "" {
		cfg.LogFile = logFile
	}

	cfg.LLMBaseURL = normalizeBaseURL(cfg.LLMBaseURL)
	if !embeddingBaseURLSet {
		cfg.EmbeddingBaseURL = cfg.LLMBaseURL
	}
	cfg.EmbeddingBaseURL = normalizeBaseURL(cfg.EmbeddingBaseURL)
	if cfg.LLMDeepModel == "" {
		cfg.LLMDeepModel = cfg.LLMModel
	}

	return cfg, nil
}

func resolveMindyardDir() (string, error) {
	if dir := os.Getenv("MINDYARD_DIR"); dir != "" {
		return dir, ensureDirs(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".mindyard")
	return dir, ensureDirs(dir)
}

func ensureDirs(dir string) error {
	for _, d := range []string{dir, filepath.Join(dir, "logs")} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", d, err)
		}
	}
	return nil
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// Validate verifies the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLMBaseURL) == "" {
		return fmt.Errorf("LLM base URL is empty")
	}
	if c.ProbeConfidence < 0 || c.ProbeConfidence > 1 {
		return fmt.Errorf("probe confidence must be between 0 and 1")
	}
	if c.EmpathyThreshold < 0 || c.EmpathyThreshold > 1 {
		return fmt.Errorf("empathy threshold must be between 0 and 1")
	}
	if c.AnchorSimilarity < 0 || c.AnchorSimilarity > 1 {
		return fmt.Errorf("anchor similarity must be between 0 and 1")
	}
	if c.ShortInputMax <= 0 {
		return fmt.Errorf("short input cutoff must be positive")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}
	if c.StructuralWindow <= 0 {
		return fmt.Errorf("structural window must be positive")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("db path is empty")
	}
	return nil
}
