package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type (
	Config struct {
		Language string `json:"language"`
		Port     int    `json:"port"`
		PathFile string `json:"path_file"`

		DatabasePath string `json:"database_path"`

		ProjectID              string `json:"project_id"`
		Region                 string `json:"region"`
		Topic                  string `json:"pubsub_topic"`
		Subscription           string `json:"pubsub_subscription"`
		DeadLetterSubscription string `json:"pubsub_dead_letter_subscription"`
		WorkerJobName          string `json:"worker_job_name"`

		GeminiAPIKey string `json:"gemini_api_key"`
		GeminiModel  string `json:"gemini_model"`

		GitHubConfig GitHubConfig `json:"github_config"`

		TerraformDir string `json:"terraform_dir"`

		MaxMessages         int `json:"max_messages"`
		DrainTimeoutSecs    int `json:"drain_timeout_secs"`
		ExternalTimeoutSecs int `json:"external_timeout_secs"`
		AckDeadlineSecs     int `json:"ack_deadline_secs"`
		MaxDeliveryCount    int `json:"max_delivery_count"`
		PollIntervalSecs    int `json:"poll_interval_secs"`
		PollMaxAttempts     int `json:"poll_max_attempts"`
		WatchIntervalSecs   int `json:"watch_interval_secs"`
	}

	GitHubConfig struct {
		Owner           string `json:"owner"`
		Repo            string `json:"repo"`
		RepoURL         string `json:"repo_url"`
		Token           string `json:"token,omitempty"`
		TokenSecretName string `json:"token_secret_name,omitempty"`
		CommitAuthor    string `json:"commit_author"`
		CommitEmail     string `json:"commit_email"`
	}
)

const (
	defaultLang             = "en"
	defaultPort             = 8080
	defaultDatabasePath     = "matedataset.db"
	defaultGeminiModel      = "gemini-2.5-pro"
	defaultTerraformDir     = "datasets"
	defaultMaxMessages      = 10
	defaultDrainTimeout     = 120
	defaultExternalTimeout  = 30
	defaultAckDeadline      = 30
	defaultMaxDeliveryCount = 5
	defaultPollInterval     = 2
	defaultPollMaxAttempts  = 60
	defaultWatchInterval    = 1
	defaultCommitAuthor     = "MateDataset Bot"
	defaultCommitEmail      = "matedataset-bot@users.noreply.github.com"
)

func LoadConfig(path string) (*Config, error) {
	var configPath string

	if filepath.Ext(path) == ".json" {
		configPath = path
	} else {
		configDir := filepath.Join(path, ".mate-dataset")
		configPath = filepath.Join(configDir, "config.json")

		if _, err := os.Stat(configDir); os.IsNotExist(err) {
			if err := os.MkdirAll(configDir, 0755); err != nil {
				return nil, fmt.Errorf("error al crear el directorio de configuración: %w", err)
			}
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg, err := createDefaultConfig(configPath)
		if err != nil {
			return nil, err
		}
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error al leer el archivo de configuración: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error al decodificar el archivo JSON: %w", err)
	}
	config.PathFile = configPath

	fillDefaults(&config)
	applyEnvOverrides(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("la configuración cargada no es válida: %w", err)
	}

	return &config, nil
}

func createDefaultConfig(path string) (*Config, error) {
	config := &Config{
		Language: defaultLang,
		Port:     defaultPort,
		PathFile: path,
	}
	fillDefaults(config)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error al crear el directorio de configuración: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error al codificar la configuración por defecto: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("error al guardar la configuración por defecto: %w", err)
	}

	return config, nil
}

func fillDefaults(config *Config) {
	if config.Language == "" {
		config.Language = defaultLang
	}
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.DatabasePath == "" {
		config.DatabasePath = defaultDatabasePath
	}
	if config.GeminiModel == "" {
		config.GeminiModel = defaultGeminiModel
	}
	if config.TerraformDir == "" {
		config.TerraformDir = defaultTerraformDir
	}
	if config.MaxMessages == 0 {
		config.MaxMessages = defaultMaxMessages
	}
	if config.DrainTimeoutSecs == 0 {
		config.DrainTimeoutSecs = defaultDrainTimeout
	}
	if config.ExternalTimeoutSecs == 0 {
		config.ExternalTimeoutSecs = defaultExternalTimeout
	}
	if config.AckDeadlineSecs == 0 {
		config.AckDeadlineSecs = defaultAckDeadline
	}
	if config.MaxDeliveryCount == 0 {
		config.MaxDeliveryCount = defaultMaxDeliveryCount
	}
	if config.PollIntervalSecs == 0 {
		config.PollIntervalSecs = defaultPollInterval
	}
	if config.PollMaxAttempts == 0 {
		config.PollMaxAttempts = defaultPollMaxAttempts
	}
	if config.WatchIntervalSecs == 0 {
		config.WatchIntervalSecs = defaultWatchInterval
	}
	if config.GitHubConfig.CommitAuthor == "" {
		config.GitHubConfig.CommitAuthor = defaultCommitAuthor
	}
	if config.GitHubConfig.CommitEmail == "" {
		config.GitHubConfig.CommitEmail = defaultCommitEmail
	}
}

// applyEnvOverrides pisa la configuración con variables de entorno, que es
// como se configura el servicio en despliegue (el archivo queda para uso
// local).
func applyEnvOverrides(config *Config) {
	envString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envString("PROJECT_ID", &config.ProjectID)
	envString("REGION", &config.Region)
	envString("PUBSUB_TOPIC", &config.Topic)
	envString("PUBSUB_SUBSCRIPTION", &config.Subscription)
	envString("PUBSUB_DEAD_LETTER_SUBSCRIPTION", &config.DeadLetterSubscription)
	envString("WORKER_JOB_NAME", &config.WorkerJobName)
	envString("GEMINI_API_KEY", &config.GeminiAPIKey)
	envString("GEMINI_MODEL", &config.GeminiModel)
	envString("GITHUB_TOKEN", &config.GitHubConfig.Token)
	envString("GITHUB_TOKEN_SECRET_NAME", &config.GitHubConfig.TokenSecretName)
	envString("GITHUB_REPO_OWNER", &config.GitHubConfig.Owner)
	envString("GITHUB_REPO_NAME", &config.GitHubConfig.Repo)
	envString("GITHUB_REPO_URL", &config.GitHubConfig.RepoURL)
	envString("TERRAFORM_FILES_DIRECTORY", &config.TerraformDir)
	envString("DATABASE_PATH", &config.DatabasePath)
	envInt("PORT", &config.Port)
	envInt("MAX_MESSAGES", &config.MaxMessages)
}

// IsLocalMode indica que no hay proyecto de GCP configurado: se usa la cola
// en memoria y el worker corre dentro del mismo proceso que el server.
func (c *Config) IsLocalMode() bool {
	return c.ProjectID == ""
}

func SaveConfig(config *Config) error {
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("la configuración a guardar no es válida: %w", err)
	}

	if config.PathFile == "" {
		return errors.New("la ruta del archivo de configuración no está definida")
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("error al codificar la configuración: %w", err)
	}

	if err := os.WriteFile(config.PathFile, data, 0644); err != nil {
		return fmt.Errorf("error al guardar la configuración: %w", err)
	}

	return nil
}

func validateConfig(config *Config) error {
	if config.Language == "" {
		return errors.New("language no puede estar vacío")
	}
	if config.Port <= 0 {
		return errors.New("port debe ser mayor que 0")
	}
	if config.MaxMessages <= 0 {
		return errors.New("max_messages debe ser mayor que 0")
	}
	if config.MaxDeliveryCount <= 0 {
		return errors.New("max_delivery_count debe ser mayor que 0")
	}

	if !config.IsLocalMode() {
		if config.Topic == "" {
			return errors.New("pubsub_topic no está configurado")
		}
		if config.Subscription == "" {
			return errors.New("pubsub_subscription no está configurado")
		}
	}

	return nil
}
