package config

const (
	SchemaVersion = 1

	DefaultStorePath             = ".testqueue/queue.db"
	DefaultSupportPath           = ".testqueue/support.yaml"
	DefaultLogLevel              = "info"
	DefaultRecommendedTargetDays = 180
	DefaultListenAddr            = "127.0.0.1:8787"

	MinRecommendedTargetDays = 1
	MaxRecommendedTargetDays = 730
)

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

type RawConfig struct {
	SchemaVersion *int        `yaml:"schemaVersion,omitempty"`
	Store         *RawStore   `yaml:"store,omitempty"`
	Log           *RawLog     `yaml:"log,omitempty"`
	Report        *RawReport  `yaml:"report,omitempty"`
	API           *RawAPI     `yaml:"api,omitempty"`
	Support       *RawSupport `yaml:"support,omitempty"`
}

type RawStore struct {
	Path *string `yaml:"path,omitempty"`
}

type RawLog struct {
	Level *string `yaml:"level,omitempty"`
}

type RawReport struct {
	RecommendedTargetDays *int `yaml:"recommendedTargetDays,omitempty"`
}

type RawAPI struct {
	ListenAddr *string `yaml:"listenAddr,omitempty"`
}

type RawSupport struct {
	Path *string `yaml:"path,omitempty"`
}

type ResolvedConfig struct {
	SchemaVersion int             `yaml:"schemaVersion"`
	Store         ResolvedStore   `yaml:"store"`
	Log           ResolvedLog     `yaml:"log"`
	Report        ResolvedReport  `yaml:"report"`
	API           ResolvedAPI     `yaml:"api"`
	Support       ResolvedSupport `yaml:"support"`
}

type ResolvedStore struct {
	Path string `yaml:"path"`
}

type ResolvedLog struct {
	Level string `yaml:"level"`
}

type ResolvedReport struct {
	RecommendedTargetDays int `yaml:"recommendedTargetDays"`
}

type ResolvedAPI struct {
	ListenAddr string `yaml:"listenAddr"`
}

type ResolvedSupport struct {
	Path string `yaml:"path"`
}

func DefaultResolvedConfig() ResolvedConfig {
	return ResolvedConfig{
		SchemaVersion: SchemaVersion,
		Store:         ResolvedStore{Path: DefaultStorePath},
		Log:           ResolvedLog{Level: DefaultLogLevel},
		Report:        ResolvedReport{RecommendedTargetDays: DefaultRecommendedTargetDays},
		API:           ResolvedAPI{ListenAddr: DefaultListenAddr},
		Support:       ResolvedSupport{Path: DefaultSupportPath},
	}
}
