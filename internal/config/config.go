// FilePath: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/LowellObservatory/indi-allsky/internal/pathtemplate"
)

// Config holds all configuration for the sync/upload plane. The config
// store itself (encrypted blob, versioning) is owned by an external
// subsystem; we only consume the resulting values.
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	ImageFolder    string             `mapstructure:"image_folder"`
	ExposurePeriod float64            `mapstructure:"exposure_period"`
	UploadWorkers  int                `mapstructure:"upload_workers"`
	FileTransfer   FileTransferConfig `mapstructure:"filetransfer"`
	S3Upload       S3UploadConfig     `mapstructure:"s3upload"`
	MQTTPublish    MQTTPublishConfig  `mapstructure:"mqttpublish"`
	SyncAPI        SyncAPIConfig      `mapstructure:"syncapi"`
	Keogram        KeogramConfig      `mapstructure:"keogram"`
	Retention      RetentionConfig    `mapstructure:"retention"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres or sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite only
}

type RedisConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// FileTransferConfig drives the file upload leg of the task workers.
type FileTransferConfig struct {
	ClassName  string        `mapstructure:"classname"` // sftp, ftp, ftps, ftpes, webdav
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	Username   string        `mapstructure:"username"`
	Password   string        `mapstructure:"password"`
	PrivateKey string        `mapstructure:"private_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CertBypass bool          `mapstructure:"cert_bypass"`

	RemoteImageName            string `mapstructure:"remote_image_name"`
	RemoteImageFolder          string `mapstructure:"remote_image_folder"`
	RemoteMetadataName         string `mapstructure:"remote_metadata_name"`
	RemoteMetadataFolder       string `mapstructure:"remote_metadata_folder"`
	RemoteVideoFolder          string `mapstructure:"remote_video_folder"`
	RemoteKeogramFolder        string `mapstructure:"remote_keogram_folder"`
	RemoteStarTrailFolder      string `mapstructure:"remote_startrail_folder"`
	RemoteStarTrailVideoFolder string `mapstructure:"remote_startrail_video_folder"`

	UploadImage          int  `mapstructure:"upload_image"` // every Nth image, 0 disables
	UploadMetadata       bool `mapstructure:"upload_metadata"`
	UploadVideo          bool `mapstructure:"upload_video"`
	UploadKeogram        bool `mapstructure:"upload_keogram"`
	UploadStarTrail      bool `mapstructure:"upload_startrail"`
	UploadStarTrailVideo bool `mapstructure:"upload_startrail_video"`
}

type S3UploadConfig struct {
	Enable       bool   `mapstructure:"enable"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	URLTemplate  string `mapstructure:"url_template"`
	ACL          string `mapstructure:"acl"`
	StorageClass string `mapstructure:"storage_class"`
	TLS          bool   `mapstructure:"tls"`
	CertBypass   bool   `mapstructure:"cert_bypass"`
}

type MQTTPublishConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Transport  string `mapstructure:"transport"` // tcp or websockets
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	BaseTopic  string `mapstructure:"base_topic"`
	QOS        byte   `mapstructure:"qos"`
	TLS        bool   `mapstructure:"tls"`
	CertBypass bool   `mapstructure:"cert_bypass"`
}

type SyncAPIConfig struct {
	Enable      bool          `mapstructure:"enable"`
	BaseURL     string        `mapstructure:"baseurl"`
	Username    string        `mapstructure:"username"`
	APIKey      string        `mapstructure:"apikey"`
	CertBypass  bool          `mapstructure:"cert_bypass"`
	PostS3      bool          `mapstructure:"post_s3"`
	EmptyFile   bool          `mapstructure:"empty_file"`
	UploadImage int           `mapstructure:"upload_image"` // every Nth image
	Timeout     time.Duration `mapstructure:"timeout"`
}

type KeogramConfig struct {
	Angle        float64 `mapstructure:"angle"`
	HScaleFactor int     `mapstructure:"h_scale_factor"`
}

// RetentionConfig controls asset expiry. Zero days disables a class.
type RetentionConfig struct {
	ImageDays int           `mapstructure:"image_days"`
	VideoDays int           `mapstructure:"video_days"`
	TaskDays  int           `mapstructure:"task_days"`
	Interval  time.Duration `mapstructure:"interval"`
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetEnvPrefix("ALLSKY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Load config file if exists
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.sslmode", "disable")

	// Redis defaults
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("image_folder", "/var/lib/indi-allsky/images")
	viper.SetDefault("exposure_period", 15.0)
	viper.SetDefault("upload_workers", 2)

	// File transfer defaults
	viper.SetDefault("filetransfer.classname", "sftp")
	viper.SetDefault("filetransfer.timeout", "5s")
	viper.SetDefault("filetransfer.cert_bypass", true)
	// {ext} carries the leading dot
	viper.SetDefault("filetransfer.remote_image_name", "image{ext}")
	viper.SetDefault("filetransfer.remote_image_folder", "allsky")
	viper.SetDefault("filetransfer.remote_metadata_name", "latest_metadata.json")
	viper.SetDefault("filetransfer.remote_metadata_folder", "allsky")
	viper.SetDefault("filetransfer.remote_video_folder", "allsky/videos")
	viper.SetDefault("filetransfer.remote_keogram_folder", "allsky/keograms")
	viper.SetDefault("filetransfer.remote_startrail_folder", "allsky/startrails")
	viper.SetDefault("filetransfer.remote_startrail_video_folder", "allsky/videos")

	// S3 defaults
	viper.SetDefault("s3upload.region", "us-east-2")
	viper.SetDefault("s3upload.host", "amazonaws.com")
	viper.SetDefault("s3upload.url_template", "https://{bucket}.s3.{region}.{host}")
	viper.SetDefault("s3upload.acl", "public-read")
	viper.SetDefault("s3upload.storage_class", "STANDARD")
	viper.SetDefault("s3upload.tls", true)

	// MQTT defaults
	viper.SetDefault("mqttpublish.transport", "tcp")
	viper.SetDefault("mqttpublish.host", "localhost")
	viper.SetDefault("mqttpublish.port", 8883)
	viper.SetDefault("mqttpublish.base_topic", "indi-allsky")
	viper.SetDefault("mqttpublish.qos", 0)
	viper.SetDefault("mqttpublish.tls", true)
	viper.SetDefault("mqttpublish.cert_bypass", true)

	// Sync API defaults
	viper.SetDefault("syncapi.upload_image", 1)
	viper.SetDefault("syncapi.timeout", "5s")

	// Keogram defaults
	viper.SetDefault("keogram.angle", 0)
	viper.SetDefault("keogram.h_scale_factor", 33)

	// Retention defaults
	viper.SetDefault("retention.image_days", 30)
	viper.SetDefault("retention.video_days", 365)
	viper.SetDefault("retention.task_days", 3)
	viper.SetDefault("retention.interval", "24h")
}

// Validate rejects configurations that would only fail at dispatch
// time, in particular malformed remote path templates.
func Validate(config *Config) error {
	switch config.Database.Driver {
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
	case "sqlite":
		if config.Database.Path == "" {
			return fmt.Errorf("sqlite database path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	if config.UploadWorkers < 1 || config.UploadWorkers > 4 {
		return fmt.Errorf("upload_workers must be between 1 and 4")
	}

	templates := map[string]string{
		"filetransfer.remote_image_name":             config.FileTransfer.RemoteImageName,
		"filetransfer.remote_image_folder":           config.FileTransfer.RemoteImageFolder,
		"filetransfer.remote_metadata_name":          config.FileTransfer.RemoteMetadataName,
		"filetransfer.remote_metadata_folder":        config.FileTransfer.RemoteMetadataFolder,
		"filetransfer.remote_video_folder":           config.FileTransfer.RemoteVideoFolder,
		"filetransfer.remote_keogram_folder":         config.FileTransfer.RemoteKeogramFolder,
		"filetransfer.remote_startrail_folder":       config.FileTransfer.RemoteStarTrailFolder,
		"filetransfer.remote_startrail_video_folder": config.FileTransfer.RemoteStarTrailVideoFolder,
	}
	for key, tmpl := range templates {
		if err := pathtemplate.Validate(tmpl); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}

	if config.MQTTPublish.QOS > 2 {
		return fmt.Errorf("mqttpublish.qos must be 0, 1 or 2")
	}

	if config.SyncAPI.Enable && config.SyncAPI.BaseURL == "" {
		return fmt.Errorf("syncapi.baseurl is required when syncapi is enabled")
	}

	return nil
}
