package config

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	App      App           `yaml:"app"`
	Server   Server        `yaml:"server"`
	Webhook  Webhook       `yaml:"webhook"`
	Worker   Worker        `yaml:"worker"`
	Opencast Opencast      `yaml:"opencast"`
	Zoom     Zoom          `yaml:"zoom"`
	Scratch  Scratch       `yaml:"scratch"`
	DB       *sql.DB       `yaml:"db"`
	Queue    *RabbitMQ     `yaml:"rabbitmq"`
	Storage  *minio.Client `yaml:"storage"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type Webhook struct {
	MinDuration int    `yaml:"min_duration"`
	TopicFilter string `yaml:"topic_filter"`
}

type Worker struct {
	TransferTimeout time.Duration `yaml:"transfer_timeout"`
}

type Opencast struct {
	URL          string `yaml:"url"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Flavor       string `yaml:"flavor"`
	SeriesPrefix string `yaml:"series_prefix"`
}

type Zoom struct {
	APIURL         string `yaml:"api_url"`
	Token          string `yaml:"token"`
	DefaultCreator string `yaml:"default_creator"`
}

// Scratch selects where in-flight downloads are staged. The s3 backend lets
// multiple worker instances share staging space.
type Scratch struct {
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
}

type RabbitMQ struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	User        string `json:"user"`
	Pass        string `json:"pass"`
	Kind        string `json:"kind"`
	MaxAttempts int    `json:"max_attempts"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("rabbitmq_kind", "topic")
	viper.SetDefault("webhook.min_duration", 0)
	viper.SetDefault("worker.transfer_timeout", "30m")
	viper.SetDefault("opencast.flavor", "presentation/source")
	viper.SetDefault("opencast.series_prefix", "Zoom Recordings ")
	viper.SetDefault("zoom.api_url", "https://api.zoom.us/v2")
	viper.SetDefault("scratch.backend", "disk")
	viper.SetDefault("scratch.dir", "in-progress")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
	if err != nil {
		return nil, err
	}

	rabbitmq := &RabbitMQ{
		Host:        viper.GetString("rabbitmq_host"),
		Port:        viper.GetInt("rabbitmq_port"),
		User:        viper.GetString("rabbitmq_user"),
		Pass:        viper.GetString("rabbitmq_pass"),
		Kind:        viper.GetString("rabbitmq_kind"),
		MaxAttempts: viper.GetInt("rabbitmq_max_attempts"),
	}

	var storage *minio.Client
	if viper.GetString("scratch.backend") == "s3" {
		storage, err = minio.New(viper.GetString("minio.url"), &minio.Options{
			Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
			Secure: viper.GetBool("minio.secure"),
		})
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Webhook: Webhook{
			MinDuration: viper.GetInt("webhook.min_duration"),
			TopicFilter: viper.GetString("webhook.topic_filter"),
		},
		Worker: Worker{
			TransferTimeout: viper.GetDuration("worker.transfer_timeout"),
		},
		Opencast: Opencast{
			URL:          viper.GetString("opencast.url"),
			User:         viper.GetString("opencast.user"),
			Password:     viper.GetString("opencast.password"),
			Flavor:       viper.GetString("opencast.flavor"),
			SeriesPrefix: viper.GetString("opencast.series_prefix"),
		},
		Zoom: Zoom{
			APIURL:         viper.GetString("zoom.api_url"),
			Token:          viper.GetString("zoom.token"),
			DefaultCreator: viper.GetString("zoom.default_creator"),
		},
		Scratch: Scratch{
			Backend: viper.GetString("scratch.backend"),
			Dir:     viper.GetString("scratch.dir"),
			Bucket:  viper.GetString("scratch.bucket"),
			Prefix:  viper.GetString("scratch.prefix"),
		},
		DB:      db,
		Queue:   rabbitmq,
		Storage: storage,
	}, nil
}
