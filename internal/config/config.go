// Package config loads service and worker configuration from the
// environment.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ServerConfig is the configuration of the content service.
type ServerConfig struct {
	Port      uint16 `env:"CONTENT_PORT" env-default:"8080"`
	DB        DbConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Storage   StorageConfig
	RepoKind  string `env:"CONTENT_REPO" env-default:"postgres"`
	AdminUser string `env:"CONTENT_ADMIN_USER" env-default:"admin"`
	AdminPass string `env:"CONTENT_ADMIN_PASSWORD" env-default:"admin-pwd"`
}

// RobotConfig is the configuration of the processing worker.
type RobotConfig struct {
	DB             DbConfig
	Redis          RedisConfig
	Username       string        `env:"ROBOT_USERNAME" env-default:"robot"`
	Password       string        `env:"ROBOT_PASSWORD" env-default:"robot"`
	LoginURL       string        `env:"ROBOT_LOGIN_URL" env-default:"http://localhost:8080/api/auth/login"`
	ReportURL      string        `env:"ROBOT_REPORT_URL" env-default:"http://localhost:8080/api/contents"`
	DequeueTimeout time.Duration `env:"ROBOT_POP_TIMEOUT" env-default:"30s"`
}

type DbConfig struct {
	Port     uint16 `env:"CONTENT_PG_PORT" env-default:"5432"`
	Host     string `env:"CONTENT_PG_HOST" env-default:"localhost"`
	Name     string `env:"CONTENT_PG_NAME" env-default:"content_db"`
	User     string `env:"CONTENT_PG_USER" env-default:"content"`
	Password string `env:"CONTENT_PG_PASSWORD" env-default:"pwd"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
	Queue    string `env:"REDIS_QUEUE" env-default:"content:tasks"`
}

type JWTConfig struct {
	Secret string        `env:"JWT_SECRET" env-default:"dev-secret-change-me"`
	TTL    time.Duration `env:"JWT_TTL" env-default:"3h"`
}

type StorageConfig struct {
	Kind            string `env:"CONTENT_STORAGE" env-default:"fs"`
	BaseDir         string `env:"CONTENT_UPLOAD_DIR" env-default:"./uploads"`
	Endpoint        string `env:"AWS_S3_ENDPOINT" env-default:""`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	BucketName      string `env:"AWS_S3_BUCKET" env-default:"content-bucket"`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	UsePathStyle    bool   `env:"AWS_S3_PATH_STYLE" env-default:"true"`
}

// DatabaseURL renders the postgres connection string.
func (c DbConfig) DatabaseURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}
	return u.String()
}

// LoadServer reads the service configuration from the environment.
func LoadServer() (ServerConfig, error) {
	var config ServerConfig
	if err := cleanenv.ReadEnv(&config); err != nil {
		return ServerConfig{}, fmt.Errorf("read configuration: %w", err)
	}
	return config, nil
}

// LoadRobot reads the worker configuration from the environment.
func LoadRobot() (RobotConfig, error) {
	var config RobotConfig
	if err := cleanenv.ReadEnv(&config); err != nil {
		return RobotConfig{}, fmt.Errorf("read configuration: %w", err)
	}
	return config, nil
}
