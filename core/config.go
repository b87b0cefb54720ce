package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers
const (
	DriverRemote   = "remote"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type (
	serverConfig struct {
		Address            string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
	}

	// StoreConfig configures where sheets are persisted.
	StoreConfig struct {
		Driver      string
		BaseURL     string // without trailing slash
		Resource    string
		Token       string
		SessionFile string
		MaxAttempts int
		BackoffStep time.Duration
		Timeout     time.Duration
	}

	databaseConfig struct {
		Engine     string
		Host       string
		Port       string
		Name       string
		User       string
		Password   string
		DisableTLS bool
	}

	Config struct {
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		AppName          string
		SecretKey        string
		RollbarToken     string
		SendgridApiKey   string
		defaultFromEmail string

		Server   serverConfig
		Store    StoreConfig
		Database databaseConfig
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
}

func (db databaseConfig) Address() string {
	return net.JoinHostPort(db.Host, db.Port)
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Evalix")
	v.SetDefault("secretKey", "k3v%2z!n8w@fq0r(e=7u&c5xj#1y)h6t*9lmb$4gpd_s-oa+i")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "noreply@localhost")

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)

	v.SetDefault("store.driver", DriverRemote)
	v.SetDefault("store.baseURL", "http://localhost:3000/api/v1")
	v.SetDefault("store.resource", "sheets")
	v.SetDefault("store.token", "")
	v.SetDefault("store.sessionFile", defaultSessionFile())
	v.SetDefault("store.maxAttempts", 3)
	v.SetDefault("store.backoffStep", 400*time.Millisecond)
	v.SetDefault("store.timeout", 30*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "evalix")
	v.SetDefault("database.user", "evalix")
	v.SetDefault("database.password", "")
	v.SetDefault("database.disableTLS", true)

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		Server: serverConfig{
			Address:            v.GetString("server.address"),
			DebugHost:          v.GetString("server.debugHost"),
			ShutdownTimeout:    v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("server.jwtExpirationDelta"),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(v.GetString("store.driver")),
			BaseURL:     strings.TrimRight(v.GetString("store.baseURL"), "/"),
			Resource:    v.GetString("store.resource"),
			Token:       v.GetString("store.token"),
			SessionFile: v.GetString("store.sessionFile"),
			MaxAttempts: v.GetInt("store.maxAttempts"),
			BackoffStep: v.GetDuration("store.backoffStep"),
			Timeout:     v.GetDuration("store.timeout"),
		},
		Database: databaseConfig{
			Engine:     v.GetString("database.engine"),
			Host:       v.GetString("database.host"),
			Port:       v.GetString("database.port"),
			Name:       v.GetString("database.name"),
			User:       v.GetString("database.user"),
			Password:   v.GetString("database.password"),
			DisableTLS: v.GetBool("database.disableTLS"),
		},
	}
}

// defaultSessionFile is where `admin login` keeps the session, named after the key the web UI used.
func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "evalix", "evalix_user.json")
}
