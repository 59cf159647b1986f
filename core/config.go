package core

import (
	"fmt"
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

type (
	ServerConfig struct {
		Address         string
		DebugAddress    string
		ShutdownTimeout time.Duration
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
	}

	DatabaseConfig struct {
		URL           string // takes precedence over the discrete settings below
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
		MaxOpenConns  int
	}

	RedisConfig struct {
		URL string
	}

	Config struct {
		Env      string // DEV (local; default), TEST, QA, PROD
		Build    string
		Debug    bool
		TestMode bool

		AppName          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		SessionExpirationDelta    time.Duration
		PasswordResetTimeoutDelta time.Duration
		InvitationExpirationDelta time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
	}
)

// Address returns the "host:port" of the database server.
func (dc DatabaseConfig) Address() string {
	return net.JoinHostPort(dc.Host, dc.Port)
}

// NewConfig loads the app configuration from the environment,
// after loading `config/.env.<env>` when it exists.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	loadDotEnv(env)

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Academia")
	v.SetDefault("secretKey", "7b=u&k1f+r!wz$9x)l0^e@2n_q4t*d6c#academia")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "Academia <noreply@localhost>")
	v.SetDefault("sendgridAPIKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sessionExpirationDelta", 7*24*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("invitationExpirationDelta", 7*24*time.Hour)

	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugAddress", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "academia")
	v.SetDefault("database.user", "academia")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.maxOpenConns", 25)

	v.SetDefault("redis.url", "")

	// eg. DEV_SERVER_ADDRESS=:8080
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config: invalid defaultFromEmail %q: %v", v.GetString("defaultFromEmail"), err)
	}

	return &Config{
		Env:      env,
		Build:    v.GetString("build"),
		Debug:    v.GetBool("debug"),
		TestMode: env == "TEST",

		AppName:          v.GetString("appName"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: *from,
		SendgridAPIKey:   v.GetString("sendgridAPIKey"),
		RollbarToken:     v.GetString("rollbarToken"),

		SessionExpirationDelta:    v.GetDuration("sessionExpirationDelta"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		InvitationExpirationDelta: v.GetDuration("invitationExpirationDelta"),

		Server: ServerConfig{
			Address:         v.GetString("server.address"),
			DebugAddress:    v.GetString("server.debugAddress"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
			ReadTimeout:     v.GetDuration("server.readTimeout"),
			WriteTimeout:    v.GetDuration("server.writeTimeout"),
		},
		Database: DatabaseConfig{
			URL:           v.GetString("database.url"),
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			MaxOpenConns:  v.GetInt("database.maxOpenConns"),
		},
		Redis: RedisConfig{
			URL: v.GetString("redis.url"),
		},
	}
}

// loadDotEnv loads config/.env.<env> if it exists (ignore if it does not).
func loadDotEnv(env string) {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
}

// NewTestConfig returns a Config suitable for tests; it never reads the environment.
func NewTestConfig() *Config {
	return &Config{
		Env:                       "TEST",
		Build:                     "test",
		Debug:                     false,
		TestMode:                  true,
		AppName:                   "Academia",
		SecretKey:                 "test-secret",
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          mail.Address{Name: "Academia", Address: "noreply@localhost"},
		SessionExpirationDelta:    7 * 24 * time.Hour,
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		InvitationExpirationDelta: 7 * 24 * time.Hour,
		Server: ServerConfig{
			Address:         ":0",
			ShutdownTimeout: time.Second,
		},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s (env=%s, build=%s, debug=%t)", c.AppName, c.Env, c.Build, c.Debug)
}
