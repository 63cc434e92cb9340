package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Port                      int
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		RateLimit                 float64 // requests per second per client on sensitive endpoints
		RateBurst                 int
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr           string // empty disables the course cache
		Password       string
		DB             int
		CourseCacheTTL time.Duration
	}

	StorageConfig struct {
		Driver        string // local | s3
		LocalDir      string
		PublicBaseURL string
		Bucket        string
		Region        string
		Endpoint      string
		AccessKey     string
		SecretKey     string
		UsePathStyle  bool
	}

	// ProConfig holds the manual payment details shown to students upgrading to Pro.
	ProConfig struct {
		PaymentNumber string
		Amount        decimal.Decimal
		Currency      string
		Instructions  string
		SupportPhone  string
		WhatsAppLink  string
	}

	Config struct {
		AppName               string
		Build                 string
		Env                   string
		Debug                 bool
		TestMode              bool
		WorkDir               string
		SecretKey             string
		FrontendBaseURL       string
		AdminEmails           []string
		SendgridApiKey        string
		RollbarToken          string
		PasswordResetTimeout  time.Duration
		PasswordResetCooldown time.Duration
		Server                ServerConfig
		Database              DatabaseConfig
		Redis                 RedisConfig
		Storage               StorageConfig
		Pro                   ProConfig

		defaultFromEmail string
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Kulmis Academy")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "r8k!2vq-0zx#lm7u(wa$e4tyj9d&b1nc^h5o+p3s6fg=ik")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("adminEmails", "")
	v.SetDefault("defaultFromEmail", "Kulmis Academy <noreply@kulmisacademy.com>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeout", time.Hour)
	v.SetDefault("passwordResetCooldown", 2*time.Minute)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 30*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 60*24*time.Hour)
	v.SetDefault("server.rateLimit", 0.2)
	v.SetDefault("server.rateBurst", 5)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "kulmis")
	v.SetDefault("database.user", "kulmis")
	v.SetDefault("database.password", "kulmis")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.courseCacheTTL", 10*time.Minute)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.localDir", "uploads")
	v.SetDefault("storage.publicBaseURL", "/uploads")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accessKey", "")
	v.SetDefault("storage.secretKey", "")
	v.SetDefault("storage.usePathStyle", true)

	v.SetDefault("pro.paymentNumber", "061 123 4567")
	v.SetDefault("pro.amount", "29")
	v.SetDefault("pro.currency", "USD")
	v.SetDefault("pro.instructions", "Send the amount to the number above via mobile money, "+
		"then upload a screenshot of the payment confirmation.")
	v.SetDefault("pro.supportPhone", "+255 612 345 678")
	v.SetDefault("pro.whatsAppLink", "https://wa.me/255612345678")
}

// NewConfig reads the configuration of the running environment.
// ENV selects the profile (DEV by default, TEST, QA, PROD) which is also the prefix of env variables:
// DEV_DATABASE_HOST sets `database.host`.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

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
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	amount, err := decimal.NewFromString(v.GetString("pro.amount"))
	if err != nil {
		log.Fatalf("config: invalid pro.amount %q: %v", v.GetString("pro.amount"), err)
	}

	return &Config{
		AppName:               v.GetString("appName"),
		Build:                 v.GetString("build"),
		Env:                   env,
		Debug:                 v.GetBool("debug"),
		TestMode:              v.GetBool("testMode"),
		WorkDir:               wd,
		SecretKey:             v.GetString("secretKey"),
		FrontendBaseURL:       strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		AdminEmails:           splitList(v.GetString("adminEmails")),
		SendgridApiKey:        v.GetString("sendgridApiKey"),
		RollbarToken:          v.GetString("rollbarToken"),
		PasswordResetTimeout:  v.GetDuration("passwordResetTimeout"),
		PasswordResetCooldown: v.GetDuration("passwordResetCooldown"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Port:                      v.GetInt("server.port"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			RateLimit:                 v.GetFloat64("server.rateLimit"),
			RateBurst:                 v.GetInt("server.rateBurst"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:           v.GetString("redis.addr"),
			Password:       v.GetString("redis.password"),
			DB:             v.GetInt("redis.db"),
			CourseCacheTTL: v.GetDuration("redis.courseCacheTTL"),
		},
		Storage: StorageConfig{
			Driver:        strings.ToLower(v.GetString("storage.driver")),
			LocalDir:      v.GetString("storage.localDir"),
			PublicBaseURL: strings.TrimRight(v.GetString("storage.publicBaseURL"), "/"),
			Bucket:        v.GetString("storage.bucket"),
			Region:        v.GetString("storage.region"),
			Endpoint:      v.GetString("storage.endpoint"),
			AccessKey:     v.GetString("storage.accessKey"),
			SecretKey:     v.GetString("storage.secretKey"),
			UsePathStyle:  v.GetBool("storage.usePathStyle"),
		},
		Pro: ProConfig{
			PaymentNumber: v.GetString("pro.paymentNumber"),
			Amount:        amount,
			Currency:      v.GetString("pro.currency"),
			Instructions:  v.GetString("pro.instructions"),
			SupportPhone:  v.GetString("pro.supportPhone"),
			WhatsAppLink:  v.GetString("pro.whatsAppLink"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}
}

// NewTestConfig returns a Config suitable for tests, without reading the environment.
func NewTestConfig() *Config {
	return &Config{
		AppName:               "Kulmis Academy",
		Build:                 "test",
		Env:                   "TEST",
		Debug:                 false,
		TestMode:              true,
		SecretKey:             "test-secret",
		FrontendBaseURL:       "http://localhost:3000",
		AdminEmails:           []string{"boss@kulmis.test"},
		PasswordResetTimeout:  time.Hour,
		PasswordResetCooldown: 2 * time.Minute,
		Server: ServerConfig{
			Host:                      "localhost",
			Port:                      8000,
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        30 * 24 * time.Hour,
			JWTRefreshExpirationDelta: 60 * 24 * time.Hour,
			RateLimit:                 1000,
			RateBurst:                 1000,
			DisableReqLogs:            true,
		},
		Storage: StorageConfig{Driver: "local", PublicBaseURL: "/uploads"},
		Pro: ProConfig{
			PaymentNumber: "061 123 4567",
			Amount:        decimal.NewFromInt(29),
			Currency:      "USD",
			Instructions:  "Pay and upload the receipt.",
			SupportPhone:  "+255 612 345 678",
			WhatsAppLink:  "https://wa.me/255612345678",
		},
		defaultFromEmail: "Kulmis Academy <noreply@kulmis.test>",
	}
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	return *addr
}

// IsAdminEmail reports whether `email` is listed in AdminEmails.
func (c *Config) IsAdminEmail(email string) bool {
	email = CleanString(email, true /* lower */)
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = CleanString(item, true /* lower */); item != "" {
			items = append(items, item)
		}
	}
	return items
}
