package session

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var _ Config = Options{}

// Options is the environment backed Config.
type Options struct {
	TokenKey           string            `env:"SESSION_TOKEN_KEY" envDefault:"token"`
	UserKey            string            `env:"SESSION_USER_KEY" envDefault:"user"`
	LoginPath          string            `env:"SESSION_LOGIN_PATH" envDefault:"/login"`
	RootPath           string            `env:"SESSION_ROOT_PATH" envDefault:"/"`
	RejectedRouteKey   string            `env:"SESSION_REJECTED_ROUTE_KEY" envDefault:"login_redirect"`
	RoleHomes          map[string]string `env:"SESSION_ROLE_HOMES" envKeyValSeparator:"=" envSeparator:","`
	EvictExpiredTokens bool              `env:"SESSION_EVICT_EXPIRED" envDefault:"false"`
	CookieSecure       bool              `env:"SESSION_COOKIE_SECURE" envDefault:"true"`

	StoreDriver string `env:"SESSION_STORE" envDefault:"file"`
	FilePath    string `env:"SESSION_FILE_PATH" envDefault:".session.json"`
	RedisURL    string `env:"SESSION_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPrefix string `env:"SESSION_REDIS_PREFIX" envDefault:"session:"`
	SQLDSN      string `env:"SESSION_SQL_DSN" envDefault:"file:session.db?cache=shared"`
}

// DefaultOptions returns the stock configuration without reading the
// environment.
func DefaultOptions() Options {
	return Options{
		TokenKey:         DefaultTokenKey,
		UserKey:          DefaultUserKey,
		LoginPath:        "/login",
		RootPath:         "/",
		RejectedRouteKey: "login_redirect",
		CookieSecure:     true,
		StoreDriver:      "file",
		FilePath:         ".session.json",
		RedisURL:         "redis://localhost:6379/0",
		RedisPrefix:      "session:",
		SQLDSN:           "file:session.db?cache=shared",
	}
}

// LoadOptions reads Options from the environment. The listed dotenv files
// are loaded first when they exist; variables already set win.
func LoadOptions(dotenvFiles ...string) (Options, error) {
	for _, file := range dotenvFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return Options{}, err
		}
	}

	opts := Options{}
	if err := env.Parse(&opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func (o Options) GetTokenKey() string {
	return o.TokenKey
}

func (o Options) GetUserKey() string {
	return o.UserKey
}

func (o Options) GetLoginPath() string {
	return o.LoginPath
}

func (o Options) GetRootPath() string {
	return o.RootPath
}

func (o Options) GetRejectedRouteKey() string {
	return o.RejectedRouteKey
}

// GetRoleHomes merges configured homes over the defaults. Role names are
// matched case-insensitively.
func (o Options) GetRoleHomes() map[UserRole]string {
	homes := DefaultRoleHomes()
	for name, path := range o.RoleHomes {
		role, _ := ParseRole(name)
		homes[role] = path
	}
	return homes
}

func (o Options) GetEvictExpiredTokens() bool {
	return o.EvictExpiredTokens
}

// GetCookieSecure reports whether the rejected route cookie is Secure.
// Disable it for plain HTTP development servers.
func (o Options) GetCookieSecure() bool {
	return o.CookieSecure
}
