// Package cfgloader loads and validates configuration at the start of an application.
package cfgloader

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/code19m/errx"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvProduction = "production"
	EnvStaging    = "staging"
	EnvDev        = "dev"
	EnvLocal      = "local"
	EnvTest       = "test"
)

// Error codes returned by Load.
const (
	CodeInvalidEnvironment = "CFG_INVALID_ENVIRONMENT"
	CodeReadFailed         = "CFG_READ_FAILED"
	CodeInvalidConfig      = "CFG_INVALID"
)

// MustLoad loads the configuration file ./config/${ENVIRONMENT}.yaml and exits
// the process on any failure. See Load for the loading rules.
func MustLoad[T any](opts ...Option) T {
	env := os.Getenv("ENVIRONMENT")
	if !slices.Contains([]string{EnvProduction, EnvStaging, EnvDev, EnvLocal, EnvTest}, env) {
		slog.Error(
			"[cfgloader]: ENVIRONMENT env variable is not set or invalid. Choices are: production, staging, dev, local, test",
		)
		os.Exit(1)
	}

	config, err := Load[T](fmt.Sprintf("./config/%s.yaml", env), opts...)
	if err != nil {
		slog.Error(fmt.Sprintf("[cfgloader]: %s: %v", env, err))
		os.Exit(1)
	}
	return config
}

// Load reads the YAML file at path into a new T.
//
// A .env file in the working directory is loaded first if present, and
// ${VAR} references in the YAML are expanded from the environment.
// Fields left empty by the file get values from their `default` struct tag,
// then the result is validated with go-playground/validator `validate` tags.
// Fields tagged `mask:"true"` are starred out when the config is printed.
func Load[T any](path string, opts ...Option) (T, error) {
	var config T

	options := Options{}
	for _, opt := range opts {
		opt(&options)
	}

	if reflect.ValueOf(config).Kind() == reflect.Ptr {
		return config, errx.New("config type must not be a pointer", errx.WithCode(CodeInvalidConfig))
	}

	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, errx.Wrap(err, errx.WithCode(CodeReadFailed), errx.WithDetails(errx.D{"path": path}))
	}

	data = []byte(os.ExpandEnv(string(data)))

	if err = yaml.Unmarshal(data, &config); err != nil {
		return config, errx.Wrap(err, errx.WithCode(CodeInvalidConfig), errx.WithDetails(errx.D{"path": path}))
	}

	if err = defaults.Set(&config); err != nil {
		return config, errx.Wrap(err, errx.WithCode(CodeInvalidConfig))
	}

	if err = validateConfig(&config); err != nil {
		return config, err
	}

	if !options.Silent {
		printConfig(config)
	}
	return config, nil
}

func validateConfig(config any) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(config)

	failedFields := make([]string, 0)
	if errs, ok := err.(validator.ValidationErrors); ok { //nolint: errorlint // Using type assertion for validator errors handling
		for _, err := range errs {
			tagErr := err.Tag()
			if err.Param() != "" {
				tagErr += fmt.Sprintf("=%s", err.Param())
			}
			failedFields = append(failedFields, fmt.Sprintf("%s: %s", err.Namespace(), tagErr))
		}
	}

	if len(failedFields) > 0 {
		return errx.New(
			"invalid config fields -> "+strings.Join(failedFields, ",  "),
			errx.WithCode(CodeInvalidConfig),
			errx.WithType(errx.T_Validation),
		)
	}
	return nil
}
