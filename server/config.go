package server

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/usafe/sosd/services/diagnostic"
	"github.com/usafe/sosd/services/dispatch"
	"github.com/usafe/sosd/services/httpd"
	"github.com/usafe/sosd/services/quicksend"
	"github.com/usafe/sosd/services/vonage"
)

// Config represents the configuration format for the sosd binary.
type Config struct {
	HTTP     httpd.Config      `toml:"http"`
	Logging  diagnostic.Config `toml:"logging"`
	Dispatch dispatch.Config   `toml:"dispatch"`

	// Channel providers
	QuickSend quicksend.Config `toml:"quicksend"`
	Vonage    vonage.Config    `toml:"vonage"`

	Hostname string `toml:"hostname"`
}

// NewConfig returns an instance of Config with reasonable defaults.
func NewConfig() *Config {
	c := &Config{
		Hostname: "localhost",
	}
	c.HTTP = httpd.NewConfig()
	c.Logging = diagnostic.NewConfig()
	c.Dispatch = dispatch.NewConfig()
	c.QuickSend = quicksend.NewConfig()
	c.Vonage = vonage.NewConfig()
	return c
}

// NewDemoConfig returns the config that runs when no config is specified.
func NewDemoConfig() *Config {
	c := NewConfig()
	c.Dispatch.DefaultRecipients = []string{"+94111111111"}
	c.Dispatch.BulkRecipients = []string{"+94111111111", "+94222222222"}
	c.Dispatch.DefaultCallTo = "+94111111111"
	return c
}

// Validate returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.Hostname == "" {
		return fmt.Errorf("must configure valid hostname")
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if err := c.QuickSend.Validate(); err != nil {
		return err
	}
	if err := c.Vonage.Validate(); err != nil {
		return err
	}
	return nil
}

// ApplyEnvOverrides applies any SOSD_* environment variables on top of
// the parsed config. Variable names follow the TOML structure, e.g.
// SOSD_QUICKSEND_API_KEY or SOSD_DISPATCH_DEFAULT_RECIPIENTS.
func (c *Config) ApplyEnvOverrides() error {
	return c.applyEnvOverrides("SOSD", "", reflect.ValueOf(c))
}

func (c *Config) applyEnvOverrides(prefix string, fieldDesc string, spec reflect.Value) error {
	// If we have a pointer, dereference it
	s := spec
	if spec.Kind() == reflect.Ptr {
		s = spec.Elem()
	}

	var value string

	if s.Kind() != reflect.Struct {
		value = os.Getenv(prefix)
		// Skip any fields we don't have a value to set
		if value == "" {
			return nil
		}

		if fieldDesc != "" {
			fieldDesc = " to " + fieldDesc
		}
	}

	switch s.Kind() {
	case reflect.String:
		s.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var intValue int64

		// Handle toml.Duration
		if s.Type().Name() == "Duration" {
			dur, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("failed to apply %v%v using type %v and value '%v'", prefix, fieldDesc, s.Type().String(), value)
			}
			intValue = dur.Nanoseconds()
		} else {
			var err error
			intValue, err = strconv.ParseInt(value, 0, s.Type().Bits())
			if err != nil {
				return fmt.Errorf("failed to apply %v%v using type %v and value '%v'", prefix, fieldDesc, s.Type().String(), value)
			}
		}

		s.SetInt(intValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("failed to apply %v%v using type %v and value '%v'", prefix, fieldDesc, s.Type().String(), value)
		}
		s.SetBool(boolValue)
	case reflect.Slice:
		// Comma-separated lists, e.g. SOSD_DISPATCH_DEFAULT_RECIPIENTS.
		if s.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(value, ",")
		list := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				list = append(list, p)
			}
		}
		s.Set(reflect.ValueOf(list))
	case reflect.Struct:
		if err := c.applyEnvOverridesToStruct(prefix, s); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) applyEnvOverridesToStruct(prefix string, s reflect.Value) error {
	typeOfSpec := s.Type()
	for i := 0; i < s.NumField(); i++ {
		f := s.Field(i)
		// Get the toml tag to determine what env var name to use
		configName := typeOfSpec.Field(i).Tag.Get("toml")
		// Replace hyphens with underscores to avoid issues with shells
		configName = strings.Replace(configName, "-", "_", -1)
		fieldName := typeOfSpec.Field(i).Name

		// Skip any fields that we cannot set
		if !f.CanSet() {
			continue
		}

		// Use the upper-case prefix and toml name for the env var
		key := strings.ToUpper(configName)
		if prefix != "" {
			key = strings.ToUpper(fmt.Sprintf("%s_%s", prefix, configName))
		}
		if err := c.applyEnvOverrides(key, fieldName, f); err != nil {
			return err
		}
	}
	return nil
}
