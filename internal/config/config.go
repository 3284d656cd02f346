package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Settings holds everything read from the environment: credentials and
// the connection tuning knobs. Credentials never live in the desired-state
// document.
type Settings struct {
	VCenter    vcenterSettings
	Esxi       esxiSettings
	Connection connectionSettings
	LogLevel   string `envconfig:"VBUILD_LOG_LEVEL"`
}

type vcenterSettings struct {
	Username string `envconfig:"VBUILD_VCENTER_USERNAME" default:"administrator@vsphere.local"`
	Password string `envconfig:"VBUILD_VCENTER_PASSWORD" default:""`
	Insecure bool   `envconfig:"VBUILD_VCENTER_INSECURE" default:"true"`
}

type esxiSettings struct {
	Username string `envconfig:"VBUILD_ESXI_USERNAME" default:"root"`
	Password string `envconfig:"VBUILD_ESXI_ROOT_PASSWORD" default:""`
}

type connectionSettings struct {
	MaxAttempts int           `envconfig:"VBUILD_CONNECT_ATTEMPTS" default:"3"`
	RetryDelay  time.Duration `envconfig:"VBUILD_CONNECT_RETRY_DELAY" default:"10s"`
}

// LoadSettings reads the process environment.
func LoadSettings() (*Settings, error) {
	s := new(Settings)
	if err := envconfig.Process("", s); err != nil {
		return nil, err
	}
	if s.LogLevel == "" {
		s.LogLevel = logrus.InfoLevel.String()
	}
	return s, nil
}
