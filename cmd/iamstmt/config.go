package main

import (
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ttacon/iamstmt/arntemplate"
	"github.com/ttacon/iamstmt/catalog"
)

const (
	envPrefix         = "IAMSTMT"
	defaultConfigName = ".iamstmt.yaml"
)

// initConfig binds the persistent flags to viper and reads the config
// file. Flags win over the environment, which wins over the file.
func initConfig(command *cobra.Command, flags globalFlags) error {
	if err := viper.BindPFlags(command.Root().PersistentFlags()); err != nil {
		return errors.Wrap(err, "failed to bind flags")
	}
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configFile := flags.configFile
	if configFile == "" {
		home, err := homedir.Dir()
		if err == nil {
			candidate := filepath.Join(home, defaultConfigName)
			if _, statErr := os.Stat(candidate); statErr == nil {
				configFile = candidate
			}
		}
	}
	if configFile != "" {
		viper.SetConfigFile(configFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", configFile)
		}
	}

	if err := setLogLevel(viper.GetString("log-level")); err != nil {
		return err
	}
	if configFile != "" {
		logger.WithField("config", configFile).Debug("Loaded config file")
	}
	return nil
}

// scope holds the account-wide ARN values every template can use.
type scope struct {
	Partition string
	Region    string
	Account   string
}

func currentScope() scope {
	s := scope{
		Partition: viper.GetString("partition"),
		Region:    viper.GetString("region"),
		Account:   viper.GetString("account"),
	}
	if s.Partition == "" && s.Region != "" {
		s.Partition = arntemplate.PartitionForRegion(s.Region)
	}
	return s
}

// values merges the scope under params. Params win.
func (s scope) values(params map[string]string) map[string]string {
	values := map[string]string{
		arntemplate.Partition: s.Partition,
		arntemplate.Region:    s.Region,
		arntemplate.Account:   s.Account,
	}
	for k, v := range params {
		values[k] = v
	}
	return values
}

// loadCatalog returns the built-in catalog extended with every file or
// directory named by the catalog setting.
func loadCatalog() (*catalog.Catalog, error) {
	cat, err := catalog.Default(logger)
	if err != nil {
		return nil, err
	}

	extra := viper.GetStringSlice("catalog")
	for _, raw := range extra {
		path, err := homedir.Expand(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to expand catalog path %s", raw)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to stat catalog path %s", path)
		}
		if info.IsDir() {
			err = cat.LoadDir(path)
		} else {
			err = cat.LoadFile(path)
		}
		if err != nil {
			return nil, err
		}
		logger.WithFields(log.Fields{"path": path, "services": len(cat.Services())}).Debug("Loaded extra catalog")
	}
	if len(extra) > 0 {
		if err := cat.Validate(); err != nil {
			return nil, errors.Wrap(err, "catalog is inconsistent")
		}
	}
	return cat, nil
}
