package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sagerun/sagerun/internal/config"
	"github.com/sagerun/sagerun/internal/history"
	"github.com/sagerun/sagerun/internal/model"
	"github.com/sagerun/sagerun/internal/session"
	"github.com/sagerun/sagerun/pkg/check"
)

const defaultConfigPath = "~/.sagerun/config.yaml"

// conf is the resolved CLI configuration, available to every subcommand after
// PersistentPreRunE.
var conf *config.Config

var rootCmd = &cobra.Command{
	Use:   "sagerun",
	Short: "launch managed training and tuning jobs",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		conf, err = initializeConfig()
		return err
	},
	SilenceUsage: true,
}

// initializeConfig returns the validated configuration populated from the
// config file, environment variables, and command line flags, and also
// initializes global logging state based on those options.
func initializeConfig() (*config.Config, error) {
	// Fetch an initial config to get the config file path and read its
	// settings into Viper.
	initialConfig, err := getConfig(v.AllSettings())
	if err != nil {
		return nil, err
	}

	bs, err := readConfigFile(initialConfig.ConfigFile)
	if err != nil {
		return nil, err
	}
	if err = mergeConfigBytesIntoViper(bs); err != nil {
		return nil, err
	}

	// Now call viper.AllSettings() again to get the full config, containing
	// all values from CLI flags, environment variables, and the config file.
	conf, err := getConfig(v.AllSettings())
	if err != nil {
		return nil, err
	}

	if err := check.Validate(conf); err != nil {
		return nil, err
	}
	if err := conf.Resolve(); err != nil {
		return nil, err
	}
	conf.Log.SetLogrus()
	return conf, nil
}

func readConfigFile(configPath string) ([]byte, error) {
	isDefault := configPath == ""
	if isDefault {
		configPath = defaultConfigPath
	}
	if home, err := os.UserHomeDir(); err == nil && len(configPath) > 1 && configPath[:2] == "~/" {
		configPath = home + configPath[1:]
	}

	if _, err := os.Stat(configPath); err != nil {
		if isDefault && os.IsNotExist(err) {
			log.Debugf("no configuration file at %s, skipping", configPath)
			return nil, nil
		}
		return nil, errors.Wrap(err, "error finding configuration file")
	}
	bs, err := os.ReadFile(configPath) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "error reading configuration file")
	}
	return bs, nil
}

func mergeConfigBytesIntoViper(bs []byte) error {
	var configMap map[string]interface{}
	if err := yaml.Unmarshal(bs, &configMap); err != nil {
		return errors.Wrap(err, "error unmarshal yaml configuration file")
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return errors.Wrap(err, "error merge configuration to viper")
	}
	return nil
}

func getConfig(configMap map[string]interface{}) (*config.Config, error) {
	conf := config.DefaultConfig()
	bs, err := json.Marshal(configMap)
	if err != nil {
		return nil, errors.Wrap(err, "cannot marshal configuration map into json bytes")
	}
	if err = yaml.Unmarshal(bs, &conf); err != nil {
		return nil, errors.Wrap(err, "cannot unmarshal configuration")
	}
	return conf, nil
}

func newSession() (*session.Session, error) {
	return session.New(conf.Region)
}

func openHistory() (*history.Store, error) {
	return history.Open(conf.HistoryPath)
}

// recordState updates the local history. History is advisory; failures are
// logged, never fatal.
func recordState(ctx context.Context, store *history.Store, name string,
	state model.State, reason string,
) {
	if err := store.UpdateState(ctx, name, state, reason); err != nil {
		log.WithError(err).Warn("failed to update local history")
	}
}
